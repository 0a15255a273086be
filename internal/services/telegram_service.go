package services

import (
	"context"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"constructflow/internal/models"
)

// TelegramService sends task notifications to linked Telegram chats.
type TelegramService struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
	log     *logrus.Entry
}

// NewTelegramService connects to the Bot API. endpoint may be empty to use
// the public one; ratePerSecond caps outgoing messages.
func NewTelegramService(token, endpoint string, ratePerSecond float64, client *http.Client, log *logrus.Entry) (*TelegramService, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 25
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "telegram getMe")
	}
	log.WithField("bot", bot.Self.UserName).Info("[tg] connected")
	return &TelegramService{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		log:     log,
	}, nil
}

func (t *TelegramService) Name() string { return "telegram" }

func (t *TelegramService) Enabled(rc *models.Recipient) bool {
	return t != nil && rc.NotifyTasksTelegram && rc.TelegramChatID != 0
}

func (t *TelegramService) Deliver(ctx context.Context, rc *models.Recipient, msg Message) error {
	return t.SendMessage(ctx, rc.TelegramChatID, msg.HTML)
}

func (t *TelegramService) SendMessage(ctx context.Context, chatID int64, text string) error {
	if t == nil || chatID == 0 {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	m.DisableWebPagePreview = true

	t.log.WithField("chat_id", chatID).Debug("[tg][send]")
	if _, err := t.bot.Send(m); err != nil {
		return errors.Wrapf(err, "telegram sendMessage chat=%d", chatID)
	}
	return nil
}

// SendReplyKeyboard sends text with a persistent reply keyboard.
func (t *TelegramService) SendReplyKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error {
	if t == nil || chatID == 0 {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	kb := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			btns = append(btns, tgbotapi.NewKeyboardButton(label))
		}
		kb = append(kb, tgbotapi.NewKeyboardButtonRow(btns...))
	}
	markup := tgbotapi.NewReplyKeyboard(kb...)
	markup.ResizeKeyboard = true

	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	m.ReplyMarkup = markup
	if _, err := t.bot.Send(m); err != nil {
		return errors.Wrapf(err, "telegram sendMessage(keyboard) chat=%d", chatID)
	}
	return nil
}
