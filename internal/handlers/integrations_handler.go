package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"constructflow/internal/models"
	"constructflow/internal/repositories"
	"constructflow/internal/services"
)

const (
	btnMyTasks  = "📋 Мои задачи"
	linkCodeTTL = 30 * time.Minute
	digestLimit = 10
)

// TelegramMessenger is the part of TelegramService the bot webhook uses.
type TelegramMessenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendReplyKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error
}

type IntegrationsHandler struct {
	tg            TelegramMessenger
	links         repositories.TelegramLinkRepository
	users         repositories.UserRepository
	tasks         services.WorkflowService
	webhookSecret string
	log           *logrus.Entry
}

func NewIntegrationsHandler(
	tg TelegramMessenger,
	links repositories.TelegramLinkRepository,
	users repositories.UserRepository,
	tasks services.WorkflowService,
	webhookSecret string,
	log *logrus.Entry,
) *IntegrationsHandler {
	return &IntegrationsHandler{
		tg:            tg,
		links:         links,
		users:         users,
		tasks:         tasks,
		webhookSecret: webhookSecret,
		log:           log.WithField("component", "telegram_webhook"),
	}
}

type tgUpdate struct {
	Message *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

func normalizeLinkCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`“”«»<>.,;:()[]{}\\")
	s = strings.ToUpper(strings.TrimSpace(s))

	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Hex_Digit, r) {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if len(code) != 32 {
		return "", false
	}
	return code, true
}

// Webhook godoc
// @Summary      Telegram webhook
// @Description  Команды бота: /start, /link <код>, кнопка «Мои задачи». Всегда отвечает 200.
// @Tags         Integrations
// @Accept       json
// @Success      200
// @Router       /integrations/telegram/webhook [post]
func (h *IntegrationsHandler) Webhook(c *gin.Context) {
	if h.webhookSecret != "" && c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != h.webhookSecret {
		h.log.Warn("[tg][webhook] bad secret token")
		c.Status(http.StatusUnauthorized)
		return
	}

	var up tgUpdate
	if err := c.ShouldBindJSON(&up); err != nil || up.Message == nil {
		h.log.WithError(err).Debug("[tg][webhook] update without message")
		c.Status(http.StatusOK)
		return
	}

	ctx := c.Request.Context()
	text := strings.TrimSpace(up.Message.Text)
	chatID := up.Message.Chat.ID
	log := h.log.WithField("chat_id", chatID)
	log.WithField("text", text).Debug("[tg][webhook] incoming")

	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(ctx, log, chatID,
			"Привет! Чтобы связать аккаунт, отправьте:\n<code>/link &lt;код&gt;</code>\n\nКод можно получить в личном кабинете.", true)

	case strings.HasPrefix(text, "/link"):
		h.link(ctx, log, chatID, strings.TrimSpace(strings.TrimPrefix(text, "/link")))

	case text == btnMyTasks:
		h.sendMyTasksDigest(ctx, log, chatID)

	default:
		h.reply(ctx, log, chatID, "Не понял команду. Используйте <code>/link &lt;код&gt;</code> или кнопку меню.", false)
	}

	c.Status(http.StatusOK)
}

func (h *IntegrationsHandler) link(ctx context.Context, log *logrus.Entry, chatID int64, raw string) {
	code, ok := normalizeLinkCode(raw)
	if !ok {
		h.reply(ctx, log, chatID, "Неверный формат кода. Отправьте ровно 32 символа HEX:\n<code>/link 0123456789ABCDEF0123456789ABCDEF</code>", false)
		return
	}

	link, err := h.links.UseByCode(ctx, code)
	if err != nil {
		log.WithError(err).Warn("[tg][link] use code failed")
		h.reply(ctx, log, chatID, "Код недействителен или истёк. Сгенерируйте новый в личном кабинете.", false)
		return
	}
	if err := h.users.LinkTelegram(ctx, link.UserID, chatID); err != nil {
		log.WithError(err).WithField("user_id", link.UserID).Error("[tg][link] update user failed")
		h.reply(ctx, log, chatID, "Не удалось привязать аккаунт, попробуйте позже.", false)
		return
	}
	log.WithField("user_id", link.UserID).Info("[tg][link][ok]")
	h.reply(ctx, log, chatID, "Готово! Аккаунт привязан. Вы начнёте получать уведомления о задачах.", true)
}

// RequestTelegramLink godoc
// @Summary      Код привязки Telegram
// @Description  Выдаёт одноразовый код (30 минут) для команды /link
// @Tags         Integrations
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Router       /integrations/telegram/request-link [post]
func (h *IntegrationsHandler) RequestTelegramLink(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		h.log.WithError(err).Error("[tg][request-link] rng failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "rng failed"})
		return
	}
	code := strings.ToUpper(hex.EncodeToString(buf)) // 32 HEX

	link, err := h.links.Create(c.Request.Context(), int64(userID), code, linkCodeTTL)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("[tg][request-link] create failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "cannot create link"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":       link.Code,
		"expires_at": link.ExpiresAt,
		"hint":       "Откройте чат с ботом и отправьте: /link " + link.Code,
	})
}

// ===== Кнопка "Мои задачи" =====

var digestOrder = []models.TaskStatus{
	models.StatusAssignedToEmployee,
	models.StatusAssignedToDirector,
	models.StatusPendingDirectorApproval,
	models.StatusPendingAdminApproval,
	models.StatusPending,
}

var statusLabels = map[models.TaskStatus]string{
	models.StatusPending:                 "Новые",
	models.StatusAssignedToDirector:      "У директора",
	models.StatusAssignedToEmployee:      "В работе",
	models.StatusPendingDirectorApproval: "На согласовании у директора",
	models.StatusPendingAdminApproval:    "На согласовании у администратора",
}

func (h *IntegrationsHandler) sendMyTasksDigest(ctx context.Context, log *logrus.Entry, chatID int64) {
	rc, err := h.users.GetByChatID(ctx, chatID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			log.WithError(err).Error("[tg][my-tasks] user lookup failed")
		}
		h.reply(ctx, log, chatID, "Не удалось определить пользователя по Telegram. Привяжите аккаунт командой /link.", false)
		return
	}

	tasks, err := h.myTasks(ctx, rc.UserID)
	if err != nil {
		log.WithError(err).WithField("user_id", rc.UserID).Error("[tg][my-tasks] list failed")
		h.reply(ctx, log, chatID, "Не удалось загрузить задачи.", false)
		return
	}
	h.reply(ctx, log, chatID, formatDigest(tasks), true)
}

// myTasks collects open tasks where uid is the current assignee or the
// approver the task is waiting for. assigned_to keeps pointing at the
// employee while the chain runs, so approvers are queried separately.
func (h *IntegrationsHandler) myTasks(ctx context.Context, uid int64) ([]models.Task, error) {
	director := models.LevelDirector
	admin := models.LevelAdmin
	filters := []models.TaskFilter{
		{AssignedTo: &uid, Statuses: digestOrder},
		{AssignedDirector: &uid, ApprovalLevel: &director, Statuses: []models.TaskStatus{models.StatusPendingDirectorApproval}},
		{CreatedBy: &uid, ApprovalLevel: &admin, Statuses: []models.TaskStatus{models.StatusPendingAdminApproval}},
	}
	seen := map[int64]bool{}
	var out []models.Task
	for _, f := range filters {
		tasks, err := h.tasks.List(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out, nil
}

func formatDigest(tasks []models.Task) string {
	if len(tasks) == 0 {
		return "У вас нет активных задач. 👍"
	}
	groups := map[models.TaskStatus][]models.Task{}
	for _, t := range tasks {
		groups[t.Status] = append(groups[t.Status], t)
	}

	var b strings.Builder
	b.WriteString("📋 <b>Мои задачи</b>\n")
	shown := 0
	for _, st := range digestOrder {
		items := groups[st]
		if len(items) == 0 || shown == digestLimit {
			continue
		}
		b.WriteString("\n— <b>" + html.EscapeString(statusLabels[st]) + "</b>\n")
		for _, t := range items {
			if shown == digestLimit {
				break
			}
			b.WriteString("• " + html.EscapeString(t.Title) + " <code>#" + strconv.FormatInt(t.ID, 10) + "</code>\n")
			shown++
		}
	}
	if len(tasks) > shown {
		b.WriteString("…и ещё " + strconv.Itoa(len(tasks)-shown) + " шт.\n")
	}
	return b.String()
}

func (h *IntegrationsHandler) reply(ctx context.Context, log *logrus.Entry, chatID int64, text string, withMenu bool) {
	var err error
	if withMenu {
		err = h.tg.SendReplyKeyboard(ctx, chatID, text, [][]string{{btnMyTasks}})
	} else {
		err = h.tg.SendMessage(ctx, chatID, text)
	}
	if err != nil {
		log.WithError(err).Warn("[tg][reply][err]")
	}
}
