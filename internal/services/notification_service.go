package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"constructflow/internal/models"
	"constructflow/internal/repositories"
)

var (
	ErrQueueFull        = errors.New("notification queue is full")
	ErrNotifierClosed   = errors.New("notifier is closed")
	ErrNoChannel        = errors.New("recipient has no enabled delivery channel")
	ErrRecipientUnknown = errors.New("recipient not found")
)

// Message is a rendered notification, ready for any channel.
type Message struct {
	Subject string
	HTML    string
}

// Channel delivers a message over one transport (Telegram, e-mail...).
type Channel interface {
	Name() string
	Enabled(rc *models.Recipient) bool
	Deliver(ctx context.Context, rc *models.Recipient, msg Message) error
}

type NotificationConfig struct {
	QueueSize  int
	Retries    uint
	RetryDelay time.Duration
	Timeout    time.Duration
}

// NotificationService is the Notifier used by the workflow engine. Events
// are queued and delivered by a background worker; Close drains the queue.
type NotificationService struct {
	users    repositories.UserRepository
	channels []Channel
	log      *logrus.Entry
	cfg      NotificationConfig

	mu     sync.RWMutex
	closed bool
	queue  chan models.TaskEvent
	wg     sync.WaitGroup
}

func NewNotificationService(users repositories.UserRepository, log *logrus.Entry, cfg NotificationConfig, channels ...Channel) *NotificationService {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &NotificationService{
		users:    users,
		channels: channels,
		log:      log,
		cfg:      cfg,
		queue:    make(chan models.TaskEvent, cfg.QueueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Notify enqueues the event without blocking.
func (s *NotificationService) Notify(_ context.Context, event models.TaskEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrNotifierClosed
	}
	select {
	case s.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Send delivers a direct message to a user synchronously.
func (s *NotificationService) Send(ctx context.Context, userID int64, title, body string) error {
	msg := Message{
		Subject: title,
		HTML:    "<b>" + html.EscapeString(title) + "</b>\n" + html.EscapeString(body),
	}
	return s.deliver(ctx, userID, msg)
}

// Close stops accepting events and waits until queued ones are delivered.
func (s *NotificationService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *NotificationService) run() {
	defer s.wg.Done()
	for ev := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		err := s.deliver(ctx, ev.RecipientID, FormatEvent(ev))
		cancel()
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"task_id":   ev.TaskID,
				"recipient": ev.RecipientID,
				"kind":      ev.Kind,
			}).Warn("[notify][deliver][err]")
		}
	}
}

func (s *NotificationService) deliver(ctx context.Context, userID int64, msg Message) error {
	rc, err := s.users.GetRecipient(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: user %d", ErrRecipientUnknown, userID)
		}
		return err
	}

	// channels are independent: one giving up must not cancel the others
	var g errgroup.Group
	var errs []error
	var errMu sync.Mutex
	used := 0
	for _, ch := range s.channels {
		if !ch.Enabled(rc) {
			continue
		}
		used++
		ch := ch
		g.Go(func() error {
			err := retry.Do(
				func() error { return ch.Deliver(ctx, rc, msg) },
				retry.Context(ctx),
				retry.Attempts(s.cfg.Retries),
				retry.Delay(s.cfg.RetryDelay),
				retry.LastErrorOnly(true),
			)
			if err != nil {
				err = fmt.Errorf("%s: %w", ch.Name(), err)
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
				return err
			}
			s.log.WithFields(logrus.Fields{"channel": ch.Name(), "user_id": rc.UserID}).Debug("[notify][deliver][ok]")
			return nil
		})
	}
	if used == 0 {
		return fmt.Errorf("%w: user %d", ErrNoChannel, userID)
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// FormatEvent renders an event as a short HTML message.
func FormatEvent(ev models.TaskEvent) Message {
	title := html.EscapeString(ev.Payload["title"])
	var prefix string
	switch ev.Kind {
	case models.EventTaskAssigned:
		prefix = "👤 Вам назначена задача"
		if role := ev.Payload["role"]; role != "" {
			prefix += " (" + html.EscapeString(role) + ")"
		}
	case models.EventApprovalRequested:
		prefix = "📝 Требуется согласование"
	case models.EventTaskUpdated:
		prefix = "🔁 Статус изменён на " + html.EscapeString(ev.Payload["status"])
	default:
		prefix = "📌 Уведомление по задаче"
	}
	body := prefix + "\n" +
		"• <b>" + title + "</b>\n" +
		"• Задача: <code>#" + strconv.FormatInt(ev.TaskID, 10) + "</code>"
	if reason := ev.Payload["reason"]; reason != "" {
		body += "\n• Причина: " + html.EscapeString(reason)
	}
	return Message{Subject: prefix + ": " + ev.Payload["title"], HTML: body}
}
