package repositories

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"constructflow/internal/models"
)

// UserRepository resolves notification channels of a user.
type UserRepository interface {
	GetRecipient(ctx context.Context, userID int64) (*models.Recipient, error)
	GetByChatID(ctx context.Context, chatID int64) (*models.Recipient, error)
	LinkTelegram(ctx context.Context, userID, chatID int64) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const recipientColumns = `
	id, COALESCE(email,''),
	COALESCE(telegram_chat_id,0), COALESCE(notify_tasks_telegram,TRUE),
	COALESCE(notify_tasks_email,TRUE)`

func scanRecipient(row rowScanner) (*models.Recipient, error) {
	rc := &models.Recipient{}
	err := row.Scan(
		&rc.UserID, &rc.Email,
		&rc.TelegramChatID, &rc.NotifyTasksTelegram,
		&rc.NotifyTasksEmail,
	)
	return rc, err
}

func (r *userRepository) GetRecipient(ctx context.Context, userID int64) (*models.Recipient, error) {
	q := `SELECT` + recipientColumns + ` FROM users WHERE id = $1`
	rc, err := scanRecipient(r.DB.QueryRowContext(ctx, q, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrNotFound, "user %d", userID)
		}
		return nil, errors.Wrapf(err, "select user %d", userID)
	}
	return rc, nil
}

func (r *userRepository) GetByChatID(ctx context.Context, chatID int64) (*models.Recipient, error) {
	q := `SELECT` + recipientColumns + ` FROM users WHERE telegram_chat_id = $1 LIMIT 1`
	rc, err := scanRecipient(r.DB.QueryRowContext(ctx, q, chatID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrNotFound, "chat %d", chatID)
		}
		return nil, errors.Wrapf(err, "select user by chat %d", chatID)
	}
	return rc, nil
}

func (r *userRepository) LinkTelegram(ctx context.Context, userID, chatID int64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET telegram_chat_id=$1, notify_tasks_telegram=TRUE WHERE id=$2`,
		chatID, userID)
	if err != nil {
		return errors.Wrapf(err, "link telegram user %d", userID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "user %d", userID)
	}
	return nil
}

// MemoryUserRepository serves recipients from a map; used by the in-memory
// store mode and tests.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	recipients map[int64]models.Recipient
}

func NewMemoryUserRepository(recipients ...models.Recipient) *MemoryUserRepository {
	r := &MemoryUserRepository{recipients: make(map[int64]models.Recipient, len(recipients))}
	for _, rc := range recipients {
		r.recipients[rc.UserID] = rc
	}
	return r
}

// Put adds or replaces a recipient.
func (r *MemoryUserRepository) Put(rc models.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipients[rc.UserID] = rc
}

func (r *MemoryUserRepository) GetRecipient(_ context.Context, userID int64) (*models.Recipient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.recipients[userID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "user %d", userID)
	}
	return &rc, nil
}

func (r *MemoryUserRepository) GetByChatID(_ context.Context, chatID int64) (*models.Recipient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rc := range r.recipients {
		if chatID != 0 && rc.TelegramChatID == chatID {
			rc := rc
			return &rc, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "chat %d", chatID)
}

func (r *MemoryUserRepository) LinkTelegram(_ context.Context, userID, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.recipients[userID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "user %d", userID)
	}
	rc.TelegramChatID = chatID
	rc.NotifyTasksTelegram = true
	r.recipients[userID] = rc
	return nil
}
