package repositories

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrLinkExpired is returned for a used or expired link code.
var ErrLinkExpired = errors.New("repository: link code used or expired")

// TelegramLink is a one-time code a user sends to the bot to bind a chat.
type TelegramLink struct {
	ID        int64
	UserID    int64
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

type TelegramLinkRepository interface {
	Create(ctx context.Context, userID int64, code string, ttl time.Duration) (*TelegramLink, error)
	// UseByCode marks the code used and returns it; unknown codes yield
	// ErrNotFound, used or expired ones ErrLinkExpired.
	UseByCode(ctx context.Context, code string) (*TelegramLink, error)
}

type telegramLinkRepository struct{ db *sql.DB }

func NewTelegramLinkRepository(db *sql.DB) TelegramLinkRepository {
	return &telegramLinkRepository{db: db}
}

func (r *telegramLinkRepository) Create(ctx context.Context, userID int64, code string, ttl time.Duration) (*TelegramLink, error) {
	expiresAt := time.Now().Add(ttl)

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO telegram_links (user_id, code, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, code, expires_at, used, created_at
	`, userID, code, expiresAt)

	var l TelegramLink
	if err := row.Scan(&l.ID, &l.UserID, &l.Code, &l.ExpiresAt, &l.Used, &l.CreatedAt); err != nil {
		return nil, errors.Wrapf(err, "insert telegram link user=%d", userID)
	}
	return &l, nil
}

func (r *telegramLinkRepository) UseByCode(ctx context.Context, code string) (*TelegramLink, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer tx.Rollback()

	var l TelegramLink
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, code, expires_at, used, created_at
		FROM telegram_links
		WHERE code=$1
		FOR UPDATE
	`, code).Scan(&l.ID, &l.UserID, &l.Code, &l.ExpiresAt, &l.Used, &l.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrap(ErrNotFound, "telegram link")
		}
		return nil, errors.Wrap(err, "select telegram link")
	}

	if l.Used || time.Now().After(l.ExpiresAt) {
		return nil, errors.WithStack(ErrLinkExpired)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE telegram_links SET used=true WHERE id=$1`, l.ID); err != nil {
		return nil, errors.Wrap(err, "mark telegram link used")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.WithStack(err)
	}
	l.Used = true
	return &l, nil
}

// MemoryTelegramLinkRepository backs the in-memory store mode.
type MemoryTelegramLinkRepository struct {
	mu     sync.Mutex
	nextID int64
	links  map[string]*TelegramLink
	now    func() time.Time
}

func NewMemoryTelegramLinkRepository() *MemoryTelegramLinkRepository {
	return &MemoryTelegramLinkRepository{links: map[string]*TelegramLink{}, now: time.Now}
}

func (r *MemoryTelegramLinkRepository) Create(_ context.Context, userID int64, code string, ttl time.Duration) (*TelegramLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.links[code]; ok {
		return nil, errors.Errorf("telegram link code %q already exists", code)
	}
	r.nextID++
	now := r.now()
	l := &TelegramLink{ID: r.nextID, UserID: userID, Code: code, ExpiresAt: now.Add(ttl), CreatedAt: now}
	r.links[code] = l
	out := *l
	return &out, nil
}

func (r *MemoryTelegramLinkRepository) UseByCode(_ context.Context, code string) (*TelegramLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[code]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, "telegram link")
	}
	if l.Used || r.now().After(l.ExpiresAt) {
		return nil, errors.WithStack(ErrLinkExpired)
	}
	l.Used = true
	out := *l
	return &out, nil
}
