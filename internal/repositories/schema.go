package repositories

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                    BIGSERIAL PRIMARY KEY,
	email                 TEXT,
	telegram_chat_id      BIGINT,
	notify_tasks_telegram BOOLEAN DEFAULT TRUE,
	notify_tasks_email    BOOLEAN DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS telegram_links (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT      NOT NULL,
	code       TEXT        NOT NULL UNIQUE,
	expires_at TIMESTAMPTZ NOT NULL,
	used       BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
	id                     BIGSERIAL PRIMARY KEY,
	title                  TEXT        NOT NULL,
	description            TEXT        NOT NULL DEFAULT '',
	category               TEXT        NOT NULL DEFAULT '',
	created_by             BIGINT      NOT NULL,
	assigned_director      BIGINT      NOT NULL DEFAULT 0,
	assigned_employee      BIGINT      NOT NULL DEFAULT 0,
	assigned_to            BIGINT      NOT NULL DEFAULT 0,
	status                 TEXT        NOT NULL,
	current_approval_level TEXT        NOT NULL DEFAULT 'none',
	approval_chain         JSONB       NOT NULL DEFAULT '[]'::jsonb,
	rejection_reason       TEXT        NOT NULL DEFAULT '',
	version                BIGINT      NOT NULL DEFAULT 0,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks (assigned_to);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status);
CREATE INDEX IF NOT EXISTS idx_users_telegram_chat ON users (telegram_chat_id);
`

// EnsureSchema creates the tables the repositories read and write.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return errors.Wrap(err, "ensure schema")
}
