package storage

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

func New(ctx context.Context, dsn string) (*sqlx.DB, error) {
	const op = "storage.postgres.New"

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", op, err)
	}

	return db, nil
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id uuid PRIMARY KEY,
			member_low uuid NOT NULL,
			member_high uuid NOT NULL,
			last_message_id uuid,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now(),
			UNIQUE (member_low, member_high)
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id uuid NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id uuid NOT NULL,
			unread_count bigint NOT NULL DEFAULT 0,
			archived boolean NOT NULL DEFAULT false,
			PRIMARY KEY (conversation_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id uuid PRIMARY KEY,
			conversation_id uuid NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id uuid NOT NULL,
			receiver_id uuid NOT NULL,
			message_type text NOT NULL,
			content text NOT NULL DEFAULT '',
			image_url text,
			longitude double precision,
			latitude double precision,
			listing_id uuid,
			checkin_id uuid,
			is_read boolean NOT NULL DEFAULT false,
			read_at timestamptz,
			deleted_by uuid[] NOT NULL DEFAULT '{}',
			is_deleted boolean NOT NULL DEFAULT false,
			is_edited boolean NOT NULL DEFAULT false,
			edited_at timestamptz,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages (conversation_id, created_at DESC, id DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_unread
			ON messages (conversation_id, receiver_id) WHERE NOT is_read`,

		`CREATE INDEX IF NOT EXISTS idx_conversation_members_user
			ON conversation_members (user_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}
