package messagesrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Khuzaim123/nomadnet-messaging/internal/messages"
)

const selectColumns = `
	id, conversation_id, sender_id, receiver_id, message_type, content,
	image_url, longitude, latitude, listing_id, checkin_id,
	is_read, read_at, is_deleted, is_edited, edited_at, created_at`

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, m *messages.Message) error {
	const op = "messages.repo.Create"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowxContext(
		ctx,
		`INSERT INTO messages (
			id, conversation_id, sender_id, receiver_id, message_type, content,
			image_url, longitude, latitude, listing_id, checkin_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		m.ID, m.ConversationID, m.SenderID, m.ReceiverID, m.Type, m.Content,
		m.ImageURL, m.Longitude, m.Latitude, m.ListingID, m.CheckInID,
	).Scan(&m.CreatedAt); err != nil {
		return fmt.Errorf("%s: insert message: %w", op, err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE conversations
		SET last_message_id = $2, updated_at = now()
		WHERE id = $1`,
		m.ConversationID, m.ID,
	); err != nil {
		return fmt.Errorf("%s: update conversation: %w", op, err)
	}

	// The increment runs in SQL so concurrent sends never lose an update.
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE conversation_members
		SET unread_count = unread_count + 1
		WHERE conversation_id = $1 AND user_id = $2`,
		m.ConversationID, m.ReceiverID,
	); err != nil {
		return fmt.Errorf("%s: bump unread: %w", op, err)
	}

	// Acting on a conversation un-archives it for the actor.
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE conversation_members
		SET archived = false
		WHERE conversation_id = $1 AND user_id = $2 AND archived`,
		m.ConversationID, m.SenderID,
	); err != nil {
		return fmt.Errorf("%s: unarchive sender: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (messages.Message, error) {
	const op = "messages.repo.GetByID"

	var m messages.Message
	err := r.db.GetContext(ctx, &m, `SELECT `+selectColumns+` FROM messages WHERE id = $1 AND NOT is_deleted`, id)

	if errors.Is(err, sql.ErrNoRows) {
		return messages.Message{}, messages.ErrMessageNotFound
	}
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: select: %w", op, err)
	}

	return m, nil
}

func (r *Repo) List(ctx context.Context, conversationID, viewer uuid.UUID, limit, offset int) ([]messages.Message, error) {
	const op = "messages.repo.List"

	var page []messages.Message
	if err := r.db.SelectContext(ctx, &page, `
		SELECT `+selectColumns+`
		FROM messages
		WHERE conversation_id = $1
		  AND NOT is_deleted
		  AND NOT (deleted_by @> $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, conversationID, pq.Array([]uuid.UUID{viewer}), limit, offset); err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}

	// Newest-first fetch, oldest-first page.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}

	return page, nil
}

func (r *Repo) MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	const op = "messages.repo.MarkAllRead"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	readIDs := []uuid.UUID{}
	rows, err := tx.QueryxContext(
		ctx,
		`UPDATE messages
		SET is_read = true, read_at = $3
		WHERE conversation_id = $1 AND receiver_id = $2 AND NOT is_read
		RETURNING id`,
		conversationID, userID, at,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: update messages: %w", op, err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		readIDs = append(readIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE conversation_members
		SET unread_count = 0
		WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	); err != nil {
		return nil, fmt.Errorf("%s: reset unread: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return readIDs, nil
}

func (r *Repo) MarkRead(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error) {
	const op = "messages.repo.MarkRead"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	var conversationID uuid.UUID
	err = tx.QueryRowxContext(
		ctx,
		`UPDATE messages
		SET is_read = true, read_at = $3
		WHERE id = $1 AND receiver_id = $2 AND NOT is_read
		RETURNING conversation_id`,
		messageID, userID, at,
	).Scan(&conversationID)

	if errors.Is(err, sql.ErrNoRows) {
		// Already read or not addressed to user: a no-op, not an error.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: update message: %w", op, err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE conversation_members
		SET unread_count = GREATEST(unread_count - 1, 0)
		WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	); err != nil {
		return false, fmt.Errorf("%s: decrement unread: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return true, nil
}

func (r *Repo) Delete(ctx context.Context, messageID, userID uuid.UUID) (bool, error) {
	const op = "messages.repo.Delete"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE messages
		SET deleted_by = array_append(deleted_by, $2)
		WHERE id = $1 AND NOT (deleted_by @> $3)`,
		messageID, userID, pq.Array([]uuid.UUID{userID}),
	)
	if err != nil {
		return false, fmt.Errorf("%s: append deleted_by: %w", op, err)
	}
	appended, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}

	var (
		conversationID uuid.UUID
		deleters       int
	)
	err = tx.QueryRowxContext(
		ctx,
		`SELECT conversation_id, cardinality(deleted_by)
		FROM messages
		WHERE id = $1`,
		messageID,
	).Scan(&conversationID, &deleters)

	if errors.Is(err, sql.ErrNoRows) {
		return false, messages.ErrMessageNotFound
	}
	if err != nil {
		return false, fmt.Errorf("%s: select: %w", op, err)
	}

	// Only the two members ever land in deleted_by, so two entries mean
	// both sides hid the message. A repeat delete appends nothing and must
	// not report the global transition again.
	globallyDeleted := appended > 0 && deleters >= 2
	if globallyDeleted {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE messages SET is_deleted = true WHERE id = $1`,
			messageID,
		); err != nil {
			return false, fmt.Errorf("%s: mark deleted: %w", op, err)
		}

		if err := repointLastMessage(ctx, tx, conversationID); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return globallyDeleted, nil
}

func (r *Repo) DeleteAllFor(ctx context.Context, conversationID, userID uuid.UUID) ([]uuid.UUID, error) {
	const op = "messages.repo.DeleteAllFor"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE messages
		SET deleted_by = array_append(deleted_by, $2)
		WHERE conversation_id = $1
		  AND NOT is_deleted
		  AND NOT (deleted_by @> $3)`,
		conversationID, userID, pq.Array([]uuid.UUID{userID}),
	); err != nil {
		return nil, fmt.Errorf("%s: append deleted_by: %w", op, err)
	}

	removed := []uuid.UUID{}
	if err := sqlxSelectTx(ctx, tx, &removed, `
		UPDATE messages
		SET is_deleted = true
		WHERE conversation_id = $1 AND NOT is_deleted AND cardinality(deleted_by) >= 2
		RETURNING id
	`, conversationID); err != nil {
		return nil, fmt.Errorf("%s: mark deleted: %w", op, err)
	}

	if len(removed) > 0 {
		if err := repointLastMessage(ctx, tx, conversationID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return removed, nil
}

func (r *Repo) Edit(ctx context.Context, messageID uuid.UUID, content string, at time.Time) (messages.Message, error) {
	const op = "messages.repo.Edit"

	var m messages.Message
	err := r.db.QueryRowxContext(
		ctx,
		`UPDATE messages
		SET content = $2, is_edited = true, edited_at = $3
		WHERE id = $1
		RETURNING `+selectColumns,
		messageID, content, at,
	).StructScan(&m)

	if errors.Is(err, sql.ErrNoRows) {
		return messages.Message{}, messages.ErrMessageNotFound
	}
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: update: %w", op, err)
	}

	return m, nil
}

// repointLastMessage keeps conversations.last_message_id on the newest
// message that is still visible to at least one member.
func repointLastMessage(ctx context.Context, tx *sqlx.Tx, conversationID uuid.UUID) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE conversations
		SET last_message_id = (
			SELECT id FROM messages
			WHERE conversation_id = $1 AND NOT is_deleted
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
		WHERE id = $1`,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("repoint last message: %w", err)
	}
	return nil
}

func sqlxSelectTx(ctx context.Context, tx *sqlx.Tx, dest *[]uuid.UUID, query string, args ...any) error {
	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		*dest = append(*dest, id)
	}
	return rows.Err()
}
