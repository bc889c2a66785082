package conversationsrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Khuzaim123/nomadnet-messaging/internal/conversations"
	"github.com/Khuzaim123/nomadnet-messaging/internal/users"
)

type Repo struct {
	db        *sqlx.DB
	directory users.Directory
}

func New(db *sqlx.DB, directory users.Directory) *Repo {
	return &Repo{db: db, directory: directory}
}

func (r *Repo) GetOrCreate(ctx context.Context, a, b uuid.UUID) (conversations.Conversation, bool, error) {
	const op = "conversations.repo.GetOrCreate"

	low, high := conversations.NormalizePair(a, b)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return conversations.Conversation{}, false, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	// The unique index on (member_low, member_high) is the serialization
	// point: concurrent first sends race to the same row.
	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO conversations (id, member_low, member_high)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_low, member_high) DO NOTHING`,
		uuid.New(), low, high,
	)
	if err != nil {
		return conversations.Conversation{}, false, fmt.Errorf("%s: insert conversation: %w", op, err)
	}

	created := false
	if rows, _ := res.RowsAffected(); rows > 0 {
		created = true
	}

	var conv conversations.Conversation
	if err := tx.GetContext(ctx, &conv, `
		SELECT id, member_low, member_high, last_message_id, created_at, updated_at
		FROM conversations
		WHERE member_low = $1 AND member_high = $2
	`, low, high); err != nil {
		return conversations.Conversation{}, false, fmt.Errorf("%s: select conversation: %w", op, err)
	}

	if created {
		for _, member := range []uuid.UUID{low, high} {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO conversation_members (conversation_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT (conversation_id, user_id) DO NOTHING`,
				conv.ID, member,
			); err != nil {
				return conversations.Conversation{}, false, fmt.Errorf("%s: insert member %s: %w", op, member, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return conversations.Conversation{}, false, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return conv, created, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (conversations.Conversation, error) {
	const op = "conversations.repo.GetByID"

	var conv conversations.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT id, member_low, member_high, last_message_id, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, id)

	if errors.Is(err, sql.ErrNoRows) {
		return conversations.Conversation{}, conversations.ErrConversationNotFound
	}
	if err != nil {
		return conversations.Conversation{}, fmt.Errorf("%s: select: %w", op, err)
	}

	return conv, nil
}

func (r *Repo) GetMember(ctx context.Context, conversationID, userID uuid.UUID) (conversations.Member, error) {
	const op = "conversations.repo.GetMember"

	var m conversations.Member
	err := r.db.GetContext(ctx, &m, `
		SELECT conversation_id, user_id, unread_count, archived
		FROM conversation_members
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID)

	if errors.Is(err, sql.ErrNoRows) {
		return conversations.Member{}, conversations.ErrNotMember
	}
	if err != nil {
		return conversations.Member{}, fmt.Errorf("%s: select: %w", op, err)
	}

	return m, nil
}

type summaryRow struct {
	ConversationID uuid.UUID      `db:"conversation_id"`
	OtherUserID    uuid.UUID      `db:"other_user_id"`
	UnreadCount    int64          `db:"unread_count"`
	Archived       bool           `db:"archived"`
	UpdatedAt      sql.NullTime   `db:"updated_at"`
	LastID         uuid.NullUUID  `db:"last_message.id"`
	LastSenderID   uuid.NullUUID  `db:"last_message.sender_id"`
	LastType       sql.NullString `db:"last_message.message_type"`
	LastContent    sql.NullString `db:"last_message.content"`
	LastCreatedAt  sql.NullTime   `db:"last_message.created_at"`
}

func (r *Repo) List(ctx context.Context, userID uuid.UUID, archived bool, limit, offset int) ([]conversations.Summary, error) {
	const op = "conversations.repo.List"

	rows, err := r.db.QueryxContext(
		ctx,
		`
		SELECT
			c.id                            AS "conversation_id",
			CASE WHEN c.member_low = $1 THEN c.member_high ELSE c.member_low END
			                                AS "other_user_id",
			cm.unread_count                 AS "unread_count",
			cm.archived                     AS "archived",
			c.updated_at                    AS "updated_at",

			lm.id                           AS "last_message.id",
			lm.sender_id                    AS "last_message.sender_id",
			lm.message_type                 AS "last_message.message_type",
			lm.content                      AS "last_message.content",
			lm.created_at                   AS "last_message.created_at"

		FROM conversations c
		JOIN conversation_members cm
			ON cm.conversation_id = c.id AND cm.user_id = $1
		LEFT JOIN messages lm
			ON lm.id = c.last_message_id

		WHERE cm.archived = $2
		ORDER BY c.updated_at DESC, c.id
		LIMIT $3 OFFSET $4
		`,
		userID, archived, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	summaries := []conversations.Summary{}
	otherIDs := []uuid.UUID{}

	for rows.Next() {
		var row summaryRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		s := conversations.Summary{
			ID:          row.ConversationID,
			UnreadCount: row.UnreadCount,
			Archived:    row.Archived,
			UpdatedAt:   row.UpdatedAt.Time,
		}
		if row.LastID.Valid {
			s.LastMessage = &conversations.LastMessagePreview{
				ID:        row.LastID.UUID,
				SenderID:  row.LastSenderID.UUID,
				Type:      row.LastType.String,
				Content:   row.LastContent.String,
				CreatedAt: row.LastCreatedAt.Time,
			}
		}

		summaries = append(summaries, s)
		otherIDs = append(otherIDs, row.OtherUserID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	for i := range summaries {
		u, err := r.directory.ResolveUser(ctx, otherIDs[i])
		if err != nil {
			return nil, fmt.Errorf("%s: resolve user %s: %w", op, otherIDs[i], err)
		}
		summaries[i].OtherMember = u
	}

	return summaries, nil
}

func (r *Repo) ToggleArchive(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	const op = "conversations.repo.ToggleArchive"

	var archived bool
	err := r.db.QueryRowxContext(
		ctx,
		`UPDATE conversation_members
		SET archived = NOT archived
		WHERE conversation_id = $1 AND user_id = $2
		RETURNING archived`,
		conversationID, userID,
	).Scan(&archived)

	if errors.Is(err, sql.ErrNoRows) {
		return false, conversations.ErrNotMember
	}
	if err != nil {
		return false, fmt.Errorf("%s: update: %w", op, err)
	}

	return archived, nil
}

func (r *Repo) UnreadTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "conversations.repo.UnreadTotal"

	var total int64
	if err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(unread_count), 0)
		FROM conversation_members
		WHERE user_id = $1
	`, userID); err != nil {
		return 0, fmt.Errorf("%s: select: %w", op, err)
	}

	return total, nil
}

// RecountUnread rebuilds the counters from the message log. The counters
// are normally maintained incrementally; this is the repair path.
func (r *Repo) RecountUnread(ctx context.Context, conversationID uuid.UUID) error {
	const op = "conversations.repo.RecountUnread"

	_, err := r.db.ExecContext(
		ctx,
		`UPDATE conversation_members cm
		SET unread_count = (
			SELECT COUNT(*)
			FROM messages m
			WHERE m.conversation_id = cm.conversation_id
			  AND m.receiver_id = cm.user_id
			  AND NOT m.is_read
			  AND NOT (m.deleted_by @> ARRAY[cm.user_id])
		)
		WHERE cm.conversation_id = $1`,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("%s: update: %w", op, err)
	}

	return nil
}

func (r *Repo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	const op = "conversations.repo.ListIDs"

	ids := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM conversations`); err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}

	return ids, nil
}
