package conversations

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Khuzaim123/nomadnet-messaging/internal/users"
)

// Conversation is a direct conversation between exactly two members. The
// pair is stored normalized (MemberLow < MemberHigh byte-wise) so that one
// row exists per pair regardless of who initiated it.
type Conversation struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	MemberLow     uuid.UUID  `json:"-" db:"member_low"`
	MemberHigh    uuid.UUID  `json:"-" db:"member_high"`
	LastMessageID *uuid.UUID `json:"last_message_id" db:"last_message_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

func (c Conversation) HasMember(id uuid.UUID) bool {
	return c.MemberLow == id || c.MemberHigh == id
}

// OtherMember returns the member that is not id. Callers must check
// HasMember first.
func (c Conversation) OtherMember(id uuid.UUID) uuid.UUID {
	if c.MemberLow == id {
		return c.MemberHigh
	}
	return c.MemberLow
}

// NormalizePair orders two member ids the way the unique index expects.
func NormalizePair(a, b uuid.UUID) (low, high uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

type Member struct {
	ConversationID uuid.UUID `db:"conversation_id"`
	UserID         uuid.UUID `db:"user_id"`
	UnreadCount    int64     `db:"unread_count"`
	Archived       bool      `db:"archived"`
}

// LastMessagePreview is the short projection shown in conversation lists.
type LastMessagePreview struct {
	ID        uuid.UUID `json:"id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Type      string    `json:"message_type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is a conversation as one member sees it.
type Summary struct {
	ID          uuid.UUID           `json:"id"`
	OtherMember users.User          `json:"other_member"`
	UnreadCount int64               `json:"unread_count"`
	Archived    bool                `json:"archived"`
	LastMessage *LastMessagePreview `json:"last_message"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type Repo interface {
	// GetOrCreate returns the unique conversation for the pair, creating it
	// with zeroed counters on first use. The second result reports creation.
	GetOrCreate(ctx context.Context, a, b uuid.UUID) (Conversation, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (Conversation, error)
	GetMember(ctx context.Context, conversationID, userID uuid.UUID) (Member, error)
	List(ctx context.Context, userID uuid.UUID, archived bool, limit, offset int) ([]Summary, error)
	ToggleArchive(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	UnreadTotal(ctx context.Context, userID uuid.UUID) (int64, error)

	// RecountUnread repairs the counters of one conversation from the
	// message log. ListIDs feeds the periodic sweep.
	RecountUnread(ctx context.Context, conversationID uuid.UUID) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}
