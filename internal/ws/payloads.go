package ws

import (
	"time"

	"github.com/google/uuid"

	"github.com/Khuzaim123/nomadnet-messaging/internal/messages"
)

type MessageReceivedPayload struct {
	Message messages.Message `json:"message"`
}

type MessageReadPayload struct {
	MessageIDs []uuid.UUID `json:"message_ids"`
	ReaderID   uuid.UUID   `json:"reader_id"`
	ReadAt     time.Time   `json:"read_at"`
}

type MessageUpdatedPayload struct {
	Message messages.Message `json:"message"`
}

type MessageDeletedPayload struct {
	MessageIDs []uuid.UUID `json:"message_ids"`
}

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
}

type WorkspaceStatusPayload struct {
	UserID      uuid.UUID   `json:"user_id"`
	Status      string      `json:"status"`
	OnlineUsers []uuid.UUID `json:"online_users,omitempty"`
}
