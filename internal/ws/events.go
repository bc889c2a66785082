package ws

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Server-to-client event types.
const (
	Hello                 = "hello"
	MessageReceived       = "message_received"
	MessageRead           = "message_read"
	MessageUpdated        = "message_updated"
	MessageDeleted        = "message_deleted"
	Typing                = "typing"
	StopTyping            = "stop_typing"
	WorkspaceStatusUpdate = "workspace_status_update"
)

// Client-to-server frame types.
const (
	JoinChat    = "join_chat"
	LeaveChat   = "leave_chat"
	SendMessage = "send_message"
)

type Event struct {
	Type           string          `json:"type"`
	ConversationID uuid.UUID       `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals an event envelope ready for fan-out.
func NewEvent(conversationID uuid.UUID, eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Event{
		Type:           eventType,
		ConversationID: conversationID,
		Payload:        raw,
	})
}
