package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Khuzaim123/nomadnet-messaging/internal/conversations"
	"github.com/Khuzaim123/nomadnet-messaging/internal/lib/logger/sl"
)

// TypeUnreadRecount rebuilds unread counters from the message log. The
// counters are maintained incrementally on the hot path; this task is the
// repair loop that keeps drift bounded.
const TypeUnreadRecount = "unread:recount"

type UnreadRecountPayload struct {
	// Nil sweeps every conversation.
	ConversationID uuid.UUID `json:"conversation_id"`
}

func NewUnreadRecountTask(conversationID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(UnreadRecountPayload{ConversationID: conversationID})
	if err != nil {
		return nil, fmt.Errorf("repair: marshal payload: %w", err)
	}
	return asynq.NewTask(TypeUnreadRecount, payload), nil
}

type Handler struct {
	conversations conversations.Repo
	log           *slog.Logger
}

func NewHandler(conversationsRepo conversations.Repo, log *slog.Logger) *Handler {
	return &Handler{conversations: conversationsRepo, log: log}
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	const op = "repair.ProcessTask"

	var payload UnreadRecountPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%s: unmarshal payload: %w", op, err)
	}

	if payload.ConversationID != uuid.Nil {
		return h.conversations.RecountUnread(ctx, payload.ConversationID)
	}

	ids, err := h.conversations.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("%s: list conversations: %w", op, err)
	}

	for _, id := range ids {
		if err := h.conversations.RecountUnread(ctx, id); err != nil {
			h.log.Error("recount failed",
				slog.String("conversation_id", id.String()),
				sl.Err(err),
			)
		}
	}

	h.log.Info("unread recount sweep finished", slog.Int("conversations", len(ids)))

	return nil
}
