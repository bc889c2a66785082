package httpapi

import (
	"errors"
	"net/http"

	"github.com/Khuzaim123/nomadnet-messaging/internal/checkin"
	"github.com/Khuzaim123/nomadnet-messaging/internal/conversations"
	"github.com/Khuzaim123/nomadnet-messaging/internal/marketplace"
	"github.com/Khuzaim123/nomadnet-messaging/internal/messages"
	"github.com/Khuzaim123/nomadnet-messaging/internal/messaging"
	"github.com/Khuzaim123/nomadnet-messaging/internal/users"
)

func MapError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, conversations.ErrConversationNotFound):
		return http.StatusNotFound, "conversation_not_found", err.Error()

	case errors.Is(err, messages.ErrMessageNotFound):
		return http.StatusNotFound, "message_not_found", err.Error()

	case errors.Is(err, users.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", err.Error()

	case errors.Is(err, marketplace.ErrListingNotFound):
		return http.StatusNotFound, "listing_not_found", err.Error()

	case errors.Is(err, checkin.ErrCheckInNotFound):
		return http.StatusNotFound, "checkin_not_found", err.Error()

	case errors.Is(err, conversations.ErrNotMember),
		errors.Is(err, messages.ErrNotParticipant),
		errors.Is(err, messages.ErrNotSender):
		return http.StatusForbidden, "forbidden", err.Error()

	case errors.Is(err, conversations.ErrSelfConversation):
		return http.StatusConflict, "self_conversation", err.Error()

	case errors.Is(err, messages.ErrInvalidType),
		errors.Is(err, messages.ErrEmptyContent),
		errors.Is(err, messages.ErrContentTooLong),
		errors.Is(err, messages.ErrImageRequired),
		errors.Is(err, messages.ErrInvalidCoordinates),
		errors.Is(err, messages.ErrListingRequired),
		errors.Is(err, messages.ErrListingInactive),
		errors.Is(err, messages.ErrCheckInRequired),
		errors.Is(err, messages.ErrNotTextMessage):
		return http.StatusBadRequest, "invalid_payload", err.Error()

	case errors.Is(err, messaging.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable, "collaborator_unavailable", err.Error()
	}

	return http.StatusInternalServerError, "internal_error", "internal server error"
}
