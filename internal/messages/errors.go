package messages

import (
	"errors"
)

var (
	ErrMessageNotFound    = errors.New("message not found")
	ErrInvalidType        = errors.New("unknown message type")
	ErrEmptyContent       = errors.New("text message requires content")
	ErrContentTooLong     = errors.New("message content is too long")
	ErrImageRequired      = errors.New("image message requires an image reference")
	ErrInvalidCoordinates = errors.New("coordinates must be [longitude, latitude] within range")
	ErrListingRequired    = errors.New("marketplace message requires a listing id")
	ErrListingInactive    = errors.New("referenced listing is not active")
	ErrCheckInRequired    = errors.New("checkin message requires a check-in id or coordinates")
	ErrNotSender          = errors.New("only the sender can edit a message")
	ErrNotTextMessage     = errors.New("only text messages can be edited")
	ErrNotParticipant     = errors.New("user is neither sender nor receiver of the message")
)
