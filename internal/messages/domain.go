package messages

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Khuzaim123/nomadnet-messaging/internal/users"
)

type Type string

const (
	TypeText             Type = "text"
	TypeImage            Type = "image"
	TypeLocation         Type = "location"
	TypeMarketplaceItem  Type = "marketplace_item"
	TypeMarketplaceOffer Type = "marketplace_offer"
	TypeCheckin          Type = "checkin"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeLocation, TypeMarketplaceItem, TypeMarketplaceOffer, TypeCheckin:
		return true
	}
	return false
}

// Message belongs to exactly one conversation and is immutable after
// creation except for read state, per-user deletion and the edit trail.
type Message struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ConversationID uuid.UUID  `json:"conversation_id" db:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id" db:"sender_id"`
	ReceiverID     uuid.UUID  `json:"receiver_id" db:"receiver_id"`
	Type           Type       `json:"message_type" db:"message_type"`
	Content        string     `json:"content" db:"content"`
	ImageURL       *string    `json:"image_url,omitempty" db:"image_url"`
	Longitude      *float64   `json:"longitude,omitempty" db:"longitude"`
	Latitude       *float64   `json:"latitude,omitempty" db:"latitude"`
	ListingID      *uuid.UUID `json:"listing_id,omitempty" db:"listing_id"`
	CheckInID      *uuid.UUID `json:"checkin_id,omitempty" db:"checkin_id"`
	IsRead         bool       `json:"is_read" db:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty" db:"read_at"`
	IsDeleted      bool       `json:"is_deleted" db:"is_deleted"`
	IsEdited       bool       `json:"is_edited" db:"is_edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty" db:"edited_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`

	// Resolved for display, not persisted.
	Sender   *users.User `json:"sender,omitempty" db:"-"`
	Receiver *users.User `json:"receiver,omitempty" db:"-"`
}

// SendRequest is the payload of a send, over REST or over the socket.
// Coordinates are [longitude, latitude].
type SendRequest struct {
	ConversationID *uuid.UUID `json:"conversation_id"`
	ReceiverID     uuid.UUID  `json:"receiver_id"`
	Content        string     `json:"content"`
	Type           Type       `json:"message_type"`
	ImageURL       string     `json:"image_url"`
	Coordinates    []float64  `json:"coordinates"`
	ListingID      *uuid.UUID `json:"listing_id"`
	CheckInID      *uuid.UUID `json:"checkin_id"`
}

// Validate covers the checks that need no collaborator: presence of the
// payload fields each type requires and coordinate ranges. Listing and
// check-in resolution happen in the service.
func (r SendRequest) Validate() error {
	if !r.Type.Valid() {
		return ErrInvalidType
	}

	switch r.Type {
	case TypeText:
		if strings.TrimSpace(r.Content) == "" && r.ImageURL == "" {
			return ErrEmptyContent
		}
	case TypeImage:
		if r.ImageURL == "" {
			return ErrImageRequired
		}
	case TypeLocation:
		if err := validateCoordinates(r.Coordinates); err != nil {
			return err
		}
	case TypeMarketplaceItem, TypeMarketplaceOffer:
		if r.ListingID == nil || *r.ListingID == uuid.Nil {
			return ErrListingRequired
		}
	case TypeCheckin:
		if r.CheckInID == nil || *r.CheckInID == uuid.Nil {
			if err := validateCoordinates(r.Coordinates); err != nil {
				return ErrCheckInRequired
			}
		}
	}

	return nil
}

func validateCoordinates(coords []float64) error {
	if len(coords) != 2 {
		return ErrInvalidCoordinates
	}
	lon, lat := coords[0], coords[1]
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return ErrInvalidCoordinates
	}
	return nil
}

type Repo interface {
	// Create persists the message and, in the same transaction, repoints the
	// conversation's last message, bumps the receiver's unread counter
	// atomically, un-archives the conversation for the sender and bumps
	// updated_at.
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (Message, error)

	// List returns one page for viewer, newest-first fetch reversed to
	// oldest-first, excluding messages the viewer deleted and globally
	// deleted ones.
	List(ctx context.Context, conversationID, viewer uuid.UUID, limit, offset int) ([]Message, error)

	// MarkAllRead flips every unread message addressed to userID and zeroes
	// the counter, returning the flipped ids. Idempotent.
	MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) ([]uuid.UUID, error)

	// MarkRead flips a single message if it is addressed to userID and still
	// unread, decrementing the counter without going negative. The bool
	// reports whether anything changed.
	MarkRead(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error)

	// Delete hides the message for userID; once both members deleted it the
	// message becomes globally deleted and the conversation's last message
	// is repointed if needed. The bool reports global deletion.
	Delete(ctx context.Context, messageID, userID uuid.UUID) (bool, error)

	// DeleteAllFor hides every message still visible to userID, returning
	// the ids of messages that became globally deleted.
	DeleteAllFor(ctx context.Context, conversationID, userID uuid.UUID) ([]uuid.UUID, error)

	Edit(ctx context.Context, messageID uuid.UUID, content string, at time.Time) (Message, error)
}
