package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// Directory is the identity provider contract: given an id, return display
// metadata. The messaging core never creates or mutates users.
type Directory interface {
	ResolveUser(ctx context.Context, id uuid.UUID) (User, error)
	ResolveUsers(ctx context.Context, ids []uuid.UUID) ([]User, error)
}
