package usersrepo

import (
	"context"

	"github.com/google/uuid"

	"github.com/Khuzaim123/nomadnet-messaging/internal/users"
)

// Repo is an in-memory Directory. The real identity service lives outside
// this core; this adapter is enough for local runs and tests.
type Repo struct {
	byID map[uuid.UUID]users.User
}

func New(seed ...users.User) *Repo {
	byID := make(map[uuid.UUID]users.User, len(seed))
	for _, u := range seed {
		byID[u.ID] = u
	}
	return &Repo{byID: byID}
}

func (r *Repo) ResolveUser(ctx context.Context, id uuid.UUID) (users.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return u, nil
}

func (r *Repo) ResolveUsers(ctx context.Context, ids []uuid.UUID) ([]users.User, error) {
	result := make([]users.User, 0, len(ids))
	for _, id := range ids {
		u, ok := r.byID[id]
		if !ok {
			return nil, users.ErrUserNotFound
		}
		result = append(result, u)
	}
	return result, nil
}

// Permissive resolves every id to a synthesized profile. Local runs only;
// deployed environments plug the real identity service in instead.
type Permissive struct{}

func NewPermissive() Permissive { return Permissive{} }

func (Permissive) ResolveUser(_ context.Context, id uuid.UUID) (users.User, error) {
	if id == uuid.Nil {
		return users.User{}, users.ErrUserNotFound
	}
	return users.User{ID: id, Name: "traveler-" + id.String()[:8]}, nil
}

func (p Permissive) ResolveUsers(ctx context.Context, ids []uuid.UUID) ([]users.User, error) {
	result := make([]users.User, 0, len(ids))
	for _, id := range ids {
		u, err := p.ResolveUser(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, nil
}
