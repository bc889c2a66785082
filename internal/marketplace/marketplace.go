package marketplace

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrListingNotFound = errors.New("listing not found")

type ListingSummary struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Price    int64     `json:"price"`
	IsActive bool      `json:"is_active"`
}

// Lister is the marketplace collaborator contract. Messages of type
// marketplace_item/marketplace_offer reference a listing through it.
type Lister interface {
	GetListingSummary(ctx context.Context, id uuid.UUID) (ListingSummary, error)
}

type StaticLister struct {
	byID map[uuid.UUID]ListingSummary
}

func NewStaticLister(seed ...ListingSummary) *StaticLister {
	byID := make(map[uuid.UUID]ListingSummary, len(seed))
	for _, l := range seed {
		byID[l.ID] = l
	}
	return &StaticLister{byID: byID}
}

func (s *StaticLister) GetListingSummary(ctx context.Context, id uuid.UUID) (ListingSummary, error) {
	l, ok := s.byID[id]
	if !ok {
		return ListingSummary{}, ErrListingNotFound
	}
	return l, nil
}
