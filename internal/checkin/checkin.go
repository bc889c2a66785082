package checkin

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrCheckInNotFound = errors.New("check-in not found")

type CheckIn struct {
	ID        uuid.UUID `json:"id"`
	Longitude float64   `json:"longitude"`
	Latitude  float64   `json:"latitude"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is the check-in collaborator contract: checkin messages either
// reference an existing check-in or create one from coordinates.
type Service interface {
	CreateCheckIn(ctx context.Context, longitude, latitude float64) (CheckIn, error)
	GetCheckIn(ctx context.Context, id uuid.UUID) (CheckIn, error)
}

type MemoryService struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]CheckIn
}

func NewMemoryService() *MemoryService {
	return &MemoryService{byID: make(map[uuid.UUID]CheckIn)}
}

func (s *MemoryService) CreateCheckIn(ctx context.Context, longitude, latitude float64) (CheckIn, error) {
	c := CheckIn{
		ID:        uuid.New(),
		Longitude: longitude,
		Latitude:  latitude,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.byID[c.ID] = c
	s.mu.Unlock()

	return c, nil
}

func (s *MemoryService) GetCheckIn(ctx context.Context, id uuid.UUID) (CheckIn, error) {
	s.mu.RLock()
	c, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return CheckIn{}, ErrCheckInNotFound
	}
	return c, nil
}
