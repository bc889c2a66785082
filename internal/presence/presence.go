package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	onlineSetKey = "presence:online"

	// Stale-entry guard: entries from crashed instances age out even if
	// SetOffline never ran.
	onlineTTL = 5 * time.Minute
)

// Store tracks which users currently hold at least one live connection.
// Per-user connection counts let multi-device users stay online until the
// last socket drops.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func connKey(userID uuid.UUID) string {
	return "presence:conns:" + userID.String()
}

// SetOnline records one more live connection for the user. The bool reports
// whether the user just transitioned to online.
func (s *Store) SetOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := s.rdb.Incr(ctx, connKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence: incr: %w", err)
	}
	s.rdb.Expire(ctx, connKey(userID), onlineTTL)

	if err := s.rdb.SAdd(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		return false, fmt.Errorf("presence: sadd: %w", err)
	}

	return n == 1, nil
}

// SetOffline drops one connection. The bool reports whether the user just
// transitioned to offline.
func (s *Store) SetOffline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := s.rdb.Decr(ctx, connKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence: decr: %w", err)
	}

	if n > 0 {
		return false, nil
	}

	s.rdb.Del(ctx, connKey(userID))
	if err := s.rdb.SRem(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		return false, fmt.Errorf("presence: srem: %w", err)
	}

	return true, nil
}

func (s *Store) OnlineUsers(ctx context.Context) ([]uuid.UUID, error) {
	raw, err := s.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: smembers: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}
