package mirror

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stockpulse/paper-engine/internal/model"
)

// RedisStore implements Store on Redis. Snapshots carry no TTL: the mirror
// must survive restarts until an explicit reset clears it.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Redis-backed mirror.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context, userID string) (*model.SimulatedAccount, bool, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mirror load %s: %w", userID, err)
	}
	account, err := decode(data)
	if err != nil {
		// A corrupt snapshot is treated as absent; the next save overwrites it.
		return nil, false, nil
	}
	return account, true, nil
}

func (s *RedisStore) Save(ctx context.Context, userID string, account *model.SimulatedAccount) error {
	data, err := encode(account)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, snapshotKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("mirror save %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, snapshotKey(userID)).Err(); err != nil {
		return fmt.Errorf("mirror clear %s: %w", userID, err)
	}
	return nil
}

func snapshotKey(userID string) string { return fmt.Sprintf("simulated-portfolio:%s", userID) }
