package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisTTL = 10 * time.Second

// releaseScript deletes the key only while it still carries our token,
// so an expired and re-acquired lock is never released by the old owner.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker shares spot locks between service instances.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context, spotID int64) (Unlock, error) {
	key := l.key(spotID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, domain.StorageError(err, "acquire spot lock")
	}
	if !ok {
		return nil, domain.ErrSpotLocked
	}

	return once(func() {
		// контекст запроса мог уже закончиться, а ключ надо отпустить
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			slog.Warn("release spot lock", "spot_id", spotID, "error", err)
		}
	}), nil
}

func (l *RedisLocker) key(spotID int64) string {
	return fmt.Sprintf("%sspot:%d", l.prefix, spotID)
}

var _ Locker = (*RedisLocker)(nil)
