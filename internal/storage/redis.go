package storage

import (
	"context"

	"github.com/eigo-sensei/server/internal/bot/model"
	errx "github.com/eigo-sensei/server/internal/core/error"
	logx "github.com/eigo-sensei/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the credential map in a single Redis hash, one field per
// user identity.
type RedisStore struct {
	rdb redis.Cmdable
	key string
}

func NewRedisStore(rdb redis.Cmdable, key string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key}
}

func (r *RedisStore) Load(ctx context.Context) (map[string]string, error) {
	creds, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", r.key).Msg("failed to load credentials from redis")
		return nil, errx.WrapRedis(err)
	}
	if creds == nil {
		creds = map[string]string{}
	}
	return creds, nil
}

func (r *RedisStore) Save(ctx context.Context, creds map[string]string) error {
	if len(creds) == 0 {
		return nil
	}

	fields := make(map[string]any, len(creds))
	for userID, key := range creds {
		fields[userID] = key
	}
	if err := r.rdb.HSet(ctx, r.key, fields).Err(); err != nil {
		logx.Error().Err(err).Str("key", r.key).Msg("failed to save credentials to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.CredentialStore = (*RedisStore)(nil)
