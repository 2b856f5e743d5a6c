package settings

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
)

const redisKey = "pricing:settings"

// RedisStore keeps the settings document as one JSON string.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: redisKey}
}

func (s *RedisStore) Load(ctx context.Context) (*Settings, error) {
	data, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotConfigured
		}
		return nil, errors.Wrap(err, "get pricing settings")
	}
	return decode([]byte(data))
}

func (s *RedisStore) Save(ctx context.Context, st *Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encode pricing settings")
	}
	if err := s.client.Set(ctx, s.key, string(data), 0).Err(); err != nil {
		return errors.Wrap(err, "set pricing settings")
	}
	return nil
}

func decode(data []byte) (*Settings, error) {
	var st Settings
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrap(err, "decode pricing settings")
	}
	return &st, nil
}
