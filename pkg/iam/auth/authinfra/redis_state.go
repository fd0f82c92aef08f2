package authinfra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam/auth"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "oauth:state:"

// RedisStateManager stores login state in redis so a callback can land on
// any instance. GETDEL makes consumption one-shot across the fleet.
type RedisStateManager struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStateManager(client *redis.Client, ttl time.Duration) *RedisStateManager {
	return &RedisStateManager{client: client, ttl: ttl}
}

func (m *RedisStateManager) Save(ctx context.Context, state auth.LoginState) (string, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return "", errx.Wrap(err, "failed to marshal login state", errx.TypeInternal)
	}

	nonce := uuid.NewString()
	if err := m.client.Set(ctx, stateKeyPrefix+nonce, payload, m.ttl).Err(); err != nil {
		return "", errx.Wrap(err, "failed to save login state", errx.TypeInternal)
	}
	return nonce, nil
}

func (m *RedisStateManager) Consume(ctx context.Context, nonce string) (*auth.LoginState, error) {
	payload, err := m.client.GetDel(ctx, stateKeyPrefix+nonce).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrInvalidState()
		}
		return nil, errx.Wrap(err, "failed to consume login state", errx.TypeInternal)
	}

	var state auth.LoginState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errx.Wrap(err, "failed to unmarshal login state", errx.TypeInternal)
	}
	return &state, nil
}
