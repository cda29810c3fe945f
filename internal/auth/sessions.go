package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-marketplace/internal/redisx"
)

// RedisSessions reads sessions written by the auth service as JSON principals.
type RedisSessions struct {
	Redis *redis.Client
}

func (s *RedisSessions) Lookup(ctx context.Context, token string) (Principal, error) {
	raw, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeySession, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Principal{}, ErrNoSession
	}
	if err != nil {
		return Principal{}, err
	}
	var p Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return Principal{}, fmt.Errorf("decode session: %w", err)
	}
	if p.ID == "" {
		return Principal{}, ErrNoSession
	}
	if p.Role == "" {
		p.Role = RoleUser
	}
	return p, nil
}
