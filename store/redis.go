package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	admin "github.com/pressroomhq/admin-go"
)

// Redis is a Store backed by Redis, for deployments where the console state
// is shared across hosts. Keys are namespaced by prefix so several installs
// can share one instance.
type Redis struct {
	client *redis.Client
	prefix string
}

// compile-time check
var _ admin.Store = (*Redis)(nil)

// NewRedis creates a Redis-backed store.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "admin:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) sessionKey() string {
	return r.prefix + "session"
}

func (r *Redis) cooldownKey(action string) string {
	return r.prefix + "cooldown:" + action
}

// Load returns the stored snapshot, or nil when none exists.
func (r *Redis) Load(ctx context.Context) (*admin.State, error) {
	data, err := r.client.Get(ctx, r.sessionKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: redis get session: %w", err)
	}
	var st admin.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("store: decode session: %w", err)
	}
	return &st, nil
}

// Save replaces the stored snapshot.
func (r *Redis) Save(ctx context.Context, st *admin.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("store: encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set session: %w", err)
	}
	return nil
}

// Clear removes the stored snapshot.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.sessionKey()).Err(); err != nil {
		return fmt.Errorf("store: redis del session: %w", err)
	}
	return nil
}

// LoadCooldown returns the cooldown for an action, or nil when none exists.
func (r *Redis) LoadCooldown(ctx context.Context, action string) (*admin.Cooldown, error) {
	data, err := r.client.Get(ctx, r.cooldownKey(action)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: redis get cooldown: %w", err)
	}
	var cd admin.Cooldown
	if err := json.Unmarshal(data, &cd); err != nil {
		return nil, fmt.Errorf("store: decode cooldown: %w", err)
	}
	return &cd, nil
}

// SaveCooldown records a cooldown for an action.
func (r *Redis) SaveCooldown(ctx context.Context, action string, cd admin.Cooldown) error {
	data, err := json.Marshal(cd)
	if err != nil {
		return fmt.Errorf("store: encode cooldown: %w", err)
	}
	if err := r.client.Set(ctx, r.cooldownKey(action), data, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set cooldown: %w", err)
	}
	return nil
}

// ClearCooldown removes the cooldown for an action.
func (r *Redis) ClearCooldown(ctx context.Context, action string) error {
	if err := r.client.Del(ctx, r.cooldownKey(action)).Err(); err != nil {
		return fmt.Errorf("store: redis del cooldown: %w", err)
	}
	return nil
}
