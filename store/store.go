// Package store provides admin.Store implementations: in-memory (tests),
// JSON file (client-local durable storage), and Redis.
package store

import (
	"context"
	"sync"

	admin "github.com/pressroomhq/admin-go"
)

// Memory is an in-memory Store, primarily for tests. Safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	state     *admin.State
	cooldowns map[string]admin.Cooldown
}

// compile-time check
var _ admin.Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{cooldowns: make(map[string]admin.Cooldown)}
}

// Load returns the stored snapshot, or nil when empty.
func (m *Memory) Load(ctx context.Context) (*admin.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	cp := *m.state
	return &cp, nil
}

// Save replaces the stored snapshot.
func (m *Memory) Save(ctx context.Context, st *admin.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *st
	m.state = &cp
	return nil
}

// Clear removes the stored snapshot.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}

// LoadCooldown returns the cooldown for an action, or nil.
func (m *Memory) LoadCooldown(ctx context.Context, action string) (*admin.Cooldown, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cd, ok := m.cooldowns[action]
	if !ok {
		return nil, nil
	}
	return &cd, nil
}

// SaveCooldown records a cooldown for an action.
func (m *Memory) SaveCooldown(ctx context.Context, action string, cd admin.Cooldown) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns[action] = cd
	return nil
}

// ClearCooldown removes the cooldown for an action.
func (m *Memory) ClearCooldown(ctx context.Context, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cooldowns, action)
	return nil
}
