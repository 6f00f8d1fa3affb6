package admin

import "context"

// Store durably persists the session snapshot across restarts and keeps the
// independently keyed cooldown records for rate-limited actions.
// Implementations: store/ (memory, file, redis).
type Store interface {
	// Load returns the persisted snapshot, or nil when none exists.
	Load(ctx context.Context) (*State, error)

	// Save replaces the persisted snapshot.
	Save(ctx context.Context, st *State) error

	// Clear removes the persisted snapshot.
	Clear(ctx context.Context) error

	// LoadCooldown returns the cooldown for an action, or nil when none exists.
	LoadCooldown(ctx context.Context, action string) (*Cooldown, error)

	// SaveCooldown records a cooldown for an action.
	SaveCooldown(ctx context.Context, action string, cd Cooldown) error

	// ClearCooldown removes the cooldown for an action.
	ClearCooldown(ctx context.Context, action string) error
}

// AuthListener observes credential lifecycle transitions emitted by the
// request client's refresh coordinator. Each transition is emitted exactly
// once regardless of how many requests coalesced onto it.
type AuthListener interface {
	// TokenRefreshed is called after a successful refresh installs a new
	// session credential.
	TokenRefreshed(token string)

	// AuthenticationLost is called after a refresh failure tears the
	// session down.
	AuthenticationLost()
}
