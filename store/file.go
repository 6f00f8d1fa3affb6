package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	admin "github.com/pressroomhq/admin-go"
)

// File is a Store backed by JSON files in a directory, the client-local
// durable storage that survives restarts. The session snapshot lives in
// session.json; each cooldown is an independently keyed file.
type File struct {
	dir string
	mu  sync.Mutex
}

// compile-time check
var _ admin.Store = (*File)(nil)

// NewFile creates a file store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) sessionPath() string {
	return filepath.Join(f.dir, "session.json")
}

func (f *File) cooldownPath(action string) string {
	return filepath.Join(f.dir, "cooldown_"+action+".json")
}

// Load returns the stored snapshot, or nil when none exists.
func (f *File) Load(ctx context.Context) (*admin.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.sessionPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read session: %w", err)
	}
	var st admin.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("store: decode session: %w", err)
	}
	return &st, nil
}

// Save replaces the stored snapshot. The write goes through a temp file and
// rename so a crash never leaves a truncated snapshot.
func (f *File) Save(ctx context.Context, st *admin.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(f.sessionPath(), st)
}

// Clear removes the stored snapshot.
func (f *File) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.sessionPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: remove session: %w", err)
	}
	return nil
}

// LoadCooldown returns the cooldown for an action, or nil when none exists.
func (f *File) LoadCooldown(ctx context.Context, action string) (*admin.Cooldown, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.cooldownPath(action))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read cooldown: %w", err)
	}
	var cd admin.Cooldown
	if err := json.Unmarshal(data, &cd); err != nil {
		return nil, fmt.Errorf("store: decode cooldown: %w", err)
	}
	return &cd, nil
}

// SaveCooldown records a cooldown for an action.
func (f *File) SaveCooldown(ctx context.Context, action string, cd admin.Cooldown) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(f.cooldownPath(action), cd)
}

// ClearCooldown removes the cooldown for an action.
func (f *File) ClearCooldown(ctx context.Context, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.cooldownPath(action)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: remove cooldown: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("store: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}
