package store

import (
	"context"
	"testing"
	"time"

	admin "github.com/pressroomhq/admin-go"
)

func sampleState() *admin.State {
	return &admin.State{
		User:        &admin.User{ID: "u-1", Email: "a@b.com", Name: "Anna"},
		AccessToken: "tok-123",
		Tenant:      "daily-news",
	}
}

func testStore(t *testing.T, s admin.Store) {
	t.Helper()
	ctx := context.Background()

	// Empty store loads nil.
	st, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if st != nil {
		t.Fatal("empty store should load nil")
	}

	// Round trip.
	if err := s.Save(ctx, sampleState()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	st, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if st == nil || st.AccessToken != "tok-123" || st.User.Email != "a@b.com" || st.Tenant != "daily-news" {
		t.Errorf("round trip mismatch: %+v", st)
	}

	// Challenge survives the round trip with its timestamps intact.
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	withChallenge := &admin.State{
		Tenant: "daily-news",
		Challenge: &admin.PasscodeChallenge{
			TempToken:               "temp-1",
			Subject:                 "a@b.com",
			IssuedAt:                issued,
			CodeExpirySeconds:       300,
			CredentialExpirySeconds: 900,
		},
	}
	if err := s.Save(ctx, withChallenge); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	st, _ = s.Load(ctx)
	if st.Challenge == nil || !st.Challenge.IssuedAt.Equal(issued) {
		t.Errorf("challenge round trip mismatch: %+v", st.Challenge)
	}

	// Clear removes the snapshot.
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	st, _ = s.Load(ctx)
	if st != nil {
		t.Error("cleared store should load nil")
	}
	// Clearing twice is fine.
	if err := s.Clear(ctx); err != nil {
		t.Errorf("second Clear returned error: %v", err)
	}

	// Cooldowns are keyed independently of the snapshot.
	cd, err := s.LoadCooldown(ctx, "forgot_password")
	if err != nil {
		t.Fatalf("LoadCooldown returned error: %v", err)
	}
	if cd != nil {
		t.Fatal("missing cooldown should load nil")
	}
	want := admin.Cooldown{ExpiresAt: 1750000000000}
	if err := s.SaveCooldown(ctx, "forgot_password", want); err != nil {
		t.Fatalf("SaveCooldown returned error: %v", err)
	}
	cd, _ = s.LoadCooldown(ctx, "forgot_password")
	if cd == nil || cd.ExpiresAt != want.ExpiresAt {
		t.Errorf("cooldown round trip mismatch: %+v", cd)
	}
	if cd, _ := s.LoadCooldown(ctx, "other_action"); cd != nil {
		t.Error("cooldowns must not leak across actions")
	}
	if err := s.ClearCooldown(ctx, "forgot_password"); err != nil {
		t.Fatalf("ClearCooldown returned error: %v", err)
	}
	if cd, _ := s.LoadCooldown(ctx, "forgot_password"); cd != nil {
		t.Error("cleared cooldown should load nil")
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemory())
}

func TestFileStore(t *testing.T) {
	s, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile returned error: %v", err)
	}
	testStore(t, s)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile returned error: %v", err)
	}
	if err := s1.Save(ctx, sampleState()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	// A new store over the same directory sees the snapshot.
	s2, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile returned error: %v", err)
	}
	st, err := s2.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if st == nil || st.AccessToken != "tok-123" {
		t.Errorf("snapshot did not survive reopen: %+v", st)
	}
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_ = s.Save(ctx, sampleState())

	st, _ := s.Load(ctx)
	st.AccessToken = "mutated"

	again, _ := s.Load(ctx)
	if again.AccessToken != "tok-123" {
		t.Error("mutating a loaded snapshot must not affect the store")
	}
}
