package admin

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestPasscodeChallengeWindows(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ch := &PasscodeChallenge{
		TempToken:               "temp",
		IssuedAt:                issued,
		CodeExpirySeconds:       300,
		CredentialExpirySeconds: 900,
	}

	if got := ch.CodeDeadline(); !got.Equal(issued.Add(5 * time.Minute)) {
		t.Errorf("code deadline = %v", got)
	}
	if got := ch.CredentialDeadline(); !got.Equal(issued.Add(15 * time.Minute)) {
		t.Errorf("credential deadline = %v", got)
	}
	if ch.Expired(issued.Add(14 * time.Minute)) {
		t.Error("challenge should still be valid inside the credential window")
	}
	if !ch.Expired(issued.Add(15 * time.Minute)) {
		t.Error("challenge should be expired at the credential deadline")
	}
}

func TestPasscodeChallengeResent(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ch := &PasscodeChallenge{
		TempToken:               "temp",
		Subject:                 "a@b.com",
		IssuedAt:                issued,
		CodeExpirySeconds:       300,
		CredentialExpirySeconds: 900,
	}

	// Resend 4 minutes in: new code window, original credential deadline.
	now := issued.Add(4 * time.Minute)
	next := ch.Resent(now, 300)

	if !next.IssuedAt.Equal(now) {
		t.Error("resend must reset IssuedAt")
	}
	if next.CodeExpirySeconds != 300 {
		t.Errorf("code window = %d", next.CodeExpirySeconds)
	}
	if next.TempToken != "temp" {
		t.Error("resend must not replace the temp token")
	}
	if !next.CredentialDeadline().Equal(ch.CredentialDeadline()) {
		t.Errorf("resend must not extend the credential deadline: %v != %v",
			next.CredentialDeadline(), ch.CredentialDeadline())
	}
}

func TestPasscodeChallengeResent_SubSecondClockKeepsExactDeadline(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ch := &PasscodeChallenge{
		TempToken:               "temp",
		IssuedAt:                issued,
		CodeExpirySeconds:       300,
		CredentialIssuedAt:      issued,
		CredentialExpirySeconds: 900,
	}

	// Wall clocks do not tick on second boundaries; repeated resends must
	// not erode the deadline through fractional remainders.
	next := ch
	for i, elapsed := range []time.Duration{
		90*time.Second + 412*time.Millisecond,
		187*time.Second + 733*time.Millisecond,
		301*time.Second + 999*time.Millisecond,
	} {
		next = next.Resent(issued.Add(elapsed), 300)
		if !next.CredentialDeadline().Equal(ch.CredentialDeadline()) {
			t.Fatalf("resend %d moved the credential deadline: %v != %v",
				i, next.CredentialDeadline(), ch.CredentialDeadline())
		}
	}
	if !next.Expired(ch.CredentialDeadline()) {
		t.Error("the resent challenge must still expire at the original deadline")
	}
}

func TestCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cd := NewCooldown(now, time.Minute)

	if cd.Expired(now.Add(59 * time.Second)) {
		t.Error("cooldown should still be active")
	}
	if !cd.Expired(now.Add(time.Minute)) {
		t.Error("cooldown should have elapsed")
	}
	if got := cd.Remaining(now.Add(30 * time.Second)); got != 30*time.Second {
		t.Errorf("remaining = %v", got)
	}
	if got := cd.Remaining(now.Add(2 * time.Minute)); got != 0 {
		t.Errorf("remaining after expiry = %v", got)
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	got, ok := TokenExpiry(token)
	if !ok {
		t.Fatal("expected expiry to be derived")
	}
	if !got.Equal(exp) {
		t.Errorf("expiry = %v, want %v", got, exp)
	}
}

func TestTokenExpiry_Opaque(t *testing.T) {
	if _, ok := TokenExpiry("not-a-jwt"); ok {
		t.Error("opaque tokens carry no derivable expiry")
	}
}

func TestTokenExpiry_NoExpClaim(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, ok := TokenExpiry(token); ok {
		t.Error("tokens without exp carry no derivable expiry")
	}
}
