package admin

import "time"

// User represents the authenticated console user as returned by the backend.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Roles []Role `json:"roles,omitempty"`
}

// Role represents a named role assigned to a user.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session represents an established authenticated session.
type Session struct {
	User        User      `json:"user"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"` // "Bearer"
	ExpiresAt   time.Time `json:"expires_at,omitempty"` // zero when the server did not say
	Tenant      string    `json:"tenant,omitempty"`
	LastLoginAt time.Time `json:"last_login_at,omitempty"`
}

// PasscodeChallenge is the intermediate state between password verification
// and full session issuance. The numeric code is accepted by the server only
// while now < IssuedAt + CodeExpirySeconds; the temp token itself only while
// now < CredentialIssuedAt + CredentialExpirySeconds, a looser or equal
// window. The two clocks are anchored separately because a resend restamps
// the code window but never the token window.
type PasscodeChallenge struct {
	TempToken               string    `json:"temp_auth_token"`
	Subject                 string    `json:"subject"`
	Tenant                  string    `json:"tenant,omitempty"`
	IssuedAt                time.Time `json:"issued_at"`
	CodeExpirySeconds       int       `json:"code_expiry_seconds"`
	CredentialIssuedAt      time.Time `json:"credential_issued_at,omitempty"`
	CredentialExpirySeconds int       `json:"credential_expiry_seconds"`
}

// CodeDeadline returns the instant after which the numeric code is rejected.
func (c *PasscodeChallenge) CodeDeadline() time.Time {
	return c.IssuedAt.Add(time.Duration(c.CodeExpirySeconds) * time.Second)
}

// CredentialDeadline returns the instant after which the temp token is rejected.
func (c *PasscodeChallenge) CredentialDeadline() time.Time {
	anchor := c.CredentialIssuedAt
	if anchor.IsZero() {
		// Snapshots written before the separate anchor existed.
		anchor = c.IssuedAt
	}
	return anchor.Add(time.Duration(c.CredentialExpirySeconds) * time.Second)
}

// Expired reports whether the temp token window has elapsed.
func (c *PasscodeChallenge) Expired(now time.Time) bool {
	return !now.Before(c.CredentialDeadline())
}

// Resent returns the replacement challenge after a server-confirmed code
// regeneration: a fresh IssuedAt and code window, with the temp token and its
// original deadline preserved exactly. The server does not reissue the token
// on resend, so its acceptance window must neither grow nor shrink.
func (c *PasscodeChallenge) Resent(now time.Time, codeExpirySeconds int) *PasscodeChallenge {
	anchor := c.CredentialIssuedAt
	if anchor.IsZero() {
		anchor = c.IssuedAt
	}
	return &PasscodeChallenge{
		TempToken:               c.TempToken,
		Subject:                 c.Subject,
		Tenant:                  c.Tenant,
		IssuedAt:                now,
		CodeExpirySeconds:       codeExpirySeconds,
		CredentialIssuedAt:      anchor,
		CredentialExpirySeconds: c.CredentialExpirySeconds,
	}
}

// State is the durable session snapshot mirrored into the Store on every
// lifecycle change and rehydrated at startup.
type State struct {
	User        *User              `json:"user,omitempty"`
	AccessToken string             `json:"access_token,omitempty"`
	Challenge   *PasscodeChallenge `json:"otp_challenge,omitempty"`
	Tenant      string             `json:"selected_tenant,omitempty"`
}

// Cooldown marks a rate-limited action that must not be re-invoked before
// ExpiresAt. Checked lazily at the moment of use, never by a timer.
type Cooldown struct {
	ExpiresAt int64 `json:"expires_at_epoch_ms"`
}

// NewCooldown builds a cooldown ending d after now.
func NewCooldown(now time.Time, d time.Duration) Cooldown {
	return Cooldown{ExpiresAt: now.Add(d).UnixMilli()}
}

// Expired reports whether the cooldown window has elapsed.
func (c Cooldown) Expired(now time.Time) bool {
	return now.UnixMilli() >= c.ExpiresAt
}

// Remaining returns the time left on the cooldown, or zero when elapsed.
func (c Cooldown) Remaining(now time.Time) time.Duration {
	d := time.UnixMilli(c.ExpiresAt).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
