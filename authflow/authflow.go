// Package authflow owns the credential-to-session lifecycle of the console:
// password submission, the time-boxed one-time-passcode challenge, verified
// session installation, logout, and rehydration from persistent storage.
//
// The flow is a three-state machine: Anonymous, ChallengePending, and
// Authenticated. Expiry is always judged by comparing the injected clock
// against the challenge's IssuedAt, never by a countdown timer.
package authflow

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	admin "github.com/pressroomhq/admin-go"
	"github.com/pressroomhq/admin-go/apiclient"
	"github.com/pressroomhq/admin-go/audit"
	"github.com/pressroomhq/admin-go/metrics"
)

// State identifies the current position in the session lifecycle.
type State int

const (
	StateAnonymous State = iota
	StateChallengePending
	StateAuthenticated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateChallengePending:
		return "challenge_pending"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// CooldownForgotPassword keys the cooldown record for password reset requests.
const CooldownForgotPassword = "forgot_password"

// DefaultResetCooldown is how long a new password reset request is refused
// client-side after one has been sent.
const DefaultResetCooldown = 60 * time.Second

// Service drives session lifecycle transitions. It performs its network
// steps through the request client and mirrors every state change into the
// store.
type Service struct {
	api           *apiclient.Client
	store         admin.Store
	logger        *slog.Logger
	metrics       *metrics.Metrics
	auditLog      *audit.Logger
	now           func() time.Time
	resetCooldown time.Duration

	mu        sync.Mutex
	challenge *admin.PasscodeChallenge
	session   *admin.Session
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock sets the wall-clock source used for every expiry check.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithResetCooldown sets the client-side cooldown between password reset
// requests.
func WithResetCooldown(d time.Duration) Option {
	return func(s *Service) { s.resetCooldown = d }
}

// WithAudit sets an audit trail for session lifecycle events.
func WithAudit(l *audit.Logger) Option {
	return func(s *Service) { s.auditLog = l }
}

// New creates the session flow service. The service registers itself on the
// request client so refresh outcomes flow through its persistence hook.
func New(api *apiclient.Client, store admin.Store, opts ...Option) *Service {
	s := &Service{
		api:           api,
		store:         store,
		logger:        slog.Default(),
		metrics:       metrics.New(false),
		now:           time.Now,
		resetCooldown: DefaultResetCooldown,
	}
	for _, o := range opts {
		o(s)
	}
	api.RegisterListener(s)
	return s
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.session != nil:
		return StateAuthenticated
	case s.challenge != nil:
		return StateChallengePending
	default:
		return StateAnonymous
	}
}

// Session returns a copy of the current authenticated session, or nil.
func (s *Service) Session() *admin.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// Challenge returns a copy of the pending passcode challenge, or nil.
func (s *Service) Challenge() *admin.PasscodeChallenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge == nil {
		return nil
	}
	cp := *s.challenge
	return &cp
}

// Restore rehydrates state from the store at startup. A stored session or an
// unexpired challenge is reinstalled; an expired challenge is discarded and
// the flow starts Anonymous.
func (s *Service) Restore(ctx context.Context) error {
	st, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st.Tenant != "" {
		s.api.SetTenant(st.Tenant)
	}

	switch {
	case st.AccessToken != "":
		sess := &admin.Session{
			AccessToken: st.AccessToken,
			Tenant:      st.Tenant,
		}
		if st.User != nil {
			sess.User = *st.User
		}
		if exp, ok := admin.TokenExpiry(st.AccessToken); ok {
			sess.ExpiresAt = exp
		}
		s.session = sess
		s.api.SetAccessToken(st.AccessToken)
		s.metrics.RecordSessionRestored()
		s.logger.Info("session restored from storage", "subject", sess.User.Email)
		s.record(audit.ActionSessionRestored, sess.User.Email, nil)

	case st.Challenge != nil && !st.Challenge.Expired(s.now()):
		s.challenge = st.Challenge
		s.api.SetTempToken(st.Challenge.TempToken)
		s.logger.Info("passcode challenge restored from storage", "subject", st.Challenge.Subject)

	case st.Challenge != nil:
		// Stale challenge: drop it from storage too.
		s.persistLocked(ctx)
	}
	return nil
}

// ChallengeOutcome is the result of a credentials submission: either a
// passcode step is required or the session was issued directly.
type ChallengeOutcome struct {
	Challenge *admin.PasscodeChallenge
	Session   *admin.Session
}

// loginResponse covers both shapes of POST /auth/login: the passcode step
// and the direct session payload.
type loginResponse struct {
	RequiresOTP    bool   `json:"requires_otp"`
	TempAuthToken  string `json:"temp_auth_token"`
	ExpiresIn      int    `json:"expires_in"`
	TokenExpiresIn int    `json:"token_expires_in"`

	sessionResponse
}

// sessionResponse is the full session payload shared by login and verify.
type sessionResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        *admin.User `json:"user"`
	LastLoginAt string      `json:"last_login_at"`
}

// SubmitCredentials performs the password step of the login protocol. A
// prior pending challenge is discarded unconditionally in favor of the new
// attempt. The tenant becomes the selected tenant context for the session.
func (s *Service) SubmitCredentials(ctx context.Context, email, password, tenant string) (*ChallengeOutcome, error) {
	s.mu.Lock()
	s.challenge = nil
	s.api.ClearTempToken()
	s.api.SetTenant(tenant)
	s.mu.Unlock()

	body := map[string]string{"email": email, "password": password}
	resp, err := s.api.Do(ctx, http.MethodPost, "/auth/login", body, nil)
	if err != nil {
		err = remap(err, admin.CategoryUnauthorized, admin.CategoryInvalidCredentials)
		s.record(audit.ActionLogin, email, err)
		return nil, err
	}

	var payload loginResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if payload.RequiresOTP {
		// A verified credentials submission supersedes whatever session was
		// active; clearing only now keeps a failed re-login from logging the
		// user out. The two states never coexist.
		s.session = nil
		s.api.ClearAccessToken()
		issued := s.now()
		s.challenge = &admin.PasscodeChallenge{
			TempToken:               payload.TempAuthToken,
			Subject:                 email,
			Tenant:                  tenant,
			IssuedAt:                issued,
			CodeExpirySeconds:       payload.ExpiresIn,
			CredentialIssuedAt:      issued,
			CredentialExpirySeconds: payload.TokenExpiresIn,
		}
		s.api.SetTempToken(payload.TempAuthToken)
		s.persistLocked(ctx)
		s.logger.Info("passcode challenge issued", "subject", email, "tenant", tenant)
		s.record(audit.ActionLogin, email, nil)
		cp := *s.challenge
		return &ChallengeOutcome{Challenge: &cp}, nil
	}

	s.installSessionLocked(ctx, payload.sessionResponse, email, tenant)
	s.record(audit.ActionLogin, email, nil)
	cp := *s.session
	return &ChallengeOutcome{Session: &cp}, nil
}

// VerifyPasscode completes the challenge with the numeric code. The local
// temp-credential window is checked first: once elapsed, no network call is
// made, the challenge is discarded, and the flow returns to Anonymous. A
// server-rejected code leaves the challenge pending so the user may retry.
func (s *Service) VerifyPasscode(ctx context.Context, code string) (*admin.Session, error) {
	s.mu.Lock()
	if s.challenge == nil {
		s.mu.Unlock()
		return nil, errNoChallenge()
	}
	if s.challenge.Expired(s.now()) {
		subject := s.challenge.Subject
		s.discardChallengeLocked(ctx)
		s.mu.Unlock()
		err := errChallengeExpired()
		s.record(audit.ActionVerifyPasscode, subject, err)
		return nil, err
	}
	email := s.challenge.Subject
	tenant := s.challenge.Tenant
	temp := s.challenge.TempToken
	s.mu.Unlock()

	body := map[string]string{"email": email, "otp": code, "temp_auth_token": temp}
	resp, err := s.api.Do(ctx, http.MethodPost, "/auth/verify-otp", body, nil)
	if err != nil {
		err = remap(err, admin.CategoryUnauthorized, admin.CategoryInvalidPasscode)
		s.record(audit.ActionVerifyPasscode, email, err)
		if admin.CategoryOf(err) == admin.CategoryChallengeExpired {
			s.mu.Lock()
			s.discardChallengeLocked(ctx)
			s.mu.Unlock()
		}
		return nil, err
	}

	var payload sessionResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.installSessionLocked(ctx, payload, email, tenant)
	s.record(audit.ActionVerifyPasscode, email, nil)
	cp := *s.session
	return &cp, nil
}

// ResendPasscode asks the server to regenerate the numeric code for the
// pending challenge. The challenge is replaced with a freshly timestamped
// one carrying the new code window; the temp credential and its original
// deadline are preserved, since the server does not reissue it.
func (s *Service) ResendPasscode(ctx context.Context) (*admin.PasscodeChallenge, error) {
	s.mu.Lock()
	if s.challenge == nil {
		s.mu.Unlock()
		return nil, errNoChallenge()
	}
	if s.challenge.Expired(s.now()) {
		subject := s.challenge.Subject
		s.discardChallengeLocked(ctx)
		s.mu.Unlock()
		err := errChallengeExpired()
		s.record(audit.ActionResendPasscode, subject, err)
		return nil, err
	}
	subject := s.challenge.Subject
	s.mu.Unlock()

	resp, err := s.api.Do(ctx, http.MethodPost, "/otp/generate", nil, nil)
	if err != nil {
		s.record(audit.ActionResendPasscode, subject, err)
		if admin.CategoryOf(err) == admin.CategoryChallengeExpired {
			s.mu.Lock()
			s.discardChallengeLocked(ctx)
			s.mu.Unlock()
		}
		return nil, err
	}

	var payload struct {
		Message   string `json:"message"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := resp.Decode(&payload); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge == nil {
		// Cancelled while the regenerate call was in flight.
		return nil, errNoChallenge()
	}
	s.challenge = s.challenge.Resent(s.now(), payload.ExpiresIn)
	s.persistLocked(ctx)
	s.logger.Info("passcode regenerated", "subject", s.challenge.Subject)
	s.record(audit.ActionResendPasscode, s.challenge.Subject, nil)
	cp := *s.challenge
	return &cp, nil
}

// CancelChallenge discards any pending challenge unconditionally, returning
// to Anonymous. No network call.
func (s *Service) CancelChallenge(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge == nil {
		return
	}
	subject := s.challenge.Subject
	s.discardChallengeLocked(ctx)
	s.record(audit.ActionCancelChallenge, subject, nil)
}

// Logout invalidates the session server-side on a best-effort basis, then
// clears all local state and storage. Local logout always succeeds; the
// network outcome is logged and swallowed.
func (s *Service) Logout(ctx context.Context) {
	if _, err := s.api.Do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		s.logger.Warn("server-side logout failed, clearing local state anyway", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var subject string
	if s.session != nil {
		subject = s.session.User.Email
	}
	s.session = nil
	s.challenge = nil
	s.api.ClearAccessToken()
	s.api.ClearTempToken()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear persisted session", "error", err)
	}
	s.logger.Info("logged out")
	s.record(audit.ActionLogout, subject, nil)
}

// ForgotPassword requests a password reset email. A cooldown marker refuses
// repeat requests client-side before the window elapses, without a round
// trip; the marker is cleared lazily when found expired.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	now := s.now()
	cd, err := s.store.LoadCooldown(ctx, CooldownForgotPassword)
	if err != nil {
		return err
	}
	if cd != nil {
		if !cd.Expired(now) {
			return &admin.Classification{
				Category: admin.CategoryRateLimited,
				Message:  "a reset email was sent recently, please wait before requesting another",
			}
		}
		if err := s.store.ClearCooldown(ctx, CooldownForgotPassword); err != nil {
			s.logger.Warn("failed to clear expired cooldown", "error", err)
		}
	}

	body := map[string]string{"email": email}
	if _, err := s.api.Do(ctx, http.MethodPost, "/auth/forgot-password", body, nil); err != nil {
		s.record(audit.ActionForgotPassword, email, err)
		return err
	}
	s.record(audit.ActionForgotPassword, email, nil)

	if err := s.store.SaveCooldown(ctx, CooldownForgotPassword, admin.NewCooldown(now, s.resetCooldown)); err != nil {
		s.logger.Warn("failed to record reset cooldown", "error", err)
	}
	return nil
}

// ResetPassword completes a password reset with the emailed token.
func (s *Service) ResetPassword(ctx context.Context, email, token, password string) error {
	body := map[string]string{"email": email, "token": token, "password": password}
	if _, err := s.api.Do(ctx, http.MethodPost, "/auth/reset-password", body, nil); err != nil {
		s.record(audit.ActionResetPassword, email, err)
		return err
	}
	s.record(audit.ActionResetPassword, email, nil)
	return nil
}

// TokenRefreshed implements admin.AuthListener: the refresh coordinator's
// persistence hook. The new credential is mirrored into the session and the
// store.
func (s *Service) TokenRefreshed(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return
	}
	s.session.AccessToken = token
	if exp, ok := admin.TokenExpiry(token); ok {
		s.session.ExpiresAt = exp
	}
	s.persistLocked(context.Background())
	s.record(audit.ActionRefresh, s.session.User.Email, nil)
}

// AuthenticationLost implements admin.AuthListener: an unrecoverable
// refresh failure tears down the session. Callers observing this should
// surface a "session expired, please sign in again" notice, distinct from
// generic errors.
func (s *Service) AuthenticationLost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var subject string
	if s.session != nil {
		subject = s.session.User.Email
	}
	s.session = nil
	s.challenge = nil
	s.api.ClearTempToken()
	if err := s.store.Clear(context.Background()); err != nil {
		s.logger.Warn("failed to clear persisted session", "error", err)
	}
	s.logger.Warn("session expired, sign in required")
	s.record(audit.ActionRefresh, subject, &admin.Classification{
		Category: admin.CategoryUnauthorized,
		Message:  "credential refresh failed, session ended",
	})
}

// installSessionLocked installs an authenticated session from a server
// payload and persists it. Caller holds s.mu.
func (s *Service) installSessionLocked(ctx context.Context, payload sessionResponse, email, tenant string) {
	sess := &admin.Session{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		Tenant:      tenant,
	}
	if payload.User != nil {
		sess.User = *payload.User
	} else {
		sess.User = admin.User{Email: email}
	}
	if t, err := time.Parse(time.RFC3339, payload.LastLoginAt); err == nil {
		sess.LastLoginAt = t
	}
	if exp, ok := admin.TokenExpiry(payload.AccessToken); ok {
		sess.ExpiresAt = exp
	}

	s.session = sess
	s.challenge = nil
	s.api.ClearTempToken()
	s.api.SetAccessToken(payload.AccessToken)
	s.persistLocked(ctx)
	s.logger.Info("authenticated", "subject", sess.User.Email, "tenant", tenant)
}

// discardChallengeLocked drops the pending challenge and persists the
// resulting state. Caller holds s.mu.
func (s *Service) discardChallengeLocked(ctx context.Context) {
	if s.challenge == nil {
		return
	}
	s.challenge = nil
	s.api.ClearTempToken()
	s.persistLocked(ctx)
}

// persistLocked mirrors the current state into the store. Persistence
// failures are logged, not surfaced: an unreachable store must not undo an
// otherwise successful transition. Caller holds s.mu.
func (s *Service) persistLocked(ctx context.Context) {
	st := &admin.State{Tenant: s.api.Tenant()}
	if s.session != nil {
		u := s.session.User
		st.User = &u
		st.AccessToken = s.session.AccessToken
	}
	if s.challenge != nil {
		cp := *s.challenge
		st.Challenge = &cp
	}
	if err := s.store.Save(ctx, st); err != nil {
		s.logger.Warn("failed to persist session state", "error", err)
	}
}

// record reports the outcome of a lifecycle operation to metrics and, when
// configured, the audit trail.
func (s *Service) record(action audit.Action, subject string, err error) {
	if err != nil {
		s.metrics.RecordAuthFailure(string(action), string(admin.CategoryOf(err)))
	}
	if s.auditLog == nil {
		return
	}
	e := audit.Event{
		Action:  action,
		Subject: subject,
		Tenant:  s.api.Tenant(),
		Result:  "success",
	}
	if err != nil {
		e.Result = "failure"
		e.Category = string(admin.CategoryOf(err))
		e.Error = err.Error()
	}
	s.auditLog.Log(e)
}

// remap rewrites a generic classification into the operation-specific one,
// leaving curated classifications untouched.
func remap(err error, from, to admin.Category) error {
	c := admin.ClassificationOf(err)
	if c == nil || c.Category != from {
		return err
	}
	return &admin.Classification{Category: to, Message: c.Message, Status: c.Status}
}

func errNoChallenge() error {
	return &admin.Classification{
		Category: admin.CategoryChallengeExpired,
		Message:  "no passcode challenge in progress",
	}
}

func errChallengeExpired() error {
	return &admin.Classification{
		Category: admin.CategoryChallengeExpired,
		Message:  "the sign-in challenge has expired, please sign in again",
	}
}
