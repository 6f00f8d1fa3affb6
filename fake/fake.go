// Package fake provides an in-memory console auth backend as an
// http.Handler for tests and examples.
//
// Pair it with httptest.NewServer to exercise the full login, passcode,
// refresh, and logout flows without a real backend.
package fake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	admin "github.com/pressroomhq/admin-go"
)

// Option configures the fake backend.
type Option func(*Server)

// account is a configured login account.
type account struct {
	password    string
	user        admin.User
	requiresOTP bool
}

// challenge is an in-progress passcode challenge.
type challenge struct {
	email        string
	code         string
	used         bool
	attempts     int
	codeDeadline time.Time
	tempDeadline time.Time
}

// Server is the fake backend. Safe for concurrent use.
type Server struct {
	mu           sync.Mutex
	accounts     map[string]*account
	tenants      map[string]bool
	challenges   map[string]*challenge // temp token → challenge
	sessions     map[string]string     // access token → email
	expired      map[string]string     // expired access token → email
	codeTTL      time.Duration
	tempTTL      time.Duration
	maxAttempts  int
	refreshFails bool
	refreshCalls int
	seq          int
	now          func() time.Time
}

// WithAccount adds a login account. When requiresOTP is set, login returns a
// passcode challenge instead of a direct session.
func WithAccount(email, password string, user admin.User, requiresOTP bool) Option {
	return func(s *Server) {
		s.accounts[email] = &account{password: password, user: user, requiresOTP: requiresOTP}
	}
}

// WithTenant registers a known tenant. Requests for unknown tenants are
// rejected with "Site not found".
func WithTenant(slug string) Option {
	return func(s *Server) { s.tenants[slug] = true }
}

// WithCodeTTL sets the numeric code acceptance window.
func WithCodeTTL(d time.Duration) Option {
	return func(s *Server) { s.codeTTL = d }
}

// WithTempTTL sets the temp token acceptance window.
func WithTempTTL(d time.Duration) Option {
	return func(s *Server) { s.tempTTL = d }
}

// WithClock sets the time source for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a fake backend.
func New(opts ...Option) *Server {
	s := &Server{
		accounts:    make(map[string]*account),
		tenants:     make(map[string]bool),
		challenges:  make(map[string]*challenge),
		sessions:    make(map[string]string),
		expired:     make(map[string]string),
		codeTTL:     5 * time.Minute,
		tempTTL:     15 * time.Minute,
		maxAttempts: 5,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetRefreshFails makes subsequent refresh calls fail with a 401.
func (s *Server) SetRefreshFails(fail bool) {
	s.mu.Lock()
	s.refreshFails = fail
	s.mu.Unlock()
}

// RefreshCalls returns how many times the refresh endpoint was hit.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// ExpireSession marks an access token expired: authenticated calls bearing
// it get a 401, but refresh still recognizes the account behind it.
func (s *Server) ExpireSession(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if email, ok := s.sessions[token]; ok {
		delete(s.sessions, token)
		s.expired[token] = email
	}
}

// CurrentOTP returns the numeric code for a temp token, for tests driving
// the verify step.
func (s *Server) CurrentOTP(tempToken string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.challenges[tempToken]; ok {
		return ch.code
	}
	return ""
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/login":
		s.handleLogin(w, r)
	case "/auth/verify-otp":
		s.handleVerifyOTP(w, r)
	case "/otp/generate":
		s.handleGenerateOTP(w, r)
	case "/auth/refresh":
		s.handleRefresh(w, r)
	case "/auth/logout":
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	case "/auth/forgot-password":
		s.handleForgotPassword(w, r)
	case "/auth/reset-password":
		s.handleResetPassword(w, r)
	default:
		s.handleAuthenticated(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.tenantOK(r) {
		writeError(w, http.StatusNotFound, "Site not found")
		return
	}
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[body.Email]
	if !ok || acct.password != body.Password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if acct.requiresOTP {
		s.seq++
		temp := fmt.Sprintf("temp-token-%d", s.seq)
		s.seq++
		code := fmt.Sprintf("%06d", s.seq)
		now := s.now()
		s.challenges[temp] = &challenge{
			email:        body.Email,
			code:         code,
			codeDeadline: now.Add(s.codeTTL),
			tempDeadline: now.Add(s.tempTTL),
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"requires_otp":     true,
			"temp_auth_token":  temp,
			"expires_in":       int(s.codeTTL / time.Second),
			"token_expires_in": int(s.tempTTL / time.Second),
		})
		return
	}

	s.writeSessionLocked(w, acct)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	temp := r.Header.Get("X-Temp-Auth-Token")
	var body struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[temp]
	now := s.now()
	switch {
	case !ok || now.After(ch.tempDeadline):
		writeError(w, http.StatusUnauthorized, "Temp auth token expired")
	case ch.used:
		writeError(w, http.StatusUnauthorized, "OTP already used")
	case ch.attempts >= s.maxAttempts:
		writeError(w, http.StatusTooManyRequests, "Too many attempts")
	case now.After(ch.codeDeadline):
		writeError(w, http.StatusUnauthorized, "OTP has expired")
	case ch.code != body.OTP:
		ch.attempts++
		writeError(w, http.StatusUnauthorized, "Invalid OTP")
	default:
		ch.used = true
		delete(s.challenges, temp)
		acct := s.accounts[ch.email]
		s.writeSessionLocked(w, acct)
	}
}

func (s *Server) handleGenerateOTP(w http.ResponseWriter, r *http.Request) {
	temp := r.Header.Get("X-Temp-Auth-Token")

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[temp]
	now := s.now()
	if !ok || now.After(ch.tempDeadline) {
		writeError(w, http.StatusUnauthorized, "Temp auth token expired")
		return
	}
	// New code, fresh window; the temp token deadline is deliberately
	// untouched.
	s.seq++
	ch.code = fmt.Sprintf("%06d", s.seq)
	ch.codeDeadline = now.Add(s.codeTTL)
	ch.attempts = 0
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "OTP sent",
		"expires_in": int(s.codeTTL / time.Second),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshCalls++
	if s.refreshFails {
		writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	email, ok := s.bearerEmailLocked(r, true)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}
	s.seq++
	token := fmt.Sprintf("access-token-%d", s.seq)
	s.sessions[token] = email
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"expires_in":   3600,
	})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if !s.tenantOK(r) {
		writeError(w, http.StatusNotFound, "Site not found")
		return
	}
	// Deliberately identical response whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]string{"message": "Reset email sent"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Token == "" || body.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "The given data was invalid")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// handleAuthenticated serves any other path as a bearer-protected resource.
func (s *Server) handleAuthenticated(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.bearerEmailLocked(r, false)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": s.accounts[email].user})
}

// bearerEmailLocked resolves the Authorization bearer to an account email.
// When allowExpired is set, tokens that have been expired via ExpireSession
// still resolve, which is what lets refresh recognize the caller.
func (s *Server) bearerEmailLocked(r *http.Request, allowExpired bool) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return "", false
	}
	if email, ok := s.sessions[token]; ok {
		return email, true
	}
	if allowExpired {
		if email, ok := s.expired[token]; ok {
			return email, true
		}
	}
	return "", false
}

func (s *Server) writeSessionLocked(w http.ResponseWriter, acct *account) {
	s.seq++
	token := fmt.Sprintf("access-token-%d", s.seq)
	s.sessions[token] = acct.user.Email
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  token,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"user":          acct.user,
		"last_login_at": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) tenantOK(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tenants) == 0 {
		return true
	}
	return s.tenants[r.Header.Get("X-Site")]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
