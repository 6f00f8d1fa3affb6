package fake

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	admin "github.com/pressroomhq/admin-go"
)

func newBackend(opts ...Option) *Server {
	base := []Option{
		WithTenant("daily-news"),
		WithAccount("a@b.com", "pw", admin.User{ID: "u-1", Email: "a@b.com"}, true),
		WithAccount("d@b.com", "pw", admin.User{ID: "u-2", Email: "d@b.com"}, false),
	}
	return New(append(base, opts...)...)
}

func post(t *testing.T, s *Server, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("X-Site", "daily-news")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestLogin_ChallengeFlow(t *testing.T) {
	s := newBackend()

	w := post(t, s, "/auth/login", map[string]string{"email": "a@b.com", "password": "pw"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}
	var challenge struct {
		RequiresOTP    bool   `json:"requires_otp"`
		TempAuthToken  string `json:"temp_auth_token"`
		ExpiresIn      int    `json:"expires_in"`
		TokenExpiresIn int    `json:"token_expires_in"`
	}
	decode(t, w, &challenge)
	if !challenge.RequiresOTP || challenge.TempAuthToken == "" {
		t.Fatalf("expected a challenge, got %+v", challenge)
	}
	if challenge.ExpiresIn <= 0 || challenge.TokenExpiresIn < challenge.ExpiresIn {
		t.Errorf("windows: code %d, token %d", challenge.ExpiresIn, challenge.TokenExpiresIn)
	}

	code := s.CurrentOTP(challenge.TempAuthToken)
	if code == "" {
		t.Fatal("backend should expose the current code")
	}

	w = post(t, s, "/auth/verify-otp",
		map[string]string{"email": "a@b.com", "otp": code},
		map[string]string{"X-Temp-Auth-Token": challenge.TempAuthToken})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", w.Code, w.Body.String())
	}
	var session struct {
		AccessToken string     `json:"access_token"`
		User        admin.User `json:"user"`
	}
	decode(t, w, &session)
	if session.AccessToken == "" || session.User.Email != "a@b.com" {
		t.Errorf("session = %+v", session)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newBackend()
	w := post(t, s, "/auth/login", map[string]string{"email": "a@b.com", "password": "nope"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestLogin_UnknownTenant(t *testing.T) {
	s := newBackend()
	w := post(t, s, "/auth/login",
		map[string]string{"email": "a@b.com", "password": "pw"},
		map[string]string{"X-Site": "nope"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestVerify_WrongCodeThenLockout(t *testing.T) {
	s := newBackend()
	w := post(t, s, "/auth/login", map[string]string{"email": "a@b.com", "password": "pw"}, nil)
	var challenge struct {
		TempAuthToken string `json:"temp_auth_token"`
	}
	decode(t, w, &challenge)
	hdr := map[string]string{"X-Temp-Auth-Token": challenge.TempAuthToken}

	for i := 0; i < 5; i++ {
		w = post(t, s, "/auth/verify-otp", map[string]string{"email": "a@b.com", "otp": "000000"}, hdr)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i, w.Code)
		}
	}
	w = post(t, s, "/auth/verify-otp", map[string]string{"email": "a@b.com", "otp": "000000"}, hdr)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("lockout status = %d", w.Code)
	}
}

func TestGenerate_ReplacesCode(t *testing.T) {
	s := newBackend()
	w := post(t, s, "/auth/login", map[string]string{"email": "a@b.com", "password": "pw"}, nil)
	var challenge struct {
		TempAuthToken string `json:"temp_auth_token"`
	}
	decode(t, w, &challenge)
	hdr := map[string]string{"X-Temp-Auth-Token": challenge.TempAuthToken}
	old := s.CurrentOTP(challenge.TempAuthToken)

	w = post(t, s, "/otp/generate", nil, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("generate status = %d", w.Code)
	}
	if s.CurrentOTP(challenge.TempAuthToken) == old {
		t.Error("regenerate must replace the code")
	}

	// The superseded code is dead.
	w = post(t, s, "/auth/verify-otp", map[string]string{"email": "a@b.com", "otp": old}, hdr)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("old code status = %d", w.Code)
	}
}

func TestRefresh_ExpiredSessionRotates(t *testing.T) {
	s := newBackend()
	w := post(t, s, "/auth/login", map[string]string{"email": "d@b.com", "password": "pw"}, nil)
	var session struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, w, &session)

	s.ExpireSession(session.AccessToken)

	// The expired token no longer works on resources.
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token status = %d", rec.Code)
	}

	// But refresh still recognizes it and issues a new one.
	w = post(t, s, "/auth/refresh", nil, map[string]string{"Authorization": "Bearer " + session.AccessToken})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", w.Code)
	}
	if s.RefreshCalls() != 1 {
		t.Errorf("refresh calls = %d", s.RefreshCalls())
	}
}

func TestCodeExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newBackend(
		WithCodeTTL(5*time.Minute),
		WithTempTTL(15*time.Minute),
		WithClock(func() time.Time { return now }),
	)
	w := post(t, s, "/auth/login", map[string]string{"email": "a@b.com", "password": "pw"}, nil)
	var challenge struct {
		TempAuthToken string `json:"temp_auth_token"`
	}
	decode(t, w, &challenge)
	hdr := map[string]string{"X-Temp-Auth-Token": challenge.TempAuthToken}
	code := s.CurrentOTP(challenge.TempAuthToken)

	now = now.Add(6 * time.Minute) // code window gone, temp token still valid
	w = post(t, s, "/auth/verify-otp", map[string]string{"email": "a@b.com", "otp": code}, hdr)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Message string `json:"message"`
	}
	decode(t, w, &body)
	if body.Message != "OTP has expired" {
		t.Errorf("message = %q", body.Message)
	}

	now = now.Add(10 * time.Minute) // temp token gone too
	w = post(t, s, "/auth/verify-otp", map[string]string{"email": "a@b.com", "otp": code}, hdr)
	decode(t, w, &body)
	if body.Message != "Temp auth token expired" {
		t.Errorf("message = %q", body.Message)
	}
}
