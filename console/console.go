// Package console assembles the SDK from deployment configuration: request
// client, session flow, persistent store, and metrics, wired together.
//
// Usage:
//
//	cfg, err := config.Load("console.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c, err := console.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	outcome, err := c.Auth.SubmitCredentials(ctx, email, password, cfg.Tenant)
package console

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	admin "github.com/pressroomhq/admin-go"
	"github.com/pressroomhq/admin-go/apiclient"
	"github.com/pressroomhq/admin-go/audit"
	"github.com/pressroomhq/admin-go/authflow"
	"github.com/pressroomhq/admin-go/config"
	"github.com/pressroomhq/admin-go/metrics"
	"github.com/pressroomhq/admin-go/store"
)

// Client is the assembled console SDK.
type Client struct {
	// API issues raw authenticated requests against the console backend.
	API *apiclient.Client

	// Auth drives the session lifecycle.
	Auth *authflow.Service

	// Store is the persistence adapter backing the session snapshot.
	Store admin.Store

	// Metrics is the shared metrics recorder.
	Metrics *metrics.Metrics
}

// Option configures the assembled client.
type Option func(*settings)

type settings struct {
	logger   *slog.Logger
	doer     apiclient.Doer
	store    admin.Store
	now      func() time.Time
	auditLog *audit.Logger
}

// WithLogger sets a structured logger for all components.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithHTTPClient sets a custom HTTP transport.
func WithHTTPClient(d apiclient.Doer) Option {
	return func(s *settings) { s.doer = d }
}

// WithStore overrides the store selected by configuration.
func WithStore(st admin.Store) Option {
	return func(s *settings) { s.store = st }
}

// WithClock sets the time source for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithAudit attaches an audit trail to the session flow.
func WithAudit(l *audit.Logger) Option {
	return func(s *settings) { s.auditLog = l }
}

// New assembles the SDK and rehydrates any persisted session before the
// first call is made.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	s := &settings{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	st := s.store
	if st == nil {
		var err error
		st, err = buildStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	m := metrics.New(cfg.MetricsEnabled)

	apiOpts := []apiclient.Option{
		apiclient.WithLogger(s.logger),
		apiclient.WithMetrics(m),
		apiclient.WithClock(s.now),
	}
	if s.doer != nil {
		apiOpts = append(apiOpts, apiclient.WithHTTPClient(s.doer))
	} else if cfg.RequestTimeout() > 0 {
		apiOpts = append(apiOpts, apiclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}))
	}
	api := apiclient.New(cfg.BaseURL, apiOpts...)
	api.SetTenant(cfg.Tenant)

	authOpts := []authflow.Option{
		authflow.WithLogger(s.logger),
		authflow.WithMetrics(m),
		authflow.WithClock(s.now),
		authflow.WithResetCooldown(cfg.ResetCooldown()),
	}
	if s.auditLog != nil {
		authOpts = append(authOpts, authflow.WithAudit(s.auditLog))
	}
	auth := authflow.New(api, st, authOpts...)

	if err := auth.Restore(context.Background()); err != nil {
		return nil, err
	}

	return &Client{API: api, Auth: auth, Store: st, Metrics: m}, nil
}

// buildStore selects the persistence adapter from configuration: Redis when
// an address is configured, the file store when a state directory is, and
// in-memory otherwise.
func buildStore(cfg *config.Config) (admin.Store, error) {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return store.NewRedis(client, cfg.Redis.Prefix), nil
	}
	if cfg.StateDir != "" {
		return store.NewFile(cfg.StateDir)
	}
	return store.NewMemory(), nil
}
