// Package core provides the admin session lifecycle for the wispy-admin console.
//
// This package includes:
//   - Credential acceptance against a configurable administrator policy
//   - Time-bounded sessions persisted in a single key-value slot pair
//   - Lazy expiry detection (no background timers)
//   - Transparent migration of the legacy single-flag session marker
//   - Best-effort logout broadcast to other contexts sharing the same storage
//
// ## Quick Start:
//
//	store, err := core.NewSessionStore(core.Config{
//		Storage: core.NewMemoryStorage(),
//		Policy:  core.DefaultAdminPolicy(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if _, err := store.Login(ctx, "admin@example.com", "secret"); err != nil {
//		// core.ErrInvalidCredentials
//	}
//	if store.HasValidAccess(ctx) {
//		// render admin screens
//	}
package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Common session errors returned by the library
var (
	// ErrInvalidCredentials is returned when the login policy rejects an identifier/secret pair
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStorageRequired is returned when no Storage implementation is configured
	ErrStorageRequired = errors.New("storage is required")
)

// DefaultSessionTimeout is the fixed lifetime of an admin session.
const DefaultSessionTimeout = 24 * time.Hour

// Default slot keys, kept identical to the keys the console has always written.
const (
	DefaultUserKey    = "admin_user"
	DefaultSessionKey = "admin_session"
)

// Config contains the configuration for the SessionStore
type Config struct {
	Storage        Storage       // Key-value persistence port (required)
	Clock          Clock         // Time source (defaults to the wall clock)
	Broadcaster    Broadcaster   // Logout notification channel (defaults to an in-process Hub)
	Policy         AdminPolicy   // Credential acceptance rules
	SessionTimeout time.Duration // Session lifetime (defaults to 24h)
	UserKey        string        // Slot holding the subject record
	SessionKey     string        // Slot holding the session metadata
}

// DefaultConfig returns a configuration with every optional field populated.
// Storage still has to be provided by the caller.
func DefaultConfig() Config {
	return Config{
		Clock:          SystemClock{},
		Policy:         DefaultAdminPolicy(),
		SessionTimeout: DefaultSessionTimeout,
		UserKey:        DefaultUserKey,
		SessionKey:     DefaultSessionKey,
	}
}

// SessionStore owns credential validation, session issuance, lazy expiry,
// legacy-format migration and logout.
type SessionStore struct {
	storage     Storage
	clock       Clock
	broadcaster Broadcaster
	policy      AdminPolicy
	timeout     time.Duration
	userKey     string
	sessionKey  string
	validator   *validator.Validate

	// serializes read-upgrade-write sequences against the slots
	mu sync.Mutex
}

// NewSessionStore creates a new session store
func NewSessionStore(cfg Config) (*SessionStore, error) {
	if cfg.Storage == nil {
		return nil, ErrStorageRequired
	}

	defaults := DefaultConfig()
	if cfg.Clock == nil {
		cfg.Clock = defaults.Clock
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = NewHub()
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = defaults.SessionTimeout
	}
	if cfg.UserKey == "" {
		cfg.UserKey = defaults.UserKey
	}
	if cfg.SessionKey == "" {
		cfg.SessionKey = defaults.SessionKey
	}
	if cfg.UserKey == cfg.SessionKey {
		return nil, fmt.Errorf("user and session slots must differ, both are %q", cfg.UserKey)
	}

	return &SessionStore{
		storage:     cfg.Storage,
		clock:       cfg.Clock,
		broadcaster: cfg.Broadcaster,
		policy:      cfg.Policy.normalized(),
		timeout:     cfg.SessionTimeout,
		userKey:     cfg.UserKey,
		sessionKey:  cfg.SessionKey,
		validator:   validator.New(),
	}, nil
}

// Timeout returns the configured session lifetime.
func (s *SessionStore) Timeout() time.Duration {
	return s.timeout
}

// Broadcaster returns the notification channel logout events are published on.
func (s *SessionStore) Broadcaster() Broadcaster {
	return s.broadcaster
}

// Close closes the underlying storage
func (s *SessionStore) Close() error {
	return s.storage.Close()
}
