package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SessionState is the observable state of the admin session
type SessionState int

const (
	StateLoggedOut SessionState = iota
	StateActive
	StateExpired
)

func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	default:
		return "logged_out"
	}
}

// Session is a time-bounded authorization record granting admin access
type Session struct {
	Subject   string    `json:"subject"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Active    bool      `json:"active"`

	// Token is the bearer credential for this session. It is set only on the
	// session Login returns; the slot keeps its hash.
	Token string `json:"-"`

	tokenHash string
}

// Valid reports whether the session grants access at the given instant
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Active && now.Before(s.ExpiresAt)
}

// State classifies the session at the given instant. Expiry is latent: a session
// past ExpiresAt reports StateExpired until a HasValidAccess call cleans it up.
func (s *Session) State(now time.Time) SessionState {
	switch {
	case s == nil || !s.Active:
		return StateLoggedOut
	case now.Before(s.ExpiresAt):
		return StateActive
	default:
		return StateExpired
	}
}

// credentials is validated before the policy is consulted
type credentials struct {
	Identifier string `validate:"required,max=320"`
	Secret     string `validate:"required"`
}

// sessionRecord is the persisted session metadata slot
type sessionRecord struct {
	Active    bool      `json:"active"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	TokenHash string    `json:"tokenHash,omitempty"`
}

const sessionTokenBytes = 32

// userRecord is the persisted subject slot
type userRecord struct {
	Identifier string `json:"identifier"`
}

// Login issues a new session if the policy accepts the pair, replacing any prior session
func (s *SessionStore) Login(ctx context.Context, identifier, secret string) (*Session, error) {
	creds := credentials{Identifier: strings.TrimSpace(identifier), Secret: secret}
	if err := s.validator.Struct(creds); err != nil {
		slog.Debug("Login validation failed", "error", formatValidationErrors(err))
		return nil, ErrInvalidCredentials
	}

	if !s.policy.Accepts(creds.Identifier, creds.Secret) {
		slog.Debug("Login rejected by admin policy", "identifier", creds.Identifier)
		return nil, ErrInvalidCredentials
	}

	token, err := generateSecureToken(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.clock.Now()
	session := &Session{
		Subject:   normalizeIdentifier(creds.Identifier),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.timeout),
		Active:    true,
		tokenHash: hashToken(token),
	}

	s.mu.Lock()
	err = s.persist(ctx, session)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	slog.Info("Admin session issued",
		"subject", session.Subject,
		"expires_at", session.ExpiresAt)
	s.publish(ctx, EventLogin, session.Subject, now)

	out := *session
	out.Token = token
	return &out, nil
}

// Logout clears the persisted session and notifies other contexts.
// It never fails; storage errors are logged.
func (s *SessionStore) Logout(ctx context.Context) {
	s.mu.Lock()
	subject := s.clearLocked(ctx)
	s.mu.Unlock()

	s.publish(ctx, EventLogout, subject, s.clock.Now())
}

// LogoutToken clears the persisted session only if token was issued for it, and
// reports whether it did. Any other token leaves the session in place.
func (s *SessionStore) LogoutToken(ctx context.Context, token string) bool {
	s.mu.Lock()
	session := s.currentSessionLocked(ctx)
	if session == nil || !tokenMatches(session.tokenHash, token) {
		s.mu.Unlock()
		return false
	}
	subject := s.clearLocked(ctx)
	s.mu.Unlock()

	s.publish(ctx, EventLogout, subject, s.clock.Now())
	return true
}

// CurrentSession returns the persisted session, or nil when there is none or it
// cannot be parsed. A legacy single-flag marker is upgraded in place.
func (s *SessionStore) CurrentSession(ctx context.Context) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSessionLocked(ctx)
}

// HasValidAccess reports whether an unexpired, active session exists. A session
// that is present but no longer valid is logged out as a side effect.
func (s *SessionStore) HasValidAccess(ctx context.Context) bool {
	return s.access(ctx, nil) != nil
}

// Authorize returns the session if it is valid and token was issued for it, or nil.
// A token-matched session that is no longer valid is logged out as a side effect.
// A mismatched token never touches the slots.
func (s *SessionStore) Authorize(ctx context.Context, token string) *Session {
	return s.access(ctx, &token)
}

// access checks and cleans up under a single hold of s.mu, so a Login cannot land
// between the expiry check and the cleanup and lose its fresh session
func (s *SessionStore) access(ctx context.Context, token *string) *Session {
	s.mu.Lock()
	session := s.currentSessionLocked(ctx)
	if session == nil {
		s.mu.Unlock()
		return nil
	}
	if token != nil && !tokenMatches(session.tokenHash, *token) {
		s.mu.Unlock()
		return nil
	}

	now := s.clock.Now()
	if session.Valid(now) {
		s.mu.Unlock()
		return session
	}

	slog.Debug("Session no longer valid, logging out",
		"subject", session.Subject,
		"state", session.State(now).String(),
		"expires_at", session.ExpiresAt)
	subject := s.clearLocked(ctx)
	s.mu.Unlock()

	s.publish(ctx, EventLogout, subject, now)
	return nil
}

// currentSessionLocked reads both slots. Callers hold s.mu.
func (s *SessionStore) currentSessionLocked(ctx context.Context) *Session {
	raw, ok, err := s.storage.Get(ctx, s.sessionKey)
	if err != nil {
		slog.Error("Failed to read session slot", "key", s.sessionKey, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	record, legacy, err := parseSessionRecord(raw, s.timeout)
	if err != nil {
		slog.Debug("Ignoring malformed session slot", "key", s.sessionKey, "error", err)
		return nil
	}
	if record == nil {
		return nil
	}

	session := &Session{
		Subject:   s.readSubject(ctx),
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
		Active:    record.Active,
		tokenHash: record.TokenHash,
	}

	if legacy {
		now := s.clock.Now()
		session.IssuedAt = now
		session.ExpiresAt = now.Add(s.timeout)
		session.Active = true
		if err := s.writeSession(ctx, session); err != nil {
			// the upgraded session is still returned; the next read retries the upgrade
			slog.Error("Failed to persist upgraded legacy session", "error", err)
		} else {
			slog.Info("Upgraded legacy session marker", "subject", session.Subject, "expires_at", session.ExpiresAt)
		}
	}

	return session
}

// clearLocked deletes both slots and returns the subject they held. Callers hold s.mu.
func (s *SessionStore) clearLocked(ctx context.Context) string {
	subject := s.readSubject(ctx)
	if err := s.storage.Delete(ctx, s.sessionKey); err != nil {
		slog.Error("Failed to clear session slot", "key", s.sessionKey, "error", err)
	}
	if err := s.storage.Delete(ctx, s.userKey); err != nil {
		slog.Error("Failed to clear user slot", "key", s.userKey, "error", err)
	}
	return subject
}

// persist writes both slots. If the session slot cannot be written the previous
// user slot is put back, so the old session never reports the new subject.
// Callers hold s.mu.
func (s *SessionStore) persist(ctx context.Context, session *Session) error {
	user, err := json.Marshal(userRecord{Identifier: session.Subject})
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}
	prev, hadPrev, err := s.storage.Get(ctx, s.userKey)
	if err != nil {
		return fmt.Errorf("failed to read user record: %w", err)
	}
	if err := s.storage.Set(ctx, s.userKey, string(user)); err != nil {
		return fmt.Errorf("failed to store user record: %w", err)
	}
	if err := s.writeSession(ctx, session); err != nil {
		s.restoreUser(ctx, prev, hadPrev)
		return err
	}
	return nil
}

func (s *SessionStore) restoreUser(ctx context.Context, prev string, hadPrev bool) {
	var err error
	if hadPrev {
		err = s.storage.Set(ctx, s.userKey, prev)
	} else {
		err = s.storage.Delete(ctx, s.userKey)
	}
	if err != nil {
		slog.Error("Failed to restore user slot", "key", s.userKey, "error", err)
	}
}

func (s *SessionStore) writeSession(ctx context.Context, session *Session) error {
	data, err := json.Marshal(sessionRecord{
		Active:    session.Active,
		IssuedAt:  session.IssuedAt,
		ExpiresAt: session.ExpiresAt,
		TokenHash: session.tokenHash,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}
	if err := s.storage.Set(ctx, s.sessionKey, string(data)); err != nil {
		return fmt.Errorf("failed to store session record: %w", err)
	}
	return nil
}

// readSubject returns the stored identifier, or "" if the slot is absent or unreadable
func (s *SessionStore) readSubject(ctx context.Context) string {
	raw, ok, err := s.storage.Get(ctx, s.userKey)
	if err != nil {
		slog.Error("Failed to read user slot", "key", s.userKey, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return parseUserRecord(raw)
}

func (s *SessionStore) publish(ctx context.Context, eventType, subject string, at time.Time) {
	event := SessionEvent{Type: eventType, Subject: subject, At: at}
	if err := s.broadcaster.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish session event", "event_type", eventType, "error", err)
	}
}

// parseSessionRecord decodes the session slot. It returns legacy=true for the
// single-flag marker, and a nil record when the slot holds an inactive flag.
func parseSessionRecord(raw string, timeout time.Duration) (*sessionRecord, bool, error) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "true", `"true"`:
		return &sessionRecord{Active: true}, true, nil
	case "false", `"false"`, "":
		return nil, false, nil
	}

	var doc struct {
		Active    *bool      `json:"active"`
		IssuedAt  *time.Time `json:"issuedAt"`
		ExpiresAt *time.Time `json:"expiresAt"`
		TokenHash string     `json:"tokenHash"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false, fmt.Errorf("decode session record: %w", err)
	}
	if doc.Active == nil {
		return nil, false, fmt.Errorf("session record has no active flag")
	}

	if doc.ExpiresAt == nil {
		if !*doc.Active {
			return nil, false, nil
		}
		return &sessionRecord{Active: true}, true, nil
	}

	record := &sessionRecord{Active: *doc.Active, ExpiresAt: *doc.ExpiresAt, TokenHash: doc.TokenHash}
	if doc.IssuedAt != nil {
		record.IssuedAt = *doc.IssuedAt
	} else {
		record.IssuedAt = doc.ExpiresAt.Add(-timeout)
	}
	return record, false, nil
}

// parseUserRecord accepts the JSON record and the bare identifier older consoles wrote
func parseUserRecord(raw string) string {
	raw = strings.TrimSpace(raw)
	var record userRecord
	if err := json.Unmarshal([]byte(raw), &record); err == nil {
		return record.Identifier
	}
	var bare string
	if err := json.Unmarshal([]byte(raw), &bare); err == nil {
		return bare
	}
	return raw
}
