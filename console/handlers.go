// Package console is the HTTP surface of the admin console: session endpoints
// backed by core.SessionStore and per-kind CRUD endpoints backed by the resource
// gateways. Every /api route requires a valid admin session.
package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/wispberry-tech/wispy-admin/core"
	"github.com/wispberry-tech/wispy-admin/gateway"
)

const maxBodyBytes = 1 << 20

// SessionCookieName is the cookie carrying the admin session token. Clients that
// do not keep cookies send the token as "Authorization: Bearer <token>" instead.
const SessionCookieName = "wispy_admin_session"

// Request and Response Types

// LoginRequest represents an admin login request
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// SessionResponse represents the admin session state
type SessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	Session       *core.Session `json:"session,omitempty"`
	Token         string        `json:"token,omitempty"` // set on login only
	StatusCode    int           `json:"-"`               // HTTP status code (not serialized)
	Cookie        *http.Cookie  `json:"-"`               // session cookie to set, if any
	Error         string        `json:"error,omitempty"` // Error message if any
}

// LogoutResponse represents the response for admin logout
type LogoutResponse struct {
	Message    string       `json:"message"`
	StatusCode int          `json:"-"`
	Cookie     *http.Cookie `json:"-"`
	Error      string       `json:"error,omitempty"`
}

// KindsResponse lists the entity kinds served under /api
type KindsResponse struct {
	Kinds      []string `json:"kinds"`
	StatusCode int      `json:"-"`
}

// ResourceResponse carries entity data, or a classified failure
type ResourceResponse struct {
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"-"`
	ErrorKind  string `json:"errorKind,omitempty"` // resource_missing, permission_denied, validation or unknown
	Error      string `json:"error,omitempty"`
}

// Config configures the console handlers
type Config struct {
	Sessions       *core.SessionStore
	Resources      []Resource
	AllowedOrigins []string // CORS origins; none disables CORS handling
}

// Handler serves the admin console API
type Handler struct {
	sessions       *core.SessionStore
	resources      map[string]Resource
	kinds          []string
	allowedOrigins []string
}

// New creates the console handler
func New(cfg Config) (*Handler, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("console requires a session store")
	}

	h := &Handler{
		sessions:       cfg.Sessions,
		resources:      make(map[string]Resource, len(cfg.Resources)),
		allowedOrigins: cfg.AllowedOrigins,
	}
	for _, res := range cfg.Resources {
		kind := res.Kind()
		if _, dup := h.resources[kind]; dup {
			return nil, fmt.Errorf("resource %s registered twice", kind)
		}
		h.resources[kind] = res
		h.kinds = append(h.kinds, kind)
	}
	sort.Strings(h.kinds)
	return h, nil
}

// LoginHandler processes admin login requests
func (h *Handler) LoginHandler(r *http.Request) SessionResponse {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		slog.Debug("Failed to decode login request", "error", err)
		return SessionResponse{
			StatusCode: http.StatusBadRequest,
			Error:      "Invalid request format",
		}
	}

	session, err := h.sessions.Login(r.Context(), req.Identifier, req.Secret)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			return SessionResponse{
				StatusCode: http.StatusUnauthorized,
				Error:      "Invalid credentials",
			}
		}
		slog.Error("Failed to log in", "error", err)
		return SessionResponse{
			StatusCode: http.StatusInternalServerError,
			Error:      "Internal server error",
		}
	}

	return SessionResponse{
		Authenticated: true,
		Session:       session,
		Token:         session.Token,
		StatusCode:    http.StatusOK,
		// browser-session cookie; expiry is enforced against the stored session
		Cookie: &http.Cookie{
			Name:     SessionCookieName,
			Value:    session.Token,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

// LogoutHandler ends the caller's admin session. It always succeeds; a request
// without the session's token only clears its own cookie.
func (h *Handler) LogoutHandler(r *http.Request) LogoutResponse {
	if token := requestToken(r); token != "" && !h.sessions.LogoutToken(r.Context(), token) {
		slog.Debug("Logout token does not match the current session")
	}
	return LogoutResponse{
		Message:    "Logged out",
		StatusCode: http.StatusOK,
		Cookie: &http.Cookie{
			Name:     SessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

// SessionHandler reports whether the caller holds the valid admin session,
// clearing an expired one
func (h *Handler) SessionHandler(r *http.Request) SessionResponse {
	session := h.sessions.Authorize(r.Context(), requestToken(r))
	if session == nil {
		return SessionResponse{StatusCode: http.StatusOK}
	}
	return SessionResponse{
		Authenticated: true,
		Session:       session,
		StatusCode:    http.StatusOK,
	}
}

// requestToken reads the session token from the bearer header, then the cookie
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// KindsHandler lists the served entity kinds
func (h *Handler) KindsHandler(r *http.Request) KindsResponse {
	kinds := make([]string, len(h.kinds))
	copy(kinds, h.kinds)
	return KindsResponse{Kinds: kinds, StatusCode: http.StatusOK}
}

// ListHandler lists the records of a kind. orderBy and dir query parameters are optional.
func (h *Handler) ListHandler(r *http.Request, kind string) ResourceResponse {
	res, resp, ok := h.lookup(kind)
	if !ok {
		return resp
	}
	q := r.URL.Query()
	data, err := res.List(r.Context(), q.Get("orderBy"), gateway.Direction(q.Get("dir")))
	if err != nil {
		return errorResponse(err)
	}
	return ResourceResponse{Data: data, StatusCode: http.StatusOK}
}

// GetHandler fetches one record
func (h *Handler) GetHandler(r *http.Request, kind, id string) ResourceResponse {
	res, resp, ok := h.lookup(kind)
	if !ok {
		return resp
	}
	data, err := res.Get(r.Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	if data == nil {
		return ResourceResponse{StatusCode: http.StatusNotFound, Error: "Not found"}
	}
	return ResourceResponse{Data: data, StatusCode: http.StatusOK}
}

// CreateHandler creates a record from the JSON body
func (h *Handler) CreateHandler(r *http.Request, kind string) ResourceResponse {
	res, resp, ok := h.lookup(kind)
	if !ok {
		return resp
	}
	data, err := res.Create(r.Context(), http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return errorResponse(err)
	}
	return ResourceResponse{Data: data, StatusCode: http.StatusCreated}
}

// UpdateHandler applies a partial JSON body to a record
func (h *Handler) UpdateHandler(r *http.Request, kind, id string) ResourceResponse {
	res, resp, ok := h.lookup(kind)
	if !ok {
		return resp
	}
	data, err := res.Update(r.Context(), id, http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return errorResponse(err)
	}
	return ResourceResponse{Data: data, StatusCode: http.StatusOK}
}

// DeleteHandler removes a record
func (h *Handler) DeleteHandler(r *http.Request, kind, id string) ResourceResponse {
	res, resp, ok := h.lookup(kind)
	if !ok {
		return resp
	}
	if err := res.Delete(r.Context(), id); err != nil {
		return errorResponse(err)
	}
	return ResourceResponse{Message: "Deleted", StatusCode: http.StatusOK}
}

func (h *Handler) lookup(kind string) (Resource, ResourceResponse, bool) {
	res, ok := h.resources[kind]
	if !ok {
		return nil, ResourceResponse{
			StatusCode: http.StatusNotFound,
			Error:      fmt.Sprintf("Unknown entity kind %q", kind),
		}, false
	}
	return res, ResourceResponse{}, true
}

// errorResponse maps a classified gateway failure onto an HTTP status
func errorResponse(err error) ResourceResponse {
	if errors.Is(err, ErrInvalidBody) {
		return ResourceResponse{
			StatusCode: http.StatusBadRequest,
			ErrorKind:  gateway.KindValidation.String(),
			Error:      "Invalid request format",
		}
	}

	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		slog.Error("Unclassified console error", "error", err)
		return ResourceResponse{
			StatusCode: http.StatusInternalServerError,
			ErrorKind:  gateway.KindUnknown.String(),
			Error:      "Internal server error",
		}
	}

	status := http.StatusInternalServerError
	switch gerr.Kind {
	case gateway.KindResourceMissing:
		status = http.StatusServiceUnavailable
	case gateway.KindPermissionDenied:
		status = http.StatusForbidden
	case gateway.KindValidation:
		status = http.StatusBadRequest
	}
	return ResourceResponse{
		StatusCode: status,
		ErrorKind:  gerr.Kind.String(),
		Error:      gerr.Error(),
	}
}
