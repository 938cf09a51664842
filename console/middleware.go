package console

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/wispberry-tech/wispy-admin/core"
	"github.com/wispberry-tech/wispy-admin/gateway"
)

type contextKey string

const sessionContextKey contextKey = "admin_session"

// RequireAdmin rejects requests that do not carry the token of the valid admin
// session. An expired session is cleaned up on the way.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := h.sessions.Authorize(r.Context(), requestToken(r))
		if session == nil {
			slog.Debug("Rejected request without admin session", "path", r.URL.Path)
			writeJSON(w, http.StatusUnauthorized, ResourceResponse{
				ErrorKind: gateway.KindPermissionDenied.String(),
				Error:     "Admin session required",
			})
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext returns the admin session RequireAdmin attached to the request
func SessionFromContext(r *http.Request) *core.Session {
	session, _ := r.Context().Value(sessionContextKey).(*core.Session)
	return session
}
