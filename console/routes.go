package console

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes returns the console router.
//
//	GET    /health
//	POST   /admin/login
//	POST   /admin/logout
//	GET    /admin/session
//	GET    /api/                  (admin)
//	GET    /api/{kind}            (admin)
//	POST   /api/{kind}            (admin)
//	GET    /api/{kind}/{id}       (admin)
//	PATCH  /api/{kind}/{id}       (admin)
//	DELETE /api/{kind}/{id}       (admin)
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if len(h.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
			result := h.LoginHandler(r)
			if result.Cookie != nil {
				http.SetCookie(w, result.Cookie)
			}
			writeJSON(w, result.StatusCode, result)
		})
		r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			result := h.LogoutHandler(r)
			if result.Cookie != nil {
				http.SetCookie(w, result.Cookie)
			}
			writeJSON(w, result.StatusCode, result)
		})
		r.Get("/session", func(w http.ResponseWriter, r *http.Request) {
			result := h.SessionHandler(r)
			writeJSON(w, result.StatusCode, result)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.RequireAdmin)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			result := h.KindsHandler(r)
			writeJSON(w, result.StatusCode, result)
		})
		r.Get("/{kind}", func(w http.ResponseWriter, r *http.Request) {
			result := h.ListHandler(r, chi.URLParam(r, "kind"))
			writeJSON(w, result.StatusCode, result)
		})
		r.Post("/{kind}", func(w http.ResponseWriter, r *http.Request) {
			result := h.CreateHandler(r, chi.URLParam(r, "kind"))
			writeJSON(w, result.StatusCode, result)
		})
		r.Get("/{kind}/{id}", func(w http.ResponseWriter, r *http.Request) {
			result := h.GetHandler(r, chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
			writeJSON(w, result.StatusCode, result)
		})
		r.Patch("/{kind}/{id}", func(w http.ResponseWriter, r *http.Request) {
			result := h.UpdateHandler(r, chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
			writeJSON(w, result.StatusCode, result)
		})
		r.Delete("/{kind}/{id}", func(w http.ResponseWriter, r *http.Request) {
			result := h.DeleteHandler(r, chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
			writeJSON(w, result.StatusCode, result)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
