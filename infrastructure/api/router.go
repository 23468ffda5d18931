// Package api exposes the comms operations as a JSON HTTP API.
package api

import (
	"comms-lab/auth"
	"comms-lab/domain"
	"comms-lab/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Authenticator interface {
	Authenticate(r *http.Request) (domain.Actor, error)
}

type Handler struct {
	log      *slog.Logger
	comms    services.ICommsService
	accounts services.IAuthService
	auth     Authenticator
}

func NewHandler(log *slog.Logger, comms services.ICommsService, accounts services.IAuthService, auth Authenticator) *Handler {
	return &Handler{log: log, comms: comms, accounts: accounts, auth: auth}
}

// NewRouter mounts the API, the health probe and the optional extra routes (the WebSocket endpoint).
func NewRouter(log *slog.Logger, h *Handler, mounts map[string]http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	for pattern, handler := range mounts {
		r.Handle(pattern, handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticated)

			r.Get("/threads", h.listThreads)
			r.Post("/threads", h.createThread)
			r.Get("/threads/{id}", h.getThread)
			r.Post("/threads/{id}/messages", h.createMessage)
			r.Get("/threads/{id}/messages", h.recentMessages)
			r.Post("/threads/{id}/members", h.addMember)
			r.Delete("/threads/{id}/members/{userId}", h.removeMember)
			r.Post("/threads/{id}/admin-join", h.adminJoin)
			r.Post("/threads/{id}/read", h.markRead)
			r.Get("/threads/{id}/unread", h.unreadCount)
			r.Get("/unread", h.totalUnread)
			r.Get("/users", h.listUsers)
		})
	})
	return r
}

// authenticated resolves the bearer token once and stores the actor in the request context.
func (h *Handler) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := h.auth.Authenticate(r)
		if err != nil {
			writeError(h.log, w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
