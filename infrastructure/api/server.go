// Package api exposes user management and message history over HTTP.
// The WebSocket endpoint is mounted here as well so the process serves a
// single listener.
package api

import (
	"log/slog"
	"net/http"

	"chat-relay/repositories"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type Server struct {
	log      *slog.Logger
	users    repositories.IUserRepository
	messages repositories.IMessageRepository
	validate *validator.Validate
}

func NewServer(log *slog.Logger, users repositories.IUserRepository,
	messages repositories.IMessageRepository) *Server {
	return &Server{
		log:      log,
		users:    users,
		messages: messages,
		validate: validator.New(),
	}
}

// Routes wires all endpoints. The chat handler is passed in because the
// transport layer owns it; everything else is served by this package.
func (s *Server) Routes(chat http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Get("/", s.listUsers)
		r.Post("/", s.createUser)
		r.Get("/{id}/messages", s.listMessages)
	})

	r.Method(http.MethodGet, "/chat", chat)
	return r
}
