package api

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type createUserRequest struct {
	Name string `json:"name" validate:"required,min=1,max=64"`
}

type messagesResponse struct {
	Messages []domain.MessageRecord `json:"messages"`
	Cursor   *string                `json:"cursor"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// listUsers returns every user except the one named by the ignore query
// parameter. Without the parameter the full directory is returned.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	ignore := int64(0)
	if raw := r.URL.Query().Get("ignore"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "ignore must be an integer")
			return
		}
		ignore = parsed
	}

	users, err := s.users.ListUsers(domain.UserID(ignore))
	if err != nil {
		s.log.Error("failed to list users", "error", err)
		s.respondError(w, http.StatusInternalServerError, "directory unavailable")
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	s.respond(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.users.CreateUser(req.Name)
	if err != nil {
		s.log.Error("failed to create user", "name", req.Name, "error", err)
		s.respondError(w, http.StatusInternalServerError, "directory unavailable")
		return
	}
	s.respond(w, http.StatusCreated, user)
}

// listMessages returns the messages a user sent or received, newest first,
// with cursor pagination.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	if _, err := s.users.FindUser(domain.UserID(id)); err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			s.respondError(w, http.StatusNotFound, errors.ErrUserNotFound.Error())
			return
		}
		s.log.Error("directory lookup failed", "id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "directory unavailable")
		return
	}

	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}

	records, next, err := s.messages.ListForUser(domain.UserID(id), cursor)
	if err != nil {
		s.log.Error("failed to list messages", "id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if records == nil {
		records = []domain.MessageRecord{}
	}
	s.respond(w, http.StatusOK, messagesResponse{Messages: records, Cursor: next})
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, errorResponse{Error: msg})
}
