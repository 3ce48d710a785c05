package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/adal-ai/adal-go/internal/logging"
	"github.com/adal-ai/adal-go/internal/store"
)

// msgHistoryUnavailable is the 503 body for all /api/sessions endpoints
// when the server runs without a history store.
const msgHistoryUnavailable = "Chat history unavailable"

// handleSessionCreate handles POST /api/sessions.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, msgHistoryUnavailable)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.history.CreateSession(r.Context(), req.UserID, req.Title)
	if err != nil {
		logging.FromContext(r.Context()).Error("sessions: create failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// handleSessionList handles GET /api/sessions?user_id=. An absent user_id
// lists the anonymous user's sessions.
func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, msgHistoryUnavailable)
		return
	}

	sessions, err := s.history.Sessions(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		logging.FromContext(r.Context()).Error("sessions: list failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	resp := sessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSessionMessages handles GET /api/sessions/{id}/messages, returning
// the full transcript oldest-first.
func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, msgHistoryUnavailable)
		return
	}

	msgs, err := s.history.Messages(r.Context(), r.PathValue("id"))
	if err != nil {
		logging.FromContext(r.Context()).Error("sessions: messages failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}

	resp := messagesResponse{Messages: make([]messageResponse, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageResponse{
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSessionRename handles PATCH /api/sessions/{id}.
func (s *Server) handleSessionRename(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, msgHistoryUnavailable)
		return
	}

	var req renameSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.history.RenameSession(r.Context(), r.PathValue("id"), req.Title)
	if errors.Is(err, store.ErrSessionNotFound) {
		writeJSONError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("sessions: rename failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to rename session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionDelete handles DELETE /api/sessions/{id}. Deleting an
// unknown session succeeds; the end state is the same.
func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, msgHistoryUnavailable)
		return
	}

	if err := s.history.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		logging.FromContext(r.Context()).Error("sessions: delete failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toSessionResponse converts a stored session to its JSON shape.
func toSessionResponse(sess store.Session) sessionResponse {
	return sessionResponse{
		ID:        sess.ID,
		UserID:    sess.UserID,
		Title:     sess.Title,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}
