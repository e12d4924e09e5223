package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/store"
)

type pageData struct {
	Session       SessionView
	Authenticated bool
	ReadOnly      bool
	Version       string
	AuthNotice    string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	conv := s.cfg.Manager.Conversation(clientKeyFrom(r))
	data := pageData{
		Session:       sessionView(conv.Snapshot()),
		Authenticated: s.cfg.Context.HasToken(),
		ReadOnly:      s.cfg.ReadOnly,
		Version:       s.cfg.Version,
		AuthNotice:    chat.AuthNotice,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("failed to render chat page", logging.Err(err))
	}
}

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv := s.cfg.Manager.Conversation(clientKeyFrom(r))
	reply, err := conv.Send(r.Context(), req.Message, nil)
	if errors.Is(err, chat.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if reply == nil && err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Model failures are part of the transcript; the session continues.
	writeJSON(w, http.StatusOK, messageResponse(conv, reply, err))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conv := s.cfg.Manager.Conversation(clientKeyFrom(r))
	writeJSON(w, http.StatusOK, sessionView(conv.Snapshot()))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	conv := s.cfg.Manager.Conversation(clientKeyFrom(r))
	res, err := conv.End(r.Context())
	if err != nil {
		s.logger.Warn("failed to save session", logging.Session(conv.SessionID()), logging.Err(err))
		writeJSON(w, http.StatusServiceUnavailable, EndResponse{Error: err.Error(), Warning: saveWarning})
		return
	}
	writeJSON(w, http.StatusOK, EndResponse{EndResult: res})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sums, err := s.cfg.Store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sums, "count": len(sums)})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	doc, err := s.cfg.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
