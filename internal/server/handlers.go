package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ankitpatel990/neuvox/internal/session"
)

// maxRequestBody caps inbound turn payloads. Full conversation histories
// are allowed, but nothing the extractor would keep is beyond this.
const maxRequestBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if r.URL.Query().Get("detail") == "true" {
		count, err := s.store.Count(r.Context())
		components := map[string]string{"session_store": "ok"}
		if err != nil {
			components["session_store"] = "error"
		} else {
			resp["sessions"] = count
		}
		resp["components"] = components
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEngage processes one honeypot turn. Every well-formed request gets
// a well-formed TurnResult: unknown sessions are created, unparsable
// timestamps default to now, empty messages simply extract nothing. Only
// store failures surface as 5xx so the caller retries the whole turn.
func (s *Server) handleEngage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "reading body: "+err.Error())
		return
	}

	req, err := ParseTurnRequest(body, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.orchestrator.HandleTurn(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("turn_failed")
		writeError(w, http.StatusInternalServerError, "internal", "session store error; retry the turn")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	summaries, err := s.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if summaries == nil {
		summaries = []session.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": summaries})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.store.Get(r.Context(), id)
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session "+id+" not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
