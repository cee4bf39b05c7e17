package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/oraculum/oraculum/internal/observability"
	"github.com/oraculum/oraculum/pkg/chat"
	"github.com/oraculum/oraculum/pkg/completion"
)

// fallbackReply is returned to the client whenever the completion gateway
// fails. The raw upstream error never leaves the process.
const fallbackReply = "The cards are silent right now. Ask again in a moment."

// maxBodyBytes bounds the /chat request body.
const maxBodyBytes = 1 << 20

// handleRoot serves the liveness payload. The "/" pattern catches every
// unknown path, so anything else is the route-level 404.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setCORSHeaders(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "NotFound", "Unknown route")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusNotFound, "NotFound", "Unknown route")
		return
	}

	s.writeJSON(w, http.StatusOK, StatusResponse{
		Status:     "online",
		Name:       "oraculum",
		Version:    s.options.Version,
		InstanceID: s.instanceID,
	})
}

// handleHealth serves the health payload, no auth required.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusNotFound, "NotFound", "Unknown route")
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Uptime:   time.Since(s.startTime).Seconds(),
		Sessions: s.store.Len(),
	})
}

// authorize compares the x-app-key header against the configured secret in
// constant time.
func (s *Server) authorize(r *http.Request) bool {
	key := r.Header.Get("x-app-key")
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.options.AppKey)) == 1
}

// handleChat processes one chat request end to end.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method == http.MethodOptions {
		setCORSHeaders(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusNotFound, "NotFound", "Unknown route")
		return
	}

	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		s.writeError(w, http.StatusServiceUnavailable, "Unavailable", "Server is shutting down")
		return
	}
	s.shutdownMu.RUnlock()

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	requestID, _ := gonanoid.New()
	logger := s.logger.With().Str("request_id", requestID).Logger()

	if !s.authorize(r) {
		logger.Warn().Str("path", r.URL.Path).Msg("Invalid application key")
		observability.RecordChatRequest("unauthorized")
		s.writeError(w, http.StatusForbidden, "Forbidden", "Invalid application key")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read request body")
		observability.RecordChatRequest("invalid")
		s.writeError(w, http.StatusBadRequest, "InvalidInput", "Unreadable request body")
		return
	}

	if err := validateChatBody(s.chatSchema, body); err != nil {
		logger.Warn().Err(err).Msg("Chat request failed schema validation")
		observability.RecordChatRequest("invalid")
		s.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
		return
	}

	req, err := decodeChatRequest(body)
	if err != nil {
		observability.RecordChatRequest("invalid")
		s.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
		return
	}

	if req.EndSession {
		if err := s.manager.EndSession(req.SessionID); err != nil {
			observability.RecordChatRequest("invalid")
			s.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
			return
		}
		logger.Info().Str("session_id", req.SessionID).Msg("Session ended by client")
		observability.RecordChatRequest("end_session")
		s.writeJSON(w, http.StatusOK, EndResponse{Success: true})
		return
	}

	reply, err := s.manager.HandleChat(r.Context(), req.SessionID, req.Message)
	duration := time.Since(startTime).Milliseconds()

	if err != nil {
		s.respondChatError(w, logger, req.SessionID, duration, err)
		return
	}

	logger.Info().
		Str("session_id", req.SessionID).
		Int64("duration", duration).
		Msg("Chat request completed")
	observability.RecordChatRequest("success")

	s.writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

// decodeChatRequest unmarshals the already schema-validated body and folds
// the messages array variant down to the primary single-message form: the
// last user entry becomes the message.
func decodeChatRequest(body []byte) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON body")
	}

	if req.Message == "" && len(req.Messages) > 0 {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == "user" {
				req.Message = req.Messages[i].Content
				break
			}
		}
	}

	return &req, nil
}

// respondChatError maps manager failures onto the error taxonomy. Upstream
// detail is logged, never surfaced.
func (s *Server) respondChatError(w http.ResponseWriter, logger zerolog.Logger, sessionID string, duration int64, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		observability.RecordChatRequest("invalid")
		s.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())

	case completion.IsTimeout(err):
		logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Int64("duration", duration).
			Msg("Completion gateway timed out")
		observability.RecordChatRequest("timeout")
		s.writeError(w, http.StatusGatewayTimeout, "UpstreamTimeout", fallbackReply)

	default:
		logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Int64("duration", duration).
			Msg("Chat request failed")
		observability.RecordChatRequest("upstream_error")
		s.writeError(w, http.StatusInternalServerError, "UpstreamFailure", fallbackReply)
	}
}
