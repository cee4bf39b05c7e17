package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/oraculum/oraculum/internal/observability"
	"github.com/oraculum/oraculum/pkg/chat"
	"github.com/oraculum/oraculum/pkg/conversation"
)

// Server is the public chat API server.
type Server struct {
	options        ServerOptions
	server         *http.Server
	manager        *chat.Manager
	store          *conversation.Store
	chatSchema     *gojsonschema.Schema
	logger         zerolog.Logger
	instanceID     string
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new API server.
func NewServer(options ServerOptions, manager *chat.Manager, store *conversation.Store, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 3000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.Timeout == 0 {
		options.Timeout = 30 * time.Second
	}
	if options.AppKey == "" {
		return nil, fmt.Errorf("app key is required")
	}
	if manager == nil {
		return nil, fmt.Errorf("chat manager is required")
	}
	if store == nil {
		return nil, fmt.Errorf("conversation store is required")
	}

	schema, err := compileChatSchema()
	if err != nil {
		return nil, err
	}

	return &Server{
		options:    options,
		manager:    manager,
		store:      store,
		chatSchema: schema,
		logger:     logger,
		instanceID: uuid.NewString(),
		startTime:  time.Now(),
	}, nil
}

// Handler returns the routing handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/chat", s.handleChat)
	mux.Handle("/metrics", observability.MetricsHandler())
	return mux
}

// Start starts the server and blocks until it is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server, waiting for in-flight requests.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down API server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(s.options.Timeout):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown API server: %w", err)
		}
	}

	s.logger.Info().Msg("API server stopped")
	return nil
}

// writeJSON serializes a JSON response with CORS headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.logger.Error().Err(err).Msg("Failed to encode response")
		}
	}
}

// writeError serializes an error payload. Raw internal details never reach
// the client; callers pass pre-sanitized messages.
func (s *Server) writeError(w http.ResponseWriter, status int, category, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: category, Message: message})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-app-key")
}
