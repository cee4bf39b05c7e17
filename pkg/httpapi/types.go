package httpapi

import (
	"time"
)

// ServerOptions configures the API server
type ServerOptions struct {
	Port    int           // Server port (default: 3000)
	Host    string        // Server host (default: "0.0.0.0")
	AppKey  string        // Shared secret expected in the x-app-key header
	Timeout time.Duration // Per-request handling timeout (default: 30s)
	Version string        // Reported by GET /
}

// ChatRequest is the POST /chat body. The single-message form is primary;
// a messages array variant is accepted, in which case the last user entry
// is used.
type ChatRequest struct {
	SessionID  string        `json:"sessionId"`
	Message    string        `json:"message,omitempty"`
	Messages   []ChatMessage `json:"messages,omitempty"`
	EndSession bool          `json:"endSession,omitempty"`
}

// ChatMessage is one entry of the messages array variant.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the success payload of POST /chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// EndResponse acknowledges an endSession request.
type EndResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the error payload for every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusResponse is the GET / payload.
type StatusResponse struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	InstanceID string `json:"instanceId"`
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status   string  `json:"status"`
	Uptime   float64 `json:"uptime"`
	Sessions int     `json:"sessions"`
}
