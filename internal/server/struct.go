package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adal-ai/adal-go/internal/chat"
	"github.com/adal-ai/adal-go/internal/rag"
	"github.com/adal-ai/adal-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds one /api/chat request end to end, generation
	// streaming included. Kept under WriteTimeout so the terminal SSE event
	// still reaches the client after a timeout. Defaults to 4 minutes.
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// SearchTopK is the result count for POST /api/search when the request
	// does not carry its own k. Defaults to [rag.DefaultTopK].
	SearchTopK int
	// MetricsRegistry receives the server's metric registrations. Defaults
	// to prometheus.DefaultRegisterer. Tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Deps are the backend collaborators the server exposes over HTTP.
// Chat is required. Index and History may be nil: their endpoints then
// answer 503 and the chat path runs in its degraded mode.
type Deps struct {
	// Chat answers questions over the retrieval pipeline.
	Chat *chat.Service
	// Index serves POST /api/search.
	Index rag.VectorIndex
	// History serves the /api/sessions endpoints.
	History store.HistoryStore
}

// Server is the HTTP server exposing the thesis assistant's REST/SSE API.
type Server struct {
	// chat is the answer pipeline behind POST /api/chat.
	chat *chat.Service
	// index is the vector index behind POST /api/search; nil when the index
	// could not be built.
	index rag.VectorIndex
	// history is the session store behind /api/sessions; nil when history
	// is disabled.
	history store.HistoryStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's question.
	Message string `json:"message"`
	// SessionID selects the conversation whose history seeds the prompt and
	// which receives the finished exchange. Empty means stateless.
	SessionID string `json:"session_id,omitempty"`
}

// tokenEvent is one SSE data frame carrying an answer fragment.
type tokenEvent struct {
	// Token is the fragment text.
	Token string `json:"token"`
}

// doneEvent is the terminal SSE event payload for a completed answer.
type doneEvent struct {
	// Fragments is the number of fragments streamed.
	Fragments int `json:"fragments"`
	// Chars is the answer length in runes.
	Chars int `json:"chars"`
	// ElapsedMS is the stream duration in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms"`
	// Warning carries the safety-limit code when one fired ("response_too_long",
	// "stream_timeout"). Empty on a clean finish.
	Warning string `json:"warning,omitempty"`
}

// errorEvent is the terminal SSE event payload for a failed stream.
type errorEvent struct {
	// Error is the user-safe failure message. Detail stays in the logs.
	Error string `json:"error"`
}

// errorResponse is the JSON body for non-streaming error responses.
type errorResponse struct {
	// Error is the client-facing message.
	Error string `json:"error"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the text to search the index for.
	Query string `json:"query"`
	// K is the requested result count. Zero means the server default.
	K int `json:"k,omitempty"`
}

// searchResult is one retrieved document in a search response.
type searchResult struct {
	// Content is the chunk text.
	Content string `json:"content"`
	// Source is the originating document path.
	Source string `json:"source"`
	// Page is the page number, 0 when unknown.
	Page int `json:"page,omitempty"`
	// ContentType distinguishes abstracts from body text.
	ContentType string `json:"content_type,omitempty"`
	// Chapter is the chapter number, 0 when unknown.
	Chapter int `json:"chapter,omitempty"`
	// Score is the distance reported by the index (lower is more similar).
	Score float32 `json:"score"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Results holds the retrieved documents, most relevant first.
	Results []searchResult `json:"results"`
}

// createSessionRequest is the JSON body for POST /api/sessions.
type createSessionRequest struct {
	// UserID is the owning user. Empty means the anonymous user.
	UserID string `json:"user_id,omitempty"`
	// Title is the display title; empty defaults server-side.
	Title string `json:"title,omitempty"`
}

// renameSessionRequest is the JSON body for PATCH /api/sessions/{id}.
type renameSessionRequest struct {
	// Title is the new display title.
	Title string `json:"title"`
}

// sessionResponse is the JSON shape of one chat session.
type sessionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// sessionsResponse is the JSON response for GET /api/sessions.
type sessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

// messageResponse is the JSON shape of one conversation message.
type messageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// messagesResponse is the JSON response for GET /api/sessions/{id}/messages.
type messagesResponse struct {
	Messages []messageResponse `json:"messages"`
}
