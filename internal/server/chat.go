package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adal-ai/adal-go/internal/chat"
	"github.com/adal-ai/adal-go/internal/logging"
	"github.com/adal-ai/adal-go/internal/moderation"
)

// Chat outcome label values for the request counter and duration histogram.
const (
	outcomeOK        = "ok"
	outcomeTimeout   = "timeout"
	outcomeTruncated = "truncated"
	outcomeAborted   = "aborted"
	outcomeError     = "error"
)

// Fixed client-facing failure messages. The underlying error detail is
// logged server-side and never sent to the client.
const (
	msgTimeout = "The response took too long. Please try again."
	msgBusy    = "The service is busy right now. Please try again in a moment."
	msgGeneric = "An error occurred while processing your request."
)

// busyPhrases are substrings seen in provider rate-limit and quota errors.
// Provider SDKs surface 429s as opaque strings, so matching text is the
// only cross-provider signal available.
var busyPhrases = []string{"429", "rate limit", "resource exhausted", "quota"}

// handleChat handles POST /api/chat. The answer streams as Server-Sent
// Events: one data frame {"token": ...} per fragment, then a terminal
// "done" event carrying the stream stats, or an "error" event with a
// user-safe message. Validation and moderation failures are plain JSON
// errors since nothing has streamed yet.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "Message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	start := time.Now()
	stream, err := s.chat.Ask(ctx, chat.Request{Question: req.Message, SessionID: req.SessionID})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyQuestion):
			writeJSONError(w, http.StatusBadRequest, "Message is required")
		case errors.Is(err, chat.ErrBlocked):
			s.metrics.moderationBlockedTotal.Inc()
			writeJSONError(w, http.StatusBadRequest, moderation.BlockedMessage)
		default:
			log.Error("chat: pipeline failed before streaming", slog.Any("error", err))
			s.observeChat(outcomeError, start)
			writeJSONError(w, http.StatusInternalServerError, msgGeneric)
		}
		return
	}
	// Close is idempotent; on early return it ends the stream and hands the
	// partial answer to the recorder.
	defer stream.Close()

	sse, err := newSSEWriter(w)
	if err != nil {
		log.Error("chat: streaming unsupported", slog.Any("error", err))
		s.observeChat(outcomeError, start)
		writeJSONError(w, http.StatusInternalServerError, msgGeneric)
		return
	}

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()

	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error("chat: stream failed mid-answer", slog.Any("error", err))
			outcome := outcomeError
			if errors.Is(err, context.DeadlineExceeded) {
				outcome = outcomeTimeout
			}
			s.observeChat(outcome, start)
			_ = sse.sendEvent("error", errorEvent{Error: userSafeError(err)})
			return
		}
		if err := sse.sendData(tokenEvent{Token: frag}); err != nil {
			// The client went away; the deferred Close persists the partial
			// answer.
			log.Warn("chat: client write failed, aborting stream", slog.Any("error", err))
			s.observeChat(outcomeAborted, start)
			return
		}
	}

	stats := stream.Stats()
	outcome := outcomeOK
	switch stats.Warning {
	case chat.WarningTooLong:
		outcome = outcomeTruncated
	case chat.WarningTimeout:
		outcome = outcomeTimeout
	}
	s.observeChat(outcome, start)

	_ = sse.sendEvent("done", doneEvent{
		Fragments: stats.Fragments,
		Chars:     stats.Chars,
		ElapsedMS: stats.Elapsed.Milliseconds(),
		Warning:   stats.Warning,
	})
}

// observeChat records one completed chat request under the given outcome.
func (s *Server) observeChat(outcome string, start time.Time) {
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// userSafeError maps a stream failure to the fixed message sent to the
// client.
func userSafeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimeout
	}
	lower := strings.ToLower(err.Error())
	for _, phrase := range busyPhrases {
		if strings.Contains(lower, phrase) {
			return msgBusy
		}
	}
	return msgGeneric
}
