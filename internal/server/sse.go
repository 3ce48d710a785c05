package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// sseWriter writes Server-Sent Events frames, flushing after each one so
// fragments reach the client as they are generated rather than when the
// response buffer fills.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter
	// flusher pushes buffered data to the client after each frame.
	flusher http.Flusher
}

// newSSEWriter sets the streaming response headers on w and returns the
// writer. Fails when the ResponseWriter cannot flush.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("server: response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &sseWriter{w: w, flusher: flusher}, nil
}

// sendData writes one unnamed data frame carrying the JSON encoding of v.
func (s *sseWriter) sendData(v any) error {
	return s.send("", v)
}

// sendEvent writes one named event frame carrying the JSON encoding of v.
func (s *sseWriter) sendEvent(event string, v any) error {
	return s.send(event, v)
}

// send writes a single SSE frame. JSON payloads never contain raw newlines
// (the encoder escapes them), so one data line is always a valid frame.
func (s *sseWriter) send(event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("server: encoding sse payload: %w", err)
	}

	var buf strings.Builder
	if event != "" {
		buf.WriteString("event: ")
		buf.WriteString(event)
		buf.WriteString("\n")
	}
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")

	if _, err := fmt.Fprint(s.w, buf.String()); err != nil {
		return fmt.Errorf("server: writing sse frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}
