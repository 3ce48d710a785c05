package chat

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

// Stream safety limits. Both guard against a runaway or stalled generation
// call; hitting either ends the stream cleanly with a warning code instead
// of an error, keeping the output accumulated so far.
const (
	// DefaultMaxFragments caps how many content fragments one answer may emit.
	DefaultMaxFragments = 4096

	// DefaultIdleTimeout bounds the wait for the next content fragment.
	DefaultIdleTimeout = 60 * time.Second
)

// Warning codes recorded in Stats when a safety limit ends the stream early.
const (
	// WarningTooLong marks an answer cut off at the fragment cap.
	WarningTooLong = "response_too_long"

	// WarningTimeout marks an answer cut off by the idle timeout.
	WarningTimeout = "stream_timeout"
)

// StreamConfig tunes the per-answer stream limits. Zero values mean defaults.
type StreamConfig struct {
	// MaxFragments caps the fragment count per answer.
	MaxFragments int

	// IdleTimeout bounds the wait between consecutive content fragments.
	IdleTimeout time.Duration
}

func (cfg *StreamConfig) applyDefaults() {
	if cfg.MaxFragments <= 0 {
		cfg.MaxFragments = DefaultMaxFragments
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
}

// Stats summarizes a finished answer stream.
type Stats struct {
	// Fragments is the number of non-empty content fragments received.
	Fragments int

	// Chars is the rune length of the assembled answer.
	Chars int

	// Elapsed is the wall-clock time from stream creation to its end.
	Elapsed time.Duration

	// Warning names the safety limit that ended the stream early, if any.
	Warning string
}

// recvItem carries one pump result: a model fragment or a terminal error.
type recvItem struct {
	msg *schema.Message
	err error
}

// Stream is a pull-based view over a streaming model response with the
// safety limits applied. Recv returns answer fragments until io.EOF or an
// error; Close abandons the stream early. A Stream is single-consumer:
// Recv and Close must be called from one goroutine.
type Stream struct {
	sr  *schema.StreamReader[*schema.Message]
	cfg StreamConfig

	items chan recvItem
	stop  chan struct{}

	start     time.Time
	fragments int
	chars     int
	text      strings.Builder

	finished bool
	once     sync.Once
	stats    Stats

	// onFinish runs exactly once when the stream ends for any reason,
	// receiving the assembled answer (possibly partial) and final stats.
	onFinish func(text string, stats Stats)
}

// newStream wraps a model response reader. onFinish may be nil.
func newStream(sr *schema.StreamReader[*schema.Message], cfg StreamConfig, onFinish func(string, Stats)) *Stream {
	cfg.applyDefaults()
	s := &Stream{
		sr:       sr,
		cfg:      cfg,
		items:    make(chan recvItem),
		stop:     make(chan struct{}),
		start:    time.Now(),
		onFinish: onFinish,
	}
	go s.pump()
	return s
}

// pump moves fragments from the model reader onto the items channel. It
// exits after forwarding a terminal error, or via stop when the consumer
// finished first and nobody is left to receive.
func (s *Stream) pump() {
	for {
		msg, err := s.sr.Recv()
		select {
		case s.items <- recvItem{msg: msg, err: err}:
			if err != nil {
				return
			}
		case <-s.stop:
			return
		}
	}
}

// Recv returns the next non-empty answer fragment. It returns io.EOF when
// the model finishes or a safety limit ends the stream, and a non-nil error
// when the model call fails mid-answer. After a terminal return every later
// call returns io.EOF. An answer that reaches the fragment cap is reported
// as truncated even if the model happened to finish at the same boundary.
func (s *Stream) Recv() (string, error) {
	if s.finished {
		return "", io.EOF
	}
	if s.fragments >= s.cfg.MaxFragments {
		s.finish(WarningTooLong)
		return "", io.EOF
	}

	timer := time.NewTimer(s.cfg.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case it := <-s.items:
			if it.err != nil {
				s.finish("")
				if errors.Is(it.err, io.EOF) {
					return "", io.EOF
				}
				return "", fmt.Errorf("chat: stream receive failed: %w", it.err)
			}
			if it.msg == nil || it.msg.Content == "" {
				continue
			}
			s.fragments++
			s.chars += utf8.RuneCountInString(it.msg.Content)
			s.text.WriteString(it.msg.Content)
			return it.msg.Content, nil
		case <-timer.C:
			s.finish(WarningTimeout)
			return "", io.EOF
		}
	}
}

// Close abandons the stream and cancels the underlying model read. The
// answer assembled so far and the final stats stay available. Calling Close
// after Recv returned io.EOF is a no-op.
func (s *Stream) Close() {
	s.finish("")
}

// Stats reports the totals of a finished stream. The zero value is returned
// while the stream is still live.
func (s *Stream) Stats() Stats {
	return s.stats
}

// Text returns the answer assembled so far: complete once the stream
// finished cleanly, partial if it was cut off or failed mid-answer.
func (s *Stream) Text() string {
	return s.text.String()
}

// finish records final stats, tears the pump down, and fires onFinish.
// Only the first call's warning is kept.
func (s *Stream) finish(warning string) {
	s.once.Do(func() {
		s.finished = true
		s.stats = Stats{
			Fragments: s.fragments,
			Chars:     s.chars,
			Elapsed:   time.Since(s.start),
			Warning:   warning,
		}
		close(s.stop)
		s.sr.Close()
		if s.onFinish != nil {
			s.onFinish(s.text.String(), s.stats)
		}
	})
}
