package chat

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
)

// fragmentMsgs builds assistant messages carrying the given contents.
func fragmentMsgs(parts ...string) []*schema.Message {
	out := make([]*schema.Message, 0, len(parts))
	for _, p := range parts {
		out = append(out, schema.AssistantMessage(p, nil))
	}
	return out
}

// drainStream consumes the stream to its end, returning the concatenated
// fragments and the terminal error (nil for a clean io.EOF).
func drainStream(t *testing.T, s *Stream) (string, error) {
	t.Helper()
	var b strings.Builder
	for {
		frag, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
	}
}

func TestStream_AssemblesFragments(t *testing.T) {
	t.Parallel()

	sr := schema.StreamReaderFromArray(fragmentMsgs("The flood ", "monitoring ", "study"))
	s := newStream(sr, StreamConfig{}, nil)

	got, err := drainStream(t, s)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got != "The flood monitoring study" {
		t.Errorf("assembled = %q", got)
	}
	if s.Text() != got {
		t.Errorf("Text() = %q, want %q", s.Text(), got)
	}

	stats := s.Stats()
	if stats.Fragments != 3 {
		t.Errorf("Fragments = %d, want 3", stats.Fragments)
	}
	if stats.Chars != len("The flood monitoring study") {
		t.Errorf("Chars = %d, want %d", stats.Chars, len("The flood monitoring study"))
	}
	if stats.Warning != "" {
		t.Errorf("Warning = %q, want empty", stats.Warning)
	}
}

func TestStream_SkipsEmptyFragments(t *testing.T) {
	t.Parallel()

	sr := schema.StreamReaderFromArray(fragmentMsgs("", "a", "", "b"))
	s := newStream(sr, StreamConfig{}, nil)

	got, err := drainStream(t, s)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got != "ab" {
		t.Errorf("assembled = %q, want \"ab\"", got)
	}
	if s.Stats().Fragments != 2 {
		t.Errorf("Fragments = %d, want 2 (empties skipped)", s.Stats().Fragments)
	}
}

func TestStream_FragmentCapTruncates(t *testing.T) {
	t.Parallel()

	sr := schema.StreamReaderFromArray(fragmentMsgs("x", "x", "x", "x", "x"))
	s := newStream(sr, StreamConfig{MaxFragments: 3}, nil)

	got, err := drainStream(t, s)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got != "xxx" {
		t.Errorf("assembled = %q, want \"xxx\"", got)
	}

	stats := s.Stats()
	if stats.Warning != WarningTooLong {
		t.Errorf("Warning = %q, want %q", stats.Warning, WarningTooLong)
	}
	if stats.Fragments != 3 {
		t.Errorf("Fragments = %d, want 3", stats.Fragments)
	}
}

func TestStream_IdleTimeoutKeepsPartial(t *testing.T) {
	t.Parallel()

	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		sw.Send(schema.AssistantMessage("partial answer", nil), nil)
		// Never send again: the stream must cut itself off.
	}()

	s := newStream(sr, StreamConfig{IdleTimeout: 50 * time.Millisecond}, nil)

	got, err := drainStream(t, s)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got != "partial answer" {
		t.Errorf("assembled = %q, want the partial answer", got)
	}
	if s.Stats().Warning != WarningTimeout {
		t.Errorf("Warning = %q, want %q", s.Stats().Warning, WarningTimeout)
	}
}

func TestStream_MidStreamErrorKeepsPartial(t *testing.T) {
	t.Parallel()

	sr, sw := schema.Pipe[*schema.Message](2)
	go func() {
		sw.Send(schema.AssistantMessage("Hello", nil), nil)
		sw.Send(nil, errors.New("backend exploded"))
		sw.Close()
	}()

	s := newStream(sr, StreamConfig{}, nil)

	got, err := drainStream(t, s)
	if err == nil {
		t.Fatal("drain returned nil error, want the mid-stream failure")
	}
	if !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("error = %v, want the model failure", err)
	}
	if got != "Hello" {
		t.Errorf("assembled = %q, want the partial answer", got)
	}
	if s.Stats().Fragments != 1 {
		t.Errorf("Fragments = %d, want 1", s.Stats().Fragments)
	}
}

func TestStream_CloseKeepsPartialAndFiresHook(t *testing.T) {
	t.Parallel()

	var (
		hookCalls int
		hookText  string
		hookStats Stats
	)
	sr := schema.StreamReaderFromArray(fragmentMsgs("one ", "two ", "three"))
	s := newStream(sr, StreamConfig{}, func(text string, stats Stats) {
		hookCalls++
		hookText = text
		hookStats = stats
	})

	frag, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if frag != "one " {
		t.Fatalf("Recv = %q, want \"one \"", frag)
	}

	s.Close()
	if hookCalls != 1 {
		t.Fatalf("finish hook ran %d times, want 1", hookCalls)
	}
	if hookText != "one " {
		t.Errorf("hook text = %q, want the partial answer", hookText)
	}
	if hookStats.Fragments != 1 {
		t.Errorf("hook stats fragments = %d, want 1", hookStats.Fragments)
	}

	if _, err := s.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("Recv after Close = %v, want io.EOF", err)
	}
	s.Close()
	if hookCalls != 1 {
		t.Errorf("finish hook ran %d times after double Close, want 1", hookCalls)
	}
}

func TestStream_HookRunsOnCleanFinish(t *testing.T) {
	t.Parallel()

	var (
		hookCalls int
		hookText  string
	)
	sr := schema.StreamReaderFromArray(fragmentMsgs("full ", "answer"))
	s := newStream(sr, StreamConfig{}, func(text string, _ Stats) {
		hookCalls++
		hookText = text
	})

	if _, err := drainStream(t, s); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if hookCalls != 1 {
		t.Fatalf("finish hook ran %d times, want 1", hookCalls)
	}
	if hookText != "full answer" {
		t.Errorf("hook text = %q, want the full answer", hookText)
	}

	// The usual caller pattern closes after draining; the hook must not
	// run again.
	s.Close()
	if hookCalls != 1 {
		t.Errorf("finish hook ran %d times after Close, want 1", hookCalls)
	}
}

func TestStream_CountsRunesNotBytes(t *testing.T) {
	t.Parallel()

	sr := schema.StreamReaderFromArray(fragmentMsgs("kumusta pô"))
	s := newStream(sr, StreamConfig{}, nil)

	if _, err := drainStream(t, s); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got := s.Stats().Chars; got != 10 {
		t.Errorf("Chars = %d, want 10 runes", got)
	}
}
