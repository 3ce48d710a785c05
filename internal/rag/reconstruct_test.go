package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel is a canned BaseChatModel for reconstruction tests.
type fakeChatModel struct {
	resp       string
	err        error
	calls      int
	lastPrompt string
}

func (f *fakeChatModel) Generate(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	if len(msgs) > 0 {
		f.lastPrompt = msgs[len(msgs)-1].Content
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.resp, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("fakeChatModel: stream not supported")
}

var sampleHistory = []Turn{
	{Role: "user", Content: "Find theses about flood monitoring"},
	{Role: "assistant", Content: "I found two studies on flood monitoring systems at CSPC."},
}

func TestReconstruct_RewritesFollowup(t *testing.T) {
	t.Parallel()

	m := &fakeChatModel{resp: "flood monitoring system thesis authors CSPC"}
	r := NewReconstructor(m)

	got := r.Reconstruct(context.Background(), "who wrote them?", sampleHistory)
	if got != "flood monitoring system thesis authors CSPC" {
		t.Errorf("Reconstruct = %q, want rewritten query", got)
	}
	if m.calls != 1 {
		t.Errorf("model called %d times, want 1", m.calls)
	}
	if !strings.Contains(m.lastPrompt, "who wrote them?") {
		t.Errorf("prompt missing follow-up question:\n%s", m.lastPrompt)
	}
	if !strings.Contains(m.lastPrompt, "User: Find theses about flood monitoring") {
		t.Errorf("prompt missing role-labeled history:\n%s", m.lastPrompt)
	}
}

func TestReconstruct_TooShortFallsBack(t *testing.T) {
	t.Parallel()

	m := &fakeChatModel{resp: "ok"}
	r := NewReconstructor(m)

	got := r.Reconstruct(context.Background(), "who wrote them?", sampleHistory)
	if got != "who wrote them?" {
		t.Errorf("Reconstruct = %q, want original question for 2-rune output", got)
	}
}

func TestReconstruct_TooLongFallsBack(t *testing.T) {
	t.Parallel()

	question := "who wrote them?"
	m := &fakeChatModel{resp: strings.Repeat("x", 4*len(question)+201)}
	r := NewReconstructor(m)

	if got := r.Reconstruct(context.Background(), question, sampleHistory); got != question {
		t.Errorf("Reconstruct = %q, want original question for runaway output", got)
	}
}

func TestReconstruct_ModelErrorFallsBack(t *testing.T) {
	t.Parallel()

	m := &fakeChatModel{err: errors.New("model offline")}
	r := NewReconstructor(m)

	if got := r.Reconstruct(context.Background(), "why?", sampleHistory); got != "why?" {
		t.Errorf("Reconstruct = %q, want original question on model error", got)
	}
}

func TestReconstruct_NoHistorySkipsModel(t *testing.T) {
	t.Parallel()

	m := &fakeChatModel{resp: "should not be used"}
	r := NewReconstructor(m)

	if got := r.Reconstruct(context.Background(), "why?", nil); got != "why?" {
		t.Errorf("Reconstruct = %q, want original question without history", got)
	}
	if m.calls != 0 {
		t.Errorf("model called %d times without history, want 0", m.calls)
	}
}

func TestReconstruct_NilModelFallsBack(t *testing.T) {
	t.Parallel()

	r := NewReconstructor(nil)
	if got := r.Reconstruct(context.Background(), "why?", sampleHistory); got != "why?" {
		t.Errorf("Reconstruct = %q, want original question with nil model", got)
	}
}

func TestReconstruct_TruncatesLongTurns(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 1000)
	m := &fakeChatModel{resp: "rewritten query about long answers"}
	r := NewReconstructor(m)

	r.Reconstruct(context.Background(), "what did it say?", []Turn{
		{Role: "assistant", Content: long},
	})

	if strings.Contains(m.lastPrompt, long) {
		t.Error("prompt contains untruncated 1000-char turn")
	}
	if !strings.Contains(m.lastPrompt, strings.Repeat("a", 300)+"...") {
		t.Error("prompt missing truncated turn content")
	}
}

func TestReconstruct_UsesLastFourTurns(t *testing.T) {
	t.Parallel()

	history := []Turn{
		{Role: "user", Content: "oldest question"},
		{Role: "assistant", Content: "oldest answer"},
		{Role: "user", Content: "recent question"},
		{Role: "assistant", Content: "recent answer"},
		{Role: "user", Content: "latest question"},
		{Role: "assistant", Content: "latest answer"},
	}
	m := &fakeChatModel{resp: "rewritten standalone query"}
	r := NewReconstructor(m)

	r.Reconstruct(context.Background(), "and then?", history)

	if strings.Contains(m.lastPrompt, "oldest question") {
		t.Errorf("prompt includes turns beyond the last four:\n%s", m.lastPrompt)
	}
	for _, want := range []string{"recent question", "recent answer", "latest question", "latest answer"} {
		if !strings.Contains(m.lastPrompt, want) {
			t.Errorf("prompt missing recent turn %q:\n%s", want, m.lastPrompt)
		}
	}
}
