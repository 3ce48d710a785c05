package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/adal-ai/adal-go/internal/logging"
)

const (
	// reconstructTurns is how many trailing history turns are folded into
	// the rewrite prompt (two full exchanges).
	reconstructTurns = 4

	// reconstructTurnLimit truncates each turn's content to bound the
	// rewrite prompt's size.
	reconstructTurnLimit = 300

	// reconstructMinRunes rejects model outputs too short to be a real query.
	reconstructMinRunes = 3
)

// reconstructPrompt asks the model to rewrite a follow-up question as a
// standalone search query. The reply must be the query alone so it can be
// fed to the vector index without further parsing.
const reconstructPrompt = `Given the conversation below, rewrite the final user question as a single standalone search query for a thesis document database. Resolve pronouns and references using the conversation. Reply with the rewritten query only, no explanations.

Conversation:
%s
Follow-up question: %s

Standalone query:`

// Reconstructor rewrites follow-up questions into standalone search queries
// by folding in recent conversation turns. It is strictly best-effort: any
// model failure or implausible output falls back to the original question,
// so reconstruction can never break the chat flow.
type Reconstructor struct {
	// model handles the single non-streaming rewrite call.
	model model.BaseChatModel
}

// NewReconstructor wraps the given chat model. A nil model yields a
// Reconstructor that always returns the original question.
func NewReconstructor(m model.BaseChatModel) *Reconstructor {
	return &Reconstructor{model: m}
}

// Reconstruct returns a standalone version of the question informed by the
// most recent history turns. It never fails: on any error the original
// question is returned unchanged.
func (r *Reconstructor) Reconstruct(ctx context.Context, question string, history []Turn) string {
	if r == nil || r.model == nil || len(history) == 0 {
		return question
	}
	log := logging.FromContext(ctx)

	recent := history
	if len(recent) > reconstructTurns {
		recent = recent[len(recent)-reconstructTurns:]
	}
	var b strings.Builder
	for _, t := range recent {
		b.WriteString(roleLabel(t.Role))
		b.WriteString(": ")
		b.WriteString(truncateRunes(t.Content, reconstructTurnLimit))
		b.WriteString("\n")
	}

	prompt := fmt.Sprintf(reconstructPrompt, b.String(), question)
	resp, err := r.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		log.Warn("rag: query reconstruction failed, using original question",
			slog.String("error", err.Error()),
		)
		return question
	}

	rewritten := strings.TrimSpace(resp.Content)
	if !plausibleQuery(rewritten, question) {
		log.Debug("rag: discarding implausible reconstruction",
			slog.Int("rewritten_len", len(rewritten)),
		)
		return question
	}

	log.Debug("rag: reconstructed follow-up question",
		slog.String("query", rewritten),
	)
	return rewritten
}

// plausibleQuery bounds the rewritten query's length. Too short means the
// model returned filler; far longer than the question it came from means
// the model went off-script and answered instead of rewriting.
func plausibleQuery(rewritten, original string) bool {
	if utf8.RuneCountInString(rewritten) < reconstructMinRunes {
		return false
	}
	if len(rewritten) > 4*len(original)+200 {
		return false
	}
	return true
}

// truncateRunes shortens s to at most limit runes, marking the cut.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

// roleLabel renders a history role for the rewrite prompt.
func roleLabel(role string) string {
	if role == "assistant" {
		return "Assistant"
	}
	return "User"
}
