// Package budget provides token budget estimation and history trimming for
// the chat pipeline. Because adal supports multiple LLM backends with
// different tokenizers, token counts are estimated with a character
// heuristic (1 token ≈ 4 characters of English prose) rather than any
// model-specific tokenizer.
package budget

import (
	"github.com/adal-ai/adal-go/internal/rag"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	// 4 chars/token is typical for English prose.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Sized so the system prompt, retrieved thesis excerpts, and history fit
	// within 8k-context models while leaving room for the 2048-token answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateTurns returns the estimated total token count for a slice of
// conversation turns, summing role label + content for each turn.
func EstimateTurns(turns []rag.Turn) int {
	total := 0
	for _, turn := range turns {
		// Each turn has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(turn.Role)
		total += Estimate(turn.Content)
	}
	return total
}

// TrimHistory removes the oldest turns from history until fixedTokens plus
// the estimated history cost fits within maxTokens. fixedTokens covers the
// prompt parts that must not be trimmed (system prompt, retrieved context,
// current question).
//
// Returns the trimmed history slice. If even an empty history exceeds the
// budget, the empty slice is returned (the fixed parts are never dropped
// here — callers should warn separately if fixed alone exceeds the budget).
func TrimHistory(fixedTokens int, history []rag.Turn, maxTokens int) []rag.Turn {
	if len(history) == 0 {
		return history
	}

	// History is typically ≤10 turns here; a linear scan dropping from the
	// front is clear and correct.
	for len(history) > 0 {
		if fixedTokens+EstimateTurns(history) <= maxTokens {
			break
		}
		history = history[1:]
	}
	return history
}
