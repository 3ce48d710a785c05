// Package chat answers thesis questions over the retrieval pipeline:
// moderation, follow-up reconstruction, adaptive retrieval, context
// assembly, and a streaming generation call, assembled once at startup and
// shared across requests.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/adal-ai/adal-go/internal/budget"
	"github.com/adal-ai/adal-go/internal/logging"
	"github.com/adal-ai/adal-go/internal/moderation"
	"github.com/adal-ai/adal-go/internal/rag"
	"github.com/adal-ai/adal-go/internal/store"
)

// Sentinel errors returned by Ask before any streaming starts. Callers map
// them to client-facing responses.
var (
	// ErrEmptyQuestion rejects blank input.
	ErrEmptyQuestion = errors.New("chat: question is empty")

	// ErrBlocked rejects questions that fail the moderation gate.
	ErrBlocked = errors.New("chat: question blocked by moderation")
)

// DefaultHistoryDepth is the number of prior exchanges (user + assistant
// pairs) folded into the answer prompt.
const DefaultHistoryDepth = 5

// Retriever yields the documents injected as answer context.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]rag.Document, error)
}

// HistoryReader supplies recent conversation turns for prompt context.
type HistoryReader interface {
	Recent(ctx context.Context, sessionID string, n int) ([]store.Message, error)
}

// Config holds the dependencies for a chat Service.
type Config struct {
	// Model is the LLM backend for answer generation.
	Model model.BaseChatModel

	// Retriever supplies document context. May be nil when the index is
	// unavailable; the service then answers with FallbackMessage.
	Retriever Retriever

	// Reconstructor rewrites follow-up questions into standalone search
	// queries. May be nil; follow-ups are then searched as-is.
	Reconstructor *rag.Reconstructor

	// History is the optional conversation store read for prompt context.
	History HistoryReader

	// Recorder is the optional background writer persisting finished
	// exchanges. Only used for requests that carry a session id.
	Recorder *store.Recorder

	// HistoryDepth is the number of prior exchanges injected per question.
	// Defaults to DefaultHistoryDepth if zero.
	HistoryDepth int

	// MaxContextTokens caps the estimated prompt size; history turns are
	// trimmed oldest-first to fit. Defaults to budget.DefaultMaxContextTokens
	// if zero.
	MaxContextTokens int

	// Stream tunes the per-answer safety limits.
	Stream StreamConfig
}

// Service runs the per-question pipeline. Construct with New; a Service is
// immutable after construction and safe for concurrent use.
type Service struct {
	model         model.BaseChatModel
	retriever     Retriever
	reconstructor *rag.Reconstructor
	history       HistoryReader
	recorder      *store.Recorder
	historyDepth  int
	maxContext    int
	stream        StreamConfig
}

// New constructs a Service from the provided Config.
func New(cfg *Config) (*Service, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("chat: Model must not be nil")
	}

	depth := cfg.HistoryDepth
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	streamCfg := cfg.Stream
	streamCfg.applyDefaults()

	return &Service{
		model:         cfg.Model,
		retriever:     cfg.Retriever,
		reconstructor: cfg.Reconstructor,
		history:       cfg.History,
		recorder:      cfg.Recorder,
		historyDepth:  depth,
		maxContext:    maxCtx,
		stream:        streamCfg,
	}, nil
}

// Request is one chat turn submitted to Ask.
type Request struct {
	// Question is the user's message.
	Question string

	// SessionID selects the conversation whose history seeds the prompt and
	// which receives the finished exchange. Empty means stateless.
	SessionID string
}

// Ask runs the full answer pipeline and returns the response stream.
// Validation and moderation happen before any model call, so the sentinel
// errors are returned without side effects. Retrieval and history failures
// are absorbed: the answer is then generated with less context rather than
// failing the request.
func (s *Service) Ask(ctx context.Context, req Request) (*Stream, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if !moderation.Allowed(question) {
		return nil, ErrBlocked
	}

	log := logging.FromContext(ctx)
	history := s.loadHistory(ctx, req.SessionID)

	if s.retriever == nil {
		log.Warn("chat: no retriever configured, serving fallback answer")
		return s.fallback(req.SessionID, question), nil
	}

	searchQuery := question
	if rag.IsFollowup(question, len(history) > 0) {
		searchQuery = s.reconstructor.Reconstruct(ctx, question, history)
	}

	docs, err := s.retriever.Retrieve(ctx, searchQuery)
	if err != nil {
		log.Warn("chat: retrieval failed, answering without document context",
			slog.Any("error", err),
		)
		docs = nil
	}

	contextBlock := rag.FormatContext(docs)

	// Trim history oldest-first so the estimated prompt size stays within
	// the context budget; the system prompt, retrieved context, and the
	// question itself are never dropped.
	fixed := budget.Estimate(systemPrompt) + budget.Estimate(contextBlock) + budget.Estimate(question)
	if kept := budget.TrimHistory(fixed, history, s.maxContext); len(kept) < len(history) {
		log.Warn("chat: dropped history turns to fit context window",
			slog.Int("dropped", len(history)-len(kept)),
			slog.Int("retained", len(kept)),
			slog.Int("max_tokens", s.maxContext),
		)
		history = kept
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(renderPrompt(question, contextBlock, formatHistory(history))),
	}

	sr, err := s.model.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("chat: generation stream failed: %w", err)
	}
	return newStream(sr, s.stream, s.record(req.SessionID, question)), nil
}

// loadHistory reads the most recent conversation turns for the session.
// Any failure (including an open circuit breaker) degrades to no history.
func (s *Service) loadHistory(ctx context.Context, sessionID string) []rag.Turn {
	if s.history == nil || sessionID == "" {
		return nil
	}
	msgs, err := s.history.Recent(ctx, sessionID, s.historyDepth*2)
	if err != nil {
		logging.FromContext(ctx).Warn("chat: history load failed, continuing without history",
			slog.Any("error", err),
		)
		return nil
	}
	turns := make([]rag.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, rag.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}

// fallback produces a single-fragment stream carrying the fixed
// unavailability answer, recorded like a normal exchange.
func (s *Service) fallback(sessionID, question string) *Stream {
	sr := schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage(FallbackMessage, nil),
	})
	return newStream(sr, s.stream, s.record(sessionID, question))
}

// record builds the stream finish hook handing the exchange to the
// recorder. Returns nil when nothing should be persisted.
func (s *Service) record(sessionID, question string) func(string, Stats) {
	if s.recorder == nil || sessionID == "" {
		return nil
	}
	return func(answer string, _ Stats) {
		s.recorder.Enqueue(store.Exchange{
			SessionID: sessionID,
			Question:  question,
			Answer:    answer,
		})
	}
}
