package server

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adal-ai/adal-go/internal/chat"
	"github.com/adal-ai/adal-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Shared fakes
// ---------------------------------------------------------------------------

// fragmentMsgs builds assistant messages carrying the given contents.
func fragmentMsgs(parts ...string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(parts))
	for _, p := range parts {
		msgs = append(msgs, schema.AssistantMessage(p, nil))
	}
	return msgs
}

// fakeStreamModel streams canned fragments. streamErr fails the Stream call
// itself; reader, when set, is returned as-is so tests can script mid-stream
// failures through a schema.Pipe.
type fakeStreamModel struct {
	parts     []string
	streamErr error
	reader    *schema.StreamReader[*schema.Message]
}

func (f *fakeStreamModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return nil, errors.New("fakeStreamModel: generate not supported")
}

func (f *fakeStreamModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if f.reader != nil {
		return f.reader, nil
	}
	return schema.StreamReaderFromArray(fragmentMsgs(f.parts...)), nil
}

// staticRetriever returns fixed documents for every query.
type staticRetriever struct {
	docs []rag.Document
}

func (r *staticRetriever) Retrieve(_ context.Context, _ string) ([]rag.Document, error) {
	return r.docs, nil
}

// fakeIndex implements rag.VectorIndex with canned results and records the
// last query it saw.
type fakeIndex struct {
	scored []rag.ScoredDocument
	err    error

	lastQuery string
	lastK     int
}

func (f *fakeIndex) Search(ctx context.Context, query string, k int) ([]rag.Document, error) {
	scored, err := f.SearchWithScores(ctx, query, k)
	if err != nil {
		return nil, err
	}
	docs := make([]rag.Document, 0, len(scored))
	for _, sd := range scored {
		docs = append(docs, sd.Document)
	}
	return docs, nil
}

func (f *fakeIndex) SearchWithScores(_ context.Context, query string, k int) ([]rag.ScoredDocument, error) {
	f.lastQuery = query
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.scored, nil
}

func (f *fakeIndex) Count() int { return len(f.scored) }

func (f *fakeIndex) Close() error { return nil }

var _ rag.VectorIndex = (*fakeIndex)(nil)

// ---------------------------------------------------------------------------
// Server builders
// ---------------------------------------------------------------------------

// newChatService builds a chat.Service over the given model with a canned
// retriever, failing the test on construction errors.
func newChatService(t *testing.T, m model.BaseChatModel) *chat.Service {
	t.Helper()
	svc, err := chat.New(&chat.Config{
		Model:     m,
		Retriever: &staticRetriever{docs: serverTestDocs},
	})
	if err != nil {
		t.Fatalf("chat.New: %v", err)
	}
	return svc
}

// newTestServer builds a *Server backed by a fresh isolated registry so
// tests do not pollute prometheus.DefaultRegisterer. A nil cfg gets a
// default test config; a nil deps.Chat gets a minimal chat service. The
// rate limit is set high so handler tests never trip it.
func newTestServer(t *testing.T, deps Deps, cfg *Config) (*Server, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Logger = slog.Default()
	cfg.MetricsRegistry = reg
	cfg.MetricsGatherer = reg
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1000
		cfg.RateBurst = 1000
	}

	if deps.Chat == nil {
		deps.Chat = newChatService(t, &fakeStreamModel{parts: []string{"answer"}})
	}

	s, err := New(deps, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if s.stopRL != nil {
			s.stopRL()
		}
	})
	return s, reg
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var serverTestDocs = []rag.Document{
	{
		ID:      "d1",
		Content: "This study developed an IoT-based flood monitoring system for the Bicol River basin.",
		Source:  "/theses/flood-monitoring.pdf",
		Metadata: rag.Metadata{
			Page:        3,
			ContentType: rag.ContentTypeContent,
			Chapter:     1,
		},
	},
	{
		ID:      "d2",
		Content: "Abstract: An enrollment management system for CSPC was designed and evaluated.",
		Source:  "/theses/enrollment-system.pdf",
		Metadata: rag.Metadata{
			Page:        1,
			ContentType: rag.ContentTypeAbstract,
		},
	},
}
