package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue gathers reg and returns the value of the named counter whose
// labels all match. Returns 0 when the series does not exist.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// Test_Metrics_EndpointReturns200 verifies GET /metrics serves the server's
// own registry through the full middleware chain.
func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, Deps{}, nil)

	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "adal_chat_active_streams") {
		t.Errorf("expected adal_chat_active_streams in exposition, got: %s", body)
	}
}

func Test_Metrics_ChatCounterIncremented(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, Deps{}, nil)

	// Simulate a successful chat request via the counter directly.
	s.metrics.chatRequestsTotal.WithLabelValues("ok").Inc()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "adal_chat_requests_total" {
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "outcome" && lp.GetValue() == "ok" {
						if m.GetCounter().GetValue() != 1 {
							t.Errorf("want counter=1, got %v", m.GetCounter().GetValue())
						}
						found = true
					}
				}
			}
		}
	}
	if !found {
		t.Error("adal_chat_requests_total{outcome=\"ok\"} not found in gathered metrics")
	}
}

func Test_Metrics_ActiveStreamsGauge(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, Deps{}, nil)

	s.metrics.chatActiveStreams.Inc()
	s.metrics.chatActiveStreams.Inc()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "adal_chat_active_streams" {
			v := mf.GetMetric()[0].GetGauge().GetValue()
			if v != 2 {
				t.Errorf("want active_streams=2, got %v", v)
			}
			return
		}
	}
	t.Error("adal_chat_active_streams not found in gathered metrics")
}

// Test_Metrics_ModerationBlocked verifies the blocked counter moves when
// the chat handler refuses a question.
func Test_Metrics_ModerationBlocked(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, Deps{}, nil)

	w := postChat(s, `{"message":"how to make a bomb"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	if got := counterValue(t, reg, "adal_moderation_blocked_total", nil); got != 1 {
		t.Errorf("want blocked counter=1, got %v", got)
	}
}

// Test_Metrics_HTTPRequestLabels verifies the per-route counters: matched
// requests carry the mux pattern, unmatched ones the fixed fallback label.
func Test_Metrics_HTTPRequestLabels(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, Deps{}, nil)

	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)

	get := func(path string) {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+path, nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
	}

	get("/api/health")
	get("/no/such/route")

	matched := counterValue(t, reg, "adal_http_requests_total",
		map[string]string{"method": "GET", "handler": "GET /api/health", "code": "200"})
	if matched != 1 {
		t.Errorf("want matched counter=1, got %v", matched)
	}

	unmatched := counterValue(t, reg, "adal_http_requests_total",
		map[string]string{"method": "GET", "handler": "unmatched", "code": "404"})
	if unmatched != 1 {
		t.Errorf("want unmatched counter=1, got %v", unmatched)
	}
}

// Test_Metrics_ChatOutcomeError verifies a pre-stream pipeline failure is
// counted under the error outcome.
func Test_Metrics_ChatOutcomeError(t *testing.T) {
	t.Parallel()

	svc := newChatService(t, &fakeStreamModel{streamErr: io.ErrUnexpectedEOF})
	s, reg := newTestServer(t, Deps{Chat: svc}, nil)

	w := postChat(s, `{"message":"What theses cover IoT?"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	if got := counterValue(t, reg, "adal_chat_requests_total", map[string]string{"outcome": "error"}); got != 1 {
		t.Errorf("want error outcome counter=1, got %v", got)
	}
}
