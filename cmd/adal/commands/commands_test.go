package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestDimensionHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dim  int
		want string
	}{
		{384, "MiniLM-class local model"},
		{768, "Gemini text-embedding-004"},
		{1536, "OpenAI text-embedding-3-small"},
		{512, "no common model known for this dimension"},
	}

	for _, tc := range tests {
		if got := dimensionHint(tc.dim); got != tc.want {
			t.Errorf("dimensionHint(%d) = %q, want %q", tc.dim, got, tc.want)
		}
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("ADAL_TEST_STR", "from-env")

	if got := envOrDefault("ADAL_TEST_STR", "fallback"); got != "from-env" {
		t.Errorf("set var: got %q", got)
	}
	if got := envOrDefault("ADAL_TEST_STR_UNSET", "fallback"); got != "fallback" {
		t.Errorf("unset var: got %q", got)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("ADAL_TEST_INT", "42")
	t.Setenv("ADAL_TEST_BAD_INT", "not-a-number")

	if got := envInt("ADAL_TEST_INT", 7); got != 42 {
		t.Errorf("set var: got %d", got)
	}
	if got := envInt("ADAL_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("invalid var: got %d", got)
	}
	if got := envInt("ADAL_TEST_INT_UNSET", 7); got != 7 {
		t.Errorf("unset var: got %d", got)
	}
}

func TestVersionCmd_Output(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "adal ") {
		t.Errorf("output should start with the binary name: %q", out)
	}
	if !strings.Contains(out, "commit:") || !strings.Contains(out, "built:") {
		t.Errorf("output missing build info: %q", out)
	}
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	want := []string{"serve", "chat", "ingest", "diagnose", "version"}

	have := make(map[string]bool)
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}
