package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adal-ai/adal-go/internal/rag"
)

func TestParseScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want rag.EmbeddingScheme
	}{
		{"local", rag.SchemeLocal},
		{"remote", rag.SchemeRemote},
		{"huggingface", rag.SchemeLocal},
		{"gemini", rag.SchemeRemote},
		{"google", rag.SchemeRemote},
		{"GEMINI", rag.SchemeRemote},
		{"  local\n", rag.SchemeLocal},
		{"", rag.SchemeLocal},
		{"something-else", rag.SchemeLocal},
	}

	for _, tc := range tests {
		if got := ParseScheme(tc.in); got != tc.want {
			t.Errorf("ParseScheme(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReadMarker_Missing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if got := ReadMarker(dir); got != rag.SchemeLocal {
		t.Errorf("ReadMarker(missing) = %q, want local default", got)
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := WriteMarker(dir, rag.SchemeRemote); err != nil {
		t.Fatalf("WriteMarker failed: %v", err)
	}
	if got := ReadMarker(dir); got != rag.SchemeRemote {
		t.Errorf("ReadMarker = %q, want remote", got)
	}

	data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
	if err != nil {
		t.Fatalf("marker file unreadable: %v", err)
	}
	if string(data) != "remote\n" {
		t.Errorf("marker contents = %q, want %q", data, "remote\n")
	}
}

func TestReadMarker_LegacyContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, MarkerFile), []byte("huggingface\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ReadMarker(dir); got != rag.SchemeLocal {
		t.Errorf("ReadMarker(legacy huggingface) = %q, want local", got)
	}
}
