package rag

import (
	"strings"
	"testing"
)

func TestFormatContext_AbstractsFirst(t *testing.T) {
	t.Parallel()

	docs := []Document{
		{Content: "Methodology details.", Source: "a.pdf", Metadata: Metadata{ContentType: ContentTypeContent}},
		{Content: "This study investigates flood monitoring.", Source: "b.pdf", Metadata: Metadata{ContentType: ContentTypeAbstract}},
		{Content: "Results and discussion.", Source: "c.pdf", Metadata: Metadata{ContentType: ContentTypeContent}},
	}

	got := FormatContext(docs)

	// The abstract is promoted to the front despite ranking second.
	if !strings.HasPrefix(got, "This study investigates flood monitoring.") {
		t.Errorf("abstract not first:\n%s", got)
	}

	// Tags are assigned in final (bucketed) order, not retrieval order.
	i1 := strings.Index(got, "[S1] b.pdf")
	i2 := strings.Index(got, "[S2] a.pdf")
	i3 := strings.Index(got, "[S3] c.pdf")
	if i1 < 0 || i2 < 0 || i3 < 0 {
		t.Fatalf("missing sequential tags:\n%s", got)
	}
	if !(i1 < i2 && i2 < i3) {
		t.Errorf("tags out of order: S1@%d S2@%d S3@%d", i1, i2, i3)
	}

	// Non-abstract documents keep their retrieval order.
	if strings.Index(got, "Methodology details.") > strings.Index(got, "Results and discussion.") {
		t.Errorf("content bucket lost retrieval order:\n%s", got)
	}
}

func TestFormatContext_SourceLabel(t *testing.T) {
	t.Parallel()

	docs := []Document{{
		Content: "Abstract text.",
		Source:  "/a/b/thesis.pdf",
		Metadata: Metadata{
			Page:        12,
			ContentType: ContentTypeAbstract,
			Chapter:     3,
		},
	}}

	got := FormatContext(docs)

	want := "[S1] thesis.pdf, p.12 (abstract) Ch.3"
	if !strings.Contains(got, want) {
		t.Errorf("label missing:\ngot:  %s\nwant substring: %s", got, want)
	}

	// Label parts appear in fixed order.
	order := []string{"thesis.pdf", "p.12", "(abstract)", "Ch.3"}
	last := -1
	for _, part := range order {
		i := strings.Index(got, part)
		if i < 0 {
			t.Fatalf("label part %q missing:\n%s", part, got)
		}
		if i < last {
			t.Errorf("label part %q out of order:\n%s", part, got)
		}
		last = i
	}
}

func TestFormatContext_OptionalFieldsOmitted(t *testing.T) {
	t.Parallel()

	docs := []Document{{Content: "Body.", Source: "study.pdf"}}
	got := FormatContext(docs)

	if !strings.Contains(got, "[S1] study.pdf") {
		t.Errorf("missing minimal label:\n%s", got)
	}
	for _, forbidden := range []string{"p.", "Ch.", "()"} {
		if strings.Contains(got, forbidden) {
			t.Errorf("unexpected %q in label for metadata-free document:\n%s", forbidden, got)
		}
	}
}

func TestFormatContext_WindowsPath(t *testing.T) {
	t.Parallel()

	docs := []Document{{Content: "Body.", Source: `C:\theses\Garcia_2021.pdf`}}
	got := FormatContext(docs)

	if !strings.Contains(got, "[S1] Garcia_2021.pdf") {
		t.Errorf("windows path not normalized:\n%s", got)
	}
}

func TestFormatContext_BlankLineSeparation(t *testing.T) {
	t.Parallel()

	docs := []Document{
		{Content: "First.", Source: "a.pdf"},
		{Content: "Second.", Source: "b.pdf"},
	}
	got := FormatContext(docs)

	if strings.Count(got, "\n\n") != 1 {
		t.Errorf("expected exactly one blank-line separator:\n%q", got)
	}
}

func TestFormatContext_Empty(t *testing.T) {
	t.Parallel()
	if got := FormatContext(nil); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty", got)
	}
}
