package rag

import (
	"fmt"
	"strings"
)

// FormatContext renders retrieved documents into a single prompt-ready text
// block. Documents tagged as abstracts are promoted ahead of every other
// excerpt regardless of retrieval rank, because abstracts are the densest
// summaries and downstream citation answers are more reliable when they
// appear first in the model's input. Within each group the retrieval order
// is preserved.
//
// Each document renders as its text followed by a bracketed source label,
// with documents separated by a blank line:
//
//	<text>
//	[S1] thesis.pdf, p.12 (abstract) Ch.3
//
// The S<n> tags are numbered continuously across both groups in final order.
func FormatContext(docs []Document) string {
	if len(docs) == 0 {
		return ""
	}

	ordered := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.Metadata.ContentType == ContentTypeAbstract {
			ordered = append(ordered, d)
		}
	}
	for _, d := range docs {
		if d.Metadata.ContentType != ContentTypeAbstract {
			ordered = append(ordered, d)
		}
	}

	var b strings.Builder
	for i, d := range ordered {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(d.Content))
		b.WriteString("\n")
		b.WriteString(sourceLabel(i+1, d))
	}
	return b.String()
}

// sourceLabel builds the bracketed citation label for one document.
// Optional metadata fields are appended only when recorded.
func sourceLabel(n int, d Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[S%d] %s", n, sourceBase(d.Source))
	if d.Metadata.Page > 0 {
		fmt.Fprintf(&b, ", p.%d", d.Metadata.Page)
	}
	if d.Metadata.ContentType != "" {
		fmt.Fprintf(&b, " (%s)", d.Metadata.ContentType)
	}
	if d.Metadata.Chapter > 0 {
		fmt.Fprintf(&b, " Ch.%d", d.Metadata.Chapter)
	}
	return b.String()
}

// sourceBase strips the directory from a source path, normalizing Windows
// separators first so indexes built on either platform label identically.
func sourceBase(source string) string {
	s := strings.ReplaceAll(source, "\\", "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return "unknown"
	}
	return s
}
