package rag

import "strings"

// exhaustiveKeywords mark a question as requesting a comprehensive result
// set ("list all theses about X") rather than the few best matches.
// Matched as substrings of the lowercased question.
var exhaustiveKeywords = []string{
	"all",
	"list",
	"every",
	"give me all",
	"show me all",
	"how many",
	"what are all",
	"enumerate",
	"complete list",
}

// IsExhaustive reports whether the question asks for a comprehensive set of
// matches. Exhaustive questions get a score-thresholded sweep over a large
// candidate pool instead of a fixed top-k search.
func IsExhaustive(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range exhaustiveKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// followupPatterns are substrings that suggest the question leans on earlier
// turns. The list is intentionally broad: a false positive costs one extra
// reconstruction call, while a false negative degrades retrieval for a
// genuine follow-up.
var followupPatterns = []string{
	" it ", " its ", " this ", " that ", " these ", " those ",
	" they ", " them ", " their ",
	"what about", "how about", "tell me more", "more about",
	"the same", "the first one", "the second one", "the last one",
	"also", "else",
}

// followupPrefixes catch questions that open with a pronoun or continuation.
var followupPrefixes = []string{
	"it ", "its ", "this ", "that ", "these ", "those ",
	"they ", "them ", "their ", "he ", "she ", "his ", "her ",
	"and ", "but ", "so ", "then ", "why ", "how come",
}

// IsFollowup reports whether the question likely depends on preceding
// conversation turns. Only meaningful when history exists; with no history
// it always returns false.
func IsFollowup(question string, hasHistory bool) bool {
	if !hasHistory {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return false
	}

	// Very short questions almost never stand alone.
	if len(strings.Fields(q)) <= 4 {
		return true
	}
	for _, p := range followupPatterns {
		if strings.Contains(q, p) {
			return true
		}
	}
	for _, p := range followupPrefixes {
		if strings.HasPrefix(q, p) {
			return true
		}
	}
	return false
}
