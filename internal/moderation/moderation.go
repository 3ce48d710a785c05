// Package moderation screens incoming questions against a fixed denylist
// before any retrieval or generation work happens.
package moderation

import "strings"

// BlockedMessage is the reply sent for a refused question.
const BlockedMessage = "Sorry, I can't assist with that."

// disallowedTerms are matched as substrings of the lowercased question. The
// list is short and literal on purpose; it screens the plainly harmful
// requests a public campus deployment sees, not adversarial phrasings, and
// is not a general safety system.
var disallowedTerms = []string{
	"how to make a bomb",
	"explosive materials",
	"hatred",
	"self-harm",
}

// Allowed reports whether the question passes the content screen.
func Allowed(question string) bool {
	lower := strings.ToLower(question)
	for _, term := range disallowedTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	return true
}
