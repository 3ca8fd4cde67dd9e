// Package trigger classifies inbound text as more input or a request to
// start generation.
package trigger

import "strings"

// Decision is the outcome of classifying one message.
type Decision string

const (
	// Continue means the message is more input to accumulate.
	Continue Decision = "continue"
	// Generate means the user asked for the presentation now.
	Generate Decision = "generate"
)

// vocabulary is the closed set of trigger words. Exact match only: fuzzy
// matching would fire on ordinary conversational text.
var vocabulary = map[string]bool{
	"generate": true,
	"done":     true,
	"go":       true,
	"gerar":    true,
	"pronto":   true,
}

// Classify returns Generate when the trimmed, lowercased text is exactly one
// of the trigger words, Continue otherwise. Empty text is Continue.
func Classify(text string) Decision {
	if vocabulary[strings.ToLower(strings.TrimSpace(text))] {
		return Generate
	}
	return Continue
}
