// Package compose assembles the accumulated session content into the payload
// submitted to the generation service, keeping it inside a token budget.
package compose

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/deckhand/internal/types"
)

// DefaultBudget is the maximum number of tokens submitted per job. Generation
// services truncate or reject oversized payloads; trimming client-side keeps
// the cut at a token boundary we control.
const DefaultBudget = 8000

// Composer builds token-budgeted generation payloads.
type Composer struct {
	tokenizer *tiktoken.Tiktoken
	budget    int
}

// New creates a Composer with the given token budget. A non-positive budget
// falls back to DefaultBudget.
func New(budget int) (*Composer, error) {
	if budget <= 0 {
		budget = DefaultBudget
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get tokenizer: %w", err)
	}
	return &Composer{tokenizer: enc, budget: budget}, nil
}

// Build joins the session's free-text request and extracted body, truncating
// the result to the token budget. The request comes first so the user's own
// words survive when an attached document blows the budget.
func (c *Composer) Build(sess *types.Session) string {
	content := sess.Content()
	tokens := c.tokenizer.Encode(content, nil, nil)
	if len(tokens) <= c.budget {
		return content
	}
	return c.tokenizer.Decode(tokens[:c.budget])
}

// Count returns the token count of text. Used by the debug API.
func (c *Composer) Count(text string) int {
	return len(c.tokenizer.Encode(text, nil, nil))
}
