package memory

import (
	"math"

	"github.com/orgrun/org/schema"
)

const (
	minBudget          = 512
	messageOverhead    = 8 // per-message bookkeeping charged on top of its text
	toolOutputCharCap  = 24_000
)

// budget returns the usable token budget for this memory's lane contents,
// after reserving room for the head system message and the model's
// response.
func (c Config) budget() int {
	b := c.ContextTokens - c.ReserveHeader - c.ReserveResponse
	if b < minBudget {
		return minBudget
	}
	return b
}

// estimateTokens approximates the token cost of msgs using a
// characters-per-token ratio, capping any single tool message's
// contribution for estimation purposes only (the stored message is never
// truncated).
func (c Config) estimateTokens(msgs []schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.estimateOne(m)
	}
	return total
}

func (c Config) estimateOne(m schema.Message) int {
	text := m.Text()
	if m.GetRole() == schema.RoleTool && len(text) > toolOutputCharCap {
		text = text[:toolOutputCharCap]
	}
	ratio := c.AvgCharsPerToken
	if ratio <= 0 {
		ratio = DefaultConfig().AvgCharsPerToken
	}
	chars := float64(len(text))
	return int(math.Ceil(chars/ratio)) + messageOverhead
}
