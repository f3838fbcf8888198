package memory

import (
	"fmt"
	"strings"

	"github.com/orgrun/org/schema"
)

// Tagged sentinels upserted into the head system message's text.
const (
	TagNormativePolicy = "NORMATIVE POLICY BLOCK"
	TagSystemSummary   = "SYSTEM LANE SUMMARY"
	TagPersonaBlock    = "DYNAMIC PERSONA BLOCK"
)

func startTag(name string) string { return fmt.Sprintf("[[%s]]", name) }
func endTag(name string) string   { return fmt.Sprintf("[[/%s]]", name) }

// upsertBlock replaces the bytes between startTag(name)/endTag(name) in
// body with content if the sentinels are found, or appends a new tagged
// block otherwise.
func upsertBlock(body, name, content string) string {
	start, end := startTag(name), endTag(name)
	block := start + "\n" + content + "\n" + end

	startIdx := strings.Index(body, start)
	if startIdx == -1 {
		if body == "" {
			return block
		}
		return body + "\n\n" + block
	}

	endIdx := strings.Index(body[startIdx:], end)
	if endIdx == -1 {
		// Malformed: a start sentinel with no matching end. Treat the rest
		// of the body as the stale block and replace it wholesale.
		return body[:startIdx] + block
	}
	endIdx += startIdx + len(end)
	return body[:startIdx] + block + body[endIdx:]
}

// upsertHeadBlock upserts (name, content) into head's text, returning a new
// head message. If head is nil, a fresh system message carrying only this
// block is created.
func upsertHeadBlock(head schema.Message, name, content string) schema.Message {
	base := ""
	if head != nil {
		base = head.Text()
	}
	return schema.NewSystemMessage(upsertBlock(base, name, content))
}
