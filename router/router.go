// Package router implements the two-layer tag router: a parse layer that
// turns an agent's raw output into ordered deliveries, and a side-effect
// layer that applies those deliveries against the running scheduler state.
package router

import (
	"strings"

	"github.com/orgrun/org/noise"
	"github.com/orgrun/org/schema"
	"github.com/orgrun/org/tag"
)

// Delivery is one classified unit of output produced by the parse layer,
// ready for the side-effect layer to act on.
type Delivery struct {
	Kind    tag.Kind
	Target  string // agent id, for Kind == tag.KindAgent
	Name    string // file path, for Kind == tag.KindFile
	Content string
}

// ParseResult is the output of the parse layer.
type ParseResult struct {
	Deliveries    []Delivery
	YieldForUser  bool
	YieldForGroup bool
	SawTags       bool
}

// RouteWithTags runs the noise filter and tag parser over text, recognising
// agent tags only for ids in agentIDs, and classifies the result into
// deliveries. If parsing produces no delivery at all, a single empty group
// delivery is returned so callers always have something to act on.
func RouteWithTags(text string, agentIDs []string) ParseResult {
	var f noise.Filter
	cleaned := f.Feed(text) + f.Flush()

	cfg := tag.DefaultConfig()
	cfg.AgentTokens = agentIDs

	parsed := tag.Parse(cleaned, cfg)

	result := ParseResult{}
	for _, p := range parsed {
		if p.Tag != "" {
			result.SawTags = true
		}
		switch p.Kind {
		case tag.KindAgent:
			result.Deliveries = append(result.Deliveries, Delivery{Kind: tag.KindAgent, Target: p.Tag, Content: p.Content})
		case tag.KindGroup:
			result.Deliveries = append(result.Deliveries, Delivery{Kind: tag.KindGroup, Content: p.Content})
			result.YieldForGroup = true
		case tag.KindUser:
			result.Deliveries = append(result.Deliveries, Delivery{Kind: tag.KindUser, Content: p.Content})
			result.YieldForUser = true
		case tag.KindFile:
			result.Deliveries = append(result.Deliveries, Delivery{Kind: tag.KindFile, Name: p.Tag, Content: p.Content})
		}
	}

	if len(result.Deliveries) == 0 {
		result.Deliveries = []Delivery{{Kind: tag.KindGroup}}
	}
	return result
}

func resolveAgent(name string, agentIDs []string) string {
	for _, id := range agentIDs {
		if strings.EqualFold(id, name) {
			return id
		}
	}
	return ""
}

func others(sender string, agentIDs []string) []string {
	out := make([]string, 0, len(agentIDs))
	for _, id := range agentIDs {
		if id != sender {
			out = append(out, id)
		}
	}
	return out
}

func userMessage(sender, content string) schema.Message {
	return &schema.HumanMessage{
		Parts:    []schema.ContentPart{schema.TextPart{Text: content}},
		Metadata: map[string]any{"from": sender},
	}
}
