package llmdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orgrun/org/llm"
	"github.com/orgrun/org/memory"
	"github.com/orgrun/org/schema"
)

// LaneSummarizer satisfies memory.Summarizer by asking the wrapped model for
// a short natural-language summary of one lane's messages. It is the
// collaborator memory.WithPersonaDistillation-adjacent summarisation calls
// (spec §4.F step 4) are injected with, keeping the memory package itself
// free of any concrete driver dependency.
type LaneSummarizer struct {
	Model llm.ChatModel
}

// Summarize implements memory.Summarizer.
func (s *LaneSummarizer) Summarize(lane string, messages []schema.Message, maxTokens int) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}
	prompt := buildSummaryPrompt(lane, messages, maxTokens)
	msg, err := s.Model.Generate(context.Background(), []schema.Message{schema.NewHumanMessage(prompt)},
		llm.WithMaxTokens(maxTokens))
	if err != nil {
		return "", fmt.Errorf("llmdriver: summarize %s lane: %w", lane, err)
	}
	return strings.TrimSpace(msg.Text()), nil
}

func buildSummaryPrompt(lane string, messages []schema.Message, maxTokens int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarise the following %s messages in at most roughly %d tokens. "+
		"Preserve concrete facts, decisions, and open threads; drop pleasantries.\n\n", lane, maxTokens)
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.GetRole(), m.Text())
	}
	return b.String()
}

// personaDistillResponse is the strict-JSON shape requested from the model:
// one array per facet category, matching memory.PersonaFacet's Category
// values.
type personaDistillResponse struct {
	Roles      []facetJSON `json:"roles"`
	Style      []facetJSON `json:"style"`
	Heuristics []facetJSON `json:"heuristics"`
	Goals      []facetJSON `json:"goals"`
	Antigoals  []facetJSON `json:"antigoals"`
	Languages  []facetJSON `json:"languages"`
}

type facetJSON struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// PersonaDistiller satisfies memory.PersonaDistiller by requesting a
// strict-JSON facet update from the wrapped model over a chronological
// message window (spec §4.F "Persona distillation").
type PersonaDistiller struct {
	Model llm.ChatModel
}

const personaDistillInstruction = `Review the conversation window below and extract persona facets about the
participants: recurring roles, communication style, working heuristics,
goals, antigoals (things to avoid), and languages/frameworks in use. Respond
with strict JSON only, matching this shape exactly:
{"roles":[{"text":"...","weight":0.0}],"style":[...],"heuristics":[...],"goals":[...],"antigoals":[...],"languages":[...]}
Each facet's text must be 80 characters or fewer. weight is your confidence
in [0,1]. Omit a category entirely if you found nothing for it.`

// Distill implements memory.PersonaDistiller.
func (d *PersonaDistiller) Distill(window []schema.Message) ([]memory.PersonaFacet, error) {
	if len(window) == 0 {
		return nil, nil
	}
	var b strings.Builder
	b.WriteString(personaDistillInstruction)
	b.WriteString("\n\n")
	for _, m := range window {
		fmt.Fprintf(&b, "[%s] %s\n", m.GetRole(), m.Text())
	}

	msg, err := d.Model.Generate(context.Background(), []schema.Message{schema.NewHumanMessage(b.String())},
		llm.WithResponseFormat(llm.ResponseFormat{Type: "json_object"}))
	if err != nil {
		return nil, fmt.Errorf("llmdriver: distill persona: %w", err)
	}

	var resp personaDistillResponse
	if err := json.Unmarshal([]byte(msg.Text()), &resp); err != nil {
		return nil, fmt.Errorf("llmdriver: parse persona distillation: %w", err)
	}

	var facets []memory.PersonaFacet
	appendCat := func(category string, items []facetJSON) {
		for _, it := range items {
			if it.Text == "" {
				continue
			}
			facets = append(facets, memory.PersonaFacet{Category: category, Text: truncate(it.Text, 80), Weight: it.Weight})
		}
	}
	appendCat("roles", resp.Roles)
	appendCat("style", resp.Style)
	appendCat("heuristics", resp.Heuristics)
	appendCat("goals", resp.Goals)
	appendCat("antigoals", resp.Antigoals)
	appendCat("languages", resp.Languages)
	return facets, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
