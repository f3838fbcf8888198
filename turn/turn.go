// Package turn implements the Agent Turn Executor (spec §4.H): one pass
// that drains an agent's inbox into its memory, drives the chat driver
// across a bounded number of hops, routes cleaned text through the tag
// router, and dispatches tool calls through toolexec — updating the
// agent's memory and guard rail as it goes.
//
// The hop loop's shape mirrors agent.Executor's Plan→Act→Observe loop
// (agent/executor.go): a functional-option-configured struct driving a
// bounded iteration, with the planner/tool-registry pairing replaced by
// spec §4.H's driver/toolexec pairing and the planner's Action/Observation
// types replaced by the spec's tool-call/route-delivery pair.
package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orgrun/org/guard"
	"github.com/orgrun/org/inbox"
	"github.com/orgrun/org/llmdriver"
	"github.com/orgrun/org/memory"
	"github.com/orgrun/org/noise"
	"github.com/orgrun/org/router"
	"github.com/orgrun/org/schema"
	"github.com/orgrun/org/toolexec"
)

// Params bundles one agent turn's inputs: its own identity and
// collaborators, plus the sibling ids the tag router recognises as
// addressable agents.
type Params struct {
	AgentID     string
	AgentIDs    []string
	Inbox       *inbox.Inbox
	Memory      memory.Memory
	Guard       *guard.GuardRail
	Driver      llmdriver.Driver
	Model       string
	Tools       []schema.ToolDefinition
	MaxToolHops int

	Tool   toolexec.Collaborators
	Router router.Collaborators

	// OnToken, if set, is forwarded every streamed text delta before the
	// noise filter runs, for a UI layer that wants to render raw tokens.
	OnToken func(string)
}

// Outcome reports what the turn produced, for the scheduler to act on.
type Outcome struct {
	// YieldForUser is true if a `@@user` tag appeared in the agent's
	// output, meaning the scheduler should return control to the human
	// operator rather than selecting another agent immediately.
	YieldForUser bool

	// HopsUsed is the number of driver calls made this turn, for
	// diagnostics.
	HopsUsed int
}

const defaultMaxToolHops = 8

// Run executes one agent turn. ctx is the cancellation token the scheduler
// aborts on drain/stop (spec §5); the driver and tool executor observe it
// at every await.
func Run(ctx context.Context, p Params) (Outcome, error) {
	maxHops := p.MaxToolHops
	if maxHops <= 0 {
		maxHops = defaultMaxToolHops
	}
	p.Guard.BeginTurn(maxHops)

	drainInbox(p)

	var (
		out          Outcome
		lastText     string
		lastToolCall int
		toolBudget   = maxHops
		emptyStreak  int
	)

	for hop := 0; hop < maxHops; hop++ {
		if ctx.Err() != nil {
			break
		}
		out.HopsUsed++

		var filter noise.Filter
		var cleaned strings.Builder
		resp, err := p.Driver.Chat(ctx, p.Memory.Messages(), llmdriver.Request{
			Model:  p.Model,
			Tools:  p.Tools,
			Stream: true,
			OnToken: func(tok string) {
				if p.OnToken != nil {
					p.OnToken(tok)
				}
				cleaned.WriteString(filter.Feed(tok))
			},
		})
		if err != nil {
			// Transient driver/network errors surface to the scheduler,
			// which logs and continues (spec §7); the turn simply ends.
			return out, err
		}
		cleaned.WriteString(filter.Flush())
		text := cleaned.String()
		if text == "" {
			text = resp.Text
		}

		lastText = text
		lastToolCall = len(resp.ToolCalls)

		if len(resp.ToolCalls) > 0 {
			emptyStreak = 0
			p.Memory.Add(assistantToolMessage(text, resp.ToolCalls))

			toolOut := toolexec.Execute(ctx, toolexec.Params{
				Calls:         resp.ToolCalls,
				MaxTools:      toolBudget,
				AbortCallback: func() bool { return ctx.Err() != nil },
				Guard:         p.Guard,
				Memory:        p.Memory,
				FinalText:     text,
				AgentID:       p.AgentID,
			}, p.Tool)

			toolBudget -= toolOut.ToolsUsed
			if toolOut.ForceEndTurn || toolBudget <= 0 {
				break
			}
			continue
		}

		text, coerced := sanitizeAndRepairAssistantReply(text)
		if coerced != nil {
			// A stray JSON tool-shaped reply is coerced into a synthetic
			// sh call and dispatched in this hop rather than routed as
			// text; the next hop sees its result.
			lastToolCall = 1
			p.Memory.Add(assistantToolMessage("", []schema.ToolCall{*coerced}))
			toolOut := toolexec.Execute(ctx, toolexec.Params{
				Calls:         []schema.ToolCall{*coerced},
				MaxTools:      toolBudget,
				AbortCallback: func() bool { return ctx.Err() != nil },
				Guard:         p.Guard,
				Memory:        p.Memory,
				FinalText:     text,
				AgentID:       p.AgentID,
			}, p.Tool)
			toolBudget -= toolOut.ToolsUsed
			if toolOut.ForceEndTurn || toolBudget <= 0 {
				break
			}
			continue
		}

		if text == "" {
			emptyStreak++
			if emptyStreak >= 2 {
				break
			}
			p.Memory.Add(schema.NewSystemMessage("Your last reply was empty. Reply with text addressed to @@user, @@group, or an agent, or call a tool."))
			continue
		}
		emptyStreak = 0

		p.Memory.Add(schema.NewAIMessage(text))

		route := router.RouteWithTags(text, p.AgentIDs)
		yield := router.Apply(p.AgentID, route.Deliveries, p.AgentIDs, p.Router)
		if yield {
			out.YieldForUser = true
			break
		}
	}

	p.Guard.NoteAssistantTurn(lastText, lastToolCall)
	return out, nil
}

// drainInbox moves every queued message for p.AgentID into memory, prefixed
// with its sender unless the agent is talking to itself (spec §4.H step 2).
func drainInbox(p Params) {
	if p.Inbox == nil {
		return
	}
	msgs := p.Inbox.NextPromptFor(p.AgentID)
	for _, m := range msgs {
		from, _ := m.GetMetadata()["from"].(string)
		content := m.Text()
		if from != "" && from != p.AgentID {
			content = fmt.Sprintf("%s: %s", from, content)
		}
		p.Memory.Add(schema.NewHumanMessage(content))
	}
}

func assistantToolMessage(text string, calls []schema.ToolCall) *schema.AIMessage {
	msg := schema.NewAIMessage(text)
	msg.ToolCalls = calls
	return msg
}

// strayToolCall is the shape a model emits when it writes out tool-call
// JSON as plain text instead of using the driver's structured tool-call
// channel.
type strayToolCall struct {
	Cmd string `json:"cmd"`
}

// sanitizeAndRepairAssistantReply trims text and, if it is nothing but a
// JSON object carrying a "cmd" field, coerces it into a synthetic "sh"
// ToolCall rather than routing the literal JSON as a chat message (spec
// §4.H: "may coerce stray JSON to a single sh call").
func sanitizeAndRepairAssistantReply(text string) (string, *schema.ToolCall) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed[0] != '{' {
		return trimmed, nil
	}
	var stray strayToolCall
	if err := json.Unmarshal([]byte(trimmed), &stray); err != nil || stray.Cmd == "" {
		return trimmed, nil
	}
	args, err := json.Marshal(map[string]string{"cmd": stray.Cmd})
	if err != nil {
		return trimmed, nil
	}
	return trimmed, &schema.ToolCall{ID: "coerced-sh", Name: "sh", Arguments: string(args)}
}
