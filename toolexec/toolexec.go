// Package toolexec dispatches the tool calls an assistant turn produced:
// the built-in "sh"/"exec" shell tool, the supplemental "read_file"/"cat"
// file tool, and a JSON error result for anything else, each wrapped in
// the wire-exact tool result format and guard-rail bookkeeping the turn
// executor depends on to decide whether to keep looping.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orgrun/org/fswriter"
	"github.com/orgrun/org/guard"
	"github.com/orgrun/org/memory"
	"github.com/orgrun/org/schema"
	"github.com/orgrun/org/shellrunner"
)

const headChars = 240

// wireResult is the bit-exact JSON shape (spec §6) reported back to the
// model as a tool message's text content.
type wireResult struct {
	OK       bool   `json:"ok"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Cmd      string `json:"cmd"`
}

// addResult appends a tool-result message to memory, tagging it with the
// originating call id and tool name per the wire format contract.
func addResult(m memory.Memory, call schema.ToolCall, r wireResult) {
	msg := schema.NewToolMessage(call.ID, marshalResult(r))
	msg.Metadata = map[string]any{"name": call.Name}
	m.Add(msg)
}

func marshalResult(r wireResult) string {
	b, err := json.Marshal(r)
	if err != nil {
		// wireResult's fields are all plain strings/ints/bools; Marshal
		// cannot fail here.
		return fmt.Sprintf(`{"ok":false,"stdout":"","stderr":%q,"exit_code":1,"cmd":""}`, err.Error())
	}
	return string(b)
}

// Params bundles one Execute invocation's per-turn state.
type Params struct {
	Calls         []schema.ToolCall
	MaxTools      int
	AbortCallback func() bool
	Guard         *guard.GuardRail
	Memory        memory.Memory
	FinalText     string
	AgentID       string
}

// Outcome reports how many calls were dispatched and whether the turn
// must end immediately afterward.
type Outcome struct {
	ToolsUsed    int
	ForceEndTurn bool
}

// Collaborators are the external systems a call may be dispatched to.
type Collaborators struct {
	Shell shellrunner.Runner
	Files fswriter.Reader
}

// Execute dispatches p.Calls in order, appending a tool-result message to
// p.Memory for each and returning the number dispatched and whether the
// guard rail or a missing-argument nudge forced the turn to end early.
func Execute(ctx context.Context, p Params, c Collaborators) Outcome {
	var out Outcome

	for _, call := range p.Calls {
		if p.AbortCallback != nil && p.AbortCallback() {
			break
		}
		if out.ToolsUsed >= p.MaxTools || out.ForceEndTurn {
			break
		}

		switch call.Name {
		case "sh", "exec":
			if dispatchShell(ctx, call, p, c.Shell, &out) {
				return out
			}
		case "read_file", "cat":
			dispatchReadFile(call, p, c.Files, &out)
		default:
			out.ToolsUsed++
			addResult(p.Memory, call, wireResult{
				OK:       false,
				ExitCode: 2,
				Stderr:   "unknown tool: " + call.Name,
			})
		}
	}

	return out
}

type shellArgs struct {
	Cmd string `json:"cmd"`
}

// dispatchShell runs one "sh"/"exec" call and reports whether Execute
// should return immediately (the guard rail ended the turn on a
// missing-argument nudge).
func dispatchShell(ctx context.Context, call schema.ToolCall, p Params, runner shellrunner.Runner, out *Outcome) bool {
	var args shellArgs
	_ = json.Unmarshal([]byte(call.Arguments), &args) // best effort; empty Cmd handled below

	if args.Cmd == "" {
		out.ToolsUsed++
		dec := p.Guard.NoteBadToolCall("sh", "missing-arg", []string{"cmd"})
		if dec.EndTurn {
			p.Memory.Add(schema.NewSystemMessage(dec.Nudge))
			p.Memory.Add(schema.NewAIMessage(p.FinalText))
			out.ForceEndTurn = true
			return true
		}
		addResult(p.Memory, call, wireResult{
			OK:       false,
			Stderr:   "Execution failed: Command required.",
			ExitCode: 1,
		})
		return false
	}

	res, err := runner.Run(ctx, args.Cmd)
	if err != nil {
		res = shellrunner.Result{OK: false, ExitCode: 1, Stderr: err.Error()}
	}
	out.ToolsUsed++

	resSig := fmt.Sprintf("%d|%s", res.ExitCode, head(res.Stdout, headChars))
	dec := p.Guard.NoteToolCall("sh", args.Cmd, resSig, res.ExitCode)

	addResult(p.Memory, call, wireResult{
		OK:       res.OK,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Cmd:      args.Cmd,
	})

	if dec.EndTurn {
		out.ForceEndTurn = true
		return true
	}
	return false
}

type readFileArgs struct {
	Path string `json:"path"`
}

func dispatchReadFile(call schema.ToolCall, p Params, reader fswriter.Reader, out *Outcome) {
	out.ToolsUsed++

	var args readFileArgs
	_ = json.Unmarshal([]byte(call.Arguments), &args)

	if args.Path == "" {
		addResult(p.Memory, call, wireResult{
			OK:       false,
			Stderr:   "Execution failed: Path required.",
			ExitCode: 1,
		})
		return
	}

	content, err := reader.Read(args.Path)
	if err != nil {
		addResult(p.Memory, call, wireResult{
			OK:       false,
			Stderr:   err.Error(),
			ExitCode: 1,
			Cmd:      args.Path,
		})
		return
	}

	addResult(p.Memory, call, wireResult{
		OK:     true,
		Stdout: content,
		Cmd:    args.Path,
	})
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
