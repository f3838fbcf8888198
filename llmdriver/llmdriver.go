// Package llmdriver defines the Chat Driver contract the turn executor and
// scheduler consume (spec §6): a callback-driven, cancellable request over
// the streaming or non-streaming chat-completion wire format. It adapts the
// project's general-purpose llm.ChatModel abstraction — Generate/Stream over
// iter.Seq2, built for batch RAG-style callers — into the narrower push
// style an agent turn loop needs: a single Chat call that invokes onToken as
// deltas arrive and returns the accumulated text and tool calls once the
// driver finishes or the turn's context is cancelled.
package llmdriver

import (
	"context"
	"runtime"
	"time"

	"github.com/orgrun/org/core"
	"github.com/orgrun/org/llm"
	"github.com/orgrun/org/schema"
)

// cooperativeYield hands control back to the goroutine scheduler, giving a
// pending hotkey or interjection goroutine a chance to run mid-stream.
func cooperativeYield() {
	runtime.Gosched()
}

// StreamingTimeout and NonStreamingTimeout are the outer watchdog durations
// (spec §5) applied when a Request does not set Timeout itself.
const (
	StreamingTimeout    = 2 * time.Hour
	NonStreamingTimeout = 45 * time.Second
)

// Request bundles one Chat invocation's parameters.
type Request struct {
	// Model is the model identifier; empty uses the driver's configured
	// default.
	Model string

	// Tools are the tool definitions advertised to the model, if any.
	Tools []schema.ToolDefinition

	// Stream selects the streaming code path. When false the driver still
	// tolerates a server that only speaks non-streaming JSON (spec §6).
	Stream bool

	// Timeout overrides the outer watchdog. Zero uses StreamingTimeout or
	// NonStreamingTimeout depending on Stream.
	Timeout time.Duration

	// OnToken is invoked with each text delta as it streams in.
	OnToken func(string)

	// OnReasoningToken takes reasoning/thinking deltas. ChatModelDriver
	// never calls it: schema.StreamChunk carries no reasoning delta, so
	// there is no reasoning channel to forward. May be nil.
	OnReasoningToken func(string)

	// OnToolCallDelta is invoked as tool-call argument fragments arrive,
	// accumulated by index per spec §3's ToolCall streaming contract.
	OnToolCallDelta func(schema.ToolCall)
}

// Response is the accumulated result of a Chat call. ChatModelDriver
// leaves Reasoning empty.
type Response struct {
	Text      string
	Reasoning string
	ToolCalls []schema.ToolCall
}

// Driver is the Chat Driver collaborator (spec §6): one call drives a full
// request/response cycle, streaming through the supplied callbacks and
// returning the accumulated result. Implementations must honor ctx
// cancellation at every await, aborting the underlying HTTP connection.
type Driver interface {
	Chat(ctx context.Context, messages []schema.Message, req Request) (Response, error)
}

// ChatModelDriver adapts an llm.ChatModel to the Driver contract, translating
// iter.Seq2 streaming into the callback form and applying the outer
// watchdog timeout as a context deadline.
type ChatModelDriver struct {
	Model llm.ChatModel
}

// New wraps model as a Driver.
func New(model llm.ChatModel) *ChatModelDriver {
	return &ChatModelDriver{Model: model}
}

// Chat implements Driver.
func (d *ChatModelDriver) Chat(ctx context.Context, messages []schema.Message, req Request) (Response, error) {
	timeout := req.Timeout
	if timeout == 0 {
		if req.Stream {
			timeout = StreamingTimeout
		} else {
			timeout = NonStreamingTimeout
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := d.Model
	if len(req.Tools) > 0 {
		model = model.BindTools(req.Tools)
	}

	opts := chatOptions(req)

	if !req.Stream {
		msg, err := model.Generate(ctx, messages, opts...)
		if err != nil {
			return Response{}, wrapErr(ctx, err)
		}
		return Response{Text: msg.Text(), ToolCalls: msg.ToolCalls}, nil
	}

	return d.streamChat(ctx, model, messages, req, opts)
}

// yieldEvery is the cooperative-yield cadence (spec §5): after this many
// accumulated chunks the reader hands control back to the caller's
// goroutine scheduler so hotkey/interjection handling stays responsive even
// mid-stream. Go's goroutine scheduler preempts automatically, but an
// explicit Gosched keeps behaviour aligned with the spec's documented
// cadence rather than relying on the runtime's own heuristics.
const yieldEvery = 32

func (d *ChatModelDriver) streamChat(ctx context.Context, model llm.ChatModel, messages []schema.Message, req Request, opts []llm.GenerateOption) (Response, error) {
	var (
		out      Response
		textBuf  strBuilder
		seen     int
		toolBuf  = map[int]*schema.ToolCall{}
		toolKeys []int
	)

	for chunk, err := range model.Stream(ctx, messages, opts...) {
		if err != nil {
			return Response{}, wrapErr(ctx, err)
		}
		if chunk.Delta != "" {
			textBuf.WriteString(chunk.Delta)
			if req.OnToken != nil {
				req.OnToken(chunk.Delta)
			}
		}
		for i, tc := range chunk.ToolCalls {
			existing, ok := toolBuf[i]
			if !ok {
				cp := tc
				toolBuf[i] = &cp
				toolKeys = append(toolKeys, i)
			} else {
				existing.Arguments += tc.Arguments
				if tc.Name != "" {
					existing.Name = tc.Name
				}
				if tc.ID != "" {
					existing.ID = tc.ID
				}
			}
			if req.OnToolCallDelta != nil {
				req.OnToolCallDelta(tc)
			}
		}

		seen++
		if seen%yieldEvery == 0 {
			cooperativeYield()
		}
	}

	out.Text = textBuf.String()
	for _, i := range toolKeys {
		out.ToolCalls = append(out.ToolCalls, *toolBuf[i])
	}
	return out, nil
}

// strBuilder is a tiny indirection so streamChat reads like the spec's
// "accumulate deltas" prose without importing strings.Builder directly into
// the hot loop's signature.
type strBuilder struct {
	b []byte
}

func (s *strBuilder) WriteString(v string) { s.b = append(s.b, v...) }
func (s *strBuilder) String() string       { return string(s.b) }

func chatOptions(req Request) []llm.GenerateOption {
	if len(req.Tools) > 0 {
		return []llm.GenerateOption{llm.WithToolChoice(llm.ToolChoiceAuto)}
	}
	return nil
}

func wrapErr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return core.NewError("llmdriver.chat", core.ErrTimeout, "driver call timed out", err)
	}
	if ctx.Err() == context.Canceled {
		return core.NewError("llmdriver.chat", core.ErrProviderDown, "driver call cancelled", err)
	}
	return core.NewError("llmdriver.chat", core.ErrProviderDown, "driver call failed", err)
}
