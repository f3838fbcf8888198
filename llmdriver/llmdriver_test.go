package llmdriver

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/orgrun/org/core"
	"github.com/orgrun/org/llm"
	"github.com/orgrun/org/schema"
)

type stubModel struct {
	generateMsg   *schema.AIMessage
	generateErr   error
	streamChunks  []schema.StreamChunk
	streamErr     error
	boundTools    []schema.ToolDefinition
	blockUntilCtx bool
}

func (m *stubModel) Generate(ctx context.Context, msgs []schema.Message, opts ...llm.GenerateOption) (*schema.AIMessage, error) {
	return m.generateMsg, m.generateErr
}

func (m *stubModel) Stream(ctx context.Context, msgs []schema.Message, opts ...llm.GenerateOption) iter.Seq2[schema.StreamChunk, error] {
	return func(yield func(schema.StreamChunk, error) bool) {
		if m.blockUntilCtx {
			<-ctx.Done()
			yield(schema.StreamChunk{}, ctx.Err())
			return
		}
		for _, c := range m.streamChunks {
			if !yield(c, nil) {
				return
			}
		}
		if m.streamErr != nil {
			yield(schema.StreamChunk{}, m.streamErr)
		}
	}
}

func (m *stubModel) BindTools(tools []schema.ToolDefinition) llm.ChatModel {
	m.boundTools = tools
	return m
}

func (m *stubModel) ModelID() string { return "stub" }

func TestChat_NonStreamingReturnsAccumulatedResult(t *testing.T) {
	model := &stubModel{generateMsg: schema.NewAIMessage("hello there")}
	d := New(model)

	resp, err := d.Chat(context.Background(), []schema.Message{schema.NewHumanMessage("hi")}, Request{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text != "hello there" {
		t.Errorf("resp.Text = %q, want %q", resp.Text, "hello there")
	}
}

func TestChat_StreamingAccumulatesTokensAndCallsOnToken(t *testing.T) {
	model := &stubModel{streamChunks: []schema.StreamChunk{
		{Delta: "hel"},
		{Delta: "lo"},
	}}
	d := New(model)

	var got string
	resp, err := d.Chat(context.Background(), nil, Request{
		Stream: true,
		OnToken: func(tok string) {
			got += tok
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("resp.Text = %q, want %q", resp.Text, "hello")
	}
	if got != "hello" {
		t.Errorf("accumulated OnToken calls = %q, want %q", got, "hello")
	}
}

func TestChat_StreamingAccumulatesToolCallDeltasByIndex(t *testing.T) {
	model := &stubModel{streamChunks: []schema.StreamChunk{
		{ToolCalls: []schema.ToolCall{{ID: "call-1", Name: "sh", Arguments: `{"cmd":`}}},
		{ToolCalls: []schema.ToolCall{{Arguments: `"echo hi"}`}}},
	}}
	d := New(model)

	resp, err := d.Chat(context.Background(), nil, Request{Stream: true})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("len(resp.ToolCalls) = %d, want 1", len(resp.ToolCalls))
	}
	got := resp.ToolCalls[0]
	if got.ID != "call-1" || got.Name != "sh" {
		t.Errorf("tool call identity = %+v, want ID=call-1 Name=sh", got)
	}
	if got.Arguments != `{"cmd":"echo hi"}` {
		t.Errorf("accumulated arguments = %q", got.Arguments)
	}
}

func TestChat_BindsToolsWhenRequestHasTools(t *testing.T) {
	model := &stubModel{generateMsg: schema.NewAIMessage("ok")}
	d := New(model)
	tools := []schema.ToolDefinition{{Name: "sh"}}

	if _, err := d.Chat(context.Background(), nil, Request{Tools: tools}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(model.boundTools) != 1 || model.boundTools[0].Name != "sh" {
		t.Errorf("boundTools = %+v, want [{Name: sh}]", model.boundTools)
	}
}

func TestChat_StreamingErrorWrapsAsProviderDown(t *testing.T) {
	model := &stubModel{streamChunks: []schema.StreamChunk{{Delta: "x"}}, streamErr: context.Canceled}
	d := New(model)

	_, err := d.Chat(context.Background(), nil, Request{Stream: true})
	if err == nil {
		t.Fatal("expected an error")
	}
	var cerr *core.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error is not a core.Error: %v", err)
	}
	if cerr.Code != core.ErrProviderDown {
		t.Errorf("cerr.Code = %v, want %v", cerr.Code, core.ErrProviderDown)
	}
}

func TestChat_TimeoutSurfacesAsErrTimeout(t *testing.T) {
	model := &stubModel{blockUntilCtx: true}
	d := New(model)

	_, err := d.Chat(context.Background(), nil, Request{Stream: true, Timeout: 10 * time.Millisecond})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	var cerr *core.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error is not a core.Error: %v", err)
	}
	if cerr.Code != core.ErrTimeout {
		t.Errorf("cerr.Code = %v, want %v", cerr.Code, core.ErrTimeout)
	}
}
