package memory

import (
	"strings"
	"testing"

	"github.com/orgrun/org/schema"
)

func TestEstimateOne_CapsToolOutputForEstimation(t *testing.T) {
	cfg := DefaultConfig()
	long := strings.Repeat("x", toolOutputCharCap*2)
	msg := schema.NewToolMessage("call-1", long)

	got := cfg.estimateOne(msg)
	capped := cfg.estimateOne(schema.NewToolMessage("call-1", strings.Repeat("x", toolOutputCharCap)))
	if got != capped {
		t.Errorf("estimateOne() = %d for an over-cap tool message, want the capped estimate %d", got, capped)
	}
}

func TestEstimateTokens_SumsAcrossMessages(t *testing.T) {
	cfg := DefaultConfig()
	msgs := []schema.Message{
		schema.NewHumanMessage("hello"),
		schema.NewAIMessage("world"),
	}
	want := cfg.estimateOne(msgs[0]) + cfg.estimateOne(msgs[1])
	if got := cfg.estimateTokens(msgs); got != want {
		t.Errorf("estimateTokens() = %d, want %d", got, want)
	}
}
