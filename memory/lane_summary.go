package memory

import (
	"sync"

	"github.com/orgrun/org/schema"
	"github.com/orgrun/org/scrub"
	"golang.org/x/sync/singleflight"
)

// LaneSummaryMemory is the sole concrete Memory implementation: an
// append-only buffer, bounded by the budget model and kept under budget by
// lane-partitioned summarisation, with optional persona distillation, a
// normative policy block, PII scrubbing, and file persistence.
type LaneSummaryMemory struct {
	cfg Config

	mu       sync.RWMutex
	messages []schema.Message
	turns    int

	persona     personaState
	lastReflect int

	sf       singleflight.Group
	sumMu    sync.Mutex
	sumDirty bool
}

// NewLaneSummaryMemory builds a LaneSummaryMemory from cfg with opts
// applied. Zero-value numeric fields in cfg fall back to DefaultConfig.
func NewLaneSummaryMemory(cfg Config, opts ...Option) *LaneSummaryMemory {
	merged := DefaultConfig()
	applyNonZero(&merged, cfg)
	for _, opt := range opts {
		opt(&merged)
	}
	if merged.NormativePolicy != "" {
		// Upserted once at construction; GuardRail/turn code may refresh it
		// later via UpsertNormativePolicy if the policy text changes.
	}
	m := &LaneSummaryMemory{cfg: merged}
	if merged.NormativePolicy != "" {
		m.UpsertNormativePolicy(merged.NormativePolicy)
	}
	return m
}

func applyNonZero(dst *Config, src Config) {
	if src.ContextTokens != 0 {
		dst.ContextTokens = src.ContextTokens
	}
	if src.ReserveHeader != 0 {
		dst.ReserveHeader = src.ReserveHeader
	}
	if src.ReserveResponse != 0 {
		dst.ReserveResponse = src.ReserveResponse
	}
	if src.HighRatio != 0 {
		dst.HighRatio = src.HighRatio
	}
	if src.LowRatio != 0 {
		dst.LowRatio = src.LowRatio
	}
	if src.SummaryRatio != 0 {
		dst.SummaryRatio = src.SummaryRatio
	}
	if src.AvgCharsPerToken != 0 {
		dst.AvgCharsPerToken = src.AvgCharsPerToken
	}
	if src.KeepRecentPerLane != 0 {
		dst.KeepRecentPerLane = src.KeepRecentPerLane
	}
	if src.KeepRecentTools != 0 {
		dst.KeepRecentTools = src.KeepRecentTools
	}
	if src.MinReflectGapTurns != 0 {
		dst.MinReflectGapTurns = src.MinReflectGapTurns
	}
	if src.DecayPerPass != 0 {
		dst.DecayPerPass = src.DecayPerPass
	}
	if src.MinKeepWeight != 0 {
		dst.MinKeepWeight = src.MinKeepWeight
	}
	if src.PersonaMode != "" {
		dst.PersonaMode = src.PersonaMode
	}
	if src.Summarizer != nil {
		dst.Summarizer = src.Summarizer
	}
	if src.PersonaDistiller != nil {
		dst.PersonaDistiller = src.PersonaDistiller
	}
	if src.Scrubber != nil {
		dst.Scrubber = src.Scrubber
	}
	if src.NormativePolicy != "" {
		dst.NormativePolicy = src.NormativePolicy
	}
	if src.DynamicBudget {
		dst.DynamicBudget = true
	}
}

// Add appends msg (after optional PII scrubbing) and, without blocking,
// kicks off a summarisation pass if the buffer has grown past the budget
// and a persona-distillation pass if enough turns have elapsed.
func (m *LaneSummaryMemory) Add(msg schema.Message) {
	if m.cfg.Scrubber != nil {
		msg = scrubMessage(msg, m.cfg.Scrubber)
	}

	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.turns++
	shouldReflect := m.cfg.PersonaMode != "off" && m.cfg.PersonaDistiller != nil &&
		m.turns-m.lastReflect >= m.cfg.MinReflectGapTurns
	if shouldReflect {
		m.lastReflect = m.turns
	}
	m.mu.Unlock()

	m.onAfterAdd()
	if shouldReflect {
		go m.reflectPersona()
	}
}

// onAfterAdd checks the summarisation trigger and, if tripped, marks the
// background drain dirty and ensures exactly one drain loop is running.
func (m *LaneSummaryMemory) onAfterAdd() {
	m.mu.RLock()
	est := m.cfg.estimateTokens(m.messages)
	m.mu.RUnlock()

	if float64(est) <= m.cfg.HighRatio*float64(m.cfg.budget()) {
		return
	}

	m.sumMu.Lock()
	m.sumDirty = true
	m.sumMu.Unlock()

	go m.drainSummarization()
}

// drainSummarization runs the summarisation policy at most once
// concurrently (via the singleflight gate); any Add that marks the buffer
// dirty while a pass is already running causes exactly one additional pass
// once the current one finishes, rather than running a pass per Add.
func (m *LaneSummaryMemory) drainSummarization() {
	m.sf.Do("summarize", func() (any, error) {
		for {
			m.sumMu.Lock()
			if !m.sumDirty {
				m.sumMu.Unlock()
				return nil, nil
			}
			m.sumDirty = false
			m.sumMu.Unlock()

			m.runSummarization()
		}
	})
}

// installBuffer atomically replaces the live buffer with head (if any)
// followed by rebuilt.
func (m *LaneSummaryMemory) installBuffer(head schema.Message, rebuilt []schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if head != nil {
		m.messages = append([]schema.Message{head}, rebuilt...)
		return
	}
	m.messages = rebuilt
}

// Messages returns a snapshot of the buffer in chronological order.
func (m *LaneSummaryMemory) Messages() []schema.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// UpsertNormativePolicy replaces or inserts the normative policy block in
// the head system message, creating the head if none exists yet.
func (m *LaneSummaryMemory) UpsertNormativePolicy(policy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	head, rest := m.splitHeadLocked()
	head = upsertHeadBlock(head, TagNormativePolicy, policy)
	m.messages = append([]schema.Message{head}, rest...)
}

func (m *LaneSummaryMemory) splitHeadLocked() (head schema.Message, rest []schema.Message) {
	if len(m.messages) > 0 && m.messages[0].GetRole() == schema.RoleSystem {
		return m.messages[0], m.messages[1:]
	}
	return nil, m.messages
}

func scrubMessage(msg schema.Message, redactor *scrub.Redactor) schema.Message {
	text := msg.Text()
	redacted, changed := redactor.Redact(text)
	if !changed {
		return msg
	}
	switch msg.GetRole() {
	case schema.RoleSystem:
		return schema.NewSystemMessage(redacted)
	case schema.RoleHuman:
		return schema.NewHumanMessage(redacted)
	case schema.RoleAI:
		return schema.NewAIMessage(redacted)
	case schema.RoleTool:
		if tm, ok := msg.(*schema.ToolMessage); ok {
			return schema.NewToolMessage(tm.ToolCallID, redacted)
		}
		return schema.NewToolMessage("", redacted)
	default:
		return msg
	}
}
