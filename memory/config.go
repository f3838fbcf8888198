package memory

import (
	"github.com/orgrun/org/schema"
	"github.com/orgrun/org/scrub"
)

// Summarizer produces a short natural-language summary of messages. It is
// injected rather than imported directly so this package does not depend
// on a concrete chat driver. llmdriver.LaneSummarizer implements it over a
// chat model; neither the turn executor nor cmd/org sets Config.Summarizer,
// so their memories trim by dropping the oldest messages without summaries.
type Summarizer interface {
	Summarize(lane string, messages []schema.Message, maxTokens int) (string, error)
}

// PersonaDistiller extracts structured persona facets from a chronological
// window of recent messages, used by the optional persona-distillation
// pass. Implementations are expected to request strict-JSON output from
// the underlying model and parse it into facets.
type PersonaDistiller interface {
	Distill(window []schema.Message) ([]PersonaFacet, error)
}

// Config holds the budget model and optional collaborators for a
// LaneSummaryMemory. Zero-value fields fall back to the defaults in
// DefaultConfig.
type Config struct {
	ContextTokens   int
	ReserveHeader   int
	ReserveResponse int

	HighRatio    float64
	LowRatio     float64
	SummaryRatio float64

	AvgCharsPerToken float64

	KeepRecentPerLane int
	KeepRecentTools   int

	MinReflectGapTurns int
	DecayPerPass       float64
	MinKeepWeight      float64
	PersonaMode        string // "off", "shadow", or "auto"

	Summarizer       Summarizer
	PersonaDistiller PersonaDistiller
	Scrubber         *scrub.Redactor
	NormativePolicy  string
	DynamicBudget    bool
}

// DefaultConfig returns the budget model's documented defaults.
func DefaultConfig() Config {
	return Config{
		ContextTokens:      128_000,
		ReserveHeader:      2_000,
		ReserveResponse:    4_000,
		HighRatio:          0.85,
		LowRatio:           0.55,
		SummaryRatio:       0.20,
		AvgCharsPerToken:   3.6,
		KeepRecentPerLane:  4,
		KeepRecentTools:    6,
		MinReflectGapTurns: 12,
		DecayPerPass:       0.15,
		MinKeepWeight:      0.05,
		PersonaMode:        "off",
	}
}

// Option mutates a Config before a LaneSummaryMemory is constructed from
// it, composing the optional behaviour described in the budget model.
type Option func(*Config)

// WithPersonaDistillation enables the periodic persona-update pass. mode
// is "shadow" (update state silently) or "auto" (also refresh the persona
// head block); "off" (the default) disables the pass entirely.
func WithPersonaDistillation(mode string, distiller PersonaDistiller) Option {
	return func(c *Config) {
		c.PersonaMode = mode
		c.PersonaDistiller = distiller
	}
}

// WithNormativePolicy upserts a fixed policy block into the head system
// message, independent of summarisation.
func WithNormativePolicy(policy string) Option {
	return func(c *Config) { c.NormativePolicy = policy }
}

// WithScrubber redacts PII from every message's text on the way into the
// buffer.
func WithScrubber(r *scrub.Redactor) Option {
	return func(c *Config) { c.Scrubber = r }
}

// WithDynamicBudget sets the DynamicBudget flag. The flag is only stored:
// budget() always uses the static ContextTokens value, and nothing in this
// package recomputes it from the live model's context length.
func WithDynamicBudget() Option {
	return func(c *Config) { c.DynamicBudget = true }
}
