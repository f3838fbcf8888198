package memory

import "github.com/orgrun/org/schema"

const personaWindowMessages = 40

// reflectPersona collects a chronological window of recent messages,
// requests a persona-facet update, and merges it into the running persona
// state with exponential decay. In "auto" mode the persona head block is
// refreshed immediately; "shadow" mode updates state without touching the
// head block.
func (m *LaneSummaryMemory) reflectPersona() {
	m.mu.RLock()
	n := len(m.messages)
	start := 0
	if n > personaWindowMessages {
		start = n - personaWindowMessages
	}
	window := append([]schema.Message(nil), m.messages[start:]...)
	m.mu.RUnlock()

	facets, err := m.cfg.PersonaDistiller.Distill(window)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.persona.facets = mergeFacets(m.persona.facets, facets, m.cfg.DecayPerPass, m.cfg.MinKeepWeight)
	m.persona.version++
	block := renderPersonaBlock(m.persona.facets)
	mode := m.cfg.PersonaMode
	m.mu.Unlock()

	if mode == "auto" {
		m.mu.Lock()
		head, rest := m.splitHeadLocked()
		head = upsertHeadBlock(head, TagPersonaBlock, block)
		m.messages = append([]schema.Message{head}, rest...)
		m.mu.Unlock()
	}
}
