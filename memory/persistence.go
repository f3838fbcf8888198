package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/orgrun/org/schema"
)

const memoryDir = ".orgmemories"

var sanitiseRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func sanitiseID(id string) string {
	clean := sanitiseRe.ReplaceAllString(id, "_")
	if clean == "" {
		return "unknown"
	}
	return clean
}

func memoryPath(id string) string {
	return filepath.Join(memoryDir, "memory-"+sanitiseID(id)+".txt")
}

// storedMessage is the wire representation of one schema.Message.
type storedMessage struct {
	Role       schema.Role `json:"role"`
	Text       string      `json:"text"`
	ToolCallID string      `json:"toolCallId,omitempty"`
}

type persistedState struct {
	Version        int             `json:"version"`
	Persona        string          `json:"persona"`
	Ledger         []PersonaFacet  `json:"ledger"`
	MessagesBuffer []storedMessage `json:"messagesBuffer"`
}

func toStored(msgs []schema.Message) []storedMessage {
	out := make([]storedMessage, 0, len(msgs))
	for _, m := range msgs {
		sm := storedMessage{Role: m.GetRole(), Text: m.Text()}
		if tm, ok := m.(*schema.ToolMessage); ok {
			sm.ToolCallID = tm.ToolCallID
		}
		out = append(out, sm)
	}
	return out
}

func fromStored(stored []storedMessage) []schema.Message {
	out := make([]schema.Message, 0, len(stored))
	for _, sm := range stored {
		switch sm.Role {
		case schema.RoleSystem:
			out = append(out, schema.NewSystemMessage(sm.Text))
		case schema.RoleHuman:
			out = append(out, schema.NewHumanMessage(sm.Text))
		case schema.RoleAI:
			out = append(out, schema.NewAIMessage(sm.Text))
		case schema.RoleTool:
			out = append(out, schema.NewToolMessage(sm.ToolCallID, sm.Text))
		}
	}
	return out
}

// Load restores state from this agent's persistence file. A missing or
// empty file is not an error: it leaves the memory at its default (empty)
// state.
func (m *LaneSummaryMemory) Load(id string) error {
	data, err := os.ReadFile(memoryPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = fromStored(state.MessagesBuffer)
	m.persona = personaState{version: state.Version, facets: state.Ledger}
	return nil
}

// Save persists the current state to this agent's file via a temp file
// plus atomic rename, making concurrent readers never observe a partial
// write.
func (m *LaneSummaryMemory) Save(id string) error {
	m.mu.RLock()
	state := persistedState{
		Version:        m.persona.version,
		Persona:        renderPersonaBlock(m.persona.facets),
		Ledger:         m.persona.facets,
		MessagesBuffer: toStored(m.messages),
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	path := memoryPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
