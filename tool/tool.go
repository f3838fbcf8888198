// Package tool defines the Tool interface agents invoke via the chat
// driver's function-calling surface, a name-keyed Registry, and a
// reflective FuncTool adapter for wrapping a typed Go function as a Tool
// without hand-writing its JSON schema.
package tool

import (
	"context"

	"github.com/orgrun/org/schema"
)

// Result is what a Tool's Execute returns: content parts plus an error
// flag, mirroring how the result is eventually rendered back to the model.
type Result struct {
	Content []schema.ContentPart
	IsError bool
}

// TextResult wraps text as a successful Result.
func TextResult(text string) *Result {
	return &Result{Content: []schema.ContentPart{schema.TextPart{Text: text}}}
}

// ErrorResult wraps err's message as a failed Result.
func ErrorResult(err error) *Result {
	return &Result{Content: []schema.ContentPart{schema.TextPart{Text: err.Error()}}, IsError: true}
}

// Tool is anything callable by name with a JSON-schema-described input.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, input map[string]any) (*Result, error)
}

// Definition is the wire shape sent to a chat driver's tools parameter.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToDefinition converts a Tool to its wire Definition.
func ToDefinition(t Tool) Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.InputSchema(),
	}
}
