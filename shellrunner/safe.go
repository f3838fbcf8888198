package shellrunner

import (
	"context"
	"fmt"

	"github.com/orgrun/org/hitl"
)

// declinedStderr is the Stderr of the Result (not an error — see
// SafeConfirmingRunner.Run) returned when the human rejects a command in
// safe mode.
const declinedStderr = "declined by user"

// SafeConfirmingRunner gates every command behind a hitl.Manager approval
// request before delegating to the wrapped Runner, implementing the CLI's
// SAFE_MODE behaviour.
type SafeConfirmingRunner struct {
	next    Runner
	manager hitl.Manager
}

// NewSafeConfirmingRunner wraps next so every command is routed through
// manager's RequestInteraction before it runs.
func NewSafeConfirmingRunner(next Runner, manager hitl.Manager) *SafeConfirmingRunner {
	return &SafeConfirmingRunner{next: next, manager: manager}
}

// Run asks manager for approval to execute cmd. A rejection or a manager
// error (e.g. the confirmation timed out) yields a declined Result rather
// than propagating an error, so callers can surface it as an ordinary
// failed tool result instead of special-casing safe-mode denials.
func (r *SafeConfirmingRunner) Run(ctx context.Context, cmd string) (Result, error) {
	resp, err := r.manager.RequestInteraction(ctx, hitl.InteractionRequest{
		Type:        hitl.TypeApproval,
		ToolName:    "sh",
		Description: fmt.Sprintf("run shell command: %s", cmd),
		Input:       map[string]any{"cmd": cmd},
		RiskLevel:   hitl.RiskIrreversible,
	})
	if err != nil || resp.Decision != hitl.DecisionApprove {
		return Result{OK: false, ExitCode: 130, Stderr: declinedStderr}, nil
	}
	return r.next.Run(ctx, cmd)
}
