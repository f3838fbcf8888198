package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/orgrun/org/hitl"
)

// ttyNotifier answers SAFE_MODE approval requests by printing the pending
// command to stderr and reading a y/n line from stdin, then resolving the
// request through manager.Respond — the TTY prompt bridge the core leaves
// as an external collaborator.
type ttyNotifier struct {
	manager hitl.Manager
}

func (n *ttyNotifier) Notify(ctx context.Context, req hitl.InteractionRequest) error {
	fmt.Fprintf(os.Stderr, "\n[org] %s\nrun? [y/N] ", req.Description)

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))

	decision := hitl.DecisionReject
	if line == "y" || line == "yes" {
		decision = hitl.DecisionApprove
	}

	return n.manager.Respond(ctx, req.ID, hitl.InteractionResponse{Decision: decision})
}
