// Example usage:
//
//	g := guard.New(guard.WithSeverityEscalation())
//	g.BeginTurn(maxToolHops)
//	...
//	dec := g.NoteToolCall("sh", cmd, resultSig, exitCode)
//	if dec.EndTurn {
//	    // append dec.Nudge to memory as a system message and stop the turn
//	}
package guard
