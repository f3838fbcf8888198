package router

import (
	"github.com/orgrun/org/schema"
	"github.com/orgrun/org/tag"
)

// Collaborators are the side effects the apply layer needs injected so it
// stays independent of the scheduler and guard implementations.
type Collaborators struct {
	// Enqueue delivers msg to the named agent's inbox.
	Enqueue func(toID string, msg schema.Message)

	// SetRespondingAgent hints to the scheduler which agent should run
	// next, after a successful direct-message delivery.
	SetRespondingAgent func(agentID string)

	// ApplyGuard consults and applies the sender's guard for a group
	// broadcast, returning whether the broadcast should be suppressed.
	ApplyGuard func(kind, content string, peers []string) (suppressBroadcast bool)

	// SetLastUserDMTarget records which agent last addressed the user
	// directly, for reply routing.
	SetLastUserDMTarget func(agentID string)

	// WriteFile persists a file delivery's content under name, attributed
	// to the sending agent.
	WriteFile func(from, name, content string)
}

// Apply runs the side-effect layer: for each delivery produced by
// RouteWithTags, it resolves agent targets, consults the guard before
// fanning a group message out, and invokes the file-writer callback for
// file deliveries. It reports whether the caller should yield for user
// input.
func Apply(sender string, deliveries []Delivery, agentIDs []string, c Collaborators) bool {
	yieldForUser := false

	broadcast := func(content string) {
		for _, id := range others(sender, agentIDs) {
			c.Enqueue(id, userMessage(sender, content))
		}
	}

	for _, d := range deliveries {
		switch d.Kind {
		case tag.KindAgent:
			target := resolveAgent(d.Target, agentIDs)
			if target == "" {
				broadcast(d.Content)
				continue
			}
			c.Enqueue(target, userMessage(sender, d.Content))
			if c.SetRespondingAgent != nil {
				c.SetRespondingAgent(target)
			}

		case tag.KindGroup:
			suppress := false
			if c.ApplyGuard != nil {
				suppress = c.ApplyGuard("group", d.Content, others(sender, agentIDs))
			}
			if suppress {
				continue
			}
			broadcast(d.Content)

		case tag.KindUser:
			yieldForUser = true
			if c.SetLastUserDMTarget != nil {
				c.SetLastUserDMTarget(sender)
			}

		case tag.KindFile:
			if c.WriteFile != nil {
				c.WriteFile(sender, d.Name, d.Content)
			}
		}
	}

	return yieldForUser
}
