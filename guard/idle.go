package guard

const idleTicksBeforeAskUser = 3

// OnIdle is consulted by the scheduler when no agent has pending work. Once
// the queues have been empty for idleTicksBeforeAskUser consecutive ticks,
// it produces a prompt asking the user how to proceed.
func (g *GuardRail) OnIdle(idleTicks int, peers []string, queuesEmpty bool) Decision {
	if !queuesEmpty || idleTicks < idleTicksBeforeAskUser {
		return Decision{}
	}
	return Decision{AskUser: "the group has gone idle with no pending work; what would you like to happen next?"}
}
