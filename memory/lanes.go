package memory

import "github.com/orgrun/org/schema"

// Lane partitions a message buffer for independent summarisation.
type Lane string

const (
	LaneAssistant Lane = "assistant"
	LaneUser      Lane = "user"
	LaneSystem    Lane = "system"
	LaneTool      Lane = "tool"
	LaneOther     Lane = "other"
)

// laneOrder fixes the order summaries are emitted in: assistant before
// user, matching the ordering guarantee in the budget model.
var laneOrder = []Lane{LaneAssistant, LaneUser, LaneTool, LaneOther}

func laneOf(m schema.Message) Lane {
	switch m.GetRole() {
	case schema.RoleAI:
		return LaneAssistant
	case schema.RoleHuman:
		return LaneUser
	case schema.RoleSystem:
		return LaneSystem
	case schema.RoleTool:
		return LaneTool
	default:
		return LaneOther
	}
}

// partitionLanes splits msgs into per-lane slices, preserving chronological
// order within each lane. The first system message is pulled out as the
// head and excluded from the system lane entirely — it is never summarised
// away, only ever has tagged blocks upserted into it.
func partitionLanes(msgs []schema.Message) (head schema.Message, lanes map[Lane][]schema.Message) {
	lanes = make(map[Lane][]schema.Message)
	for _, m := range msgs {
		if m.GetRole() == schema.RoleSystem && head == nil {
			head = m
			continue
		}
		lane := laneOf(m)
		lanes[lane] = append(lanes[lane], m)
	}
	return head, lanes
}

// keepTail splits msgs into the oldest len(msgs)-n (dropped) and the newest
// n (kept), preserving chronological order in both. n <= 0 drops
// everything; n >= len(msgs) keeps everything.
func keepTail(msgs []schema.Message, n int) (kept, dropped []schema.Message) {
	if n <= 0 {
		return nil, msgs
	}
	if n >= len(msgs) {
		return msgs, nil
	}
	cut := len(msgs) - n
	return msgs[cut:], msgs[:cut]
}

func charCount(msgs []schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Text())
	}
	return total
}
