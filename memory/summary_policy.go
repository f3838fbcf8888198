package memory

import "github.com/orgrun/org/schema"

// runSummarization applies the summarisation policy to a snapshot of the
// current buffer and installs the result. It is always invoked off the
// calling goroutine, serialised by drainSummarization's singleflight gate.
func (m *LaneSummaryMemory) runSummarization() {
	m.mu.RLock()
	msgs := append([]schema.Message(nil), m.messages...)
	m.mu.RUnlock()

	head, lanes := partitionLanes(msgs)

	keptSet := make(map[schema.Message]bool)
	dropped := make(map[Lane][]schema.Message)
	for lane, laneMsgs := range lanes {
		n := m.cfg.KeepRecentPerLane
		if lane == LaneTool {
			n = m.cfg.KeepRecentTools
		}
		kept, drop := keepTail(laneMsgs, n)
		for _, k := range kept {
			keptSet[k] = true
		}
		dropped[lane] = drop
	}

	var preserved []schema.Message
	for _, msg := range msgs {
		if msg == head {
			continue
		}
		if keptSet[msg] {
			preserved = append(preserved, msg)
		}
	}

	budget := m.cfg.budget()
	preservedEst := m.cfg.estimateTokens(preserved)
	if head != nil {
		preservedEst += m.cfg.estimateOne(head)
	}

	if float64(preservedEst) <= m.cfg.LowRatio*float64(budget) {
		m.installBuffer(head, preserved)
		return
	}

	if m.cfg.Summarizer == nil {
		m.installBuffer(head, m.dropOldestUntilUnder(preserved, budget))
		return
	}

	totalDroppedChars := 0
	for _, lane := range laneOrder {
		totalDroppedChars += charCount(dropped[lane])
	}
	totalDroppedChars += charCount(dropped[LaneSystem])

	summaryBudget := int(float64(budget) * m.cfg.SummaryRatio)
	laneTokens := func(lane Lane) int {
		if totalDroppedChars == 0 {
			return 0
		}
		share := float64(charCount(dropped[lane])) / float64(totalDroppedChars)
		return int(share * float64(summaryBudget))
	}

	if sysDropped := dropped[LaneSystem]; len(sysDropped) > 0 {
		if summary, err := m.cfg.Summarizer.Summarize(string(LaneSystem), sysDropped, laneTokens(LaneSystem)); err == nil && summary != "" {
			head = upsertHeadBlock(head, TagSystemSummary, summary)
		}
	}

	var summaries []schema.Message
	for _, lane := range laneOrder {
		laneDropped := dropped[lane]
		if len(laneDropped) == 0 {
			continue
		}
		summary, err := m.cfg.Summarizer.Summarize(string(lane), laneDropped, laneTokens(lane))
		if err != nil || summary == "" {
			continue
		}
		summaries = append(summaries, summaryMessage(lane, summary))
	}
	rebuilt := append(append([]schema.Message(nil), summaries...), preserved...)

	rebuiltEst := m.cfg.estimateTokens(rebuilt)
	if head != nil {
		rebuiltEst += m.cfg.estimateOne(head)
	}
	if float64(rebuiltEst) > m.cfg.LowRatio*float64(budget) {
		// Trim only the preserved tail; the lane summaries standing in for
		// the dropped history stay at the front.
		rebuilt = append(summaries, m.dropOldestUntilUnder(preserved, budget)...)
	}

	m.installBuffer(head, rebuilt)
}

// summaryMessage wraps a lane's rolled-up summary in a message of the role
// that best represents its lane: the assistant/user lanes keep their own
// voice, tool and other summaries are narrated as system context since
// there is no single speaker to attribute a rolled-up tool history to.
func summaryMessage(lane Lane, text string) schema.Message {
	switch lane {
	case LaneAssistant:
		return schema.NewAIMessage(text)
	case LaneUser:
		return schema.NewHumanMessage(text)
	default:
		return schema.NewSystemMessage("[" + string(lane) + " summary] " + text)
	}
}

// dropOldestUntilUnder removes the oldest non-system message from msgs
// (head is tracked separately and never touched here) until the estimated
// token cost fits under lowRatio·budget or nothing droppable remains.
func (m *LaneSummaryMemory) dropOldestUntilUnder(msgs []schema.Message, budget int) []schema.Message {
	out := append([]schema.Message(nil), msgs...)
	limit := m.cfg.LowRatio * float64(budget)
	for float64(m.cfg.estimateTokens(out)) > limit {
		idx := -1
		for i, msg := range out {
			if msg.GetRole() != schema.RoleSystem {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		out = append(out[:idx], out[idx+1:]...)
	}
	return out
}
