package guard

// NoteToolCall records one completed tool invocation and runs the
// registered repeat detectors in most-severe-first order, returning the
// first non-zero decision.
func (g *GuardRail) NoteToolCall(name, argsSig, resSig string, exitCode int) Decision {
	key := name + "|" + normalize(argsSig)

	st, ok := g.toolCalls[key]
	if !ok {
		st = &toolCallState{}
		g.toolCalls[key] = st
	}
	st.repeats++

	if st.lastResSig != "" && st.lastResSig == resSig {
		st.unchangedStreak++
	} else {
		st.unchangedStreak = 0
	}
	st.lastResSig = resSig

	if exitCode != 0 {
		st.failureStreak++
	} else {
		st.failureStreak = 0
	}

	obs := ToolCallObservation{
		Name:        name,
		Repeats:     st.repeats,
		RepeatLimit: g.repeatToolSigEndTurnLimit,
		Unchanged:   st.unchangedStreak,
		FailStreak:  st.failureStreak,
	}

	for _, detName := range evalOrder {
		det, err := NewDetector(detName, nil)
		if err != nil {
			continue
		}
		if d := det.Check(obs); !d.IsZero() {
			return d
		}
	}
	return Decision{}
}
