package guard

import "testing"

func TestBeginTurn_ClampsLimits(t *testing.T) {
	tests := []struct {
		maxToolHops   int
		wantBadLimit  int
		wantRepeatLim int
	}{
		{maxToolHops: 1, wantBadLimit: 1, wantRepeatLim: 2},
		{maxToolHops: 4, wantBadLimit: 1, wantRepeatLim: 2},
		{maxToolHops: 8, wantBadLimit: 2, wantRepeatLim: 3},
		{maxToolHops: 100, wantBadLimit: 4, wantRepeatLim: 4},
	}
	for _, tt := range tests {
		g := New()
		g.BeginTurn(tt.maxToolHops)
		if g.badToolEndTurnLimit != tt.wantBadLimit {
			t.Errorf("maxToolHops=%d: badToolEndTurnLimit = %d, want %d", tt.maxToolHops, g.badToolEndTurnLimit, tt.wantBadLimit)
		}
		if g.repeatToolSigEndTurnLimit != tt.wantRepeatLim {
			t.Errorf("maxToolHops=%d: repeatToolSigEndTurnLimit = %d, want %d", tt.maxToolHops, g.repeatToolSigEndTurnLimit, tt.wantRepeatLim)
		}
	}
}

func TestBeginTurn_ResetsPerTurnCounters(t *testing.T) {
	g := New()
	g.BeginTurn(8)
	g.NoteBadToolCall("sh", "missing-arg", []string{"cmd"})
	if g.badToolCount != 1 {
		t.Fatalf("badToolCount = %d, want 1", g.badToolCount)
	}
	g.BeginTurn(8)
	if g.badToolCount != 0 {
		t.Errorf("badToolCount after BeginTurn = %d, want 0", g.badToolCount)
	}
}

func TestNoteAssistantTurn_TracksNoToolCallStreak(t *testing.T) {
	g := New()
	g.NoteAssistantTurn("hi", 0)
	g.NoteAssistantTurn("hi again", 0)
	if g.ConsecutiveNoToolCalls() != 2 {
		t.Errorf("ConsecutiveNoToolCalls() = %d, want 2", g.ConsecutiveNoToolCalls())
	}
	g.NoteAssistantTurn("now with a tool", 1)
	if g.ConsecutiveNoToolCalls() != 0 {
		t.Errorf("ConsecutiveNoToolCalls() after tool call = %d, want 0", g.ConsecutiveNoToolCalls())
	}
}

func TestNoteBadToolCall_OnlyMissingArgAccumulates(t *testing.T) {
	g := New()
	g.BeginTurn(8)
	d := g.NoteBadToolCall("sh", "bad-json", nil)
	if !d.IsZero() {
		t.Errorf("Decision for non missing-arg reason = %+v, want zero", d)
	}
	if g.badToolCount != 0 {
		t.Errorf("badToolCount = %d, want 0", g.badToolCount)
	}
}

func TestNoteBadToolCall_EndsTurnAtLimit(t *testing.T) {
	g := New()
	g.BeginTurn(4) // badToolEndTurnLimit clamps to 1
	d := g.NoteBadToolCall("sh", "missing-arg", []string{"cmd"})
	if !d.EndTurn {
		t.Errorf("EndTurn = false, want true once at limit 1: %+v", d)
	}
	if d.Severity != SeverityFinal {
		t.Errorf("Severity = %q, want FINAL", d.Severity)
	}
}

func TestNoteBadToolCall_EscalatesWhenEnabled(t *testing.T) {
	g := New(WithSeverityEscalation())
	g.BeginTurn(100) // badToolEndTurnLimit clamps to 4
	first := g.NoteBadToolCall("sh", "missing-arg", []string{"cmd"})
	if first.Severity != SeverityWarning {
		t.Errorf("first call severity = %q, want WARNING", first.Severity)
	}
	g.NoteBadToolCall("sh", "missing-arg", []string{"cmd"})
	third := g.NoteBadToolCall("sh", "missing-arg", []string{"cmd"})
	if third.Severity != SeverityStrong {
		t.Errorf("third call severity = %q, want STRONG", third.Severity)
	}
}

func TestNoteToolCall_MildRepeatThenEndTurn(t *testing.T) {
	g := New()
	g.BeginTurn(8) // repeatToolSigEndTurnLimit clamps to 3

	first := g.NoteToolCall("sh", "ls", "0|files", 0)
	if !first.IsZero() {
		t.Errorf("first call decision = %+v, want zero", first)
	}

	second := g.NoteToolCall("sh", "ls", "0|files", 0)
	if second.IsZero() || second.Severity != SeverityWarning {
		t.Errorf("second call decision = %+v, want a mild WARNING nudge", second)
	}

	third := g.NoteToolCall("sh", "ls", "0|files", 0)
	if !third.EndTurn {
		t.Errorf("third call decision = %+v, want EndTurn at repeat limit 3", third)
	}
}

func TestNoteToolCall_RepeatLimitEndsTurn(t *testing.T) {
	g := New()
	g.BeginTurn(4) // repeatToolSigEndTurnLimit clamps to 2
	g.NoteToolCall("sh", "ls", "0|files", 0)
	d := g.NoteToolCall("sh", "ls", "0|files", 0)
	if !d.EndTurn || d.MuteMs == 0 {
		t.Errorf("decision at repeat limit = %+v, want EndTurn and a mute", d)
	}
}

func TestNoteToolCall_UnchangedResultBeatsFailureStreak(t *testing.T) {
	g := New()
	g.BeginTurn(100) // repeatToolSigEndTurnLimit clamps to 4, keeps repeat-limit from firing first
	g.NoteToolCall("sh", "flaky", "1|err", 1)
	g.NoteToolCall("sh", "flaky", "1|err", 1)
	d := g.NoteToolCall("sh", "flaky", "1|err", 1)
	if !d.EndTurn {
		t.Errorf("decision = %+v, want the no-progress end-turn to win over the failure streak nudge", d)
	}
}

func TestNoteToolCall_FailureStreakWhenResultVaries(t *testing.T) {
	g := New()
	g.BeginTurn(100)
	g.NoteToolCall("sh", "flaky", "1|err-a", 1)
	d := g.NoteToolCall("sh", "flaky", "1|err-b", 1)
	if d.IsZero() || d.EndTurn {
		t.Errorf("decision = %+v, want a non-ending failure-streak nudge", d)
	}
}

func TestNoteToolCall_DistinctArgsDoNotAccumulate(t *testing.T) {
	g := New()
	g.BeginTurn(4)
	g.NoteToolCall("sh", "ls /a", "0|a", 0)
	d := g.NoteToolCall("sh", "ls /b", "0|b", 0)
	if !d.IsZero() {
		t.Errorf("decision for a distinct argument signature = %+v, want zero", d)
	}
}

func TestGuardCheck_IgnoresNonGroupRoutes(t *testing.T) {
	g := New()
	g.GuardCheck("group", "ok", nil)
	d := g.GuardCheck("agent", "ok", nil)
	if !d.IsZero() {
		t.Errorf("GuardCheck on a non-group route = %+v, want zero", d)
	}
}

func TestGuardCheck_SuppressesRepeatedLowSignalBroadcast(t *testing.T) {
	g := New()
	g.GuardCheck("group", "ok got it", nil)
	d := g.GuardCheck("group", "OK GOT IT", nil)
	if !d.SuppressBroadcast {
		t.Errorf("decision = %+v, want SuppressBroadcast for a near-identical low-signal repeat", d)
	}
}

func TestGuardCheck_AllowsSubstantiveFollowUp(t *testing.T) {
	g := New()
	g.GuardCheck("group", "I'll start refactoring the parser module now.", nil)
	d := g.GuardCheck("group", "The parser refactor is done, all call sites updated and the build compiles.", nil)
	if d.SuppressBroadcast {
		t.Errorf("decision = %+v, want no suppression for a substantive, dissimilar message", d)
	}
}

func TestOnIdle_AsksUserAfterThreeTicks(t *testing.T) {
	g := New()
	for i := 1; i < idleTicksBeforeAskUser; i++ {
		if d := g.OnIdle(i, nil, true); !d.IsZero() {
			t.Errorf("OnIdle(%d) = %+v, want zero before the threshold", i, d)
		}
	}
	d := g.OnIdle(idleTicksBeforeAskUser, nil, true)
	if d.AskUser == "" {
		t.Errorf("OnIdle(%d) = %+v, want an AskUser prompt", idleTicksBeforeAskUser, d)
	}
}

func TestOnIdle_IgnoresNonEmptyQueues(t *testing.T) {
	g := New()
	d := g.OnIdle(10, nil, false)
	if !d.IsZero() {
		t.Errorf("OnIdle with queuesEmpty=false = %+v, want zero", d)
	}
}
