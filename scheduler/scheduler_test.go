package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/orgrun/org/guard"
	"github.com/orgrun/org/inbox"
	"github.com/orgrun/org/llmdriver"
	"github.com/orgrun/org/schema"
	"github.com/orgrun/org/turn"
)

type stubMemory struct {
	added []schema.Message
}

func (m *stubMemory) Add(msg schema.Message)     { m.added = append(m.added, msg) }
func (m *stubMemory) Messages() []schema.Message { return m.added }
func (m *stubMemory) Load(id string) error       { return nil }
func (m *stubMemory) Save(id string) error       { return nil }

type scriptedDriver struct {
	responses []llmdriver.Response
	calls     int
}

func (d *scriptedDriver) Chat(ctx context.Context, messages []schema.Message, req llmdriver.Request) (llmdriver.Response, error) {
	if d.calls >= len(d.responses) {
		return llmdriver.Response{}, nil
	}
	resp := d.responses[d.calls]
	d.calls++
	if req.OnToken != nil && resp.Text != "" {
		req.OnToken(resp.Text)
	}
	return resp, nil
}

func newTestAgent(id string, responses ...llmdriver.Response) *Agent {
	return &Agent{
		ID:     id,
		Memory: &stubMemory{},
		Guard:  guard.New(),
		Turn: turn.Params{
			Driver: &scriptedDriver{responses: responses},
		},
	}
}

func TestSelectAgent_PrefersRespondingHint(t *testing.T) {
	box := inbox.New()
	alice := newTestAgent("alice", llmdriver.Response{Text: "@@user done"})
	bob := newTestAgent("bob", llmdriver.Response{Text: "@@user done"})

	box.Push("alice", schema.NewHumanMessage("hi"))
	box.Push("bob", schema.NewHumanMessage("hi"))

	s := New(Params{
		Agents:   []*Agent{alice, bob},
		Inbox:    box,
		MaxTools: 4,
		Shuffle:  Identity,
	})
	s.respondingHint = "bob"

	s.runSelectAgent(context.Background())

	bobDriver := bob.Turn.Driver.(*scriptedDriver)
	aliceDriver := alice.Turn.Driver.(*scriptedDriver)
	if bobDriver.calls != 1 {
		t.Errorf("bob.calls = %d, want 1 (responding hint should run first)", bobDriver.calls)
	}
	if aliceDriver.calls != 0 {
		t.Errorf("alice.calls = %d, want 0", aliceDriver.calls)
	}
}

func TestSelectAgent_SkipsMutedAgent(t *testing.T) {
	box := inbox.New()
	alice := newTestAgent("alice", llmdriver.Response{Text: "@@user done"})
	alice.mutedUntil = time.Now().Add(time.Hour)

	box.Push("alice", schema.NewHumanMessage("hi"))

	s := New(Params{
		Agents:   []*Agent{alice},
		Inbox:    box,
		MaxTools: 4,
		Shuffle:  Identity,
	})

	s.runSelectAgent(context.Background())

	d := alice.Turn.Driver.(*scriptedDriver)
	if d.calls != 0 {
		t.Errorf("muted agent ran a turn: calls = %d, want 0", d.calls)
	}
}

func TestApplyInterjection_ExplicitAgentTagEnqueuesAndSetsHint(t *testing.T) {
	box := inbox.New()
	alice := newTestAgent("alice")
	bob := newTestAgent("bob")

	s := New(Params{
		Agents:  []*Agent{alice, bob},
		Inbox:   box,
		Shuffle: Identity,
	})

	s.applyInterjection("@@bob please check this")

	if !box.HasWork("bob") {
		t.Fatalf("expected bob's inbox to have work")
	}
	if box.HasWork("alice") {
		t.Errorf("expected alice's inbox to stay empty")
	}
	if s.respondingHint != "bob" {
		t.Errorf("respondingHint = %q, want bob", s.respondingHint)
	}
}

func TestApplyInterjection_NoTagsBroadcasts(t *testing.T) {
	box := inbox.New()
	alice := newTestAgent("alice")
	bob := newTestAgent("bob")

	s := New(Params{
		Agents:  []*Agent{alice, bob},
		Inbox:   box,
		Shuffle: Identity,
	})

	s.applyInterjection("just a plain message")

	if !box.HasWork("alice") || !box.HasWork("bob") {
		t.Errorf("expected broadcast to reach both agents")
	}
}

func TestApplyInterjection_DefaultTargetDMs(t *testing.T) {
	box := inbox.New()
	alice := newTestAgent("alice")
	bob := newTestAgent("bob")

	s := New(Params{
		Agents:  []*Agent{alice, bob},
		Inbox:   box,
		Shuffle: Identity,
	})
	s.lastUserDMTarget = "alice"

	s.applyInterjection("keep going")

	if !box.HasWork("alice") {
		t.Fatalf("expected alice to receive the DM")
	}
	if box.HasWork("bob") {
		t.Errorf("expected bob's inbox to stay empty")
	}
}

func TestRunIdle_TransitionsToSelectAgentWhenWorkPending(t *testing.T) {
	box := inbox.New()
	alice := newTestAgent("alice")
	box.Push("alice", schema.NewHumanMessage("hi"))

	s := New(Params{
		Agents:  []*Agent{alice},
		Inbox:   box,
		Shuffle: Identity,
	})
	s.state = StateIdle

	s.runIdle(context.Background())

	if s.state != StateSelectAgent {
		t.Errorf("state = %v, want %v", s.state, StateSelectAgent)
	}
}

func TestFisherYates_PreservesAllElements(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	shuffled := append([]string(nil), ids...)
	FisherYates(nil)(shuffled)

	seen := map[string]bool{}
	for _, id := range shuffled {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			t.Errorf("shuffled set missing %q", id)
		}
	}
	if len(shuffled) != len(ids) {
		t.Errorf("len(shuffled) = %d, want %d", len(shuffled), len(ids))
	}
}
