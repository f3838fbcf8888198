// Package scheduler implements the cooperative, single-threaded main loop
// (spec §4.I): a state machine over {Init, Idle, SelectAgent, RunAgent,
// Stopped} that fans inbox work out to the Agent Turn Executor one turn at
// a time, applies guard-rail mute decisions, and bridges interjections and
// idle prompts to and from the user.
//
// The state-machine shape is grounded on orchestration.Supervisor's
// round-based delegation loop (orchestration/supervisor.go): a struct
// holding a strategy function and a bounded loop invoking one agent at a
// time. Scheduler generalises that into an explicit FSM because, unlike
// Supervisor's fixed maxRounds, the loop here runs until Stop/Drain and
// must interleave idle ticks, interjections and mute bookkeeping between
// turns. RoundRobin/LoadBalanced's atomic-counter style informed the
// fairness the shuffle selector needs but isn't reused verbatim since the
// spec mandates Fisher-Yates rather than strict round robin by default.
package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/orgrun/org/fswriter"
	"github.com/orgrun/org/guard"
	"github.com/orgrun/org/inbox"
	"github.com/orgrun/org/memory"
	"github.com/orgrun/org/o11y"
	"github.com/orgrun/org/router"
	"github.com/orgrun/org/schema"
	"github.com/orgrun/org/tag"
	"github.com/orgrun/org/turn"
)

// State is one of the scheduler's five FSM states.
type State string

const (
	StateInit        State = "init"
	StateIdle        State = "idle"
	StateSelectAgent State = "select_agent"
	StateRunAgent    State = "run_agent"
	StateStopped     State = "stopped"
)

// defaultIdlePromptEvery is how many consecutive empty-queue idle ticks
// pass before the guard rail is consulted about asking the user something
// (spec §4.I).
const defaultIdlePromptEvery = 3

// defaultIdleSleep is how long Idle sleeps between ticks when there is
// nothing to do and no user line to read.
const defaultIdleSleep = 200 * time.Millisecond

// Agent is one participant the scheduler can select and run a turn for.
type Agent struct {
	ID     string
	Memory memory.Memory
	Guard  *guard.GuardRail

	// Turn carries this agent's fixed per-turn config (Driver, Model,
	// Tools, Tool collaborators); the scheduler fills in the
	// per-invocation fields (AgentID, AgentIDs, Inbox, Memory, Guard,
	// Router) before each call to turn.Run.
	Turn turn.Params

	mutedUntil time.Time
}

// Shuffle reorders ids in place before each SelectAgent pass. The default
// is Fisher-Yates; Identity gives the round-robin variant (spec §4.I
// "Round-robin variant fixes shuffle = identity").
type Shuffle func(ids []string)

// FisherYates returns a Shuffle that performs an unbiased in-place
// Fisher-Yates shuffle using r, or the package-level rand source if r is
// nil.
func FisherYates(r *rand.Rand) Shuffle {
	return func(ids []string) {
		for i := len(ids) - 1; i > 0; i-- {
			var j int
			if r != nil {
				j = r.Intn(i + 1)
			} else {
				j = rand.Intn(i + 1)
			}
			ids[i], ids[j] = ids[j], ids[i]
		}
	}
}

// Identity leaves ids in their existing order, giving round-robin
// selection when combined with a stable input order.
func Identity(ids []string) {}

// Params configures a Scheduler.
type Params struct {
	Agents      []*Agent
	Inbox       *inbox.Inbox
	MaxTools    int
	Shuffle     Shuffle
	IdleSleep   time.Duration
	IdlePromptEvery int

	// PromptEnabled gates both idle-prompt and interjection user reads.
	PromptEnabled bool

	// ReadUserLine, if set, is polled once per idle tick when the queues
	// are empty and PromptEnabled is set; a non-empty returned line is
	// treated as an interjection.
	ReadUserLine func(ctx context.Context) (string, bool)

	// OnAskUser is invoked with a guard-produced prompt when OnIdle
	// decides to ask the user something, or when applyGuardDecision's
	// AskUser fires.
	OnAskUser func(ctx context.Context, prompt string)

	// Files, if set, lets ##file deliveries produced by any agent's turn
	// be persisted to disk. Nil drops file deliveries silently (the tag
	// router treats WriteFile as optional).
	Files fswriter.Writer

	Logger *o11y.Logger
}

// Scheduler runs the cooperative main loop described in spec §4.I.
type Scheduler struct {
	p Params

	state            State
	agentIdx         map[string]*Agent
	agentIDs         []string
	idleTicks        int
	respondingHint   string
	lastUserDMTarget string

	interjection     string
	hasInterjection  bool

	draining bool
	stopped  bool

	cancelCurrent context.CancelFunc
}

// New constructs a Scheduler in state Init.
func New(p Params) *Scheduler {
	if p.Shuffle == nil {
		p.Shuffle = FisherYates(nil)
	}
	if p.IdleSleep <= 0 {
		p.IdleSleep = defaultIdleSleep
	}
	if p.IdlePromptEvery <= 0 {
		p.IdlePromptEvery = defaultIdlePromptEvery
	}
	if p.Logger == nil {
		p.Logger = o11y.NewLogger()
	}

	idx := make(map[string]*Agent, len(p.Agents))
	ids := make([]string, 0, len(p.Agents))
	for _, a := range p.Agents {
		idx[a.ID] = a
		ids = append(ids, a.ID)
	}

	return &Scheduler{
		p:        p,
		state:    StateInit,
		agentIdx: idx,
		agentIDs: ids,
	}
}

// Interject sets a one-shot pending interjection, consumed on the next
// Idle pass (spec §4.I "Interjection API").
func (s *Scheduler) Interject(text string) {
	s.interjection = text
	s.hasInterjection = true
}

// Stop marks the scheduler Stopped, cancelling any in-flight driver call
// and saving every agent's memory.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stopped = true
	if s.cancelCurrent != nil {
		s.cancelCurrent()
	}
	s.saveAll(ctx)
	s.state = StateStopped
}

// Drain refuses new interjections and, once the current agent (if any)
// finishes, stops.
func (s *Scheduler) Drain() {
	s.draining = true
}

// State reports the scheduler's current FSM state.
func (s *Scheduler) State() State {
	return s.state
}

// Run drives the FSM to completion: Init → Idle → ... → Stopped. It
// returns when Stop is called, ctx is cancelled, or the scheduler reaches
// Stopped on its own (never, absent Stop/Drain — the loop is meant to run
// for the life of the session).
func (s *Scheduler) Run(ctx context.Context) {
	s.state = StateIdle
	for {
		if ctx.Err() != nil || s.stopped {
			s.Stop(ctx)
			return
		}
		switch s.state {
		case StateIdle:
			s.runIdle(ctx)
		case StateSelectAgent:
			s.runSelectAgent(ctx)
		case StateStopped:
			return
		default:
			s.state = StateIdle
		}
	}
}

func (s *Scheduler) runIdle(ctx context.Context) {
	if s.hasInterjection && !s.draining {
		text := s.interjection
		s.interjection = ""
		s.hasInterjection = false
		s.applyInterjection(text)
		return
	}

	if s.draining {
		s.Stop(ctx)
		return
	}

	if s.p.Inbox.HasAnyWork() {
		s.state = StateSelectAgent
		return
	}

	s.idleTicks++

	if s.p.ReadUserLine != nil && s.p.PromptEnabled {
		if line, ok := s.p.ReadUserLine(ctx); ok && line != "" {
			s.applyInterjection(line)
			return
		}
	}

	if s.idleTicks%s.p.IdlePromptEvery == 0 && s.p.PromptEnabled {
		for _, a := range s.p.Agents {
			dec := a.Guard.OnIdle(s.idleTicks, s.others(a.ID), true)
			if dec.AskUser != "" {
				s.askUser(ctx, dec.AskUser)
				break
			}
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(s.p.IdleSleep):
	}
}

// applyInterjection routes one interjection via the tag router's parse
// layer (spec §4.I Idle bullet 1): explicit @@agent tags enqueue and set
// the responding hint, otherwise a default target (last user DM target, or
// nothing) takes a DM, otherwise it broadcasts.
func (s *Scheduler) applyInterjection(text string) {
	route := router.RouteWithTags(text, s.agentIDs)

	if len(route.Deliveries) == 0 || !route.SawTags {
		target := s.lastUserDMTarget
		if target != "" {
			s.enqueue(target, userMessage(text))
			s.respondingHint = target
		} else {
			s.broadcastFromUser(text)
		}
		return
	}

	sawAgentTag := false
	for _, d := range route.Deliveries {
		if d.Kind == tag.KindAgent {
			sawAgentTag = true
			target := resolveAgentID(d.Target, s.agentIDs)
			if target == "" {
				continue
			}
			s.enqueue(target, userMessageFrom("user", d.Content))
			s.respondingHint = target
		}
	}
	if !sawAgentTag {
		s.broadcastFromUser(text)
	}
}

func (s *Scheduler) broadcastFromUser(text string) {
	for _, id := range s.agentIDs {
		s.enqueue(id, userMessage(text))
	}
}

func (s *Scheduler) enqueue(id string, msg schema.Message) {
	s.p.Inbox.Push(id, msg)
}

func userMessage(content string) schema.Message {
	return userMessageFrom("user", content)
}

func userMessageFrom(from, content string) schema.Message {
	m := schema.NewHumanMessage(content)
	m.Metadata = map[string]any{"from": from}
	return m
}

func resolveAgentID(target string, agentIDs []string) string {
	for _, id := range agentIDs {
		if id == target {
			return id
		}
	}
	return ""
}

func (s *Scheduler) askUser(ctx context.Context, prompt string) {
	if s.p.OnAskUser != nil {
		s.p.OnAskUser(ctx, prompt)
	}
}

// runSelectAgent shuffles ready agents, skips muted ones, prefers the
// responding hint, and runs exactly one turn before returning to Idle
// (spec §4.I SelectAgent).
func (s *Scheduler) runSelectAgent(ctx context.Context) {
	s.state = StateIdle

	ready := make([]string, 0, len(s.agentIDs))
	for _, id := range s.agentIDs {
		if s.p.Inbox.HasWork(id) {
			ready = append(ready, id)
		}
	}
	if len(ready) == 0 {
		return
	}

	now := time.Now()
	order := append([]string(nil), ready...)
	s.p.Shuffle(order)

	if s.respondingHint != "" {
		for i, id := range order {
			if id == s.respondingHint {
				order[0], order[i] = order[i], order[0]
				break
			}
		}
	}

	var chosen *Agent
	for _, id := range order {
		a := s.agentIdx[id]
		if a == nil {
			continue
		}
		if a.mutedUntil.After(now) {
			continue
		}
		chosen = a
		break
	}
	if chosen == nil {
		return
	}
	s.respondingHint = ""

	s.runAgentTurn(ctx, chosen)
}

func (s *Scheduler) runAgentTurn(ctx context.Context, a *Agent) {
	s.state = StateRunAgent
	turnCtx, cancel := context.WithCancel(ctx)
	s.cancelCurrent = cancel
	defer func() {
		cancel()
		s.cancelCurrent = nil
		s.state = StateIdle
	}()

	params := a.Turn
	params.AgentID = a.ID
	params.AgentIDs = s.agentIDs
	params.Inbox = s.p.Inbox
	params.Memory = a.Memory
	params.Guard = a.Guard
	if params.MaxToolHops == 0 {
		params.MaxToolHops = s.p.MaxTools
	}
	params.Router = s.collaborators(a)

	out, err := turn.Run(turnCtx, params)
	if err != nil {
		s.p.Logger.Warn(ctx, "agent turn failed", "agent", a.ID, "error", err)
		return
	}
	if out.YieldForUser {
		s.lastUserDMTarget = a.ID
	}
}

// collaborators builds the router.Collaborators that route deliveries
// produced inside a's turn back into the scheduler's shared inbox and
// mute/hint state.
func (s *Scheduler) collaborators(a *Agent) router.Collaborators {
	return router.Collaborators{
		Enqueue: func(toID string, msg schema.Message) {
			s.p.Inbox.Push(toID, msg)
		},
		SetRespondingAgent: func(agentID string) {
			s.respondingHint = agentID
		},
		ApplyGuard: func(kind, content string, peers []string) bool {
			dec := a.Guard.GuardCheck(kind, content, peers)
			s.applyGuardDecision(a, dec)
			return dec.SuppressBroadcast
		},
		SetLastUserDMTarget: func(agentID string) {
			s.lastUserDMTarget = agentID
		},
		WriteFile: func(from, name, content string) {
			if s.p.Files == nil {
				return
			}
			if _, err := s.p.Files.Write(name, content); err != nil {
				s.p.Logger.Warn(context.Background(), "file delivery failed", "agent", from, "path", name, "error", err)
			}
		},
	}
}

// applyGuardDecision appends dec.Nudge to the agent's own inbox, applies a
// mute if requested, and performs a user ask if set (spec §4.I "Mute").
func (s *Scheduler) applyGuardDecision(a *Agent, dec guard.Decision) {
	if dec.IsZero() {
		return
	}
	if dec.Nudge != "" {
		s.enqueue(a.ID, schema.NewSystemMessage(dec.Nudge))
	}
	if dec.MuteMs > 0 {
		ms := dec.MuteMs
		if ms < 250 {
			ms = 250
		}
		a.mutedUntil = time.Now().Add(time.Duration(ms) * time.Millisecond)
	}
	if dec.AskUser != "" && s.p.PromptEnabled {
		s.lastUserDMTarget = a.ID
		s.askUser(context.Background(), dec.AskUser)
	}
}

func (s *Scheduler) others(self string) []string {
	out := make([]string, 0, len(s.agentIDs))
	for _, id := range s.agentIDs {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

func (s *Scheduler) saveAll(ctx context.Context) {
	for _, a := range s.p.Agents {
		if err := a.Memory.Save(a.ID); err != nil {
			s.p.Logger.Error(ctx, "failed to save agent memory", "agent", a.ID, "error", err)
		}
	}
}
