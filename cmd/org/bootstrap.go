package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/orgrun/org/config"
	"github.com/orgrun/org/fswriter"
	"github.com/orgrun/org/guard"
	"github.com/orgrun/org/hitl"
	"github.com/orgrun/org/inbox"
	"github.com/orgrun/org/llm"
	"github.com/orgrun/org/llmdriver"
	"github.com/orgrun/org/memory"
	"github.com/orgrun/org/o11y"
	"github.com/orgrun/org/orgconfig"
	"github.com/orgrun/org/scheduler"
	"github.com/orgrun/org/schema"
	"github.com/orgrun/org/shellrunner"
	"github.com/orgrun/org/toolexec"
	"github.com/orgrun/org/turn"

	// Blank-imported so each provider's init() registers itself with the
	// llm registry; cmd/org is the one place that needs the whole set.
	_ "github.com/orgrun/org/llm/providers/anthropic"
	_ "github.com/orgrun/org/llm/providers/openai"
)

const defaultModelProvider = "openai"

// buildScheduler wires one Agent per roster entry and returns a ready-to-run
// Scheduler along with the Inbox the kickoff prompt is delivered through.
func buildScheduler(rt *orgconfig.RuntimeConfig, logger *o11y.Logger) (*scheduler.Scheduler, *inbox.Inbox, error) {
	if len(rt.Agents) == 0 {
		return nil, nil, fmt.Errorf("cmd/org: no agents configured; add an `agents:` roster to the config file")
	}

	box := inbox.New()

	var shellRun shellrunner.Runner = shellrunner.New()
	if rt.SafeMode {
		notifier := &ttyNotifier{}
		mgr := hitl.NewManager(hitl.WithNotifier(notifier))
		notifier.manager = mgr
		shellRun = shellrunner.NewSafeConfirmingRunner(shellRun, mgr)
	}

	fileWriter := fswriter.NewSandboxWriter(rt.SessionDir)
	fileReader := fswriter.NewReader(rt.SessionDir)

	agents := make([]*scheduler.Agent, 0, len(rt.Agents))
	for _, roster := range rt.Agents {
		mem, err := memory.New("lane-summary", memoryConfigFor(rt, roster))
		if err != nil {
			return nil, nil, fmt.Errorf("cmd/org: memory for %s: %w", roster.ID, err)
		}
		if err := mem.Load(roster.ID); err != nil {
			logger.Warn(context.Background(), "failed to load agent memory, starting fresh", "agent", roster.ID, "error", err)
		}

		model, err := llm.New(providerFromModel(roster.Model), config.ProviderConfig{
			Provider: providerFromModel(roster.Model),
			Model:    roster.Model,
			APIKey:   os.Getenv(strings.ToUpper(providerFromModel(roster.Model)) + "_API_KEY"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("cmd/org: model for %s: %w", roster.ID, err)
		}

		agents = append(agents, &scheduler.Agent{
			ID:     roster.ID,
			Memory: mem,
			Guard:  guard.New(),
			Turn: turn.Params{
				Driver: llmdriver.New(model),
				Model:  roster.Model,
				Tool:   toolexec.Collaborators{Shell: shellRun, Files: fileReader},
			},
		})
	}

	sched := scheduler.New(scheduler.Params{
		Agents:        agents,
		Inbox:         box,
		MaxTools:      8,
		PromptEnabled: true,
		ReadUserLine:  readStdinLine,
		OnAskUser: func(_ context.Context, prompt string) {
			fmt.Fprintf(os.Stderr, "\n[org] %s\n> ", prompt)
		},
		Files:  fileWriter,
		Logger: logger,
	})
	return sched, box, nil
}

func memoryConfigFor(rt *orgconfig.RuntimeConfig, roster orgconfig.Agent) memory.Config {
	cfg := memory.DefaultConfig()
	if roster.Persona != "" {
		cfg.NormativePolicy = roster.Persona
	}
	switch rt.DynamicMemory {
	case orgconfig.DynamicMemoryShadow, orgconfig.DynamicMemoryAuto:
		cfg.DynamicBudget = true
	}
	return cfg
}

// providerFromModel guesses the registered provider name from a model
// string's conventional prefix (e.g. "gpt-4o" -> openai,
// "claude-sonnet-4-5" -> anthropic), falling back to defaultModelProvider.
func providerFromModel(model string) string {
	switch {
	case strings.HasPrefix(model, "claude"):
		return "anthropic"
	case strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3"):
		return "openai"
	default:
		return defaultModelProvider
	}
}

func readStdinLine(ctx context.Context) (string, bool) {
	type result struct {
		line string
		ok   bool
	}
	ch := make(chan result, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			ch <- result{}
			return
		}
		ch <- result{line: strings.TrimSpace(line), ok: true}
	}()
	select {
	case <-ctx.Done():
		return "", false
	case r := <-ch:
		return r.line, r.ok
	}
}

func kickoffMessage(prompt string) schema.Message {
	return schema.NewHumanMessage(prompt)
}

func ensureSessionDir(dir string) error {
	return os.MkdirAll(filepath.Clean(dir), 0o755)
}
