// Command org is the CLI entrypoint: it loads the runtime configuration,
// wires one scheduler.Agent per roster entry, delivers the kickoff prompt,
// and runs the scheduler loop until it drains or the process is signalled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orgrun/org/o11y"
	"github.com/orgrun/org/orgconfig"
)

const (
	exitOK          = 0
	exitUserQuit    = 130
	exitNoPrompt    = 66
	exitBootFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		safeMode   bool
		debug      bool
		uiMode     string
		sessionDir string
	)

	cmd := &cobra.Command{
		Use:           "org [prompt]",
		Short:         "Run a roster of agents against a kickoff prompt",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
	}

	var exitCode int
	cmd.RunE = func(c *cobra.Command, args []string) error {
		rt, err := orgconfig.Load(configPath)
		if err != nil {
			exitCode = exitBootFailure
			return err
		}

		if c.Flags().Changed("safe") {
			rt.SafeMode = safeMode
		}
		if c.Flags().Changed("debug") {
			rt.Debug = debug
		}
		if c.Flags().Changed("ui-mode") {
			rt.UIMode = uiMode
		}
		if c.Flags().Changed("session-dir") {
			rt.SessionDir = sessionDir
		}

		var prompt string
		if len(args) == 1 {
			prompt = args[0]
		}
		if prompt == "" {
			line, ok := readStdinLine(context.Background())
			if !ok || strings.TrimSpace(line) == "" {
				exitCode = exitNoPrompt
				return fmt.Errorf("cmd/org: no kickoff prompt given as an argument or on stdin")
			}
			prompt = line
		}

		if err := ensureSessionDir(rt.SessionDir); err != nil {
			exitCode = exitBootFailure
			return fmt.Errorf("cmd/org: session dir: %w", err)
		}

		logOpts := []o11y.LogOption{}
		if rt.Debug {
			logOpts = append(logOpts, o11y.WithLogLevel("debug"))
		}
		logger := o11y.NewLogger(logOpts...)

		runID := rt.RunID
		if runID == "" {
			runID = "local"
		}
		telemetryShutdown, err := initTelemetry(context.Background(), runID, rt.Debug)
		if err != nil {
			logger.Warn(context.Background(), "telemetry init failed, continuing without tracing", "error", err)
		}
		defer telemetryShutdown()

		sched, box, err := buildScheduler(rt, logger)
		if err != nil {
			exitCode = exitBootFailure
			return err
		}

		for _, a := range rt.Agents {
			box.Push(a.ID, kickoffMessage(prompt))
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		sched.Run(ctx)

		if ctx.Err() != nil {
			exitCode = exitUserQuit
			return nil
		}
		exitCode = exitOK
		return nil
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to an org.yaml roster file")
	cmd.Flags().BoolVar(&safeMode, "safe", false, "require interactive confirmation before running shell commands")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&uiMode, "ui-mode", "", "rich or tmux")
	cmd.Flags().StringVar(&sessionDir, "session-dir", "", "directory for session memory and file output")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "org:", err)
		if exitCode == exitOK {
			exitCode = exitBootFailure
		}
	}
	return exitCode
}
