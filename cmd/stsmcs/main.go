// Command stsmcs drives replay, fuzzing, and minimal-causal-sequence
// search trials against the two-switch-ring worked example
// (examples/tworing). A real deployment swaps in its own trial.Builder
// for a real topology and real controller binaries; the subcommand
// structure and re-exec dispatch stay the same (spec.md §6 "External
// Interfaces"). Grounded on the teacher's cmd/ublk-mem/main.go as a
// single-binary entrypoint, generalized to cobra's multi-subcommand
// shape since this domain genuinely needs subcommands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/errs"
	"github.com/sts-go/sts/internal/logging"
	"github.com/sts-go/sts/internal/trial"
)

// Exit codes (spec.md §6 "Exit codes" / §7).
const (
	exitOK                 = 0
	exitBugNotReproducible = 5
	exitInterrupted        = 13
)

func main() {
	if os.Getenv(trial.ChildEnvVar) == "1" {
		runAsChild()
		return
	}

	ctx, cancel := signalContext()
	defer cancel()

	root := newRootCommand()
	err := root.ExecuteContext(ctx)
	os.Exit(exitCodeFor(ctx, err))
}

// exitCodeFor maps a subcommand's outcome to spec.md's exit codes: a
// signal-driven cancellation always wins (the process was asked to stop,
// regardless of what the subcommand itself returned), then a reproducibility
// failure, then any other error, then success.
func exitCodeFor(ctx context.Context, err error) int {
	if ctx.Err() != nil {
		return exitInterrupted
	}
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(os.Stderr, err.Error())
	if errs.IsKind(err, errs.KindBugNotReproducible) {
		return exitBugNotReproducible
	}
	return 1
}

// runAsChild re-execs into a trial.RunChild loop: main() was invoked with
// ChildEnvVar set by a parent Driver rather than by a user at a shell.
func runAsChild() {
	logger := logging.Default()
	ctx, cancel := signalContext()
	defer cancel()

	if err := trial.RunChild(ctx, os.Stdin, os.Stdout, &tworingBuilder{}, config.Default().Scheduler, logger); err != nil {
		logger.Error("trial child failed", "err", err)
		os.Exit(1)
	}
}

// signalContext cancels on INT, TERM, or QUIT, letting an in-flight
// trial's Driver kill the child's process group cleanly (spec.md §6
// "Signal handling").
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGINT, unix.SIGTERM, unix.SIGQUIT)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "stsmcs",
		Short: "Record-and-replay debugger for distributed network controllers",
		Long: "stsmcs replays recorded controller traces, fuzzes a live simulation " +
			"for invariant violations, and delta-debugs a reproducing trace down " +
			"to a minimal causal sequence.",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "path to a TOML config file overlaying the defaults")
	root.PersistentFlags().CountP("verbose", "v", "increase log verbosity")

	root.AddCommand(newFuzzCommand())
	root.AddCommand(newRunTrialCommand())
	root.AddCommand(newFindCommand())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func loggerFor(cmd *cobra.Command) *logging.Logger {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	logCfg := logging.DefaultConfig()
	logCfg.Verbose = verbosity
	logger := logging.New(logCfg)
	logging.SetDefault(logger)
	return logger
}

// tworingBuilder is declared in builder_tworing.go, the only file in this
// package that imports examples/tworing.
