package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sts-go/sts/internal/ddmin"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/metrics"
	"github.com/sts-go/sts/internal/tracelog"
	"github.com/sts-go/sts/internal/trial"
)

func newFindCommand() *cobra.Command {
	var (
		tracePath      string
		violationIndex int
		outPath        string
		resultsDir     string
		waitSeconds    float64
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Delta-debug a reproducing trace down to a minimal causal sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			events, err := tracelog.ReadFile(tracePath)
			if err != nil {
				return err
			}
			dag := event.NewDAG(events)

			signature, err := resolveSignature(dag, violationIndex)
			if err != nil {
				return err
			}

			sidecarEvents, _, err := tracelog.ReadUnackedSidecar(tracePath)
			if err != nil {
				return err
			}
			sidecarLabels := make(map[string]bool, len(sidecarEvents))
			for _, e := range sidecarEvents {
				sidecarLabels[e.Label] = true
			}

			logger := loggerFor(cmd)
			childDriver := trial.NewDriver(os.Args[0], nil, logger)

			stats := ddmin.NewRuntimeStats(0)
			var logTracker *ddmin.MCSLogTracker
			if resultsDir != "" {
				logTracker = ddmin.NewMCSLogTracker(resultsDir, stats)
			}

			var nextChildID int

			replay := func(ctx context.Context, dag *event.DAG, label string) (bool, error) {
				resp, err := childDriver.Run(ctx, trial.Request{
					Kind:                   trial.KindReplay,
					Trace:                  dag.Events(),
					SwitchInitSleepSeconds: waitSeconds,
					BugSignature:           signature,
				})
				if err != nil {
					return false, err
				}
				if resp.Replay == nil {
					return false, fmt.Errorf("find[%s]: child returned no replay result", label)
				}

				if len(resp.Replay.TimedOutLabels) > 0 {
					dag.SetEventsAsTimedOut(resp.Replay.TimedOutLabels)
				}

				if resp.Stats != nil {
					ddmin.TrackNewInternalEvents(resp.Stats, sidecarLabels)
					nextChildID++
					resp.Stats.Rekey(nextChildID)
					stats.MergeClientDict(resp.Stats)
				}

				for _, fp := range resp.Replay.Violations {
					if fp.Equal(signature) {
						return true, nil
					}
				}
				return false, nil
			}

			search := metrics.NewSearch()
			driver := ddmin.NewDriver(cfg.Driver, replay, logTracker, stats, metrics.NewSearchObserver(search), logger)
			result, err := driver.Run(cmd.Context(), dag, "root")
			search.Stop()
			if err != nil {
				return err
			}

			fmt.Printf("reduced %d inputs down to %d (pruned %d)\n",
				len(dag.InputEvents()), len(result.DAG.InputEvents()), result.InputsPruned)
			snap := search.Snapshot()
			fmt.Printf("%d trials (%d violations, %d errors), %.2f trials/sec, p50=%s p99=%s\n",
				snap.TrialsRun, snap.ViolationsFound, snap.TrialErrors, snap.TrialsPerSec,
				time.Duration(snap.LatencyP50Ns), time.Duration(snap.LatencyP99Ns))
			if !result.FinalReplayOK {
				logger.Warn("final minimized trace did not reproduce on confirmation replay")
			}

			if outPath != "" {
				dumper := logTracker
				if dumper == nil {
					dumper = ddmin.NewMCSLogTracker("", stats)
				}
				if err := dumper.DumpMCSTrace(result.DAG, outPath); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tracePath, "trace", "", "path to the reproducing NDJSON trace log")
	cmd.Flags().IntVar(&violationIndex, "violation-index", 0, "1-based index of the target fingerprint, when the final InvariantViolation carries more than one; omit to be prompted interactively")
	cmd.Flags().StringVar(&outPath, "out", "", "write the minimal causal sequence to this NDJSON file (plus a .notimeouts sibling)")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "directory to dump intermediate MCS candidates and runtime stats into")
	cmd.Flags().Float64Var(&waitSeconds, "switch-init-sleep", 0, "seconds to wait for switch-controller connections before the first event")
	_ = cmd.MarkFlagRequired("trace")
	return cmd
}
