package ddmin

import (
	"context"
	"fmt"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/errs"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/logging"
	"github.com/sts-go/sts/internal/metrics"
)

// Driver orchestrates a full minimization run end to end: precondition
// filtering, a reproducibility pass over the original trace, optional
// per-class pre-optimization, the Finder search itself, and an optional
// final confirmation replay (spec.md §4.G, SPEC_FULL.md §D). Grounded on
// mcs_finder.py's MCSFinder.simulate.
type Driver struct {
	cfg        config.Driver
	replay     ReplayFunc
	finder     *Finder
	logTracker *MCSLogTracker
	stats      *RuntimeStats
	logger     *logging.Logger
}

// NewDriver builds a Driver. Pass nil for logger to use logging.Default(),
// and nil for obs to use metrics.NoOpObserver{}.
func NewDriver(cfg config.Driver, replay ReplayFunc, logTracker *MCSLogTracker, stats *RuntimeStats, obs metrics.Observer, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Default()
	}
	if stats == nil {
		stats = NewRuntimeStats(0)
	}
	return &Driver{
		cfg:        cfg,
		replay:     replay,
		finder:     NewFinder(cfg, replay, logTracker, stats, obs, logger),
		logTracker: logTracker,
		stats:      stats,
		logger:     logger.Named("ddmin.driver"),
	}
}

// Run executes the complete minimization pipeline against dag, which must
// contain at least one InvariantViolation event (label identifies this run
// in logs and dumped intermediate traces).
func (d *Driver) Run(ctx context.Context, dag *event.DAG, label string) (Result, error) {
	dag = dag.FilterUnsupportedInputTypes()
	dag = dag.MarkInvalidInputSequences()
	if err := dag.Validate(); err != nil {
		return Result{}, err
	}

	if err := d.Verify(ctx, dag, label); err != nil {
		return Result{}, err
	}

	if d.cfg.OptimizedFiltering {
		var err error
		dag, err = d.optimizeByClass(ctx, dag, label)
		if err != nil {
			return Result{}, err
		}
	}

	d.stats.SetDagStats(dag)
	d.stats.RecordPruneStart()
	out, err := d.finder.Run(ctx, dag)
	d.stats.RecordPruneEnd()
	if err != nil {
		return Result{}, err
	}

	result := Result{DAG: out.DAG, InputsPruned: out.InputsPruned}

	if d.cfg.ReplayFinalTrace {
		ok, err := d.replayFinalTrace(ctx, out.DAG, label)
		if err != nil {
			return Result{}, err
		}
		result.FinalReplayOK = ok
	} else {
		result.FinalReplayOK = true
	}

	if d.logTracker != nil {
		if err := d.logTracker.DumpRuntimeStats("runtime_stats.json"); err != nil {
			d.logger.Warn("failed to dump runtime stats", "err", err)
		}
	}

	return result, nil
}

// Verify runs the reproducibility pass mcs_finder.py performs before
// delta-debugging: replay the unmodified trace up to
// cfg.NoViolationVerificationRuns times, recording how many attempts were
// needed. A trace that never reproduces is not a bug worth minimizing
// (errs.KindBugNotReproducible, which the CLI maps to a distinct exit
// code).
func (d *Driver) Verify(ctx context.Context, dag *event.DAG, label string) error {
	runs := d.cfg.NoViolationVerificationRuns
	if runs <= 0 {
		runs = 1
	}
	d.stats.RecordReplayStart()
	defer d.stats.RecordReplayEnd()
	for i := 0; i < runs; i++ {
		found, err := d.replay(ctx, dag, fmt.Sprintf("%s.verify%d", label, i))
		if err != nil {
			return err
		}
		if found {
			d.stats.SetInitialVerificationRunsNeeded(i + 1)
			return nil
		}
	}
	return errs.New("ddmin.Driver.Verify", errs.KindBugNotReproducible,
		fmt.Sprintf("violation did not reproduce in %d verification run(s)", runs))
}

// optimizeByClass tries dropping each input class wholesale, in the same
// order mcs_finder.py's _optimize_event_dag does, keeping the drop whenever
// the violation still reproduces. This is a cheap pre-pass: removing an
// entire irrelevant class (e.g. every TrafficInjection) up front shrinks
// the search space the O(n^2)/O(n) Finder has to work through.
func (d *Driver) optimizeByClass(ctx context.Context, dag *event.DAG, label string) (*event.DAG, error) {
	for _, cls := range event.InputClasses {
		labels := map[string]bool{}
		for _, e := range dag.InputEvents() {
			if e.Cls == cls {
				labels[e.Label] = true
			}
		}
		if len(labels) == 0 {
			continue
		}

		candidate := dag.InputComplement(labels)
		found, err := d.verifyCandidate(ctx, candidate, fmt.Sprintf("%s.optimize-%s", label, cls))
		if err != nil {
			return nil, err
		}
		if found {
			d.logger.Info("dropped input class wholesale", "class", cls, "count", len(labels))
			dag = candidate
		}
	}
	return dag, nil
}

// verifyCandidate replays dag up to cfg.NoViolationVerificationRuns times
// and reports whether the violation reproduced at least once, the same
// retry discipline Finder.checkViolation applies during the search proper.
func (d *Driver) verifyCandidate(ctx context.Context, dag *event.DAG, label string) (bool, error) {
	runs := d.cfg.NoViolationVerificationRuns
	if runs <= 0 {
		runs = 1
	}
	for i := 0; i < runs; i++ {
		found, err := d.replay(ctx, dag, label)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

// replayFinalTrace replays the minimized trace once more so the caller
// knows whether the trace it is about to dump still reproduces on its own,
// outside the search's retry loop (spec.md §4.G "replay_final_trace").
func (d *Driver) replayFinalTrace(ctx context.Context, dag *event.DAG, label string) (bool, error) {
	found, err := d.replay(ctx, dag, label+".final")
	if err != nil {
		return false, err
	}
	if !found {
		d.logger.Warn("final MCS trace did not reproduce on confirmation replay")
	}
	return found, nil
}
