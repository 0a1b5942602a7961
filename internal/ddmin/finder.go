// Package ddmin implements the delta-debugging search that reduces a
// reproducing trace down to a minimal causal sequence: the classic O(n²)
// ddmin (Zeller & Hildebrandt, TSE 2002 §3.2) and the O(n)
// EfficientMCSFinder (Zeller, ESEC 1999 §4), both operating over atomic
// input groups so a Recovery is never pruned away from its Failure
// (spec.md §4.G). Grounded on
// _examples/original_source/sts/control_flow/mcs_finder.py's MCSFinder and
// EfficientMCSFinder.
package ddmin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/logging"
	"github.com/sts-go/sts/internal/metrics"
)

// ReplayFunc drives dag once under label and reports whether the target
// violation reproduced. The caller supplies this (internal/trial, or a
// direct internal/replay.Engine call in-process) so the search algorithm
// itself stays independent of how a trial is actually executed.
type ReplayFunc func(ctx context.Context, dag *event.DAG, label string) (bool, error)

// Finder runs the delta-debugging search against a ReplayFunc.
type Finder struct {
	cfg        config.Driver
	replay     ReplayFunc
	cache      *PrecomputeCache
	logTracker *MCSLogTracker
	stats      *RuntimeStats
	metrics    metrics.Observer
	logger     *logging.Logger
}

// NewFinder builds a Finder. Pass nil for logger to use logging.Default(),
// and nil for obs to use metrics.NoOpObserver{}.
func NewFinder(cfg config.Driver, replay ReplayFunc, logTracker *MCSLogTracker, stats *RuntimeStats, obs metrics.Observer, logger *logging.Logger) *Finder {
	if logger == nil {
		logger = logging.Default()
	}
	if stats == nil {
		stats = NewRuntimeStats(0)
	}
	if obs == nil {
		obs = metrics.NoOpObserver{}
	}
	return &Finder{
		cfg:        cfg,
		replay:     replay,
		cache:      NewPrecomputeCache(),
		logTracker: logTracker,
		stats:      stats,
		metrics:    obs,
		logger:     logger.Named("ddmin"),
	}
}

// Result is what a search run reports. FinalReplayOK is left false by
// Finder.Run itself; Driver.Run sets it once its own confirmation replay
// (if any) completes.
type Result struct {
	DAG           *event.DAG
	InputsPruned  int
	FinalReplayOK bool
}

// Run executes the configured search strategy (ddmin by default,
// EfficientMCSFinder when cfg.Efficient is set) starting from the full
// dag.
func (f *Finder) Run(ctx context.Context, dag *event.DAG) (Result, error) {
	if f.cfg.Efficient {
		out, pruned, err := f.efficientDdmin(ctx, dag, nil, 0, nil, 0)
		if err != nil {
			return Result{}, err
		}
		return Result{DAG: out, InputsPruned: pruned}, nil
	}
	out, pruned, err := f.ddmin(ctx, dag, 2, nil, 0)
	if err != nil {
		return Result{}, err
	}
	return Result{DAG: out, InputsPruned: pruned}, nil
}

// ddmin is the O(n²) algorithm from Zeller & Hildebrandt, TSE 2002 §3.2.
func (f *Finder) ddmin(ctx context.Context, dag *event.DAG, splitWays int, labelPrefix []string, totalPruned int) (*event.DAG, int, error) {
	atoms := dag.AtomicInputEvents()
	if splitWays > len(atoms) {
		f.logger.Info("search converged", "inputs_remaining", len(dag.InputEvents()))
		return dag, totalPruned, nil
	}

	subsets := event.SplitAtoms(atoms, splitWays)

	for i, subset := range subsets {
		label := localLabel(i, splitWays, false)
		newDag := dag.AtomicInputSubset(subset)
		if f.alreadyDoneOrEmpty(newDag) {
			continue
		}

		f.stats.RecordIterationSize(len(dag.InputEvents()) - totalPruned)
		violation, err := f.checkViolation(ctx, newDag, joinLabel(labelPrefix, label))
		if err != nil {
			return nil, 0, err
		}
		if violation {
			f.logger.Info("subset reproduced violation, subselecting", "label", label)
			f.dumpIntermediate(newDag, joinLabel(labelPrefix, label))
			delta := len(dag.InputEvents()) - len(newDag.InputEvents())
			f.metrics.ObservePrune(delta)
			pruned := totalPruned + delta
			return f.ddmin(ctx, newDag, 2, append(append([]string(nil), labelPrefix...), label), pruned)
		}
	}

	for i, subset := range subsets {
		label := localLabel(i, splitWays, true)
		newDag := dag.AtomicInputComplement(subset)
		if f.alreadyDoneOrEmpty(newDag) {
			continue
		}

		f.stats.RecordIterationSize(len(dag.InputEvents()) - totalPruned)
		violation, err := f.checkViolation(ctx, newDag, joinLabel(labelPrefix, label))
		if err != nil {
			return nil, 0, err
		}
		if violation {
			f.logger.Info("complement reproduced violation, subselecting", "label", label)
			f.dumpIntermediate(newDag, joinLabel(labelPrefix, label))
			delta := len(dag.InputEvents()) - len(newDag.InputEvents())
			f.metrics.ObservePrune(delta)
			pruned := totalPruned + delta
			return f.ddmin(ctx, newDag, maxInt(splitWays-1, 2), append(append([]string(nil), labelPrefix...), label), pruned)
		}
	}

	if splitWays < len(atoms) {
		f.logger.Debug("no violation at this granularity, increasing split", "split_ways", splitWays)
		return f.ddmin(ctx, dag, minInt(len(atoms), splitWays*2), labelPrefix, totalPruned)
	}
	return dag, totalPruned, nil
}

// efficientDdmin is the O(n) algorithm from Zeller, ESEC 1999 §4.
// carryover is "r" from the paper: atoms known to be necessary that must
// always accompany whichever half is under test.
func (f *Finder) efficientDdmin(ctx context.Context, dag *event.DAG, carryover []event.Atom, recursionLevel int, labelPrefix []string, totalPruned int) (*event.DAG, int, error) {
	atoms := dag.AtomicInputEvents()
	if len(atoms) <= 1 {
		return dag, totalPruned, nil
	}

	halves := event.SplitAtoms(atoms, 2)
	left, right := halves[0], halves[1]
	leftDag := dag.AtomicInputSubset(left)
	rightDag := dag.AtomicInputSubset(right)
	candidates := []struct {
		label string
		sub   *event.DAG
	}{
		{localLabel(0, 2, false), leftDag},
		{localLabel(1, 2, false), rightDag},
	}

	for _, c := range candidates {
		testDag := c.sub.InsertAtomicInputs(carryover)
		f.stats.RecordIterationSize(len(dag.InputEvents()) - totalPruned)
		violation, err := f.checkViolation(ctx, testDag, joinLabel(labelPrefix, c.label))
		if err != nil {
			return nil, 0, err
		}
		if violation {
			f.logger.Info("violation found in half, recursing", "label", c.label)
			f.dumpIntermediate(c.sub, joinLabel(labelPrefix, c.label))
			delta := len(dag.InputEvents()) - len(c.sub.InputEvents())
			f.metrics.ObservePrune(delta)
			pruned := totalPruned + delta
			return f.efficientDdmin(ctx, c.sub, carryover, recursionLevel+1,
				append(append([]string(nil), labelPrefix...), c.label), pruned)
		}
	}

	f.logger.Debug("interference, recursing on both halves", "recursion_level", recursionLevel)
	leftPrefix := append(append([]string(nil), labelPrefix...), fmt.Sprintf("il/%d", recursionLevel))
	leftResult, pruned, err := f.efficientDdmin(ctx, leftDag,
		rightDag.InsertAtomicInputs(carryover).AtomicInputEvents(), recursionLevel+1, leftPrefix, totalPruned)
	if err != nil {
		return nil, 0, err
	}

	rightPrefix := append(append([]string(nil), labelPrefix...), fmt.Sprintf("ir/%d", recursionLevel))
	rightResult, pruned, err := f.efficientDdmin(ctx, rightDag,
		leftDag.InsertAtomicInputs(carryover).AtomicInputEvents(), recursionLevel+1, rightPrefix, pruned)
	if err != nil {
		return nil, 0, err
	}

	return leftResult.InsertAtomicInputs(rightResult.AtomicInputEvents()), pruned, nil
}

// checkViolation retries up to NoViolationVerificationRuns times, as a
// reproducibility pass guarding against indeterminate replays (spec.md §4.G
// "no_violation_verification_runs", SPEC_FULL.md §D).
func (f *Finder) checkViolation(ctx context.Context, dag *event.DAG, label string) (bool, error) {
	runs := f.cfg.NoViolationVerificationRuns
	if runs <= 0 {
		runs = 1
	}
	for i := 0; i < runs; i++ {
		start := time.Now()
		found, err := f.replay(ctx, dag, label)
		f.metrics.ObserveTrial(uint64(time.Since(start).Nanoseconds()), found, err)
		if err != nil {
			return false, err
		}
		if found {
			f.stats.RecordViolationFound(i)
			return true, nil
		}
	}
	return false, nil
}

// alreadyDoneOrEmpty reports whether dag's input sequence should be
// skipped: either it was already tried (precompute cache hit) or pruning
// dependencies left it empty (spec.md §4.G "Already computed. Skipping").
func (f *Finder) alreadyDoneOrEmpty(dag *event.DAG) bool {
	inputs := dag.InputEvents()
	labels := make([]string, len(inputs))
	for i, e := range inputs {
		labels[i] = e.Label
	}
	if f.cache.AlreadyDone(labels) {
		return true
	}
	f.cache.Update(labels)
	return len(labels) == 0
}

func (f *Finder) dumpIntermediate(dag *event.DAG, label string) {
	if f.logTracker == nil {
		return
	}
	if err := f.logTracker.MaybeDumpIntermediateMCS(dag, label); err != nil {
		f.logger.Warn("failed to dump intermediate MCS", "err", err)
	}
}

func localLabel(i, splitWays int, inverse bool) string {
	if inverse {
		return fmt.Sprintf("~%d/%d", i, splitWays)
	}
	return fmt.Sprintf("%d/%d", i, splitWays)
}

func joinLabel(prefix []string, label string) string {
	all := append(append([]string(nil), prefix...), label)
	return strings.Join(all, ".")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
