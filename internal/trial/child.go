package trial

import (
	"context"
	"io"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/ddmin"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/fuzzer"
	"github.com/sts-go/sts/internal/logging"
	"github.com/sts-go/sts/internal/oracle"
	"github.com/sts-go/sts/internal/replay"
	"github.com/sts-go/sts/internal/scheduler"
	"github.com/sts-go/sts/internal/simulation"
)

// Builder supplies the concrete, out-of-core collaborators a trial child
// needs: the simulation itself, the observed-internal-event poller bound to
// it, and the invariant checker (spec.md §6 "Collaborator APIs consumed").
// A real binary's cmd package implements this against its actual network
// simulation; trial_test.go's fakeBuilder implements it over
// internal/simtest's fakes.
type Builder interface {
	// BuildSimulation constructs the simulation for one trial. kind tells
	// the builder which sync-callback mode to install (ReplayCallback for
	// KindReplay, RecordingCallback for KindFuzz — spec.md §4.H), since a
	// concrete simulation generally cannot support both at once.
	BuildSimulation(ctx context.Context, kind Kind) (simulation.Simulation, error)
	BuildEnvironment(sim simulation.Simulation) scheduler.Environment
	BuildChecker(sim simulation.Simulation) simulation.InvariantChecker
}

// RunChild reads exactly one Request from stdin, executes it via builder,
// and writes exactly one Response to stdout. Called from main() when
// ChildEnvVar is set (spec.md §5 "one cooperative event loop per
// simulation, in its own process").
func RunChild(ctx context.Context, stdin io.Reader, stdout io.Writer, builder Builder, schedCfg config.Scheduler, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Default()
	}
	var req Request
	if err := readFrame(stdin, &req); err != nil {
		return writeFrame(stdout, Response{Err: err.Error()})
	}

	resp := runOne(ctx, req, builder, schedCfg, logger)
	return writeFrame(stdout, resp)
}

func runOne(ctx context.Context, req Request, builder Builder, schedCfg config.Scheduler, logger *logging.Logger) Response {
	sim, err := builder.BuildSimulation(ctx, req.Kind)
	if err != nil {
		return Response{Err: err.Error()}
	}
	env := builder.BuildEnvironment(sim)
	checker := builder.BuildChecker(sim)
	o := oracle.New(checker, req.BugSignature)

	switch req.Kind {
	case KindReplay:
		dag := event.NewDAG(req.Trace)
		sched := scheduler.New(schedCfg, logger)
		eng := replay.NewEngine(logger)
		result, err := eng.Run(ctx, dag, sim, sched, env, o, replay.SimulationConfig{
			SwitchInitSleepSeconds: req.SwitchInitSleepSeconds,
		})
		if err != nil {
			return Response{Err: err.Error()}
		}
		return Response{Replay: &result, Stats: statsFragment(result)}
	case KindFuzz:
		f := fuzzer.New(sim, req.FuzzerParams, o, logger)
		result, err := f.Run(ctx, req.SwitchInitSleepSeconds)
		if err != nil {
			return Response{Err: err.Error()}
		}
		return Response{Fuzz: &result}
	default:
		return Response{Err: "trial: unknown request kind"}
	}
}

// statsFragment builds the per-trial RuntimeStats fragment a child hands
// back to the parent driver, recorded under subsequence 0 since a child
// has no notion of the parent's search-tree numbering (the parent
// renumbers it via RuntimeStats.Rekey before merging, spec.md §4.G
// "merge_client_dict").
func statsFragment(result replay.Result) *ddmin.RuntimeStats {
	frag := ddmin.NewRuntimeStats(0)
	frag.RecordTimedOutEvents(append([]string(nil), result.TimedOutLabels...))
	frag.RecordNewInternalEvents(labelsOf(result.NewInternalEvents))
	frag.RecordEarlyInternalEvents(labelsOf(result.EarlyInternalEvents))
	frag.RecordMatchedEvents(matchedLabels(result.MatchedEvents))
	frag.RecordBufferedMessageReceipts(labelsOf(result.BufferedReceipts))
	return frag
}

func labelsOf(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Label
	}
	return out
}

func matchedLabels(pairs []scheduler.MatchedPair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.ExpectedLabel
	}
	return out
}
