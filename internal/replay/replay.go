// Package replay drives one simulation from an event DAG: it interpolates
// time, injects inputs, waits for internal events via the scheduler, and
// reports what happened (spec.md §4.D). Grounded on the teacher's
// backend.go bootstrap/CreateAndServe .. StopAndDelete lifecycle shape and
// on _examples/original_source/sts/control_flow.py's Replayer.
package replay

import (
	"context"

	"github.com/sts-go/sts/internal/errs"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/logging"
	"github.com/sts-go/sts/internal/oracle"
	"github.com/sts-go/sts/internal/scheduler"
	"github.com/sts-go/sts/internal/simulation"
	syncpkg "github.com/sts-go/sts/internal/sync"
)

// epsilonMicros is the interpolated-time heuristic's ε (spec.md §4.D).
const epsilonMicros = 500

// InterpolatedClock answers "what time is it" for controllers during
// replay with a synthetic value positioned just before the next landmark
// event, monotonically non-decreasing across calls (spec.md §4.D, GLOSSARY
// "Interpolated time").
type InterpolatedClock struct {
	last event.Time
	have bool
}

// Next advances the clock to just-before landmark and returns the new
// value, clamped so it never regresses relative to the previous call.
func (c *InterpolatedClock) Next(landmark event.Time) event.Time {
	micros := landmark.Micros - epsilonMicros
	if micros < 0 {
		micros = 0
	}
	candidate := event.Time{Seconds: landmark.Seconds, Micros: micros}
	if c.have && candidate.Compare(c.last) < 0 {
		candidate = c.last
	}
	c.last = candidate
	c.have = true
	return candidate
}

// Current returns the last value Next produced, without advancing.
func (c *InterpolatedClock) Current() event.Time {
	return c.last
}

// SimulationConfig configures one replay trial's bootstrap.
type SimulationConfig struct {
	// SwitchInitSleepSeconds is how long to wait for switch-controller
	// connections before the first event (spec.md §4.D "Bootstrap").
	SwitchInitSleepSeconds float64
}

// Result is the tuple the replay engine reports (spec.md §4.D "Output").
type Result struct {
	Violations          []event.Fingerprint
	TimedOutLabels       []string
	NewInternalEvents    []event.Event
	EarlyInternalEvents  []event.Event
	MatchedEvents        []scheduler.MatchedPair
	BufferedReceipts     []event.Event
	BootstrapPrefix      []simulation.PendingStateChange
	Ambiguities          int
}

// Engine drives a single simulation from a DAG to completion.
type Engine struct {
	logger *logging.Logger
}

// NewEngine builds an Engine; pass nil to use logging.Default().
func NewEngine(logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{logger: logger.Named("replay")}
}

// Run bootstraps sim, drives every event in dag in order, checks the
// invariant oracle once at the end, tears the simulation down, and
// returns the accumulated Result. checker may be nil to skip the oracle
// check (e.g. during a dry run).
func (eng *Engine) Run(
	ctx context.Context,
	dag *event.DAG,
	sim simulation.Simulation,
	sched *scheduler.Scheduler,
	env scheduler.Environment,
	checker *oracle.Oracle,
	cfg SimulationConfig,
) (Result, error) {
	if err := sim.Bootstrap(ctx, cfg.SwitchInitSleepSeconds); err != nil {
		return Result{}, errs.Wrap("replay.Run", errs.KindIO, err)
	}
	defer func() {
		if err := sim.CleanUp(ctx); err != nil {
			eng.logger.Warn("clean up failed", "err", err)
		}
	}()

	clock := &InterpolatedClock{}

	var bootstrapPrefix []simulation.PendingStateChange
	if replayCB, ok := sim.SyncCallback().(*syncpkg.ReplayCallback); ok {
		replayCB.SetInterpolate(func() (event.Time, error) { return clock.Current(), nil })
		bootstrapPrefix = replayCB.UnsetPassThrough()
	}

	for _, e := range dag.Events() {
		if e.Cls == event.ClassInvariantViolation {
			// Checked via the oracle once the rest of the DAG has been
			// driven, not waited for as an ordinary internal event.
			continue
		}
		clock.Next(e.T)
		if e.IsInput() {
			if err := eng.inject(sim, e); err != nil {
				return Result{}, err
			}
			continue
		}
		sched.AwaitMatch(env, e)
	}

	report := sched.Report()

	var violations []event.Fingerprint
	if checker != nil {
		_, fps, err := checker.Check(ctx, sim)
		if err != nil {
			return Result{}, errs.Wrap("replay.Run", errs.KindIO, err)
		}
		violations = fps
	}

	return Result{
		Violations:          violations,
		TimedOutLabels:       report.TimedOut,
		NewInternalEvents:    report.Unexpected,
		EarlyInternalEvents:  report.Early,
		MatchedEvents:        report.Matched,
		BufferedReceipts:     sim.OpenFlowBuffer().PendingReceives(),
		BootstrapPrefix:      bootstrapPrefix,
		Ambiguities:          report.Ambiguities,
	}, nil
}

// inject dispatches an input event to the matching TopologyView or
// ControllerManager mutator (spec.md §6 "Collaborator APIs consumed").
// Classes with no in-core mutator (dataplane/traffic/policy, owned by the
// out-of-scope patch panel) are logged and skipped.
func (eng *Engine) inject(sim simulation.Simulation, e event.Event) error {
	topo := sim.Topology()
	ctrl := sim.ControllerManager()

	switch e.Cls {
	case event.ClassSwitchFailure:
		return topo.CrashSwitch(intField(e, "dpid"))
	case event.ClassSwitchRecovery:
		return topo.RecoverSwitch(intField(e, "dpid"))
	case event.ClassLinkFailure:
		return topo.SeverLink(linkOf(e))
	case event.ClassLinkRecovery:
		return topo.RepairLink(linkOf(e))
	case event.ClassControllerFailure:
		return ctrl.CrashController(intField(e, "cid"))
	case event.ClassControllerRecovery:
		return ctrl.RecoverController(intField(e, "cid"))
	case event.ClassControlChannelBlock:
		return topo.BlockConnection(intField(e, "dpid"), intField(e, "cid"))
	case event.ClassControlChannelUnblock:
		return topo.UnblockConnection(intField(e, "dpid"), intField(e, "cid"))
	case event.ClassHostMigration:
		return topo.MigrateHost(
			intField(e, "old_dpid"), int32(intField(e, "old_port")),
			intField(e, "new_dpid"), int32(intField(e, "new_port")),
		)
	case event.ClassTrafficInjection, event.ClassDataplaneDrop, event.ClassDataplanePermit, event.ClassPolicyChange:
		eng.logger.Debug("dataplane/policy input has no in-core mutator, skipping", "class", e.Cls, "label", e.Label)
		return nil
	default:
		eng.logger.Warn("unknown input class during replay", "class", e.Cls, "label", e.Label)
		return nil
	}
}

func intField(e event.Event, name string) int64 {
	v, ok := e.Field(name)
	if !ok {
		return 0
	}
	if f, ok := v.(float64); ok {
		return int64(f)
	}
	return 0
}

func linkOf(e event.Event) simulation.Link {
	return simulation.Link{
		SrcDPID: intField(e, "src_dpid"),
		SrcPort: int32(intField(e, "src_port")),
		DstDPID: intField(e, "dst_dpid"),
		DstPort: int32(intField(e, "dst_port")),
	}
}
