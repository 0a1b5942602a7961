// Package fuzzer drives a live simulation round by round, probabilistically
// injecting failures, recoveries, and traffic, and periodically checking the
// invariant oracle (spec.md §4.E). Grounded on
// _examples/original_source/sts/control_flow.py's Fuzzer.trigger_events, with
// the fixed per-round step order preserved exactly.
package fuzzer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/errs"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/logging"
	"github.com/sts-go/sts/internal/oracle"
	"github.com/sts-go/sts/internal/simulation"
)

// Fuzzer owns a single seeded PRNG and drives sim for Params.Steps rounds,
// recording every input it injects as an event.Event (spec.md §8 invariant 7
// "same seed replays the same input sequence").
type Fuzzer struct {
	rng    *rand.Rand
	params config.Fuzzer
	sim    simulation.Simulation
	oracle *oracle.Oracle
	logger *logging.Logger

	round  int
	time   event.Time
	events []event.Event
	seq    int

	// crashedThisRound / cutThisRound prevent a switch or link that just
	// failed from being immediately rolled back by the recovery half of the
	// same step (mirrors the original's crashed_this_round / cut_this_round
	// sets); checkControllers keeps its own per-round set for controllers.
	crashedThisRound map[int64]bool
	cutThisRound     map[simulation.Link]bool
}

// New builds a Fuzzer. checker may be nil to skip invariant checking
// entirely (equivalent to check_interval == 0). Pass nil for logger to use
// logging.Default().
func New(sim simulation.Simulation, params config.Fuzzer, checker *oracle.Oracle, logger *logging.Logger) *Fuzzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Fuzzer{
		rng:    rand.New(rand.NewSource(params.Seed)),
		params: params,
		sim:    sim,
		oracle: checker,
		logger: logger.Named("fuzzer"),
	}
}

// Events returns every input event injected so far, in injection order.
func (f *Fuzzer) Events() []event.Event {
	return append([]event.Event(nil), f.events...)
}

// Result is what Run reports once the loop ends.
type Result struct {
	Events     []event.Event
	Violations []event.Fingerprint
	Halted     bool
	Rounds     int
}

// Run executes the fuzz loop for Params.Steps rounds (or until a violation
// halts it, when HaltOnViolation is set), bootstrapping and tearing down sim
// around the loop (spec.md §4.E "Lifecycle").
func (f *Fuzzer) Run(ctx context.Context, switchInitSleepSeconds float64) (Result, error) {
	if err := f.sim.Bootstrap(ctx, switchInitSleepSeconds); err != nil {
		return Result{}, errs.Wrap("fuzzer.Run", errs.KindIO, err)
	}
	defer func() {
		if err := f.sim.CleanUp(ctx); err != nil {
			f.logger.Warn("clean up failed", "err", err)
		}
	}()

	var violations []event.Fingerprint
	halted := false

	for step := 0; step < f.params.Steps; step++ {
		f.round++
		f.time = event.Time{Seconds: int64(f.round)}
		f.crashedThisRound = map[int64]bool{}
		f.cutThisRound = map[simulation.Link]bool{}

		f.checkDataplane()
		f.checkControlChannels()
		f.checkMessageReceipts()
		f.checkSwitchCrashes()
		f.checkLinkFailures()
		f.fuzzTraffic()
		f.checkControllers()
		f.checkMigrations()

		f.logger.Debug("round completed", "round", f.round)

		if f.params.CheckInterval > 0 && f.round%f.params.CheckInterval == 0 && f.oracle != nil {
			found, fps, err := f.oracle.Check(ctx, f.sim)
			if err != nil {
				return Result{}, errs.Wrap("fuzzer.Run", errs.KindIO, err)
			}
			if len(fps) > 0 {
				f.logger.Warn("correctness violation observed", "round", f.round)
				violations = fps
			}
			if found && f.params.HaltOnViolation {
				halted = true
				break
			}
		}

		if f.params.TraceInterval > 0 && f.round%f.params.TraceInterval == 0 {
			f.maybeInjectTraceEvent()
		}
	}

	return Result{Events: f.Events(), Violations: violations, Halted: halted, Rounds: f.round}, nil
}

// checkDataplane decides whether to delay, drop, or permit one queued
// dataplane event per round (spec.md §4.E step 1).
func (f *Fuzzer) checkDataplane() {
	trace := f.sim.DataplaneTrace()
	if trace == nil || !trace.Configured() {
		return
	}
	dp, ok := trace.Next()
	if !ok {
		return
	}
	switch {
	case f.rng.Float64() < f.params.DataplaneDelayRate:
		f.logger.Debug("dataplane event delayed", "label", dp.Label)
	case f.rng.Float64() < f.params.DataplaneDropRate:
		f.log(event.ClassDataplaneDrop, dp.FP, map[string]any{"of": dp.Label})
	default:
		f.log(event.ClassDataplanePermit, dp.FP, map[string]any{"of": dp.Label})
	}
}

// checkControlChannels decides whether to block an unblocked channel or
// unblock a blocked one, for every (switch, controller) pair currently live
// (spec.md §4.E step 2).
func (f *Fuzzer) checkControlChannels() {
	topo := f.sim.Topology()
	ctrl := f.sim.ControllerManager()

	// Slices, not map iteration, so the PRNG draws follow the order the
	// topology reports and a fixed seed yields a fixed event sequence.
	var live [][2]int64
	cids := ctrl.LiveControllers()
	for _, dpid := range topo.LiveSwitches() {
		for _, cid := range cids {
			live = append(live, [2]int64{dpid, cid})
		}
	}
	blockedPairs := topo.BlockedConnections()
	blocked := map[[2]int64]bool{}
	for _, pair := range blockedPairs {
		blocked[pair] = true
	}

	for _, pair := range live {
		if blocked[pair] {
			continue
		}
		if f.rng.Float64() < f.params.ControlplaneBlockRate {
			if err := topo.BlockConnection(pair[0], pair[1]); err != nil {
				f.logger.Warn("block connection failed", "err", err)
				continue
			}
			f.log(event.ClassControlChannelBlock, intFP(event.ClassControlChannelBlock, "dpid", pair[0], "cid", pair[1]),
				map[string]any{"dpid": pair[0], "cid": pair[1]})
		}
	}
	for _, pair := range blockedPairs {
		if f.rng.Float64() < f.params.ControlplaneUnblockRate {
			if err := topo.UnblockConnection(pair[0], pair[1]); err != nil {
				f.logger.Warn("unblock connection failed", "err", err)
				continue
			}
			f.log(event.ClassControlChannelUnblock, intFP(event.ClassControlChannelUnblock, "dpid", pair[0], "cid", pair[1]),
				map[string]any{"dpid": pair[0], "cid": pair[1]})
		}
	}
}

// checkMessageReceipts rolls, independently, whether to release each
// currently-buffered controller-bound message (spec.md §4.E step 3).
func (f *Fuzzer) checkMessageReceipts() {
	buf := f.sim.OpenFlowBuffer()
	for _, pending := range buf.PendingReceives() {
		if f.rng.Float64() < f.params.OFPMessageReceiptRate {
			if err := buf.ReleasePendingReceipt(pending.Label); err != nil {
				f.logger.Warn("release pending receipt failed", "err", err)
				continue
			}
			f.log(event.ClassControlMessageReceive, pending.FP, map[string]any{"of": pending.Label})
		}
	}
}

// checkSwitchCrashes rolls crash for every live switch, then recovery for
// every failed switch not crashed this round (spec.md §4.E step 4).
func (f *Fuzzer) checkSwitchCrashes() {
	topo := f.sim.Topology()
	for _, dpid := range topo.LiveSwitches() {
		if f.rng.Float64() < f.params.SwitchFailureRate {
			if err := topo.CrashSwitch(dpid); err != nil {
				f.logger.Warn("crash switch failed", "err", err)
				continue
			}
			f.crashedThisRound[dpid] = true
			f.log(event.ClassSwitchFailure, intFP(event.ClassSwitchFailure, "dpid", dpid, "", 0), map[string]any{"dpid": dpid})
		}
	}
	for _, dpid := range topo.FailedSwitches() {
		if f.crashedThisRound[dpid] {
			continue
		}
		if f.rng.Float64() < f.params.SwitchRecoveryRate {
			if err := topo.RecoverSwitch(dpid); err != nil {
				f.logger.Warn("recover switch failed", "err", err)
				continue
			}
			f.log(event.ClassSwitchRecovery, intFP(event.ClassSwitchRecovery, "dpid", dpid, "", 0), map[string]any{"dpid": dpid})
		}
	}
}

// checkLinkFailures rolls sever for every live link, then repair for every
// cut link not severed this round (spec.md §4.E step 5).
func (f *Fuzzer) checkLinkFailures() {
	topo := f.sim.Topology()
	for _, l := range topo.LiveLinks() {
		if f.rng.Float64() < f.params.LinkFailureRate {
			if err := topo.SeverLink(l); err != nil {
				f.logger.Warn("sever link failed", "err", err)
				continue
			}
			f.cutThisRound[l] = true
			f.log(event.ClassLinkFailure, linkFP(event.ClassLinkFailure, l), linkExtra(l))
		}
	}
	for _, l := range topo.CutLinks() {
		if f.cutThisRound[l] {
			continue
		}
		if f.rng.Float64() < f.params.LinkRecoveryRate {
			if err := topo.RepairLink(l); err != nil {
				f.logger.Warn("repair link failed", "err", err)
				continue
			}
			f.log(event.ClassLinkRecovery, linkFP(event.ClassLinkRecovery, l), linkExtra(l))
		}
	}
}

// fuzzTraffic, when no pre-recorded dataplane trace is configured,
// synthesizes one ICMP-ping-style packet for each host with probability
// TrafficGenerationRate (spec.md §4.E step 6).
func (f *Fuzzer) fuzzTraffic() {
	trace := f.sim.DataplaneTrace()
	if trace != nil && trace.Configured() {
		return
	}
	for _, host := range f.sim.Topology().Hosts() {
		if f.rng.Float64() < f.params.TrafficGenerationRate {
			f.log(event.ClassTrafficInjection, event.Fingerprint{Class: event.ClassTrafficInjection, Payload: "icmp_ping"},
				map[string]any{"host": host, "traffic_type": "icmp_ping"})
		}
	}
}

// checkControllers rolls crash for every live controller, then recovery for
// every failed controller not crashed this round (spec.md §4.E step 7).
func (f *Fuzzer) checkControllers() {
	ctrl := f.sim.ControllerManager()
	crashedThisRound := map[int64]bool{}
	for _, cid := range ctrl.LiveControllers() {
		if f.rng.Float64() < f.params.ControllerFailureRate {
			if err := ctrl.CrashController(cid); err != nil {
				f.logger.Warn("crash controller failed", "err", err)
				continue
			}
			crashedThisRound[cid] = true
			f.log(event.ClassControllerFailure, intFP(event.ClassControllerFailure, "cid", cid, "", 0), map[string]any{"cid": cid})
		}
	}
	for _, cid := range ctrl.FailedControllers() {
		if crashedThisRound[cid] {
			continue
		}
		if f.rng.Float64() < f.params.ControllerRecoveryRate {
			if err := ctrl.RecoverController(cid); err != nil {
				f.logger.Warn("recover controller failed", "err", err)
				continue
			}
			f.log(event.ClassControllerRecovery, intFP(event.ClassControllerRecovery, "cid", cid, "", 0), map[string]any{"cid": cid})
		}
	}
}

// checkMigrations rolls, for every access link, whether to migrate the host
// to a randomly-chosen live edge switch (spec.md §4.E step 8).
func (f *Fuzzer) checkMigrations() {
	topo := f.sim.Topology()
	for _, l := range topo.AccessLinks() {
		if f.rng.Float64() >= f.params.HostMigrationRate {
			continue
		}
		liveEdges := topo.LiveEdgeSwitches()
		if len(liveEdges) == 0 {
			continue
		}
		newDPID := liveEdges[f.rng.Intn(len(liveEdges))]
		newPort := int32(1)
		if err := topo.MigrateHost(l.SrcDPID, l.SrcPort, newDPID, newPort); err != nil {
			f.logger.Warn("migrate host failed", "err", err)
			continue
		}
		f.log(event.ClassHostMigration,
			event.Fingerprint{Class: event.ClassHostMigration, Payload: map[string]any{
				"old_dpid": l.SrcDPID, "old_port": l.SrcPort, "new_dpid": newDPID, "new_port": newPort,
			}},
			map[string]any{"old_dpid": l.SrcDPID, "old_port": l.SrcPort, "new_dpid": newDPID, "new_port": newPort})
	}
}

// maybeInjectTraceEvent draws the next packet from the dataplane trace and
// logs it as a TrafficInjection (spec.md §4.E "trace_interval").
func (f *Fuzzer) maybeInjectTraceEvent() {
	trace := f.sim.DataplaneTrace()
	if trace == nil || !trace.Configured() {
		return
	}
	dp, ok := trace.Next()
	if !ok {
		return
	}
	f.log(event.ClassTrafficInjection, dp.FP, map[string]any{"of": dp.Label})
}

func (f *Fuzzer) nextLabel(cls event.Class) string {
	f.seq++
	return fmt.Sprintf("fuzz_%s_%d_%d", cls, f.round, f.seq)
}

func (f *Fuzzer) log(cls event.Class, fp event.Fingerprint, fields map[string]any) {
	e := event.Event{
		Label: f.nextLabel(cls),
		T:     f.time,
		Cls:   cls,
		FP:    fp,
		Extra: rawExtra(fields),
	}
	f.events = append(f.events, e)
}

func intFP(cls event.Class, k1 string, v1 int64, k2 string, v2 int64) event.Fingerprint {
	payload := map[string]any{k1: v1}
	if k2 != "" {
		payload[k2] = v2
	}
	return event.Fingerprint{Class: cls, Payload: payload}
}

func linkFP(cls event.Class, l simulation.Link) event.Fingerprint {
	return event.Fingerprint{Class: cls, Payload: map[string]any{
		"src_dpid": l.SrcDPID, "src_port": l.SrcPort, "dst_dpid": l.DstDPID, "dst_port": l.DstPort,
	}}
}

func linkExtra(l simulation.Link) map[string]any {
	return map[string]any{
		"src_dpid": l.SrcDPID, "src_port": l.SrcPort, "dst_dpid": l.DstDPID, "dst_port": l.DstPort,
	}
}

func rawExtra(fields map[string]any) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		out[k] = b
	}
	return out
}
