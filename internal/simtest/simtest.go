// Package simtest provides in-memory fakes for the simulation package's
// collaborator interfaces, so the scheduler, replay engine, and ddmin
// driver are unit-testable without a real network simulation or
// controller process. Grounded on the teacher's testing.go MockBackend:
// a plain struct tracking calls and state behind a mutex, not a generated
// mock.
package simtest

import (
	"context"
	"sync"

	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/simulation"
)

// FakeSimulation is an in-memory Simulation. Tests configure it directly
// (Topo, Buffer, Trace, Sync fields) before handing it to the code under
// test.
type FakeSimulation struct {
	mu sync.Mutex

	Topo   *FakeTopologyView
	Ctrl   *FakeControllerManager
	Buffer *FakeOpenFlowBuffer
	Trace  *FakeDataplaneTrace
	Sync   *FakeSyncCallback

	BootstrapCalls int
	CleanUpCalls   int
	BootstrapErr   error
	CleanUpErr     error
}

// NewFakeSimulation returns a FakeSimulation with empty-but-non-nil
// collaborators.
func NewFakeSimulation() *FakeSimulation {
	return &FakeSimulation{
		Topo:   NewFakeTopologyView(),
		Ctrl:   NewFakeControllerManager(),
		Buffer: NewFakeOpenFlowBuffer(),
		Trace:  NewFakeDataplaneTrace(nil),
		Sync:   NewFakeSyncCallback(),
	}
}

func (f *FakeSimulation) Bootstrap(ctx context.Context, waitSeconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BootstrapCalls++
	return f.BootstrapErr
}

func (f *FakeSimulation) CleanUp(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CleanUpCalls++
	return f.CleanUpErr
}

func (f *FakeSimulation) Topology() simulation.TopologyView           { return f.Topo }
func (f *FakeSimulation) ControllerManager() simulation.ControllerManager { return f.Ctrl }
func (f *FakeSimulation) OpenFlowBuffer() simulation.OpenFlowBuffer   { return f.Buffer }
func (f *FakeSimulation) DataplaneTrace() simulation.DataplaneTrace   { return f.Trace }
func (f *FakeSimulation) SyncCallback() simulation.SyncCallback       { return f.Sync }

// FakeTopologyView is an in-memory TopologyView.
type FakeTopologyView struct {
	mu sync.Mutex

	live     map[int64]bool
	failed   map[int64]bool
	links    map[simulation.Link]bool
	cut      map[simulation.Link]bool
	hosts    []int64
	access   []simulation.Link
	blocked  map[[2]int64]bool
}

func NewFakeTopologyView() *FakeTopologyView {
	return &FakeTopologyView{
		live:    map[int64]bool{},
		failed:  map[int64]bool{},
		links:   map[simulation.Link]bool{},
		cut:     map[simulation.Link]bool{},
		blocked: map[[2]int64]bool{},
	}
}

// AddSwitch registers a live switch with the given dpid.
func (f *FakeTopologyView) AddSwitch(dpid int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[dpid] = true
}

// AddLink registers a live link.
func (f *FakeTopologyView) AddLink(l simulation.Link) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[l] = true
}

// AddAccessLink registers a host-facing access link.
func (f *FakeTopologyView) AddAccessLink(l simulation.Link, host int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = append(f.access, l)
	f.hosts = append(f.hosts, host)
}

func keysOf(m map[int64]bool) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (f *FakeTopologyView) LiveSwitches() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return keysOf(f.live)
}

func (f *FakeTopologyView) FailedSwitches() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return keysOf(f.failed)
}

func (f *FakeTopologyView) LiveLinks() []simulation.Link {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]simulation.Link, 0, len(f.links))
	for l := range f.links {
		if !f.cut[l] {
			out = append(out, l)
		}
	}
	return out
}

func (f *FakeTopologyView) CutLinks() []simulation.Link {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]simulation.Link, 0, len(f.cut))
	for l := range f.cut {
		out = append(out, l)
	}
	return out
}

func (f *FakeTopologyView) Hosts() []int64 { f.mu.Lock(); defer f.mu.Unlock(); return append([]int64(nil), f.hosts...) }

func (f *FakeTopologyView) AccessLinks() []simulation.Link {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]simulation.Link(nil), f.access...)
}

func (f *FakeTopologyView) LiveEdgeSwitches() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[int64]bool{}
	for _, l := range f.access {
		if f.live[l.SrcDPID] {
			seen[l.SrcDPID] = true
		}
	}
	return keysOf(seen)
}

func (f *FakeTopologyView) CrashSwitch(dpid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, dpid)
	f.failed[dpid] = true
	return nil
}

func (f *FakeTopologyView) RecoverSwitch(dpid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failed, dpid)
	f.live[dpid] = true
	return nil
}

func (f *FakeTopologyView) SeverLink(l simulation.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cut[l] = true
	return nil
}

func (f *FakeTopologyView) RepairLink(l simulation.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cut, l)
	return nil
}

func (f *FakeTopologyView) MigrateHost(oldDPID int64, oldPort int32, newDPID int64, newPort int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.access {
		if l.SrcDPID == oldDPID && l.SrcPort == oldPort {
			f.access[i] = simulation.Link{SrcDPID: newDPID, SrcPort: newPort, DstDPID: l.DstDPID, DstPort: l.DstPort}
		}
	}
	return nil
}

func (f *FakeTopologyView) BlockConnection(dpid, cid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked[[2]int64{dpid, cid}] = true
	return nil
}

func (f *FakeTopologyView) UnblockConnection(dpid, cid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blocked, [2]int64{dpid, cid})
	return nil
}

func (f *FakeTopologyView) BlockedConnections() [][2]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][2]int64, 0, len(f.blocked))
	for k := range f.blocked {
		out = append(out, k)
	}
	return out
}

// FakeControllerManager is an in-memory ControllerManager.
type FakeControllerManager struct {
	mu     sync.Mutex
	live   map[int64]bool
	failed map[int64]bool
}

func NewFakeControllerManager() *FakeControllerManager {
	return &FakeControllerManager{live: map[int64]bool{}, failed: map[int64]bool{}}
}

func (f *FakeControllerManager) AddController(cid int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[cid] = true
}

func (f *FakeControllerManager) LiveControllers() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return keysOf(f.live)
}

func (f *FakeControllerManager) FailedControllers() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return keysOf(f.failed)
}

func (f *FakeControllerManager) CrashController(cid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, cid)
	f.failed[cid] = true
	return nil
}

func (f *FakeControllerManager) RecoverController(cid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failed, cid)
	f.live[cid] = true
	return nil
}

// FakeOpenFlowBuffer is an in-memory OpenFlowBuffer.
type FakeOpenFlowBuffer struct {
	mu      sync.Mutex
	pending []event.Event
}

func NewFakeOpenFlowBuffer() *FakeOpenFlowBuffer { return &FakeOpenFlowBuffer{} }

func (f *FakeOpenFlowBuffer) Enqueue(e event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, e)
}

func (f *FakeOpenFlowBuffer) PendingReceives() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Event(nil), f.pending...)
}

func (f *FakeOpenFlowBuffer) ReleasePendingReceipt(label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.pending {
		if e.Label == label {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

// FakeDataplaneTrace drains a fixed, pre-configured slice of events.
type FakeDataplaneTrace struct {
	mu     sync.Mutex
	events []event.Event
	idx    int
}

func NewFakeDataplaneTrace(events []event.Event) *FakeDataplaneTrace {
	return &FakeDataplaneTrace{events: events}
}

func (f *FakeDataplaneTrace) Next() (event.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.events) {
		return event.Event{}, false
	}
	e := f.events[f.idx]
	f.idx++
	return e, true
}

func (f *FakeDataplaneTrace) Configured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events) > 0
}

// FakeSyncCallback is an in-memory SyncCallback.
type FakeSyncCallback struct {
	mu      sync.Mutex
	Values  map[string]any
	pending []simulation.PendingStateChange
}

func NewFakeSyncCallback() *FakeSyncCallback {
	return &FakeSyncCallback{Values: map[string]any{}}
}

func (f *FakeSyncCallback) GetDeterministicValue(name string, args map[string]any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Values[name], nil
}

func (f *FakeSyncCallback) PendingStateChanges() []simulation.PendingStateChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]simulation.PendingStateChange(nil), f.pending...)
}

func (f *FakeSyncCallback) Push(p simulation.PendingStateChange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, p)
}

// FakeInvariantChecker returns a pre-configured fingerprint list on each
// call, optionally varying by call count.
type FakeInvariantChecker struct {
	mu      sync.Mutex
	Results [][]event.Fingerprint // Results[call] for call < len(Results), else last entry
	calls   int
}

func NewFakeInvariantChecker(results ...[]event.Fingerprint) *FakeInvariantChecker {
	return &FakeInvariantChecker{Results: results}
}

func (f *FakeInvariantChecker) Check(ctx context.Context, sim simulation.Simulation) ([]event.Fingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.calls++ }()
	if len(f.Results) == 0 {
		return nil, nil
	}
	idx := f.calls
	if idx >= len(f.Results) {
		idx = len(f.Results) - 1
	}
	return f.Results[idx], nil
}

func (f *FakeInvariantChecker) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
