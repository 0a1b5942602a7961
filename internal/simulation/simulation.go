// Package simulation declares the collaborator interfaces consumed by the
// core (scheduler, replay engine, fuzzer, ddmin driver) but implemented
// elsewhere: the simulated network topology, patch panel, and
// controller-process manager are out of scope (spec.md §1, §6) and are
// modelled here only at the boundary the core actually calls through.
// Grounded on the teacher's internal/interfaces/backend.go capability-
// interface pattern (Backend/DiscardBackend/Observer).
package simulation

import (
	"context"

	"github.com/sts-go/sts/internal/event"
)

// Simulation is the opaque per-trial world the replay engine and fuzzer
// drive: a patch panel, a topology, a controller manager, a dataplane
// trace, and an OpenFlow buffer (spec.md §6 "Collaborator APIs consumed").
type Simulation interface {
	// Bootstrap tears down any prior simulation, brings up controllers,
	// and constructs the topology. waitSeconds, if > 0, is how long to
	// wait for switch-controller connections before the first event.
	Bootstrap(ctx context.Context, waitSeconds float64) error
	// CleanUp tears the simulation down, releasing every OS resource it
	// owns (sockets, controller processes, namespaces).
	CleanUp(ctx context.Context) error

	Topology() TopologyView
	ControllerManager() ControllerManager
	OpenFlowBuffer() OpenFlowBuffer
	DataplaneTrace() DataplaneTrace

	// SyncCallback returns the deterministic-value/state-change collaborator
	// currently installed (spec.md §4.H).
	SyncCallback() SyncCallback
}

// TopologyView exposes the mutable network state the fuzzer and scheduler
// observe and mutate (spec.md §6).
type TopologyView interface {
	LiveSwitches() []int64
	FailedSwitches() []int64
	LiveLinks() []Link
	CutLinks() []Link
	Hosts() []int64
	AccessLinks() []Link
	LiveEdgeSwitches() []int64

	CrashSwitch(dpid int64) error
	RecoverSwitch(dpid int64) error
	SeverLink(l Link) error
	RepairLink(l Link) error
	MigrateHost(oldDPID int64, oldPort int32, newDPID int64, newPort int32) error
	BlockConnection(dpid, cid int64) error
	UnblockConnection(dpid, cid int64) error
	// BlockedConnections lists currently-blocked (dpid, cid) control
	// channels, letting the fuzzer apply the symmetric unblock step
	// (spec.md §4.E step 2).
	BlockedConnections() [][2]int64
}

// Link identifies a directed dataplane link between two switch ports.
type Link struct {
	SrcDPID int64
	SrcPort int32
	DstDPID int64
	DstPort int32
}

// ControllerManager is the exclusive owner of controller subprocesses; the
// core never touches them except through this interface (spec.md §5
// "Shared resources").
type ControllerManager interface {
	LiveControllers() []int64
	FailedControllers() []int64
	CrashController(cid int64) error
	RecoverController(cid int64) error
}

// OpenFlowBuffer models the controller-bound message queue the fuzzer
// releases receipts from and whose pending receives the replay engine
// reports back, for ddmin.TrackNewInternalEvents to compare against the
// ".unacked" sidecar (spec.md §4.E step 3, §6 "sidecar" paragraph).
type OpenFlowBuffer interface {
	PendingReceives() []event.Event
	ReleasePendingReceipt(label string) error
}

// DataplaneTrace is the optional pre-recorded packet trace the fuzzer
// drains from instead of synthesizing traffic (spec.md §4.E step 1, 6).
type DataplaneTrace interface {
	// Next returns the next queued dataplane event and true, or
	// (zero, false) when exhausted.
	Next() (event.Event, bool)
	Configured() bool
}

// SyncCallback is the deterministic-value provider and state-change
// recorder used during both fuzz and replay (spec.md §4.H); concrete
// implementations live in internal/sync.
type SyncCallback interface {
	GetDeterministicValue(name string, args map[string]any) (any, error)
	PendingStateChanges() []PendingStateChange
}

// PendingStateChange is an observed controller state change awaiting
// match against an expected replay event (spec.md GLOSSARY).
type PendingStateChange struct {
	CID         int64
	Time        event.Time
	Fingerprint event.Fingerprint
	Name        string
	Value       any
}

// InvariantChecker is the external oracle: given a live simulation, return
// the list of violation fingerprints currently present (spec.md §4.F).
type InvariantChecker interface {
	Check(ctx context.Context, sim Simulation) ([]event.Fingerprint, error)
}
