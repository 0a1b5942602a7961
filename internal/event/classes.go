// Package event implements the tagged-variant event model and the causal
// event DAG shared by the scheduler, replay engine, fuzzer, and
// delta-debugging driver.
package event

import "fmt"

// Class is the closed set of event tags (spec.md §3). New variants are
// added only through Register, never through runtime type inspection.
type Class string

const (
	ClassSwitchFailure         Class = "SwitchFailure"
	ClassSwitchRecovery        Class = "SwitchRecovery"
	ClassLinkFailure           Class = "LinkFailure"
	ClassLinkRecovery          Class = "LinkRecovery"
	ClassControllerFailure     Class = "ControllerFailure"
	ClassControllerRecovery    Class = "ControllerRecovery"
	ClassControlChannelBlock   Class = "ControlChannelBlock"
	ClassControlChannelUnblock Class = "ControlChannelUnblock"
	ClassHostMigration         Class = "HostMigration"
	ClassTrafficInjection      Class = "TrafficInjection"
	ClassDataplaneDrop         Class = "DataplaneDrop"
	ClassDataplanePermit       Class = "DataplanePermit"
	ClassPolicyChange          Class = "PolicyChange"

	ClassControlMessageSend    Class = "ControlMessageSend"
	ClassControlMessageReceive Class = "ControlMessageReceive"
	ClassControllerStateChange Class = "ControllerStateChange"
	ClassInvariantViolation    Class = "InvariantViolation"
)

// InputClasses lists every input class in the order
// mcs_finder.py's _optimize_event_dag tries dropping them wholesale
// before delta-debugging proper (SPEC_FULL.md §D "Pre-optimization by
// event class").
var InputClasses = []Class{
	ClassTrafficInjection,
	ClassDataplaneDrop,
	ClassDataplanePermit,
	ClassSwitchFailure,
	ClassSwitchRecovery,
	ClassLinkFailure,
	ClassLinkRecovery,
	ClassHostMigration,
	ClassControllerFailure,
	ClassControllerRecovery,
	ClassPolicyChange,
	ClassControlChannelBlock,
	ClassControlChannelUnblock,
}

// PairKind marks a class as one half of a Failure/Recovery atom, or neither.
type PairKind int

const (
	PairNone PairKind = iota
	PairFailure
	PairRecovery
)

// ClassInfo is the registration record for a Class: whether it is an input
// (subject to pruning) or internal (observed) event, and — for paired
// classes — how to compute the entity key used for atomic grouping.
type ClassInfo struct {
	Input    bool
	PairKind PairKind
}

var registry = map[Class]ClassInfo{}

// Register adds or overwrites a class's registration. Called from init()
// for the built-in classes; exported so a caller embedding this package can
// extend the event model without touching this file (spec.md §9 "Dynamic
// dispatch over event classes" — explicit registration point).
func Register(c Class, info ClassInfo) {
	registry[c] = info
}

// Info returns the registration record for c, the zero value if unknown.
func Info(c Class) ClassInfo {
	return registry[c]
}

// Known reports whether c has been registered.
func Known(c Class) bool {
	_, ok := registry[c]
	return ok
}

func init() {
	Register(ClassSwitchFailure, ClassInfo{Input: true, PairKind: PairFailure})
	Register(ClassSwitchRecovery, ClassInfo{Input: true, PairKind: PairRecovery})
	Register(ClassLinkFailure, ClassInfo{Input: true, PairKind: PairFailure})
	Register(ClassLinkRecovery, ClassInfo{Input: true, PairKind: PairRecovery})
	Register(ClassControllerFailure, ClassInfo{Input: true, PairKind: PairFailure})
	Register(ClassControllerRecovery, ClassInfo{Input: true, PairKind: PairRecovery})
	Register(ClassControlChannelBlock, ClassInfo{Input: true, PairKind: PairFailure})
	Register(ClassControlChannelUnblock, ClassInfo{Input: true, PairKind: PairRecovery})
	Register(ClassHostMigration, ClassInfo{Input: true})
	Register(ClassTrafficInjection, ClassInfo{Input: true})
	Register(ClassDataplaneDrop, ClassInfo{Input: true})
	Register(ClassDataplanePermit, ClassInfo{Input: true})
	Register(ClassPolicyChange, ClassInfo{Input: true})

	Register(ClassControlMessageSend, ClassInfo{Input: false})
	Register(ClassControlMessageReceive, ClassInfo{Input: false})
	Register(ClassControllerStateChange, ClassInfo{Input: false})
	Register(ClassInvariantViolation, ClassInfo{Input: false})
}

// entityKey returns the identity used to pair a Failure with its Recovery,
// e.g. a switch dpid or a (src,dst) link tuple. Empty for non-paired classes.
func entityKey(e Event) string {
	switch e.Cls {
	case ClassSwitchFailure, ClassSwitchRecovery:
		dpid, _ := e.Field("dpid")
		return "switch:" + toStr(dpid)
	case ClassControllerFailure, ClassControllerRecovery:
		cid, _ := e.Field("cid")
		return "controller:" + toStr(cid)
	case ClassLinkFailure, ClassLinkRecovery:
		sd, _ := e.Field("src_dpid")
		sp, _ := e.Field("src_port")
		dd, _ := e.Field("dst_dpid")
		dp, _ := e.Field("dst_port")
		return "link:" + toStr(sd) + ":" + toStr(sp) + ":" + toStr(dd) + ":" + toStr(dp)
	case ClassControlChannelBlock, ClassControlChannelUnblock:
		dpid, _ := e.Field("dpid")
		cid, _ := e.Field("cid")
		return "channel:" + toStr(dpid) + ":" + toStr(cid)
	default:
		return ""
	}
}

func toStr(v any) string {
	if v == nil {
		return "<nil>"
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode to float64; render integral values without a
		// trailing ".0" so entity keys for dpid=1 and dpid=1.0 coincide.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return fmt.Sprintf("%v", v)
}
