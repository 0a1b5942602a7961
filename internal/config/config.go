// Package config loads the TOML configuration file describing fuzzer
// parameters, scheduler timeouts, and ddmin driver options
// (SPEC_FULL.md §A.3). Grounded on the teacher's DefaultConfig/NewLogger
// constructor-with-defaults shape (internal/logging/logger.go), extended
// to a real file-backed parser since configuration loading needs more
// than hand-rolled flag parsing once it spans three subsystems.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/sts-go/sts/internal/errs"
)

// Fuzzer holds the per-round probabilistic rates from spec.md §4.E.
type Fuzzer struct {
	Seed                   int64   `toml:"seed"`
	Steps                  int     `toml:"steps"`
	Delay                  float64 `toml:"delay_seconds"`
	CheckInterval          int     `toml:"check_interval"`
	TraceInterval          int     `toml:"trace_interval"`
	HaltOnViolation        bool    `toml:"halt_on_violation"`
	DataplaneDelayRate     float64 `toml:"dataplane_delay_rate"`
	DataplaneDropRate      float64 `toml:"dataplane_drop_rate"`
	ControlplaneBlockRate  float64 `toml:"controlplane_block_rate"`
	ControlplaneUnblockRate float64 `toml:"controlplane_unblock_rate"`
	OFPMessageReceiptRate  float64 `toml:"ofp_message_receipt_rate"`
	SwitchFailureRate      float64 `toml:"switch_failure_rate"`
	SwitchRecoveryRate     float64 `toml:"switch_recovery_rate"`
	LinkFailureRate        float64 `toml:"link_failure_rate"`
	LinkRecoveryRate       float64 `toml:"link_recovery_rate"`
	TrafficGenerationRate  float64 `toml:"traffic_generation_rate"`
	ControllerFailureRate  float64 `toml:"controller_failure_rate"`
	ControllerRecoveryRate float64 `toml:"controller_recovery_rate"`
	HostMigrationRate      float64 `toml:"host_migration_rate"`
}

// Scheduler holds per-class timeout overrides (spec.md §4.C "Tunables").
type Scheduler struct {
	WaitTimeSeconds             float64            `toml:"wait_time_seconds"`
	PerClassTimeoutSeconds      map[string]float64 `toml:"per_class_timeout_seconds"`
	WaitOnDeterministicValues   bool               `toml:"wait_on_deterministic_values"`
	DelayFlowMods               bool               `toml:"delay_flow_mods"`
	AllowUnexpectedMessages      bool               `toml:"allow_unexpected_messages"`
	PassThroughWhitelistedMsgs   bool               `toml:"pass_through_whitelisted_messages"`
}

// Driver holds the ddmin driver's knobs (spec.md §4.G, SPEC_FULL.md §D).
type Driver struct {
	NoViolationVerificationRuns int  `toml:"no_violation_verification_runs"`
	OptimizedFiltering          bool `toml:"optimized_filtering"`
	ReplayFinalTrace            bool `toml:"replay_final_trace"`
	StrictAssertionChecking     bool `toml:"strict_assertion_checking"`
	DelayFlowMods               bool `toml:"delay_flow_mods"`
	Efficient                   bool `toml:"efficient"`
}

// Config is the top-level configuration document.
type Config struct {
	Fuzzer    Fuzzer    `toml:"fuzzer"`
	Scheduler Scheduler `toml:"scheduler"`
	Driver    Driver    `toml:"driver"`
}

// Default returns conservative defaults matching the original's
// mcs_finder.py defaults (no_violation_verification_runs, pre-optimization
// off by default, strict_assertion_checking off — see SPEC_FULL.md §E.3).
func Default() *Config {
	return &Config{
		Fuzzer: Fuzzer{
			Steps:                  100,
			Delay:                  0.1,
			CheckInterval:          10,
			TraceInterval:          10,
			HaltOnViolation:        true,
			DataplaneDelayRate:     0.05,
			DataplaneDropRate:      0.05,
			ControlplaneBlockRate:  0.0,
			ControlplaneUnblockRate: 0.0,
			OFPMessageReceiptRate:  0.5,
			SwitchFailureRate:      0.0,
			SwitchRecoveryRate:     0.1,
			LinkFailureRate:        0.0,
			LinkRecoveryRate:       0.1,
			TrafficGenerationRate:  0.1,
			ControllerFailureRate:  0.0,
			ControllerRecoveryRate: 0.1,
			HostMigrationRate:      0.0,
		},
		Scheduler: Scheduler{
			WaitTimeSeconds: 5.0,
			PerClassTimeoutSeconds: map[string]float64{
				"ControlMessageSend":       15.0,
				"ControlMessageReceive":    15.0,
				"ControllerStateChange":    5.0,
				"InvariantViolation":       1.0,
			},
			WaitOnDeterministicValues: true,
		},
		Driver: Driver{
			NoViolationVerificationRuns: 3,
			OptimizedFiltering:          false,
			ReplayFinalTrace:            true,
			StrictAssertionChecking:     false,
			Efficient:                   false,
		},
	}
}

// Load overlays a TOML file at path onto Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errs.Wrap("config.Load", errs.KindIO, fmt.Errorf("%s: %w", path, err))
	}
	return cfg, nil
}

// PerClassTimeout returns the configured timeout for class, falling back
// to the overall wait time (spec.md §4.C "defaulting to an overall
// wait_time").
func (s Scheduler) PerClassTimeout(class string) float64 {
	if t, ok := s.PerClassTimeoutSeconds[class]; ok {
		return t
	}
	return s.WaitTimeSeconds
}
