package ddmin

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sts-go/sts/internal/errs"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/tracelog"
)

// MCSLogTracker dumps intermediate and final MCS results to resultsDir as
// the search narrows (spec.md §4.G "intermediate MCS dumps", SPEC_FULL.md
// §D). Grounded on
// _examples/original_source/sts/control_flow/mcs_finder.py's
// MCSLogTracker; each dump directory is tagged with a random uuid instead
// of a monotonic counter since concurrent search-tree branches may dump
// out of order.
type MCSLogTracker struct {
	mu         sync.Mutex
	resultsDir string
	minSize    int
	stats      *RuntimeStats
}

// NewMCSLogTracker builds a tracker that writes under resultsDir.
func NewMCSLogTracker(resultsDir string, stats *RuntimeStats) *MCSLogTracker {
	return &MCSLogTracker{resultsDir: resultsDir, minSize: math.MaxInt32, stats: stats}
}

// MaybeDumpIntermediateMCS dumps dag's trace and a runtime-stats snapshot
// under a fresh "intermcs_<label>_<uuid>/" directory, but only when dag is
// strictly smaller than every previously-dumped candidate (spec.md §4.G
// "Only dump if MCS decreases in size").
func (t *MCSLogTracker) MaybeDumpIntermediateMCS(dag *event.DAG, label string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if dag.Len() >= t.minSize {
		return nil
	}
	t.minSize = dag.Len()

	dirName := fmt.Sprintf("intermcs_%s_%s", sanitizeLabel(label), uuid.NewString())
	dst := filepath.Join(t.resultsDir, dirName)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errs.Wrap("ddmin.MaybeDumpIntermediateMCS", errs.KindIO, err)
	}
	if err := t.dumpTraceTo(dag, filepath.Join(dst, "mcs.trace")); err != nil {
		return err
	}
	if err := t.dumpRuntimeStatsTo(filepath.Join(dst, "runtime_stats.json")); err != nil {
		return err
	}
	return nil
}

// DumpMCSTrace writes dag's trace to path, plus a ".notimeouts" sibling
// that drops every event SetEventsAsTimedOut flagged (spec.md §4.G "final
// trace dump").
func (t *MCSLogTracker) DumpMCSTrace(dag *event.DAG, path string) error {
	if err := t.dumpTraceTo(dag, path); err != nil {
		return err
	}
	return t.dumpTraceTo(dag.FilterTimeouts(), path+".notimeouts")
}

func (t *MCSLogTracker) dumpTraceTo(dag *event.DAG, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap("ddmin.dumpTraceTo", errs.KindIO, err)
	}
	if err := tracelog.WriteFile(path, dag.Events()); err != nil {
		return errs.Wrap("ddmin.dumpTraceTo", errs.KindIO, err)
	}
	return nil
}

// DumpRuntimeStats writes a clone of t's accumulated stats as JSON to
// path, joined under resultsDir.
func (t *MCSLogTracker) DumpRuntimeStats(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resultsDir == "" {
		return t.dumpRuntimeStatsTo(path)
	}
	if err := os.MkdirAll(t.resultsDir, 0o755); err != nil {
		return errs.Wrap("ddmin.DumpRuntimeStats", errs.KindIO, err)
	}
	return t.dumpRuntimeStatsTo(filepath.Join(t.resultsDir, path))
}

func (t *MCSLogTracker) dumpRuntimeStatsTo(path string) error {
	clone := t.stats.Clone()
	b, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return errs.Wrap("ddmin.dumpRuntimeStatsTo", errs.KindIO, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errs.Wrap("ddmin.dumpRuntimeStatsTo", errs.KindIO, err)
	}
	return nil
}

func sanitizeLabel(label string) string {
	if label == "" {
		return "root"
	}
	return strings.ReplaceAll(label, "/", "_")
}
