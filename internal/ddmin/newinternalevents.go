package ddmin

// TrackNewInternalEvents filters frag's buffered-message-receipt labels
// against sidecarLabels — the set of receive labels already buffered at
// the end of the original run, loaded from the trace's ".unacked"
// sidecar — so they are not double-counted as new once merged into the
// parent's RuntimeStats (spec.md §6 "sidecar" paragraph, SPEC_FULL.md §D
// "Buffered-receipt carryover"). Grounded on mcs_finder.py's
// _track_new_internal_events. A nil or empty sidecarLabels leaves frag
// untouched, matching the original's behavior when no sidecar exists.
func TrackNewInternalEvents(frag *RuntimeStats, sidecarLabels map[string]bool) {
	if frag == nil || len(sidecarLabels) == 0 {
		return
	}
	frag.mu.Lock()
	raw := frag.BufferedMessageReceipts[frag.SubsequenceID]
	frag.mu.Unlock()

	filtered := make([]string, 0, len(raw))
	for _, label := range raw {
		if !sidecarLabels[label] {
			filtered = append(filtered, label)
		}
	}
	frag.RecordBufferedMessageReceipts(filtered)
}
