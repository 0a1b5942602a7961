// Package tracelog reads and writes the newline-delimited JSON trace log
// format described in spec.md §6: one event object per line, in recorded
// order, unknown keys preserved byte-for-byte in meaning across a
// parse/serialize round trip. Grounded on the teacher's marshal/unmarshal
// layering in internal/uapi/marshal.go, adapted from fixed-width binary
// records to a line-oriented JSON codec.
package tracelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sts-go/sts/internal/errs"
	"github.com/sts-go/sts/internal/event"
)

// Read parses a trace log from r into ordered events. A malformed line is
// a fatal CorruptTrace error (spec.md §7 "CorruptTrace on log parse is
// fatal").
func Read(r io.Reader) ([]event.Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var events []event.Event
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(bytesTrimSpace(text)) == 0 {
			continue
		}
		var e event.Event
		if err := json.Unmarshal(text, &e); err != nil {
			return nil, errs.Wrap("tracelog.Read", errs.KindCorruptTrace,
				fmt.Errorf("line %d: %w", line, err))
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap("tracelog.Read", errs.KindIO, err)
	}
	return events, nil
}

// ReadFile opens and parses path as a trace log.
func ReadFile(path string) ([]event.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap("tracelog.ReadFile", errs.KindIO, err)
	}
	defer f.Close()
	return Read(f)
}

// Write serializes events to w, one JSON object per line, in order.
func Write(w io.Writer, events []event.Event) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return errs.Wrap("tracelog.Write", errs.KindIO, err)
		}
	}
	return nil
}

// WriteFile truncates (or creates) path and writes events to it.
func WriteFile(path string, events []event.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap("tracelog.WriteFile", errs.KindIO, err)
	}
	defer f.Close()
	return Write(f, events)
}

// ReadUnackedSidecar reads the "<trace>.unacked" sidecar listing internal
// receives still buffered at the end of the original run. A missing
// sidecar is not an error: it returns an empty list (spec.md §6 "absent
// file ⇒ empty list with a warning"); the warning is the caller's
// responsibility to log, since this package has no logger dependency.
func ReadUnackedSidecar(tracePath string) ([]event.Event, bool, error) {
	sidecarPath := tracePath + ".unacked"
	f, err := os.Open(sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errs.Wrap("tracelog.ReadUnackedSidecar", errs.KindIO, err)
	}
	defer f.Close()
	events, err := Read(f)
	if err != nil {
		return nil, true, err
	}
	return events, true, nil
}

func bytesTrimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
