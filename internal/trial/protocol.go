package trial

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/ddmin"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/fuzzer"
	"github.com/sts-go/sts/internal/replay"
)

// maxFrameBytes bounds a single framed message (spec.md §5 "bounded
// per-message size" — a trial that tries to stream gigabytes back is a bug,
// not a legitimate trace).
const maxFrameBytes = 256 << 20

// Kind selects which control-flow the child process runs.
type Kind string

const (
	KindReplay Kind = "replay"
	KindFuzz   Kind = "fuzz"
)

// Request is the single message a parent driver sends a trial child over
// stdin to start one trial (spec.md §5 "one cooperative event loop per
// simulation, in its own process").
type Request struct {
	Kind                   Kind          `json:"kind"`
	Trace                  []event.Event `json:"trace,omitempty"`
	SwitchInitSleepSeconds float64       `json:"switch_init_sleep_seconds"`
	FuzzerParams           config.Fuzzer `json:"fuzzer_params,omitempty"`
	BugSignature           event.Fingerprint `json:"bug_signature,omitempty"`
}

// Response is the single message a trial child sends back once it
// completes, whether by finishing the loop or by failing. Stats carries a
// per-trial RuntimeStats fragment back to the parent driver, which folds
// it into its own aggregate via RuntimeStats.MergeClientDict (spec.md §4.G
// "merge_client_dict" — the original passes this over the same RPC
// boundary rather than recomputing it out-of-band).
type Response struct {
	Replay *replay.Result      `json:"replay,omitempty"`
	Fuzz   *fuzzer.Result      `json:"fuzz,omitempty"`
	Stats  *ddmin.RuntimeStats `json:"stats,omitempty"`
	Err    string              `json:"err,omitempty"`
}

// writeFrame writes v as length-prefixed JSON: a 4-byte big-endian length
// header followed by the encoded payload.
func writeFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// readFrame reads one length-prefixed JSON message into v.
func readFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameBytes {
		return fmt.Errorf("trial: frame of %d bytes exceeds the %d byte limit", n, maxFrameBytes)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
