// Package trial isolates each replay or fuzz run in its own child process,
// so a wedged controller or a crashing simulation cannot take down the
// delta-debugging search driving it (spec.md §5 "Concurrency & Resource
// Model" — one cooperative event loop per simulation, no shared mutable
// state across trials). The parent and child exchange exactly one framed
// JSON request and one framed JSON response over stdin/stdout; the parent
// owns the child's process group and can force it down on a deadline.
package trial

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/sts-go/sts/internal/errs"
	"github.com/sts-go/sts/internal/logging"
)

// ChildEnvVar, when set in the child's environment, tells main() to run as
// a trial child instead of the ordinary CLI (spec.md §6 "External
// Interfaces" — re-exec rather than a second binary).
const ChildEnvVar = "STS_TRIAL_CHILD"

// Driver spawns and supervises trial child processes.
type Driver struct {
	exePath string
	args    []string
	logger  *logging.Logger
}

// NewDriver builds a Driver that re-execs exePath (typically os.Args[0])
// with args and ChildEnvVar set. Pass nil for logger to use
// logging.Default().
func NewDriver(exePath string, args []string, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Driver{exePath: exePath, args: args, logger: logger.Named("trial")}
}

// Run spawns one child, sends req, waits for its Response, and tears the
// child's entire process group down if ctx is cancelled before it replies
// (spec.md §5 "Shared resources" — the parent is the exclusive owner of
// subprocess teardown).
func (d *Driver) Run(ctx context.Context, req Request) (Response, error) {
	cmd := exec.Command(d.exePath, d.args...)
	cmd.Env = append(os.Environ(), ChildEnvVar+"=1")
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Response{}, errs.Wrap("trial.Run", errs.KindIO, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Response{}, errs.Wrap("trial.Run", errs.KindIO, err)
	}

	if err := cmd.Start(); err != nil {
		return Response{}, errs.Wrap("trial.Run", errs.KindSubprocessCrash, err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	type result struct {
		resp Response
		err  error
	}
	respCh := make(chan result, 1)
	go func() {
		if err := writeFrame(stdin, req); err != nil {
			respCh <- result{err: err}
			return
		}
		stdin.Close()
		var resp Response
		err := readFrame(stdout, &resp)
		respCh <- result{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		d.killGroup(cmd)
		<-waitErr
		return Response{}, ctx.Err()
	case r := <-respCh:
		if r.err != nil {
			d.killGroup(cmd)
			<-waitErr
			return Response{}, errs.Wrap("trial.Run", errs.KindSubprocessCrash, r.err)
		}
		if err := <-waitErr; err != nil && r.resp.Err == "" {
			return Response{}, errs.Wrap("trial.Run", errs.KindSubprocessCrash,
				fmt.Errorf("trial child exited uncleanly: %w", err))
		}
		if r.resp.Err != "" {
			return r.resp, errs.New("trial.Run", errs.KindBugNotReproducible, r.resp.Err)
		}
		return r.resp, nil
	}
}

// killGroup sends SIGKILL to the child's entire process group, so any
// grandchildren it spawned (e.g. a controller process) die with it.
func (d *Driver) killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		d.logger.Warn("could not resolve trial process group, killing pid only", "err", err)
		_ = cmd.Process.Kill()
		return
	}
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil {
		d.logger.Warn("failed to kill trial process group", "pgid", pgid, "err", err)
	}
}
