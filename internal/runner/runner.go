// Package runner executes a single external command per call and classifies
// the outcome into a [Result].
//
// Every call owns its process, its pipes and its timer. [Execute] does not
// return before the process has exited or been killed, and the timer is
// released on every exit path, so nothing outlives the call.
//
// Cancellation of the caller's context does not stop a running process. The
// fixed timeout is the only thing that terminates one; the context is still
// used for trace and log correlation.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/MrWong99/mcp-sapling/internal/observe"
)

const (
	// DefaultTimeout is the wall-clock budget for one process.
	DefaultTimeout = 30 * time.Second

	// PagerFlag is appended to every argument vector so output capture is
	// never blocked waiting for an interactive pager.
	PagerFlag = "--pager=cat"

	// waitDelay bounds how long Wait blocks on pipe drain after the process
	// was killed. Grandchildren that inherited stdout would otherwise keep
	// Wait blocked after the timeout.
	waitDelay = 2 * time.Second
)

// CommandSpec is the fully resolved description of one process invocation.
// It is built once per call and not modified afterwards.
type CommandSpec struct {
	// Program is the executable name or path (e.g. "sl").
	Program string

	// Args is the ordered argument vector, excluding the program name and
	// excluding [PagerFlag], which [Execute] appends.
	Args []string

	// Dir is the working directory of the process.
	Dir string
}

// Argv returns the argument vector the process is started with: Args
// followed by [PagerFlag]. The returned slice is a fresh copy.
func (s CommandSpec) Argv() []string {
	argv := make([]string, 0, len(s.Args)+1)
	argv = append(argv, s.Args...)
	return append(argv, PagerFlag)
}

// Executor runs [CommandSpec] values with a fixed timeout. The zero value
// uses [DefaultTimeout] and records no metrics. An Executor holds no per-call
// state and is safe for concurrent use.
type Executor struct {
	// Timeout is the per-process wall-clock budget. Zero or negative means
	// [DefaultTimeout].
	Timeout time.Duration

	// Metrics, when non-nil, receives the active process gauge.
	Metrics *observe.Metrics
}

// Execute runs spec with the executor's timeout. See the package-level
// [Execute] for the semantics.
func (e *Executor) Execute(ctx context.Context, spec CommandSpec) Result {
	return execute(ctx, spec, e.Timeout, e.Metrics)
}

// Execute runs spec to completion or forced termination and returns exactly
// one [Result] variant. It blocks only the calling goroutine; concurrent
// calls are fully independent.
func Execute(ctx context.Context, spec CommandSpec, timeout time.Duration) Result {
	return execute(ctx, spec, timeout, nil)
}

func execute(ctx context.Context, spec CommandSpec, timeout time.Duration, m *observe.Metrics) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := observe.Logger(ctx).With("program", spec.Program, "dir", spec.Dir)

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	argv := spec.Argv()
	cmd := exec.CommandContext(runCtx, spec.Program, argv...)
	cmd.Dir = spec.Dir
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	// os/exec drains both pipes concurrently into these buffers, so a large
	// stdout cannot deadlock against an unread stderr.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug("executing command", "args", argv, "timeout", timeout)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		log.Error("process error", "err", err)
		return SpawnError{Message: err.Error()}
	}
	if m != nil {
		m.ActiveProcesses.Add(ctx, 1)
		defer m.ActiveProcesses.Add(ctx, -1)
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)
	// Background children of the command must not outlive the call.
	killProcessGroup(cmd)

	res := classify(runCtx, cmd, waitErr, timeout, &stdout, &stderr)
	switch r := res.(type) {
	case Success:
		log.Debug("process exited",
			"exit_code", 0,
			"duration", elapsed,
			"stdout_bytes", stdout.Len(),
			"stderr", stderr.String(),
		)
	case Failure:
		log.Debug("process exited",
			"exit_code", r.ExitCode,
			"duration", elapsed,
			"stdout_bytes", stdout.Len(),
			"stderr", r.Stderr,
		)
	case TimedOut:
		log.Error("command timed out", "after", timeout, "stdout_bytes", stdout.Len())
	}
	return res
}

// classify maps the Wait outcome to a Result. An exit the process made on
// its own wins over an elapsed deadline: only a process killed by a signal
// after the deadline is TimedOut.
func classify(runCtx context.Context, cmd *exec.Cmd, waitErr error, timeout time.Duration, stdout, stderr *bytes.Buffer) Result {
	if waitErr == nil {
		return Success{Stdout: stdout.String()}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && killedBySignal(cmd.ProcessState) {
		return TimedOut{After: timeout}
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return Failure{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
	}

	// The process exited but its pipes stayed open past waitDelay.
	if errors.Is(waitErr, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		if cmd.ProcessState.Success() {
			return Success{Stdout: stdout.String()}
		}
		return Failure{ExitCode: cmd.ProcessState.ExitCode(), Stderr: stderr.String()}
	}

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	msg := stderr.String()
	if msg == "" {
		msg = waitErr.Error()
	}
	return Failure{ExitCode: exitCode, Stderr: msg}
}
