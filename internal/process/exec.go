// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package process

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ExecRunner spawns processes with os/exec.
type ExecRunner struct {
	// StopSignal is sent by SignalStop. Defaults to os.Interrupt, which
	// ffmpeg treats as a request to finalize output and exit.
	StopSignal os.Signal

	// TailBytes bounds the captured stderr. Defaults to DefaultTailBytes.
	TailBytes int

	// WaitDelay bounds how long reaping waits for stderr to close after the
	// process exits, in case a grandchild inherited the pipe.
	WaitDelay time.Duration
}

// NewExecRunner returns a runner with default settings.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{StopSignal: os.Interrupt, TailBytes: DefaultTailBytes, WaitDelay: 2 * time.Second}
}

// Spawn implements Runner. The process is not bound to ctx: its lifetime is
// owned by the caller through the returned handle. ctx only aborts a spawn
// that has not started yet.
func (r *ExecRunner) Spawn(ctx context.Context, spec Spec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Kind: KindOther, Err: err}
	}

	tail := NewTailBuffer(r.TailBytes)

	cmd := exec.Command(spec.Executable, spec.Args...) //nolint:gosec // executable and args come from operator configuration
	cmd.Dir = spec.Dir
	cmd.Stdout = nil
	cmd.Stderr = tail
	cmd.WaitDelay = r.WaitDelay

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Kind: classifyStartError(err), Err: err}
	}

	sig := r.StopSignal
	if sig == nil {
		sig = os.Interrupt
	}

	h := &execHandle{
		cmd:  cmd,
		tail: tail,
		sig:  sig,
		done: make(chan struct{}),
	}
	go h.wait()
	return h, nil
}

func classifyStartError(err error) SpawnKind {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	default:
		return KindOther
	}
}

type execHandle struct {
	cmd  *exec.Cmd
	tail *TailBuffer
	sig  os.Signal
	done chan struct{}
	exit ExitInfo
}

func (h *execHandle) wait() {
	err := h.cmd.Wait()

	info := ExitInfo{Code: -1, ExitedAt: time.Now(), StderrTail: h.tail.String()}
	if h.cmd.ProcessState != nil {
		info.Code = h.cmd.ProcessState.ExitCode()
		if ws, ok := h.cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			info.Signal = ws.Signal().String()
		}
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		info.Err = err
	}

	h.exit = info
	close(h.done)
}

func (h *execHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) SignalStop() error {
	return h.signal(h.sig)
}

func (h *execHandle) ForceKill() error {
	return h.signal(os.Kill)
}

func (h *execHandle) signal(sig os.Signal) error {
	select {
	case <-h.done:
		return nil
	default:
	}
	if err := h.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (h *execHandle) Done() <-chan struct{} {
	return h.done
}

func (h *execHandle) ExitInfo() ExitInfo {
	select {
	case <-h.done:
		return h.exit
	default:
		return ExitInfo{Code: -1}
	}
}
