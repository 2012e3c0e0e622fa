// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

// Package process defines the relay process capability consumed by stream
// supervisors and an os/exec implementation of it.
package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OutputDirPlaceholder is substituted with the stream output directory in
// every output argument.
const OutputDirPlaceholder = "{output_dir}"

// Spec describes one process to spawn.
type Spec struct {
	Executable string
	Args       []string
	Dir        string
}

// Runner spawns relay processes.
type Runner interface {
	// Spawn starts the process. The returned handle is live until Done is
	// closed. Start failures are returned as *SpawnError.
	Spawn(ctx context.Context, spec Spec) (Handle, error)
}

// Handle is a live (or exited) child process.
type Handle interface {
	// PID returns the OS process id.
	PID() int

	// SignalStop asks the process to exit gracefully.
	SignalStop() error

	// ForceKill terminates the process immediately.
	ForceKill() error

	// Done is closed once the process has exited and ExitInfo is final.
	Done() <-chan struct{}

	// ExitInfo describes how the process ended. Valid after Done is closed.
	ExitInfo() ExitInfo
}

// ExitInfo describes a terminated process.
type ExitInfo struct {
	Code       int       `json:"code"`
	Signal     string    `json:"signal,omitempty"`
	Err        error     `json:"-"`
	StderrTail string    `json:"stderr_tail,omitempty"`
	ExitedAt   time.Time `json:"exited_at"`
}

// Reason renders the exit as a short diagnostic string.
func (e ExitInfo) Reason() string {
	var b strings.Builder
	switch {
	case e.Signal != "":
		fmt.Fprintf(&b, "killed by signal %s", e.Signal)
	case e.Err != nil && e.Code < 0:
		fmt.Fprintf(&b, "wait failed: %v", e.Err)
	default:
		fmt.Fprintf(&b, "exit code %d", e.Code)
	}
	if tail := lastLine(e.StderrTail); tail != "" {
		b.WriteString(": ")
		b.WriteString(tail)
	}
	return b.String()
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// SpawnKind classifies a failed start.
type SpawnKind string

const (
	KindNotFound    SpawnKind = "not_found"
	KindPermission  SpawnKind = "permission"
	KindExitedEarly SpawnKind = "exited_early"
	KindOther       SpawnKind = "other"
)

// SpawnError reports a relay that could not be started or that exited
// before it was confirmed alive.
type SpawnError struct {
	Kind SpawnKind
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn failed (%s): %v", e.Kind, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsSpawnError reports whether err is a *SpawnError and returns its kind.
func IsSpawnError(err error) (SpawnKind, bool) {
	var se *SpawnError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// BuildArgs assembles the relay argument list:
//
//	global... -i source output...
//
// with every occurrence of OutputDirPlaceholder in output replaced by outputDir.
func BuildArgs(global []string, source string, output []string, outputDir string) []string {
	args := make([]string, 0, len(global)+2+len(output))
	args = append(args, global...)
	args = append(args, "-i", source)
	for _, arg := range output {
		args = append(args, strings.ReplaceAll(arg, OutputDirPlaceholder, outputDir))
	}
	return args
}
