// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/vtxlink/internal/clock"
	"github.com/tomtom215/vtxlink/internal/logging"
	"github.com/tomtom215/vtxlink/internal/metrics"
	"github.com/tomtom215/vtxlink/internal/process"
	"github.com/tomtom215/vtxlink/internal/resource"
)

type commandKind int

const (
	cmdActivate commandKind = iota
	cmdStart
	cmdStop
	cmdReset
)

func (k commandKind) String() string {
	switch k {
	case cmdActivate:
		return "activate"
	case cmdStart:
		return "start"
	case cmdStop:
		return "stop"
	case cmdReset:
		return "reset"
	default:
		return "unknown"
	}
}

type command struct {
	kind  commandKind
	reply chan commandResult
}

type commandResult struct {
	status Status
	err    error
}

// Supervisor owns the lifecycle of one stream.
//
// All lifecycle state is confined to the goroutine running Serve. Other
// goroutines interact only through commands (RequestX methods), Touch, and
// the published Status snapshot. Serve implements suture.Service and may be
// re-entered after a panic; the lifecycle state survives the restart.
type Supervisor struct {
	cfg    Config
	opts   Options
	deps   Deps
	logger zerolog.Logger

	cmds   chan command
	status atomic.Pointer[Status]

	// epoch anchors lastActivity so it keeps the monotonic reading.
	epoch        time.Time
	lastActivity atomic.Int64

	// Loop-owned state below.
	state          State
	attempt        int
	retryAt        time.Time
	handle         process.Handle
	reservation    *resource.Reservation
	runID          string
	startedAt      time.Time
	runningSince   time.Time
	spawnDeadline  time.Time
	nextOutputCheck      time.Time
	stopDeadline   time.Time
	killSent       bool
	lastTransition time.Time
	lastExitReason string
	lastErr        string

	// keepAlive is set for auto-start streams: they are exempt from idle
	// reclamation and retried in Idle after an admission denial.
	keepAlive   bool
	idleRetryAt time.Time

	// pendingStart records an activation that arrived while stopping.
	pendingStart bool
}

// NewSupervisor creates the supervisor for one stream in state Idle.
func NewSupervisor(cfg Config, opts Options, deps Deps) *Supervisor {
	opts = opts.WithDefaults()
	deps = deps.withDefaults()

	now := deps.Clock.Now()
	s := &Supervisor{
		cfg:            cfg,
		opts:           opts,
		deps:           deps,
		logger:         logging.ForStream(cfg.Name),
		cmds:           make(chan command),
		epoch:          now,
		state:          StateIdle,
		lastTransition: now,
		keepAlive:      cfg.AutoStart,
	}
	if cfg.AutoStart {
		s.idleRetryAt = now
	}
	metrics.SetStreamState(cfg.Name, StateIdle.String())
	s.publish()
	return s
}

// Name returns the stream name.
func (s *Supervisor) Name() string {
	return s.cfg.Name
}

// String implements fmt.Stringer for suture logging.
func (s *Supervisor) String() string {
	return "stream:" + s.cfg.Name
}

// Touch records client activity without a round trip to the supervisor.
func (s *Supervisor) Touch() {
	s.lastActivity.Store(int64(s.deps.Clock.Since(s.epoch)))
}

func (s *Supervisor) lastActivityAt() time.Time {
	return s.epoch.Add(time.Duration(s.lastActivity.Load()))
}

// Status returns the latest published status with durations computed now.
func (s *Supervisor) Status() Status {
	st := *s.status.Load()
	now := s.deps.Clock.Now()

	if st.StartedAt != nil && st.State.Active() {
		st.UptimeSeconds = now.Sub(*st.StartedAt).Seconds()
	}
	if st.State == StateRunning || st.State == StateStarting {
		last := s.lastActivityAt()
		st.LastActivity = &last
		st.IdleSeconds = now.Sub(last).Seconds()
	} else {
		st.IdleSeconds = now.Sub(st.LastTransition).Seconds()
	}
	return st
}

// RequestActivation handles an on-demand trigger from a client request.
func (s *Supervisor) RequestActivation(ctx context.Context) (Status, error) {
	s.Touch()
	if st := s.Status(); st.State == StateStarting || st.State == StateRunning {
		return st, nil
	}
	return s.send(ctx, cmdActivate)
}

// RequestStart starts the stream regardless of client activity.
func (s *Supervisor) RequestStart(ctx context.Context) (Status, error) {
	return s.send(ctx, cmdStart)
}

// RequestStop stops the stream gracefully. Stopping an idle stream is a no-op.
func (s *Supervisor) RequestStop(ctx context.Context) (Status, error) {
	return s.send(ctx, cmdStop)
}

// RequestReset clears a disabled or backing-off stream back to Idle.
func (s *Supervisor) RequestReset(ctx context.Context) (Status, error) {
	return s.send(ctx, cmdReset)
}

func (s *Supervisor) send(ctx context.Context, kind commandKind) (Status, error) {
	cmd := command{kind: kind, reply: make(chan commandResult, 1)}
	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return s.Status(), fmt.Errorf("%w: %s command not accepted: %v", ErrNotReady, kind, ctx.Err())
	}
	select {
	case res := <-cmd.reply:
		return res.status, res.err
	case <-ctx.Done():
		return s.Status(), fmt.Errorf("%w: %s command timed out: %v", ErrNotReady, kind, ctx.Err())
	}
}

// Serve runs the state machine until ctx is canceled, then stops any live
// relay and purges its output.
func (s *Supervisor) Serve(ctx context.Context) error {
	for {
		var exitC <-chan struct{}
		if s.handle != nil {
			exitC = s.handle.Done()
		}

		var timerC <-chan time.Time
		var timer clock.Timer
		if deadline, ok := s.nextDeadline(); ok {
			t := s.deps.Clock.NewTimer(s.untilDeadline(deadline))
			timer = t
			timerC = t.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.shutdown()
			return ctx.Err()

		case cmd := <-s.cmds:
			status, err := s.handleCommand(ctx, cmd.kind)
			cmd.reply <- commandResult{status: status, err: err}

		case <-exitC:
			s.handleExit(ctx)

		case <-timerC:
			s.handleTimer(ctx)
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

func (s *Supervisor) untilDeadline(deadline time.Time) time.Duration {
	d := deadline.Sub(s.deps.Clock.Now())
	if d < 0 {
		return 0
	}
	return d
}

// nextDeadline returns the earliest time-based event for the current state.
func (s *Supervisor) nextDeadline() (time.Time, bool) {
	switch s.state {
	case StateIdle:
		if s.keepAlive && !s.idleRetryAt.IsZero() {
			return s.idleRetryAt, true
		}
	case StateStarting:
		if s.nextOutputCheck.Before(s.spawnDeadline) {
			return s.nextOutputCheck, true
		}
		return s.spawnDeadline, true
	case StateRunning:
		var deadline time.Time
		if s.idleReclaimable() {
			deadline = s.lastActivityAt().Add(s.cfg.IdleTimeout)
		}
		if s.attempt > 0 {
			stable := s.runningSince.Add(s.stabilityWindow())
			if deadline.IsZero() || stable.Before(deadline) {
				deadline = stable
			}
		}
		return deadline, !deadline.IsZero()
	case StateStopping:
		if !s.killSent {
			return s.stopDeadline, true
		}
	case StateCrashedBackoff:
		return s.retryAt, true
	}
	return time.Time{}, false
}

func (s *Supervisor) idleReclaimable() bool {
	return s.cfg.IdleTimeout > 0 && !s.keepAlive
}

func (s *Supervisor) stabilityWindow() time.Duration {
	if s.cfg.StabilityWindow > 0 {
		return s.cfg.StabilityWindow
	}
	return s.opts.StabilityWindow
}

func (s *Supervisor) handleCommand(ctx context.Context, kind commandKind) (Status, error) {
	var err error
	switch kind {
	case cmdActivate:
		s.Touch()
		err = s.activate(ctx, false)
	case cmdStart:
		s.keepAlive = s.cfg.AutoStart
		s.Touch()
		err = s.activate(ctx, true)
	case cmdStop:
		s.stop("stop requested")
	case cmdReset:
		s.reset()
	}
	s.publish()
	return s.Status(), err
}

// activate drives the stream towards Starting. force skips a pending
// backoff wait.
func (s *Supervisor) activate(ctx context.Context, force bool) error {
	switch s.state {
	case StateIdle:
		return s.tryStart(ctx, "activation")

	case StateStarting, StateRunning:
		return nil

	case StateStopping:
		s.pendingStart = true
		return fmt.Errorf("%w: stream is stopping, will restart when stopped", ErrNotReady)

	case StateCrashedBackoff:
		now := s.deps.Clock.Now()
		if !force && now.Before(s.retryAt) {
			return fmt.Errorf("%w: retrying in %s", ErrNotReady, s.retryAt.Sub(now).Round(time.Millisecond))
		}
		return s.tryStart(ctx, "retry")

	case StateDisabled:
		return fmt.Errorf("%w: reset required after %d failed attempts", ErrStreamDisabled, s.attempt)
	}
	return nil
}

// tryStart attempts Idle|CrashedBackoff -> Starting. Admission denial keeps
// the current state; any later failure enters backoff.
func (s *Supervisor) tryStart(ctx context.Context, trigger string) error {
	now := s.deps.Clock.Now()

	if s.handle != nil {
		// Unreachable from Idle or CrashedBackoff.
		s.logger.Error().Int("pid", s.handle.PID()).Msg("Refusing spawn while a relay is live")
		return fmt.Errorf("%w: %w", ErrNotReady, errHandleLive)
	}

	res, err := s.deps.Gate.Admit()
	if err != nil {
		s.lastErr = err.Error()
		switch s.state {
		case StateCrashedBackoff:
			s.retryAt = now.Add(s.cfg.Retry.NextDelay(1))
		case StateIdle:
			if s.keepAlive {
				s.idleRetryAt = now.Add(s.opts.AdmissionRetryInterval)
			}
		}
		s.logger.Warn().Err(err).Str("state", s.state.String()).Msg("Admission denied")
		s.publish()
		return err
	}
	s.idleRetryAt = time.Time{}

	// Every attempt records Starting, even when prepare or spawn fails.
	s.reservation = res
	s.runID = uuid.NewString()
	s.startedAt = now
	s.runningSince = time.Time{}
	s.spawnDeadline = now.Add(s.opts.SpawnTimeout)
	s.lastErr = ""
	s.Touch()
	s.transition(StateStarting, trigger)

	dir, err := s.deps.Output.Prepare(s.cfg.Name)
	if err != nil {
		s.failStart(err)
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	spec := process.Spec{
		Executable: s.opts.Executable,
		Args:       process.BuildArgs(s.opts.GlobalArgs, s.cfg.Source, s.cfg.OutputArgs, dir),
		Dir:        dir,
	}
	h, err := s.deps.Runner.Spawn(ctx, spec)
	if err != nil {
		s.failStart(err)
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	now = s.deps.Clock.Now()
	s.handle = h
	s.spawnDeadline = now.Add(s.opts.SpawnTimeout)
	s.nextOutputCheck = now.Add(s.opts.OutputCheckInterval)

	s.logger.Info().
		Int("pid", h.PID()).
		Str("run_id", s.runID).
		Str("dir", dir).
		Msg("Relay process spawned")

	// Publish again so the status carries the pid.
	s.publish()
	return nil
}

// failStart records a failed start and enters backoff. Any live handle is
// killed and reaped first so no second relay can overlap it.
func (s *Supervisor) failStart(cause error) {
	kind := failureKind(cause)
	metrics.RecordSpawn(s.cfg.Name, kind)

	s.reservation.Release()
	s.reservation = nil

	if s.handle != nil {
		_ = s.handle.ForceKill()
		<-s.handle.Done()
		s.lastExitReason = s.handle.ExitInfo().Reason()
		s.handle = nil
	}

	s.lastErr = cause.Error()
	s.logger.Warn().Err(cause).Str("kind", kind).Int("attempt", s.attempt+1).Msg("Stream start failed")
	s.enterBackoff(kind + ": " + cause.Error())
}

// enterBackoff increments the attempt counter and schedules a retry, or
// disables the stream once the retry budget is spent.
func (s *Supervisor) enterBackoff(reason string) {
	s.attempt++
	metrics.RecordAttempt(s.cfg.Name, s.attempt)

	delay := s.cfg.Retry.NextDelay(s.attempt)
	s.retryAt = s.deps.Clock.Now().Add(delay)
	s.transition(StateCrashedBackoff, reason)

	if s.cfg.Retry.IsExhausted(s.attempt) {
		s.retryAt = time.Time{}
		s.transition(StateDisabled, fmt.Sprintf("retry budget exhausted after %d attempts", s.attempt))
	}
}

func (s *Supervisor) handleExit(ctx context.Context) {
	info := s.handle.ExitInfo()
	pid := s.handle.PID()
	s.handle = nil
	s.lastExitReason = info.Reason()

	s.logger.Info().
		Int("pid", pid).
		Int("code", info.Code).
		Str("signal", info.Signal).
		Str("state", s.state.String()).
		Msg("Relay process exited")

	now := s.deps.Clock.Now()
	switch s.state {
	case StateStarting:
		s.failStart(&process.SpawnError{Kind: process.KindExitedEarly, Err: errors.New(info.Reason())})

	case StateRunning:
		if now.Sub(s.runningSince) >= s.stabilityWindow() {
			s.attempt = 0
		}
		metrics.RecordCrash(s.cfg.Name)
		s.lastErr = "relay exited unexpectedly: " + info.Reason()
		s.enterBackoff("crashed: " + info.Reason())

	case StateStopping:
		s.finishStop(ctx)

	default:
		s.logger.Warn().Str("state", s.state.String()).Msg("Exit observed in unexpected state")
	}
}

// finishStop completes Stopping -> Idle after the relay has exited.
func (s *Supervisor) finishStop(ctx context.Context) {
	if err := s.deps.Output.Purge(s.cfg.Name); err != nil {
		s.lastErr = err.Error()
		s.logger.Warn().Err(err).Msg("Failed to purge output after stop")
	}
	s.runID = ""
	s.transition(StateIdle, "stopped")

	if s.pendingStart {
		s.pendingStart = false
		if err := s.tryStart(ctx, "pending activation"); err != nil {
			s.logger.Debug().Err(err).Msg("Pending activation did not start")
		}
	}
}

func (s *Supervisor) handleTimer(ctx context.Context) {
	now := s.deps.Clock.Now()

	switch s.state {
	case StateIdle:
		if s.keepAlive && !s.idleRetryAt.IsZero() && !now.Before(s.idleRetryAt) {
			s.idleRetryAt = time.Time{}
			_ = s.tryStart(ctx, "auto start")
		}

	case StateStarting:
		ok, err := s.deps.Output.HasArtifacts(s.cfg.Name)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Output check failed")
		}
		if ok {
			s.promote()
			return
		}
		if !now.Before(s.spawnDeadline) {
			s.failStart(&TimeoutError{Stream: s.cfg.Name, After: s.opts.SpawnTimeout})
			return
		}
		s.nextOutputCheck = now.Add(s.opts.OutputCheckInterval)

	case StateRunning:
		if s.idleReclaimable() && now.Sub(s.lastActivityAt()) >= s.cfg.IdleTimeout {
			s.beginStop(fmt.Sprintf("idle for %s", s.cfg.IdleTimeout))
			return
		}
		if s.attempt > 0 && now.Sub(s.runningSince) >= s.stabilityWindow() {
			s.logger.Info().Int("attempt", s.attempt).Msg("Run stable, resetting attempt counter")
			s.attempt = 0
			metrics.RecordAttempt(s.cfg.Name, 0)
			s.publish()
		}

	case StateStopping:
		if !s.killSent && !now.Before(s.stopDeadline) && s.handle != nil {
			s.logger.Warn().Dur("grace", s.opts.StopGracePeriod).Msg("Relay ignored stop, killing")
			if err := s.handle.ForceKill(); err != nil {
				s.logger.Error().Err(err).Msg("Failed to kill relay")
			}
			s.killSent = true
		}

	case StateCrashedBackoff:
		if !now.Before(s.retryAt) {
			_ = s.tryStart(ctx, "retry")
		}
	}
}

// promote completes Starting -> Running once output is observed.
func (s *Supervisor) promote() {
	now := s.deps.Clock.Now()
	metrics.RecordSpawn(s.cfg.Name, "")

	// Counted until a later memory sample includes the relay.
	s.reservation.Settle()
	s.reservation = nil

	s.runningSince = now
	s.Touch()
	s.transition(StateRunning, "output observed")
}

// stop handles an explicit stop command.
func (s *Supervisor) stop(reason string) {
	s.keepAlive = false
	s.idleRetryAt = time.Time{}
	s.pendingStart = false

	switch s.state {
	case StateStarting, StateRunning:
		s.beginStop(reason)
	case StateCrashedBackoff:
		s.retryAt = time.Time{}
		s.transition(StateIdle, reason)
	}
}

// beginStop issues a graceful stop and enters Stopping.
func (s *Supervisor) beginStop(reason string) {
	s.reservation.Release()
	s.reservation = nil

	if err := s.handle.SignalStop(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to signal relay")
	}
	s.stopDeadline = s.deps.Clock.Now().Add(s.opts.StopGracePeriod)
	s.killSent = false
	s.transition(StateStopping, reason)
}

func (s *Supervisor) reset() {
	switch s.state {
	case StateDisabled, StateCrashedBackoff:
		s.attempt = 0
		s.retryAt = time.Time{}
		s.lastErr = ""
		metrics.RecordAttempt(s.cfg.Name, 0)
		if s.keepAlive {
			s.idleRetryAt = s.deps.Clock.Now()
		}
		s.transition(StateIdle, "reset")
	}
}

// shutdown stops any live relay, waiting up to the grace period before
// killing it, and purges the output directory.
func (s *Supervisor) shutdown() {
	s.reservation.Release()
	s.reservation = nil

	if s.handle != nil {
		if s.state != StateStopping {
			if err := s.handle.SignalStop(); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to signal relay")
			}
		}
		if !s.waitExit(s.opts.StopGracePeriod) {
			s.logger.Warn().Msg("Relay did not exit within grace period, killing")
			_ = s.handle.ForceKill()
			if !s.waitExit(s.opts.StopGracePeriod) {
				s.logger.Error().Int("pid", s.handle.PID()).Msg("Relay did not exit after kill")
			}
		}
		s.lastExitReason = s.handle.ExitInfo().Reason()
		s.handle = nil
	}

	if s.state.Active() {
		if err := s.deps.Output.Purge(s.cfg.Name); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to purge output on shutdown")
		}
		s.runID = ""
		s.transition(StateIdle, "shutdown")
	}
}

func (s *Supervisor) waitExit(d time.Duration) bool {
	t := s.deps.Clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.handle.Done():
		return true
	case <-t.C():
		return false
	}
}

func (s *Supervisor) transition(to State, reason string) {
	from := s.state
	now := s.deps.Clock.Now()
	s.state = to
	s.lastTransition = now

	ev := Transition{
		Stream:  s.cfg.Name,
		From:    from,
		To:      to,
		Attempt: s.attempt,
		Reason:  reason,
		RetryAt: timePtr(s.retryAt),
		At:      now,
	}

	evt := s.logger.Info()
	if to == StateCrashedBackoff || to == StateDisabled {
		evt = s.logger.Warn()
	}
	evt.Str("from", from.String()).
		Str("to", to.String()).
		Int("attempt", s.attempt).
		Str("reason", reason).
		Msg("Stream state transition")

	metrics.RecordTransition(s.cfg.Name, from.String(), to.String())
	s.publish()

	if s.deps.Observer != nil {
		s.deps.Observer.OnTransition(ev)
	}
}

// publish stores a fresh status snapshot built from loop-owned state.
func (s *Supervisor) publish() {
	st := &Status{
		Name:               s.cfg.Name,
		Source:             s.cfg.Source,
		State:              s.state,
		AutoStart:          s.cfg.AutoStart,
		Attempt:            s.attempt,
		MaxAttempts:        s.cfg.Retry.MaxAttempts,
		IdleTimeoutSeconds: s.cfg.IdleTimeout.Seconds(),
		LastTransition:     s.lastTransition,
		LastExitReason:     s.lastExitReason,
		LastError:          s.lastErr,
	}
	if s.state == StateCrashedBackoff {
		st.RetryAt = timePtr(s.retryAt)
	}
	if s.handle != nil {
		st.PID = s.handle.PID()
		st.RunID = s.runID
		st.StartedAt = timePtr(s.startedAt)
	}
	s.status.Store(st)
}
