// Copyright 2026 The Steward Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/steward-sh/steward/internal/health"
	"github.com/steward-sh/steward/internal/hook"
	"github.com/steward-sh/steward/internal/journal"
	"github.com/steward-sh/steward/internal/log"
	"github.com/steward-sh/steward/internal/watcher"
)

// loadConfig loads the service configuration at incarnation next and
// compiles the hook table against it.
func (s *Supervisor) loadConfig(ctx context.Context, next uint64) error {
	svcCfg, err := s.source.Load(s.cfg.ServiceGroup(), s.identity, next)
	if err != nil {
		return fmt.Errorf("failed to load service configuration: %w", err)
	}

	s.svcCfg = svcCfg
	s.incarnation = next
	s.table.Compile(s.sink, svcCfg)

	s.journal.Record(ctx, s.event(journal.TypeHooksCompiled,
		fmt.Sprintf("incarnation %d", s.table.LastCompiled()), ""))
	s.logger.Info("configuration loaded", log.IncarnationKey, next)
	s.publish()
	return nil
}

// reload advances to the next configuration incarnation. If the
// service is up and provides a reconfigure hook, it runs; a failed
// start is retried with the new configuration.
func (s *Supervisor) reload(ctx context.Context) error {
	if err := s.loadConfig(ctx, s.incarnation+1); err != nil {
		s.journal.Record(ctx, s.event(journal.TypeConfigReloaded, "failed", err.Error()))
		return err
	}
	s.journal.Record(ctx, s.event(journal.TypeConfigReloaded,
		fmt.Sprintf("incarnation %d", s.incarnation), ""))

	switch {
	case s.state == StateFailed:
		// New configuration is the operator's retry lever.
		s.startService(ctx)

	case s.state == StateRunning && s.table.Reconfigure != nil:
		start := time.Now()
		code := s.table.Reconfigure.RunContext(ctx, s.sink, s.identity)
		s.journal.Record(ctx, s.hookEvent(hook.KindReconfigure, exitOutcome(code), time.Since(start)))
		if !code.Ok() {
			s.logger.Warn("reconfigure hook failed", "outcome", exitOutcome(code))
		}
	}
	return nil
}

// startService takes the service from stopped to running: init first
// when the service provides one, then the run hook. A failing init
// leaves the service failed until the next reload.
func (s *Supervisor) startService(ctx context.Context) {
	s.state = StateStarting
	s.publish()
	s.journal.Record(ctx, s.event(journal.TypeServiceStarting, "", ""))
	s.logger.Info("starting service")

	if !s.initDone && s.table.Init != nil {
		start := time.Now()
		code := s.table.Init.RunContext(ctx, s.sink, s.identity)
		s.journal.Record(ctx, s.hookEvent(hook.KindInit, exitOutcome(code), time.Since(start)))
		if !code.Ok() {
			s.logger.Error("init hook failed, service not started",
				"outcome", exitOutcome(code))
			s.state = StateFailed
			s.health = health.Unknown
			s.publish()
			return
		}
	}
	s.initDone = true

	s.spawnRun(ctx)
}

// spawnRun starts the run hook, the service process itself, on its own
// goroutine. Its exit comes back on runDone.
func (s *Supervisor) spawnRun(ctx context.Context) {
	s.started = time.Now()
	s.state = StateRunning
	if s.table.HealthCheck == nil {
		// No probe: an alive process is a healthy one.
		s.health = health.Ok
	} else {
		s.health = health.Unknown
	}
	s.publish()

	s.journal.Record(ctx, s.event(journal.TypeServiceStarted, "", ""))
	s.logger.Info("service started", log.IncarnationKey, s.incarnation)

	run := s.table.Run
	go func() {
		s.runDone <- run.RunContext(ctx, s.sink, s.identity)
	}()
}

// onRunExit handles the run hook terminating on its own and schedules
// the restart.
func (s *Supervisor) onRunExit(ctx context.Context, code hook.ExitCode, restart *time.Timer) {
	if ctx.Err() != nil {
		// Shutdown killed the child; mark it down so shutdown does not
		// wait for an exit that was already consumed here.
		s.state = StateStopping
		return
	}

	outcome := exitOutcome(code)
	s.logger.Warn("service process exited", "outcome", outcome)
	exited := s.event(journal.TypeServiceExited, outcome, "")
	exited.DurationMS = time.Since(s.started).Milliseconds()
	s.journal.Record(ctx, exited)

	// A long stable run earns a fresh backoff.
	if time.Since(s.started) >= stableRun {
		s.backoff = s.cfg.Restart.InitialBackoff
	}
	delay := s.backoff
	s.backoff = min(s.backoff*2, s.cfg.Restart.MaxBackoff)

	s.restarts++
	s.state = StateBackoff
	s.health = health.Unknown
	s.publish()
	recordServiceRestart(s.cfg.ServiceGroup())

	s.journal.Record(ctx, s.event(journal.TypeServiceRestarting, "",
		fmt.Sprintf("in %s", delay)))
	s.logger.Info("restart scheduled", "delay", delay.String())
	restart.Reset(delay)
}

// triggerHealthCheck starts one health probe unless the service is
// down, has no probe, or one is already in flight.
func (s *Supervisor) triggerHealthCheck(ctx context.Context) {
	if s.state != StateRunning || s.table.HealthCheck == nil || s.healthBusy {
		return
	}
	s.healthBusy = true

	check := s.table.HealthCheck
	timeout := s.cfg.Health.Timeout
	go func() {
		tctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		start := time.Now()
		status := check.RunContext(tctx, s.sink, s.identity)
		s.healthDone <- healthResult{status: status, elapsed: time.Since(start)}
	}()
}

// onHealthResult applies a finished probe. Transitions are journaled;
// steady states only logged at debug.
func (s *Supervisor) onHealthResult(ctx context.Context, result healthResult) {
	s.healthBusy = false
	if s.state != StateRunning {
		return
	}

	if result.status != s.health {
		s.logger.Info("service health changed",
			"from", s.health.String(), "to", result.status.String())
		s.journal.Record(ctx, s.hookEvent(hook.KindHealthCheck, result.status.String(), result.elapsed))
	} else {
		s.logger.Debug("health check completed", "status", result.status.String())
	}

	s.health = result.status
	s.publish()
}

// onFilesUpdated reacts to a settled batch of changes under the files
// directory.
func (s *Supervisor) onFilesUpdated(ctx context.Context, event watcher.Event) {
	s.logger.Info("service files updated", "count", len(event.Paths))
	s.journal.Record(ctx, s.event(journal.TypeFilesUpdated, "",
		strings.Join(event.Paths, ", ")))

	if s.table.FileUpdated == nil {
		return
	}

	start := time.Now()
	outcome := "failed"
	if s.table.FileUpdated.RunContext(ctx, s.sink, s.identity) {
		outcome = "success"
	}
	s.journal.Record(ctx, s.hookEvent(hook.KindFileUpdated, outcome, time.Since(start)))
}

// onSmokeTest runs the smoke_test hook for an operator request.
func (s *Supervisor) onSmokeTest(ctx context.Context) smokeReply {
	if s.table.SmokeTest == nil {
		return smokeReply{
			result: health.SmokeResult{Code: -1},
			err:    fmt.Errorf("%w: %s", ErrNoHook, hook.KindSmokeTest.FileName()),
		}
	}

	start := time.Now()
	result := s.table.SmokeTest.RunContext(ctx, s.sink, s.identity)
	s.journal.Record(ctx, s.hookEvent(hook.KindSmokeTest, result.String(), time.Since(start)))
	return smokeReply{result: result}
}

// shutdown tears the service down after the supervisor's context has
// been cancelled. Cancellation has already signalled any children; this
// waits for them to be reaped and records the stop.
func (s *Supervisor) shutdown() {
	bg := context.Background()

	s.journal.Record(bg, s.event(journal.TypeServiceStopping, "", ""))
	s.logger.Info("stopping service")
	wasRunning := s.state == StateRunning
	s.state = StateStopping
	s.publish()

	if wasRunning {
		<-s.runDone
	}
	if s.healthBusy {
		<-s.healthDone
		s.healthBusy = false
	}

	s.state = StateStopped
	s.health = health.Unknown
	s.started = time.Time{}
	s.publish()

	s.journal.Record(bg, s.event(journal.TypeServiceStopped, "", ""))
	s.logger.Info("service stopped")
}

// event builds a journal event for this service.
func (s *Supervisor) event(typ journal.Type, outcome, detail string) journal.Event {
	return journal.Event{
		Service: s.cfg.ServiceGroup(),
		Type:    typ,
		Outcome: outcome,
		Detail:  detail,
	}
}

// hookEvent builds a hook.ran journal event.
func (s *Supervisor) hookEvent(kind hook.Kind, outcome string, elapsed time.Duration) journal.Event {
	e := s.event(journal.TypeHookRan, outcome, "")
	e.Hook = kind.FileName()
	e.DurationMS = elapsed.Milliseconds()
	return e
}

// exitOutcome renders an exit-code outcome for logs and the journal.
func exitOutcome(code hook.ExitCode) string {
	if code == hook.NoExitCode {
		return "terminated without exit code"
	}
	return fmt.Sprintf("exit status %d", int(code))
}
