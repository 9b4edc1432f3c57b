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

// Package supervisor drives one service through its lifecycle: compile
// hooks, run init, keep the run hook alive with backed-off restarts,
// probe health, react to configuration and file changes, and tear the
// service down on shutdown.
//
// The hook table has a single owner: every hook execution and compile
// happens on the supervisor's own goroutine. Other goroutines interact
// through Status snapshots and the SmokeTest/Reload request channels.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/steward-sh/steward/internal/config"
	"github.com/steward-sh/steward/internal/health"
	"github.com/steward-sh/steward/internal/hook"
	"github.com/steward-sh/steward/internal/journal"
	"github.com/steward-sh/steward/internal/log"
	"github.com/steward-sh/steward/internal/output"
	"github.com/steward-sh/steward/internal/svcconf"
	"github.com/steward-sh/steward/internal/watcher"
)

var (
	// ErrNoRunHook is returned by New when the service ships no run
	// hook template. The run hook is the service; without it there is
	// nothing to supervise.
	ErrNoRunHook = errors.New("supervisor: service has no run hook")

	// ErrNoHook is returned when an on-demand hook was requested but
	// the service does not provide it.
	ErrNoHook = errors.New("supervisor: service does not provide this hook")

	// ErrStopped is returned for requests made after the supervisor
	// has shut down.
	ErrStopped = errors.New("supervisor: stopped")
)

// stableRun is how long a run hook must stay up for the restart
// backoff to reset.
const stableRun = time.Minute

type smokeRequest struct {
	ctx   context.Context
	reply chan smokeReply
}

type smokeReply struct {
	result health.SmokeResult
	err    error
}

type reloadRequest struct {
	reply chan error
}

type healthResult struct {
	status  health.Status
	elapsed time.Duration
}

// Supervisor owns one service.
type Supervisor struct {
	cfg      *config.Config
	logger   *slog.Logger
	sink     *output.Sink
	journal  *journal.Journal
	identity svcconf.Identity
	source   svcconf.Source

	table *hook.Table

	// Actor state, touched only on the Run goroutine.
	incarnation uint64
	svcCfg      *svcconf.Config
	state       State
	health      health.Status
	restarts    uint64
	started     time.Time
	backoff     time.Duration
	initDone    bool
	healthBusy  bool

	runDone    chan hook.ExitCode
	healthDone chan healthResult
	smokeCh    chan smokeRequest
	reloadCh   chan reloadRequest
	doneCh     chan struct{}

	mu       sync.RWMutex
	snapshot Status
}

// New builds a supervisor for the configured service. The service must
// provide a run hook template; the hook scripts directory and files
// directory are created if missing.
func New(cfg *config.Config, sink *output.Sink, jnl *journal.Journal, logger *slog.Logger) (*Supervisor, error) {
	identity, err := svcconf.ResolveIdentity(cfg.Service.User, cfg.Service.UserGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve service identity: %w", err)
	}

	if err := os.MkdirAll(cfg.HooksDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create hooks directory: %w", err)
	}
	if err := os.MkdirAll(cfg.FilesDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create files directory: %w", err)
	}

	table := hook.LoadTable(sink, cfg.HooksDir(), cfg.Service.TemplateDir)
	table.SetStopGrace(cfg.Restart.StopGrace)
	if table.Run == nil {
		return nil, fmt.Errorf("%w: no %s template in %s",
			ErrNoRunHook, hook.KindRun.FileName(), cfg.Service.TemplateDir)
	}

	s := &Supervisor{
		cfg:      cfg,
		logger:   log.WithService(log.WithComponent(logger, "supervisor"), cfg.ServiceGroup()),
		sink:     sink,
		journal:  jnl,
		identity: identity,
		source: svcconf.Source{
			DefaultPath: cfg.Service.DefaultConfig,
			UserPath:    cfg.UserConfigPath(),
		},
		table:      table,
		state:      StateStopped,
		health:     health.Unknown,
		backoff:    cfg.Restart.InitialBackoff,
		runDone:    make(chan hook.ExitCode, 1),
		healthDone: make(chan healthResult, 1),
		smokeCh:    make(chan smokeRequest),
		reloadCh:   make(chan reloadRequest),
		doneCh:     make(chan struct{}),
	}
	s.publish()
	return s, nil
}

// Run supervises the service until ctx is cancelled, then tears it
// down and returns.
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.doneCh)

	if err := s.loadConfig(ctx, s.incarnation+1); err != nil {
		return err
	}

	userEvents, filesEvents, stopWatchers, err := s.startWatchers(ctx)
	if err != nil {
		return err
	}
	defer stopWatchers()

	restart := time.NewTimer(time.Hour)
	restart.Stop()
	defer restart.Stop()

	healthTick := time.NewTimer(s.healthSplay())
	defer healthTick.Stop()

	s.startService(ctx)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil

		case code := <-s.runDone:
			s.onRunExit(ctx, code, restart)

		case <-restart.C:
			if s.state == StateBackoff {
				s.spawnRun(ctx)
			}

		case <-healthTick.C:
			s.triggerHealthCheck(ctx)
			healthTick.Reset(s.cfg.Health.Interval)

		case result := <-s.healthDone:
			s.onHealthResult(ctx, result)

		case event, ok := <-userEvents:
			if !ok {
				userEvents = nil
				continue
			}
			s.logger.Info("operator configuration changed", "paths", event.Paths)
			if err := s.reload(ctx); err != nil {
				s.logger.Error("reload failed", log.Error(err))
			}

		case event, ok := <-filesEvents:
			if !ok {
				filesEvents = nil
				continue
			}
			s.onFilesUpdated(ctx, event)

		case req := <-s.smokeCh:
			req.reply <- s.onSmokeTest(req.ctx)

		case req := <-s.reloadCh:
			req.reply <- s.reload(ctx)
		}
	}
}

// Status returns the current snapshot. Safe from any goroutine.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SmokeTest asks the supervisor to run the smoke_test hook and waits
// for its result.
func (s *Supervisor) SmokeTest(ctx context.Context) (health.SmokeResult, error) {
	req := smokeRequest{ctx: ctx, reply: make(chan smokeReply, 1)}

	select {
	case s.smokeCh <- req:
	case <-s.doneCh:
		return health.SmokeResult{Code: -1}, ErrStopped
	case <-ctx.Done():
		return health.SmokeResult{Code: -1}, ctx.Err()
	}

	select {
	case reply := <-req.reply:
		return reply.result, reply.err
	case <-s.doneCh:
		return health.SmokeResult{Code: -1}, ErrStopped
	}
}

// Reload asks the supervisor to load the next configuration
// incarnation, recompile hooks, and run the reconfigure hook if the
// service is up.
func (s *Supervisor) Reload(ctx context.Context) error {
	req := reloadRequest{reply: make(chan error, 1)}

	select {
	case s.reloadCh <- req:
	case <-s.doneCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-s.doneCh:
		return ErrStopped
	}
}

// startWatchers wires the user.toml and files directory watchers.
// Disabled watching yields nil channels, which never select.
func (s *Supervisor) startWatchers(ctx context.Context) (<-chan watcher.Event, <-chan watcher.Event, func(), error) {
	if !s.cfg.WatchEnabled() {
		return nil, nil, func() {}, nil
	}

	userW, err := watcher.New(watcher.Config{
		Name:     "user-config",
		Path:     s.cfg.UserConfigPath(),
		Debounce: s.cfg.Watch.Debounce,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to watch %s: %w", s.cfg.UserConfigPath(), err)
	}

	filesW, err := watcher.New(watcher.Config{
		Name:         "files",
		Path:         s.cfg.FilesDir(),
		Patterns:     s.cfg.Watch.Patterns,
		Exclude:      s.cfg.Watch.Exclude,
		Debounce:     s.cfg.Watch.Debounce,
		MaxPerMinute: s.cfg.Watch.MaxTriggersPerMinute,
		Logger:       s.logger,
	})
	if err != nil {
		userW.Stop()
		return nil, nil, nil, fmt.Errorf("failed to watch %s: %w", s.cfg.FilesDir(), err)
	}

	userW.Start(ctx)
	filesW.Start(ctx)

	stop := func() {
		userW.Stop()
		filesW.Stop()
	}
	return userW.Events(), filesW.Events(), stop, nil
}

// healthSplay picks the random delay before the first health check so
// a fleet of supervisors does not probe in lockstep.
func (s *Supervisor) healthSplay() time.Duration {
	if s.cfg.Health.Splay <= 0 {
		return s.cfg.Health.Interval
	}
	return rand.N(s.cfg.Health.Splay)
}

// publish refreshes the status snapshot and state-derived metrics.
func (s *Supervisor) publish() {
	service := s.cfg.ServiceGroup()

	hooks := make([]string, 0, 6)
	for _, kind := range s.table.Present() {
		hooks = append(hooks, kind.FileName())
	}

	var started time.Time
	if s.state == StateRunning {
		started = s.started
	}

	s.mu.Lock()
	s.snapshot = Status{
		Service:     service,
		State:       s.state,
		Health:      s.health,
		Incarnation: s.table.LastCompiled(),
		Hooks:       hooks,
		Restarts:    s.restarts,
		PID:         os.Getpid(),
		StartedAt:   started,
	}
	s.mu.Unlock()

	recordServiceUp(service, s.state == StateRunning)
	recordServiceHealth(service, s.health)
}
