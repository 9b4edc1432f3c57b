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

// Package watcher turns filesystem activity into settled batches of
// changed paths. The supervisor runs one watcher on the operator's
// user.toml and one on the service files directory.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// watchedOps are the fsnotify operations that count as changes.
// Chmod is deliberately left out.
const watchedOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// opNames maps fsnotify operations to metric event types.
var opNames = map[fsnotify.Op]string{
	fsnotify.Create: "created",
	fsnotify.Write:  "modified",
	fsnotify.Remove: "deleted",
	fsnotify.Rename: "renamed",
}

// defaultDebounce is the settle window applied when none is configured.
const defaultDebounce = 500 * time.Millisecond

// Config describes one watch.
type Config struct {
	// Name labels the watcher in logs and metrics.
	Name string

	// Path is the file or directory to watch. A directory is watched
	// recursively. Anything else is treated as a single-file watch on
	// its parent directory, so editors that save by rename-and-replace
	// are still observed and the file may not exist yet.
	Path string

	// Patterns selects which changed paths count, as doublestar globs
	// relative to the watched directory. Empty means everything.
	Patterns []string

	// Exclude removes matches from Patterns.
	Exclude []string

	// Debounce is how long events must stop arriving before a batch is
	// delivered.
	// Default: 500ms
	Debounce time.Duration

	// MaxPerMinute rate-limits delivered batches. Zero means no limit.
	MaxPerMinute int

	// Logger receives watcher diagnostics.
	Logger *slog.Logger
}

// Event is one settled batch of changes.
type Event struct {
	// Paths are the distinct changed paths, sorted.
	Paths []string

	// Time is when the batch settled.
	Time time.Time
}

// Watcher watches one path and delivers settled change batches on
// Events.
type Watcher struct {
	name     string
	dir      string
	only     string
	debounce time.Duration
	matcher  *matcher
	limiter  *rate.Limiter
	fsw      *fsnotify.Watcher
	events   chan Event
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a watcher for cfg.Path. Call Start to begin delivery.
func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch path is required")
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	dir, only := absPath, ""
	if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat watch path: %w", err)
		}
		dir, only = filepath.Dir(absPath), filepath.Base(absPath)
	}

	m, err := newMatcher(cfg.Patterns, cfg.Exclude)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		name:     cfg.Name,
		dir:      dir,
		only:     only,
		debounce: cfg.Debounce,
		matcher:  m,
		fsw:      fsw,
		events:   make(chan Event, 16),
		logger:   logger.With("component", "watcher", "watcher", cfg.Name, "path", absPath),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if cfg.MaxPerMinute > 0 {
		perSecond := float64(cfg.MaxPerMinute) / 60.0
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}

	if only == "" {
		err = w.addTree(dir)
	} else {
		err = fsw.Add(dir)
	}
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return w, nil
}

// Start begins watching. Delivery stops when ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
	w.logger.Info("file watcher started")
}

// Events returns the channel settled batches are delivered on. It is
// closed once the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop halts the watcher, delivering any pending batch first. It may
// be called more than once.
func (w *Watcher) Stop() error {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	<-w.doneCh
	return w.fsw.Close()
}

// loop is the only sender on w.events, so closing it here is safe.
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.events)

	settle := time.NewTimer(w.debounce)
	settle.Stop()
	defer settle.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			w.flush(pending)
			w.logger.Info("file watcher stopped")
			return
		case <-w.stopCh:
			w.flush(pending)
			w.logger.Info("file watcher stopped")
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			settle.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			recordWatchError(w.name, "fsnotify")
			w.logger.Error("file watcher error", "error", err)
		case <-settle.C:
			w.flush(pending)
			pending = make(map[string]struct{})
		}
	}
}

// relevant decides whether a raw fsnotify event joins the pending
// batch, extending the watch when new directories appear.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&watchedOps == 0 {
		return false
	}

	if w.only != "" {
		if event.Name != filepath.Join(w.dir, w.only) {
			return false
		}
		recordWatchEvent(w.name, opString(event.Op))
		return true
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				recordWatchError(w.name, "add_watch")
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
		}
	}

	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil {
		rel = filepath.Base(event.Name)
	}
	if !w.matcher.Match(rel) {
		recordWatchExcluded(w.name)
		w.logger.Debug("file excluded by pattern", "path", event.Name)
		return false
	}

	recordWatchEvent(w.name, opString(event.Op))
	return true
}

// flush delivers the pending batch, subject to the rate limit.
func (w *Watcher) flush(pending map[string]struct{}) {
	if len(pending) == 0 {
		return
	}

	if w.limiter != nil && !w.limiter.Allow() {
		recordWatchRateLimited(w.name)
		w.logger.Warn("rate limit exceeded, dropping file events", "count", len(pending))
		return
	}

	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	select {
	case w.events <- Event{Paths: paths, Time: time.Now()}:
		recordWatchBatch(w.name)
		w.logger.Debug("file events settled", "count", len(paths))
	default:
		w.logger.Warn("event channel full, dropping file events", "count", len(paths))
	}
}

// addTree watches root and every directory beneath it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip directories we cannot read.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func opString(op fsnotify.Op) string {
	for flag, name := range opNames {
		if op.Has(flag) {
			return name
		}
	}
	return "other"
}
