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

// Package journal persists supervisor lifecycle events to a local
// SQLite database so operators can reconstruct what happened to a
// service after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Type identifies the kind of journal event.
type Type string

const (
	// TypeServiceStarting is recorded before the init hook runs.
	TypeServiceStarting Type = "service.starting"

	// TypeServiceStarted is recorded once the run hook has been spawned.
	TypeServiceStarted Type = "service.started"

	// TypeServiceExited is recorded when the run hook exits on its own.
	TypeServiceExited Type = "service.exited"

	// TypeServiceRestarting is recorded when a restart has been
	// scheduled after a run hook exit.
	TypeServiceRestarting Type = "service.restarting"

	// TypeServiceStopping is recorded when shutdown begins.
	TypeServiceStopping Type = "service.stopping"

	// TypeServiceStopped is recorded once the service is fully down.
	TypeServiceStopped Type = "service.stopped"

	// TypeHookRan is recorded after any hook finishes, with its outcome.
	TypeHookRan Type = "hook.ran"

	// TypeHooksCompiled is recorded when hook templates are rendered
	// and installed for a configuration incarnation.
	TypeHooksCompiled Type = "hooks.compiled"

	// TypeConfigReloaded is recorded when a new configuration
	// incarnation is loaded.
	TypeConfigReloaded Type = "config.reloaded"

	// TypeFilesUpdated is recorded when watched service files change.
	TypeFilesUpdated Type = "files.updated"
)

// Event is one journalled occurrence.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Time is when the event occurred.
	Time time.Time `json:"time"`

	// Service is the qualified service group label.
	Service string `json:"service"`

	// Type identifies the kind of event.
	Type Type `json:"type"`

	// Hook names the hook involved, for hook events.
	Hook string `json:"hook,omitempty"`

	// Outcome summarizes how the operation ended.
	Outcome string `json:"outcome,omitempty"`

	// DurationMS is how long the operation ran, in milliseconds, for
	// hook and run events.
	DurationMS int64 `json:"duration_ms,omitempty"`

	// Detail carries free-form context, such as an error message.
	Detail string `json:"detail,omitempty"`
}

// DefaultTailLimit is how many events Tail returns when no limit is
// given.
const DefaultTailLimit = 50

// Journal is an append-only event log backed by SQLite.
//
// A nil *Journal is valid: Record discards events and Tail reports
// none, so journalling can be disabled by simply not opening one.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the journal database at path and runs
// migrations. The database uses WAL mode so readers never block the
// supervisor's writes.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	connStr := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=ON"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	j := &Journal{db: db, logger: logger}
	if err := j.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run journal migrations: %w", err)
	}
	return j, nil
}

// migrate creates the journal schema.
func (j *Journal) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			time TEXT NOT NULL,
			service TEXT NOT NULL,
			type TEXT NOT NULL,
			hook TEXT,
			outcome TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			detail TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_service
			ON events(service)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type
			ON events(type)`,
	}

	for _, migration := range migrations {
		if _, err := j.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Append writes one event. A missing ID or Time is filled in.
func (j *Journal) Append(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	query := `INSERT INTO events (id, time, service, type, hook, outcome, duration_ms, detail)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		event.ID,
		event.Time.UTC().Format(time.RFC3339Nano),
		event.Service,
		string(event.Type),
		event.Hook,
		event.Outcome,
		event.DurationMS,
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Record appends an event and logs instead of failing when the write
// does not succeed. A broken journal must never interrupt supervision.
func (j *Journal) Record(ctx context.Context, event Event) {
	if j == nil {
		return
	}
	if err := j.Append(ctx, event); err != nil {
		j.logger.Warn("failed to record journal event",
			"type", event.Type,
			"error", err,
		)
	}
}

// Tail returns the most recent events in chronological order. A
// non-positive limit means DefaultTailLimit.
func (j *Journal) Tail(ctx context.Context, limit int) ([]Event, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultTailLimit
	}

	// rowid preserves exact append order even when wall clocks jump.
	query := `SELECT id, time, service, type, hook, outcome, duration_ms, detail
	          FROM events ORDER BY rowid DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var at string

		if err := rows.Scan(
			&event.ID,
			&at,
			&event.Service,
			&event.Type,
			&event.Hook,
			&event.Outcome,
			&event.DurationMS,
			&event.Detail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Time, _ = time.Parse(time.RFC3339Nano, at)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	// Newest-first from the query, oldest-first for callers.
	for i, k := 0, len(events)-1; i < k; i, k = i+1, k-1 {
		events[i], events[k] = events[k], events[i]
	}
	return events, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
