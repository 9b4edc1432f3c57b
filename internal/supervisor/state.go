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
	"fmt"
	"time"

	"github.com/steward-sh/steward/internal/health"
)

// State is where the supervised service is in its lifecycle.
type State int

const (
	// StateStopped means the service has not been started, or shutdown
	// has completed.
	StateStopped State = iota

	// StateStarting means the init hook is running.
	StateStarting

	// StateRunning means the run hook has been spawned and is alive.
	StateRunning

	// StateBackoff means the run hook exited and a restart is
	// scheduled.
	StateBackoff

	// StateFailed means the init hook failed; a configuration reload
	// retries the start.
	StateFailed

	// StateStopping means shutdown is tearing the service down.
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// MarshalText renders the state for JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for candidate := StateStopped; candidate <= StateStopping; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown service state %q", text)
}

// Status is a point-in-time snapshot of the supervised service.
type Status struct {
	// Service is the qualified service group label.
	Service string `json:"service"`

	// State is the lifecycle state.
	State State `json:"state"`

	// Health is the most recent health check result. Unknown while the
	// service is down or before the first check completes.
	Health health.Status `json:"health"`

	// Incarnation is the configuration incarnation the hooks were last
	// compiled against.
	Incarnation uint64 `json:"incarnation"`

	// Hooks lists the hook kinds this service provides.
	Hooks []string `json:"hooks"`

	// Restarts counts run hook restarts since the daemon started.
	Restarts uint64 `json:"restarts"`

	// PID is the supervisor daemon's process id.
	PID int `json:"pid"`

	// StartedAt is when the current run hook was spawned; zero when the
	// service is not running.
	StartedAt time.Time `json:"started_at,omitzero"`
}

// Uptime is how long the current run hook has been alive.
func (s Status) Uptime() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return time.Since(s.StartedAt)
}
