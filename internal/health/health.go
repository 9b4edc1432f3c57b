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

// Package health defines the outcome types reported by a service's
// health_check and smoke_test hooks.
package health

import "fmt"

// Status is the four-valued service health reported by the health_check
// hook. The zero value is Ok.
type Status int

const (
	// Ok means the service is healthy.
	Ok Status = iota
	// Warning means the service is degraded but functioning.
	Warning
	// Critical means the service is unhealthy.
	Critical
	// Unknown means health could not be determined.
	Unknown
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so a Status renders as
// its name in JSON and YAML.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ok":
		*s = Ok
	case "warning":
		*s = Warning
	case "critical":
		*s = Critical
	case "unknown":
		*s = Unknown
	default:
		return fmt.Errorf("unknown health status %q", text)
	}
	return nil
}

// SmokeResult is the outcome of the smoke_test hook. Code is the exit
// code of the test: 0 when it passed, and -1 when the hook terminated
// without reporting a code.
type SmokeResult struct {
	Code int `json:"code"`
}

// Ok reports whether the smoke test passed.
func (r SmokeResult) Ok() bool {
	return r.Code == 0
}

// String renders the result for operator-facing output.
func (r SmokeResult) String() string {
	if r.Ok() {
		return "passed"
	}
	return fmt.Sprintf("failed (exit %d)", r.Code)
}
