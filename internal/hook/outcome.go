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

package hook

import (
	"github.com/steward-sh/steward/internal/health"
	"github.com/steward-sh/steward/internal/output"
)

// ExitCode is the raw outcome of the init, run and reconfigure hooks.
type ExitCode int

// NoExitCode marks a hook that terminated without reporting an exit
// code, or that could not be run at all.
const NoExitCode ExitCode = -1

// Ok reports whether the hook exited zero.
func (c ExitCode) Ok() bool {
	return c == 0
}

// decodeFunc turns a hook's termination status into its typed outcome.
// Decoders observe every terminated process, present exit code or not;
// what varies per kind is the mapping and what gets reported to the
// service's output sink along the way.
type decodeFunc[T any] func(name string, status ExitStatus, sink *output.Sink) T

func decodeExitCode(name string, status ExitStatus, sink *output.Sink) ExitCode {
	code, ok := status.Code()
	if !ok {
		sink.Announcef("%s exited without a status code", name)
		return NoExitCode
	}
	return ExitCode(code)
}

func decodeHealth(name string, status ExitStatus, sink *output.Sink) health.Status {
	code, ok := status.Code()
	if !ok {
		sink.Announcef("%s exited without a status code", name)
		return health.Unknown
	}

	switch code {
	case 0:
		return health.Ok
	case 1:
		return health.Warning
	case 2:
		return health.Critical
	case 3:
		return health.Unknown
	default:
		sink.Announcef("Health check exited with an unknown status code, %d", code)
		return health.Unknown
	}
}

func decodeSmoke(name string, status ExitStatus, sink *output.Sink) health.SmokeResult {
	code, ok := status.Code()
	if !ok {
		sink.Announcef("%s exited without a status code", name)
		return health.SmokeResult{Code: -1}
	}
	return health.SmokeResult{Code: code}
}

// decodeFileUpdated collapses the outcome to plain success. Failures
// are visible in the hook's own output, so nothing extra is reported.
func decodeFileUpdated(_ string, status ExitStatus, _ *output.Sink) bool {
	return status.Success()
}
