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
	"fmt"
	"os"
)

// ExitStatus describes how a hook process terminated. A process that
// was killed by a signal has no exit code.
type ExitStatus struct {
	code   int
	exited bool
}

// Exited returns the status of a process that exited with code.
func Exited(code int) ExitStatus {
	return ExitStatus{code: code, exited: true}
}

// Signaled returns the status of a process terminated without an exit
// code.
func Signaled() ExitStatus {
	return ExitStatus{}
}

// statusOf translates the reaped process state.
func statusOf(state *os.ProcessState) ExitStatus {
	if state == nil || !state.Exited() {
		return Signaled()
	}
	return Exited(state.ExitCode())
}

// Code returns the exit code and whether one was present.
func (s ExitStatus) Code() (int, bool) {
	if !s.exited {
		return 0, false
	}
	return s.code, true
}

// Success reports whether the process exited with code zero.
func (s ExitStatus) Success() bool {
	return s.exited && s.code == 0
}

// String implements fmt.Stringer.
func (s ExitStatus) String() string {
	if !s.exited {
		return "terminated without exit code"
	}
	return fmt.Sprintf("exit status %d", s.code)
}
