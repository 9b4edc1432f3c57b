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

// Kind identifies one of the six lifecycle hooks a service may provide.
type Kind int

const (
	// KindFileUpdated runs after watched service files change.
	KindFileUpdated Kind = iota
	// KindHealthCheck probes the running service's health.
	KindHealthCheck
	// KindInit prepares the service before its first start.
	KindInit
	// KindReconfigure reacts to a new configuration incarnation.
	KindReconfigure
	// KindRun is the long-lived service process itself.
	KindRun
	// KindSmokeTest validates a service on demand.
	KindSmokeTest
)

// FileName returns the name a hook of this kind has on disk, both for
// its template and for the installed script.
func (k Kind) FileName() string {
	switch k {
	case KindFileUpdated:
		return "file_updated"
	case KindHealthCheck:
		return "health_check"
	case KindInit:
		return "init"
	case KindReconfigure:
		return "reconfigure"
	case KindRun:
		return "run"
	case KindSmokeTest:
		return "smoke_test"
	default:
		return "unknown"
	}
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return k.FileName()
}

// Kinds returns every hook kind in the fixed order the table processes
// them.
func Kinds() []Kind {
	return []Kind{
		KindFileUpdated,
		KindHealthCheck,
		KindInit,
		KindReconfigure,
		KindRun,
		KindSmokeTest,
	}
}
