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

// Package version carries build-time version information for steward
// binaries. The variables are injected via ldflags at build time.
package version

import "fmt"

var (
	// Version is the semantic version of the build.
	Version = "dev"
	// Commit is the git commit the build was produced from.
	Commit = "unknown"
	// BuildDate is the UTC timestamp of the build.
	BuildDate = "unknown"
)

// String returns a single-line human-readable version string.
func String() string {
	return fmt.Sprintf("steward %s (commit %s, built %s)", Version, Commit, BuildDate)
}
