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

package watcher

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// matcher applies include and exclude doublestar globs to paths
// relative to the watch root.
type matcher struct {
	include []string
	exclude []string
}

func newMatcher(include, exclude []string) (*matcher, error) {
	for _, pattern := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid watch pattern %q", pattern)
		}
	}
	return &matcher{include: include, exclude: exclude}, nil
}

// Match reports whether rel is selected. Empty include patterns select
// everything. Each pattern is tried against the relative path and
// against the base name, so "*.conf" matches at any depth.
func (m *matcher) Match(rel string) bool {
	rel = filepath.ToSlash(rel)

	included := len(m.include) == 0
	for _, pattern := range m.include {
		if matchPattern(pattern, rel) {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, pattern := range m.exclude {
		if matchPattern(pattern, rel) {
			return false
		}
	}
	return true
}

func matchPattern(pattern, rel string) bool {
	if matched, _ := doublestar.Match(pattern, rel); matched {
		return true
	}
	matched, _ := doublestar.Match(pattern, path.Base(rel))
	return matched
}
