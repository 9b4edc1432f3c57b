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

// Package output carries service and hook output to the supervisor's
// shared log stream. Every line is prefixed with a preamble naming the
// service (and hook, for hook output) it came from, so interleaved
// output from many processes stays attributable.
package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var preambleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

// Sink serializes attributed output lines onto a single writer. It is
// safe for concurrent use; each Emit writes exactly one line.
type Sink struct {
	mu      sync.Mutex
	w       io.Writer
	service string
	color   bool
}

// NewSink returns a sink for the given service group writing to w.
// Color is applied to preambles only when w is a terminal.
func NewSink(service string, w io.Writer) *Sink {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Sink{w: w, service: service, color: color}
}

// Service returns the service group this sink is bound to.
func (s *Sink) Service() string {
	return s.service
}

// Emit writes one line under the given preamble. The preamble and line
// are written atomically with respect to other Emit calls.
func (s *Sink) Emit(preamble, line string) {
	if s.color {
		preamble = preambleStyle.Render(preamble)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s %s\n", preamble, line)
}

// Announce writes a line attributed to the service itself rather than
// to one of its hooks.
func (s *Sink) Announce(line string) {
	s.Emit(s.service+":", line)
}

// Announcef is Announce with fmt.Sprintf formatting.
func (s *Sink) Announcef(format string, args ...any) {
	s.Announce(fmt.Sprintf(format, args...))
}

// HookPreamble returns the preamble under which a hook's output lines
// are emitted.
func (s *Sink) HookPreamble(hook string) string {
	return fmt.Sprintf("%s hook[%s]:", s.service, hook)
}
