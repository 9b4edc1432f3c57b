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

package commands

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/steward-sh/steward/internal/health"
	"github.com/steward-sh/steward/internal/supervisor"
)

// CLI style colors using lipgloss
var (
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	styleMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	styleBold  = lipgloss.NewStyle().Bold(true)
)

// Symbols for status indicators
const (
	symbolOK    = "✓"
	symbolError = "✗"
)

// renderOK renders a success message with a green checkmark.
func renderOK(msg string) string {
	return styleOK.Render(symbolOK) + " " + msg
}

// renderError renders a failure message with a red X.
func renderError(msg string) string {
	return styleError.Render(symbolError) + " " + msg
}

// renderState colors a service state by how worried the operator
// should be.
func renderState(s supervisor.State) string {
	switch s {
	case supervisor.StateRunning:
		return styleOK.Render(s.String())
	case supervisor.StateStarting, supervisor.StateBackoff, supervisor.StateStopping:
		return styleWarn.Render(s.String())
	case supervisor.StateFailed:
		return styleError.Render(s.String())
	default:
		return styleMuted.Render(s.String())
	}
}

// renderHealth colors a health status.
func renderHealth(h health.Status) string {
	switch h {
	case health.Ok:
		return styleOK.Render(h.String())
	case health.Warning:
		return styleWarn.Render(h.String())
	case health.Critical:
		return styleError.Render(h.String())
	default:
		return styleMuted.Render(h.String())
	}
}
