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

// Package commands implements the steward CLI, the operator's window
// into a running stewardd.
package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/steward-sh/steward/internal/client"
	"github.com/steward-sh/steward/internal/config"
)

// commandTimeout bounds every control API call; smoke tests get longer
// because they wait for the hook itself.
const (
	commandTimeout   = 10 * time.Second
	smokeTestTimeout = 2 * time.Minute
)

// Flag values shared by all subcommands.
var (
	socketPath string
	jsonOut    bool
)

// NewRootCommand creates the root Cobra command for steward.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steward",
		Short: "Steward - service supervisor control",
		Long: `Steward controls a running stewardd service supervisor.

The daemon supervises one service: it renders the service's lifecycle
hooks against live configuration, keeps the process running, and
records what happened. This CLI talks to the daemon over its control
socket to inspect and poke that service.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // Errors are printed by main with proper exit codes
	}

	cmd.PersistentFlags().StringVar(&socketPath, "socket", config.DefaultSocketPath(),
		"Path to the stewardd control socket")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newEventsCommand())
	cmd.AddCommand(newSmokeTestCommand())
	cmd.AddCommand(newReloadCommand())
	cmd.AddCommand(newVersionCommand())

	// Custom help command with JSON support
	cmd.SetHelpCommand(newHelpCommand(cmd))

	return cmd
}

// newClient returns a control API client for the configured socket.
func newClient() *client.Client {
	return client.New(socketPath)
}

// commandContext returns the bounded context API calls run under.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
