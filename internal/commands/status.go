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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the supervised service's status",
		Long: `Display the state, health, configuration incarnation and restart
count of the service stewardd supervises.`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(commandTimeout)
	defer cancel()

	st, err := newClient().Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	cmd.Printf("%s  %s\n", styleBold.Render(st.Service), renderState(st.State))
	cmd.Printf("  health:      %s\n", renderHealth(st.Health))
	cmd.Printf("  incarnation: %d\n", st.Incarnation)
	cmd.Printf("  restarts:    %d\n", st.Restarts)
	if uptime := st.Uptime(); uptime > 0 {
		cmd.Printf("  uptime:      %s\n", uptime.Round(time.Second))
	}
	if len(st.Hooks) > 0 {
		cmd.Printf("  hooks:       %s\n", strings.Join(st.Hooks, ", "))
	}
	cmd.Printf("  daemon pid:  %d\n", st.PID)

	return nil
}
