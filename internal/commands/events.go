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

	"github.com/spf13/cobra"

	"github.com/steward-sh/steward/internal/journal"
)

func newEventsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the service's event journal",
		Long: `Display the most recent lifecycle events the daemon recorded:
service starts and exits, hook runs, configuration reloads and file
updates. Events print oldest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultTailLimit,
		"Maximum number of events to show")
	return cmd
}

func runEvents(cmd *cobra.Command, limit int) error {
	ctx, cancel := commandContext(commandTimeout)
	defer cancel()

	events, err := newClient().Events(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to get events: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		cmd.Println(styleMuted.Render("no events recorded"))
		return nil
	}

	for _, e := range events {
		cmd.Println(formatEvent(e))
	}
	return nil
}

// formatEvent renders one journal line for the terminal.
func formatEvent(e journal.Event) string {
	line := fmt.Sprintf("%s  %-19s",
		styleMuted.Render(e.Time.Local().Format("2006-01-02 15:04:05")),
		string(e.Type))

	if e.Hook != "" {
		line += "  " + styleBold.Render(e.Hook)
	}
	if e.Outcome != "" {
		line += "  " + e.Outcome
	}
	if e.DurationMS > 0 {
		line += "  " + styleMuted.Render(fmt.Sprintf("(%dms)", e.DurationMS))
	}
	if e.Detail != "" {
		line += "  " + styleMuted.Render(e.Detail)
	}
	return line
}
