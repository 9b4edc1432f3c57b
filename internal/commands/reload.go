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
)

func newReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Load the next configuration incarnation",
		Long: `Ask the daemon to reload the service's configuration. Hooks are
recompiled against the new incarnation and the reconfigure hook runs
if the service provides one. The service process itself is not
restarted.`,
		RunE: runReload,
	}
}

func runReload(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(commandTimeout)
	defer cancel()

	resp, err := newClient().Reload(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	cmd.Println(renderOK(fmt.Sprintf("configuration reloaded (incarnation %d)", resp.Incarnation)))
	return nil
}
