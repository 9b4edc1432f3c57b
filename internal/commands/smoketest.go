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

func newSmokeTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "smoke-test",
		Short: "Run the service's smoke_test hook",
		Long: `Ask the daemon to run the service's smoke_test hook and report the
result. The command exits non-zero when the test fails.`,
		RunE: runSmokeTest,
	}
}

func runSmokeTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(smokeTestTimeout)
	defer cancel()

	resp, err := newClient().SmokeTest(ctx)
	if err != nil {
		return fmt.Errorf("failed to run smoke test: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else if resp.Passed {
		cmd.Println(renderOK("smoke test passed"))
	} else {
		cmd.Println(renderError(fmt.Sprintf("smoke test failed (exit %d)", resp.Code)))
	}

	if !resp.Passed {
		// The hook's exit code becomes the command's so scripts can
		// branch on it. A signal death has no code and maps to failure.
		code := resp.Code
		if code <= 0 {
			code = ExitFailure
		}
		return &ExitError{Code: code, Message: fmt.Sprintf("smoke test failed with exit code %d", resp.Code)}
	}
	return nil
}
