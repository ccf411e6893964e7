// Copyright 2025 walteh LLC
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
	"fmt"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/cssassets/cmd/cssassets/opts"
	"github.com/walteh/cssassets/pkg/pipeline"
	"gitlab.com/tozd/go/errors"
)

// NewCheckCmd creates the check command
func NewCheckCmd(ro *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that every referenced asset can be copied",
		Long: `Check runs a build without writing anything.
It will:
1. Load and validate the config
2. Rewrite every configured stylesheet in memory
3. Print the files a build would write
4. Fail if any record fails, any referenced asset is missing or any
   configured stylesheet matches no source`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "check").Logger().WithContext(cmd.Context())

			cfg, err := ro.LoadConfig(ctx)
			if err != nil {
				return errors.Errorf("loading config: %w", err)
			}

			collector := pipeline.NewCollector()
			res, err := Build(ctx, cfg, collector, ro.Console)
			if err != nil {
				return err
			}

			table, err := pterm.DefaultTable.WithHasHeader().WithData(PlannedTable(collector.Files())).Srender()
			if err != nil {
				return errors.Errorf("rendering table: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)

			if res.Failed() {
				return errors.Errorf("check failed: %d record errors, %d asset warnings, %d unmatched stylesheets",
					len(res.Report.Errors), len(res.Warnings), len(res.Unmatched))
			}

			ro.Console.Success("all referenced assets resolved")

			return nil
		},
	}

	return cmd
}
