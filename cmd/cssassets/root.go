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

package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/cssassets/cmd/cssassets/commands"
	"github.com/walteh/cssassets/cmd/cssassets/opts"
	"github.com/walteh/cssassets/pkg/log"
)

var (
	// Flags
	configFile   string
	debugLogging bool
)

// newRootCmd creates the root command with every subcommand attached
func newRootCmd() *cobra.Command {
	ro := &opts.RootOpts{}

	rootCmd := &cobra.Command{
		Use:   "cssassets",
		Short: "Relocate the assets referenced by stylesheets",
		Long: `cssassets rewrites the url(...) references in your stylesheets so they point
into a per-stylesheet asset folder, and copies the referenced files next to them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(cmd.ErrOrStderr())

			ro.ConfigFile = configFile
			ro.Console = log.New(cmd.OutOrStdout(), logger)

			ctx := logger.WithContext(cmd.Context())
			cmd.SetContext(log.NewContext(ctx, ro.Console))
			return nil
		},
	}

	addRootFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewBuildCmd(ro),
		commands.NewCheckCmd(ro),
		newVersionCmd(),
	)

	return rootCmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", ".cssassets.yaml", "config file path")
	cmd.PersistentFlags().BoolVarP(&debugLogging, "debug", "d", false, "enable debug logging")
}

// setupLogging configures zerolog based on flags
func setupLogging(w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if debugLogging {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: !shouldColorize(w)}
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	return logger
}

// shouldColorize reports whether w is a terminal
func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
