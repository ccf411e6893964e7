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
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/cssassets/cmd/cssassets/opts"
	"github.com/walteh/cssassets/pkg/assets"
	"github.com/walteh/cssassets/pkg/config"
	"github.com/walteh/cssassets/pkg/dest"
	"github.com/walteh/cssassets/pkg/file"
	"github.com/walteh/cssassets/pkg/log"
	"github.com/walteh/cssassets/pkg/pipeline"
	"github.com/walteh/cssassets/pkg/source"
	"github.com/walteh/cssassets/pkg/stage"
	"github.com/walteh/cssassets/pkg/watch"
	"gitlab.com/tozd/go/errors"
)

// 📊 BuildResult is the outcome of one build
type BuildResult struct {
	ID       string
	Report   *pipeline.Report
	Warnings []stage.Warning
	Summary  log.Summary

	// Unmatched lists configured stylesheets that no source matched
	Unmatched []string
}

// Failed reports whether any record failed, any asset went missing or any
// configured stylesheet was never seen
func (r *BuildResult) Failed() bool {
	return len(r.Report.Errors) > 0 || len(r.Warnings) > 0 || len(r.Unmatched) > 0
}

// 🏗️ Build runs every stylesheet matched by cfg through the asset stage into out
func Build(ctx context.Context, cfg *config.Config, out pipeline.Sink, console *log.Logger) (*BuildResult, error) {
	id := uuid.NewString()
	ctx = zerolog.Ctx(ctx).With().Str("build_id", id).Logger().WithContext(ctx)
	ctx = log.NewContext(ctx, console)

	reader, err := source.New(source.Options{Cwd: cfg.Cwd, Concurrency: cfg.Concurrency})
	if err != nil {
		return nil, errors.Errorf("creating reader: %w", err)
	}

	st := stage.New(cfg.Assets, reader)

	console.StartBuildOperation(ctx, log.BuildOperation{
		Src:  cfg.Src,
		Dest: cfg.Dest,
		Cwd:  cfg.Cwd,
	})

	stylesheets := pipeline.NewCollector()
	out = pipeline.Tee(out, pipeline.SinkFunc(func(ctx context.Context, f *file.File) error {
		if f.IsNull() || !assets.IsStylesheet(f.Relative()) {
			return nil
		}
		return stylesheets.Push(ctx, f)
	}))

	report, err := pipeline.Run(ctx, reader.Producer(cfg.Src), st, out, pipeline.RunOptions{
		OnError: func(path string, err error) {
			console.Errorf("%s: %v", path, err)
		},
	})
	summary := console.EndBuildOperation(ctx)
	if err != nil {
		return nil, errors.Errorf("running pipeline: %w", err)
	}

	warnings := st.Warnings()
	for _, w := range warnings {
		console.Warning(w.Error())
	}

	var unmatched []string
	for _, name := range cfg.Assets.Stylesheets() {
		if _, ok := stylesheets.Find(name); !ok {
			unmatched = append(unmatched, name)
			console.Warningf("configured stylesheet %s matched no source", name)
		}
	}

	zerolog.Ctx(ctx).Debug().
		Int("records", report.Records).
		Int("pushed", report.Pushed).
		Int("errors", len(report.Errors)).
		Int("warnings", len(warnings)).
		Int("unmatched", len(unmatched)).
		Msg("build finished")

	return &BuildResult{
		ID:        id,
		Report:    report,
		Warnings:  warnings,
		Summary:   summary,
		Unmatched: unmatched,
	}, nil
}

// 📋 PlannedTable renders the records a build would write as table rows
func PlannedTable(files []*file.File) pterm.TableData {
	data := pterm.TableData{{"Output", "Kind", "Type", "Size"}}
	for _, f := range files {
		kind := log.TypeAsset
		switch {
		case f.IsNull():
			kind = "directory"
		case assets.IsStylesheet(f.Relative()):
			kind = log.TypeStylesheet
		}
		data = append(data, []string{f.Relative(), kind, sniffType(f), strconv.Itoa(len(f.Contents))})
	}
	return data
}

// sniffType reports the MIME type of f from its leading bytes, or "-" when unknown
func sniffType(f *file.File) string {
	if len(f.Contents) == 0 {
		return "-"
	}
	kind, err := filetype.Match(f.Contents)
	if err != nil || kind == filetype.Unknown {
		return "-"
	}
	return kind.MIME.Value
}

// NewBuildCmd creates the build command
func NewBuildCmd(ro *opts.RootOpts) *cobra.Command {
	var (
		destDir   string
		dryRun    bool
		watchMode bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rewrite stylesheet references and copy the referenced assets",
		Long: `Build reads every stylesheet matched by src and writes it to dest.
For each configured stylesheet it will:
1. Rewrite every url(...) reference to ./<folder>/<path>
2. Copy each referenced asset to dest/<folder>/<path>
3. Write the stylesheet itself to the root of dest

With --watch it keeps running and rebuilds whenever a file under cwd changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "build").Logger().WithContext(cmd.Context())

			if dryRun && watchMode {
				return errors.Errorf("--watch cannot be combined with --dry-run")
			}

			load := func(ctx context.Context) (*config.Config, error) {
				cfg, err := ro.LoadConfig(ctx)
				if err != nil {
					return nil, errors.Errorf("loading config: %w", err)
				}
				if destDir != "" {
					abs, err := filepath.Abs(destDir)
					if err != nil {
						return nil, errors.Errorf("getting absolute dest: %w", err)
					}
					cfg.Dest = abs
				}
				return cfg, nil
			}

			cfg, err := load(ctx)
			if err != nil {
				return err
			}

			var out pipeline.Sink
			collector := pipeline.NewCollector()
			if dryRun {
				out = collector
			} else {
				out = dest.New(cfg.Dest, ro.Console)
			}

			res, err := Build(ctx, cfg, out, ro.Console)
			if err != nil {
				return err
			}

			if dryRun {
				table, err := pterm.DefaultTable.WithHasHeader().WithData(PlannedTable(collector.Files())).Srender()
				if err != nil {
					return errors.Errorf("rendering table: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), table)
			}

			if watchMode {
				return watchBuild(ctx, cfg, load, ro.Console)
			}

			if err := res.Report.Err(); err != nil {
				return errors.Errorf("%d records failed: %w", len(res.Report.Errors), err)
			}

			ro.Console.Successf("%d files, %d new, %d modified, %d unchanged", res.Summary.Files, res.Summary.New, res.Summary.Modified, res.Summary.Unchanged)

			return nil
		},
	}

	cmd.Flags().StringVar(&destDir, "dest", "", "override the configured destination directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be written without writing it")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "rebuild whenever a source file changes")

	return cmd
}

// watchBuild rebuilds into cfg.Dest on every change under cfg.Cwd until
// interrupted. The config is reloaded before each rebuild.
func watchBuild(ctx context.Context, cfg *config.Config, load func(context.Context) (*config.Config, error), console *log.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	w := watch.New(watch.Options{
		Roots:  []string{cfg.Cwd},
		Ignore: []string{cfg.Dest},
	}, func(ctx context.Context) error {
		next, err := load(ctx)
		if err != nil {
			console.Error(err.Error())
			return err
		}

		res, err := Build(ctx, next, dest.New(next.Dest, console), console)
		if err != nil {
			return err
		}
		return res.Report.Err()
	})

	console.Infof("watching %s for changes", cfg.Cwd)

	return w.Run(ctx)
}
