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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/cssassets/pkg/config"
	"github.com/walteh/cssassets/pkg/dest"
	"github.com/walteh/cssassets/pkg/file"
	"github.com/walteh/cssassets/pkg/log"
	"github.com/walteh/cssassets/pkg/pipeline"
	"github.com/walteh/cssassets/pkg/stage"
	"gitlab.com/tozd/go/errors"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755), "creating parent dirs should succeed")
		require.NoError(t, os.WriteFile(p, []byte(content), 0644), "writing fixture should succeed")
	}
}

func TestBuild(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	src := t.TempDir()
	dist := t.TempDir()
	writeTree(t, src, map[string]string{
		"css/base.css":     "a { background: url(../imgs/base-bg.png); }",
		"css/missing.css":  "a { background: url(../imgs/nope.png); }",
		"imgs/base-bg.png": "png",
	})

	cfg := &config.Config{
		Src:         []string{"css/*.css"},
		Dest:        dist,
		Cwd:         src,
		Concurrency: 2,
		Assets:      config.Options{ProcessAllFiles: true},
	}

	buf := &bytes.Buffer{}
	console := log.New(buf, zerolog.New(zerolog.NewTestWriter(t)))
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	res, err := Build(ctx, cfg, dest.New(dist, console), console)
	require.NoError(t, err)
	assert.Len(t, res.ID, 36, "every build should carry a uuid")

	assert.Empty(t, res.Report.Errors, "no record should fail")
	require.Len(t, res.Warnings, 1, "the missing image should be reported")
	assert.True(t, errors.Is(res.Warnings[0], stage.ErrMissingAsset))
	assert.True(t, res.Failed(), "a missing asset should fail the build result")

	assert.Equal(t, log.Summary{Files: 4, New: 3, Missing: 1}, res.Summary)

	for _, rel := range []string{"base.css", "base/imgs/base-bg.png", "missing.css"} {
		_, err := os.Stat(filepath.Join(dist, filepath.FromSlash(rel)))
		assert.NoError(t, err, "%s should be written", rel)
	}

	out := buf.String()
	assert.Contains(t, out, "✗ missing/imgs/nope.png", "missing asset should be shown")
	assert.Contains(t, out, "missing.css: missing asset", "warning should be printed")
}

func TestBuildRecordErrors(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"css/base.css": "a{}"})

	cfg := &config.Config{
		Src:  []string{"css/base.css", "css/gone.css"},
		Dest: t.TempDir(),
		Cwd:  src,
	}

	collector := pipeline.NewCollector()
	console := log.New(&bytes.Buffer{}, zerolog.Nop())

	res, err := Build(context.Background(), cfg, collector, console)
	require.NoError(t, err, "a missing source should not abort the build")

	require.Len(t, res.Report.Errors, 1)
	assert.True(t, res.Failed())
	assert.Len(t, collector.Files(), 1, "present stylesheet should still pass through")
}

func TestBuildUnmatchedStylesheets(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"css/base.css":     "a { background: url(../imgs/base-bg.png); }",
		"imgs/base-bg.png": "png",
	})

	cfg := &config.Config{
		Src:  []string{"css/*.css"},
		Dest: t.TempDir(),
		Cwd:  src,
		Assets: config.Options{Folders: map[string]string{
			"base.css":  "base",
			"theme.css": "theme",
		}},
	}

	buf := &bytes.Buffer{}
	console := log.New(buf, zerolog.Nop())
	collector := pipeline.NewCollector()

	res, err := Build(context.Background(), cfg, collector, console)
	require.NoError(t, err)

	assert.Equal(t, []string{"theme.css"}, res.Unmatched)
	assert.True(t, res.Failed(), "an unmatched stylesheet should fail the result")
	assert.Contains(t, buf.String(), "configured stylesheet theme.css matched no source")

	_, ok := collector.Find("base.css")
	assert.True(t, ok, "the caller's sink should still receive every record")
	_, ok = collector.Find("base/imgs/base-bg.png")
	assert.True(t, ok)
}

func TestWatchBuild(t *testing.T) {
	src := t.TempDir()
	dist := filepath.Join(src, "dist")
	writeTree(t, src, map[string]string{
		"css/base.css":     "a { background: url(../imgs/base-bg.png); }",
		"imgs/base-bg.png": "png",
	})

	cfg := &config.Config{
		Src:    []string{"css/*.css"},
		Dest:   dist,
		Cwd:    src,
		Assets: config.Options{ProcessAllFiles: true},
	}
	load := func(ctx context.Context) (*config.Config, error) {
		return cfg, nil
	}

	console := log.New(&bytes.Buffer{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background()))
	done := make(chan error, 1)
	go func() { done <- watchBuild(ctx, cfg, load, console) }()

	time.Sleep(300 * time.Millisecond)
	writeTree(t, src, map[string]string{"css/added.css": "b { background: url(../imgs/base-bg.png); }"})

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(dist, "added.css"))
		return err == nil && string(data) == "b { background: url(./added/imgs/base-bg.png); }"
	}, 5*time.Second, 50*time.Millisecond, "a new stylesheet should be built")

	assert.FileExists(t, filepath.Join(dist, "added", "imgs", "base-bg.png"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestPlannedTable(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	files := []*file.File{
		file.New("/site", "/site", "/site/base/imgs/a.png", png),
		file.New("/site", "/site", "/site/base.css", []byte("a{}")),
		file.New("/site", "/site/css", "/site/css/theme", nil),
	}

	data := PlannedTable(files)
	require.Len(t, data, 4, "header plus one row per file")
	assert.Equal(t, []string{"Output", "Kind", "Type", "Size"}, data[0])
	assert.Equal(t, []string{"base/imgs/a.png", "asset", "image/png", "16"}, data[1])
	assert.Equal(t, []string{"base.css", "stylesheet", "-", "3"}, data[2])
	assert.Equal(t, []string{"theme", "directory", "-", "0"}, data[3])
}
