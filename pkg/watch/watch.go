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

// Package watch reruns a build whenever files under a set of roots change.
package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultDebounce is how long the watcher waits for changes to settle
const DefaultDebounce = 300 * time.Millisecond

// BuildFunc runs one build. Its error is logged and watching continues.
type BuildFunc func(ctx context.Context) error

// 👀 Options configures a Watcher
type Options struct {
	Roots    []string      // Directories watched recursively
	Ignore   []string      // Directories whose changes never trigger a build
	Debounce time.Duration // Quiet period before a build; 0 means DefaultDebounce
}

// 👀 Watcher calls a BuildFunc after files under its roots change
type Watcher struct {
	opts  Options
	build BuildFunc
}

// 🏭 New creates a watcher
func New(opts Options, build BuildFunc) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	for i, r := range opts.Roots {
		opts.Roots[i] = filepath.Clean(r)
	}
	for i, r := range opts.Ignore {
		opts.Ignore[i] = filepath.Clean(r)
	}
	return &Watcher{opts: opts, build: build}
}

// 🏃 Run watches until ctx is done. Builds never overlap: a change that lands
// during a build schedules the next one.
func (w *Watcher) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	for _, root := range w.opts.Roots {
		if err := w.addTree(fw, root); err != nil {
			return errors.Errorf("watching %s: %w", root, err)
		}
	}

	logger.Info().Strs("roots", w.opts.Roots).Dur("debounce", w.opts.Debounce).Msg("watching for changes")

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}

			logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("change detected")

			if event.Has(fsnotify.Create) {
				// new directories need their own watch
				if err := w.addTree(fw, event.Name); err != nil {
					logger.Warn().Err(err).Str("dir", event.Name).Msg("could not watch new directory")
				}
			}

			timer.Reset(w.opts.Debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("file watcher error")

		case <-timer.C:
			if err := w.build(ctx); err != nil {
				logger.Error().Err(err).Msg("rebuild failed")
			}
		}
	}
}

// relevant reports whether event should trigger a build
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return !w.ignored(event.Name)
}

// ignored reports whether path is inside an ignored directory
func (w *Watcher) ignored(path string) bool {
	path = filepath.Clean(path)
	for _, dir := range w.opts.Ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addTree watches dir and every directory below it, skipping ignored and
// hidden ones. A path that is not a directory is left alone.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) || (path != dir && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
