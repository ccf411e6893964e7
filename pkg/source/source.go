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

// Package source enumerates and reads file records from disk.
package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maruel/natural"
	"github.com/rs/zerolog"
	"github.com/walteh/cssassets/pkg/file"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned for a path or singular glob that matches nothing
var ErrNotFound = errors.Base("file not found")

// 📦 Entry is one result of a read: either a record or the error for Path
type Entry struct {
	Path string
	File *file.File
	Err  error
}

// 🔧 Options configures a Reader
type Options struct {
	Cwd         string // Working directory globs are resolved against
	Base        string // Overrides the base derived from each glob
	Stream      bool   // Deliver Src contents as streams instead of buffers
	Concurrency int    // Limit for concurrent nested reads; 0 means unbounded
}

// 📖 Reader reads records from the local filesystem
type Reader struct {
	opts Options
}

// 🏭 New creates a reader. An empty Cwd means the process working directory.
func New(opts Options) (*Reader, error) {
	if opts.Cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Errorf("getting working directory: %w", err)
		}
		opts.Cwd = wd
	}

	cwd, err := filepath.Abs(opts.Cwd)
	if err != nil {
		return nil, errors.Errorf("getting absolute cwd: %w", err)
	}
	opts.Cwd = cwd

	return &Reader{opts: opts}, nil
}

// Cwd returns the reader's working directory
func (r *Reader) Cwd() string {
	return r.opts.Cwd
}

// 🔍 Src expands globs and emits one entry per match in stable, natural order.
// Directories are emitted as null records. The channel is closed once every glob
// has been emitted or ctx is done.
func (r *Reader) Src(ctx context.Context, globs []string) <-chan Entry {
	out := make(chan Entry)

	go func() {
		defer close(out)

		logger := zerolog.Ctx(ctx)
		seen := make(map[string]bool)

		for _, glob := range globs {
			pattern := glob
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(r.opts.Cwd, pattern)
			}

			base := r.opts.Base
			if base == "" {
				b, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
				base = filepath.FromSlash(b)
			} else if !filepath.IsAbs(base) {
				base = filepath.Join(r.opts.Cwd, base)
			}

			matches, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				if !send(ctx, out, Entry{Path: glob, Err: errors.Errorf("expanding %q: %w", glob, err)}) {
					return
				}
				continue
			}

			if len(matches) == 0 && !hasMeta(glob) {
				if !send(ctx, out, Entry{Path: pattern, Err: errors.Errorf("%w: %s", ErrNotFound, pattern)}) {
					return
				}
				continue
			}

			sort.Sort(natural.StringSlice(matches))
			logger.Debug().Str("glob", glob).Str("base", base).Int("matches", len(matches)).Msg("expanded glob")

			for _, m := range matches {
				if ctx.Err() != nil {
					return
				}
				if seen[m] {
					continue
				}
				seen[m] = true

				f, err := r.load(m, base, r.opts.Stream)
				if !send(ctx, out, Entry{Path: m, File: f, Err: err}) {
					return
				}
			}
		}
	}()

	return out
}

// Producer returns Src bound to globs, in the shape pipeline.Run starts
func (r *Reader) Producer(globs []string) func(ctx context.Context) <-chan Entry {
	return func(ctx context.Context) <-chan Entry {
		return r.Src(ctx, globs)
	}
}

// 📥 Read loads each of paths concurrently, bounded by Options.Concurrency, and
// emits the entries in the order of paths, each one as soon as it and every
// entry before it are ready. Every record carries base as its Base. Contents
// are always buffered. Closing the channel signals that every read has finished.
func (r *Reader) Read(ctx context.Context, paths []string, base string) <-chan Entry {
	out := make(chan Entry)

	// one buffered slot per path so workers never wait on the emitter
	slots := make([]chan Entry, len(paths))
	for i := range slots {
		slots[i] = make(chan Entry, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.opts.Concurrency > 0 {
		g.SetLimit(r.opts.Concurrency)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, p := range paths {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				f, err := r.load(p, base, false)
				slots[i] <- Entry{Path: p, File: f, Err: err}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("nested read stopped early")
		}
	}()

	go func() {
		defer close(out)
		defer func() { <-done }()

		for _, slot := range slots {
			select {
			case e := <-slot:
				if !send(ctx, out, e) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// load builds a record for path
func (r *Reader) load(path, base string, stream bool) (*file.File, error) {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, errors.Errorf("stat %s: %w", path, err)
	}

	f := file.New(r.opts.Cwd, base, path, nil)
	if info.IsDir() {
		return f, nil
	}

	if stream {
		fh, err := os.Open(path)
		if err != nil {
			return nil, errors.Errorf("opening %s: %w", path, err)
		}
		f.Stream = fh
		return f, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", path, err)
	}
	if contents == nil {
		contents = []byte{}
	}
	f.Contents = contents

	return f, nil
}

// send delivers e unless ctx is done first
func send(ctx context.Context, out chan<- Entry, e Entry) bool {
	select {
	case out <- e:
		return true
	case <-ctx.Done():
		if e.File != nil && e.File.Stream != nil {
			e.File.Stream.Close()
		}
		return false
	}
}

// hasMeta reports whether glob contains doublestar meta characters
func hasMeta(glob string) bool {
	return strings.ContainsAny(glob, `*?[{\`)
}
