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

// Package stage rewrites stylesheet references and emits the referenced assets
// ahead of the stylesheet itself.
//
// Each record moves through these states:
//
//	stream ──────────────────────────────► error (ErrUnsupportedStream)
//	null ────────────────────────────────► push
//	not eligible ────────────────────────► push
//	eligible ─► rewrite ─► re-home ─┬─ no references ─────────────► push stylesheet
//	                                └─ nested read ─► push assets ─► push stylesheet
package stage

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/cssassets/pkg/assets"
	"github.com/walteh/cssassets/pkg/config"
	"github.com/walteh/cssassets/pkg/file"
	"github.com/walteh/cssassets/pkg/log"
	"github.com/walteh/cssassets/pkg/pipeline"
	"github.com/walteh/cssassets/pkg/source"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrUnsupportedStream is returned for records whose contents arrive as a stream
	ErrUnsupportedStream = errors.Base("streams are not supported")

	// ErrMissingAsset marks a referenced asset that could not be read
	ErrMissingAsset = errors.Base("missing asset")
)

// 📖 Reader performs the nested read of referenced assets. The returned channel
// must be closed once every path has been delivered.
type Reader interface {
	Read(ctx context.Context, paths []string, base string) <-chan source.Entry
}

// ⚠️ Warning is a non-fatal problem met while processing a stylesheet
type Warning struct {
	Stylesheet string // Relative path of the stylesheet as received
	Asset      string // Absolute source path of the asset
	Missing    bool   // The asset does not exist; Is(ErrMissingAsset) holds
	Err        error
}

func (w Warning) Error() string {
	if w.Missing {
		return w.Stylesheet + ": " + ErrMissingAsset.Error() + ": " + w.Err.Error()
	}
	return w.Stylesheet + ": " + w.Err.Error()
}

func (w Warning) Unwrap() []error {
	if w.Missing {
		return []error{ErrMissingAsset, w.Err}
	}
	return []error{w.Err}
}

// 🎨 Stage is the pipeline transform that relocates stylesheet assets
type Stage struct {
	opts   config.Options
	reader Reader

	mu       sync.Mutex
	warnings []Warning
}

var _ pipeline.Transform = (*Stage)(nil)

// 🏭 New creates a stage for opts that reads assets through reader
func New(opts config.Options, reader Reader) *Stage {
	return &Stage{
		opts:   opts,
		reader: reader,
	}
}

// 🔄 Transform implements pipeline.Transform. Every asset referenced by an
// eligible stylesheet is pushed to out before the stylesheet itself. An
// eligible f is left untouched; a rewritten copy is pushed in its place.
func (s *Stage) Transform(ctx context.Context, f *file.File, out pipeline.Sink) error {
	if f.IsStream() {
		return errors.WithStack(ErrUnsupportedStream)
	}

	if f.IsNull() || !s.opts.IsEligible(f) {
		return out.Push(ctx, f)
	}

	folder, _ := s.opts.FolderFor(f)
	received := f.Relative()

	// the caller keeps f as it was handed over
	f = f.Clone()

	logger := zerolog.Ctx(ctx).With().Str("stylesheet", received).Str("folder", folder).Logger()
	ctx = logger.WithContext(ctx)

	res := assets.Rewrite(ctx, string(f.Contents), f.Dirname(), folder)

	f.Contents = []byte(res.Text)
	f.Base = f.Cwd
	f.Path = filepath.Join(f.Cwd, f.Basename())

	logger.Debug().
		Int("replacements", res.Replacements).
		Int("assets", len(res.Sources)).
		Int("skipped", len(res.Skipped)).
		Msg("rewrote stylesheet")

	if len(res.Sources) == 0 {
		return out.Push(ctx, f)
	}

	if err := s.emitAssets(ctx, received, f.Cwd, res, out); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return errors.Errorf("reading assets for %s: %w", received, err)
	}

	return out.Push(ctx, f)
}

// emitAssets reads every source in res and pushes each one, re-homed under base,
// as soon as it arrives. It returns after the read has delivered everything.
func (s *Stage) emitAssets(ctx context.Context, stylesheet, base string, res *assets.Result, out pipeline.Sink) error {
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for entry := range s.reader.Read(readCtx, res.Sources, base) {
		if entry.Err != nil {
			s.warn(ctx, stylesheet, entry.Path, res.Mapping[entry.Path], entry.Err)
			continue
		}

		dest, ok := res.Mapping[entry.File.Path]
		if !ok {
			s.warn(ctx, stylesheet, entry.File.Path, "", errors.Errorf("read returned unrequested path %s", entry.File.Path))
			continue
		}

		entry.File.Path = filepath.Join(entry.File.Base, filepath.FromSlash(dest))

		if err := out.Push(ctx, entry.File); err != nil {
			return errors.Errorf("pushing asset %s: %w", dest, err)
		}
	}

	return nil
}

// warn records a companion failure without failing the stylesheet
func (s *Stage) warn(ctx context.Context, stylesheet, asset, dest string, err error) {
	w := Warning{
		Stylesheet: stylesheet,
		Asset:      asset,
		Missing:    errors.Is(err, source.ErrNotFound),
		Err:        err,
	}

	s.mu.Lock()
	s.warnings = append(s.warnings, w)
	s.mu.Unlock()

	zerolog.Ctx(ctx).Warn().Err(err).Str("asset", asset).Bool("missing", w.Missing).Msg("asset not emitted")

	if console, ok := log.Lookup(ctx); ok && w.Missing && dest != "" {
		console.LogFileOperation(ctx, log.FileOperation{
			Path:      dest,
			Type:      log.TypeAsset,
			Status:    "missing",
			IsMissing: true,
		})
	}
}

// Warnings returns every warning recorded so far
func (s *Stage) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Warning{}, s.warnings...)
}
