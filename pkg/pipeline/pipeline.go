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

// Package pipeline feeds file records through a transform stage into a sink.
package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/cssassets/pkg/file"
	"github.com/walteh/cssassets/pkg/source"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

// 📤 Sink accepts records in the order they are pushed
type Sink interface {
	Push(ctx context.Context, f *file.File) error
}

// 🔄 Transform processes one record at a time. It may push any number of records
// to out. Returning is the completion signal for f; a non-nil error means f failed.
type Transform interface {
	Transform(ctx context.Context, f *file.File, out Sink) error
}

// TransformFunc adapts a function to Transform
type TransformFunc func(ctx context.Context, f *file.File, out Sink) error

// Transform implements Transform
func (fn TransformFunc) Transform(ctx context.Context, f *file.File, out Sink) error {
	return fn(ctx, f, out)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, f *file.File) error

// Push implements Sink
func (fn SinkFunc) Push(ctx context.Context, f *file.File) error {
	return fn(ctx, f)
}

// 📥 Producer starts emitting entries and closes the returned channel when done.
// It must stop early once ctx is done.
type Producer func(ctx context.Context) <-chan source.Entry

// 🔧 RunOptions configures Run
type RunOptions struct {
	// OnError is called for every record that fails. The run continues.
	OnError func(path string, err error)
}

// 📊 Report summarizes a run
type Report struct {
	Records int           // Records handed to the stage
	Pushed  int           // Records pushed to the sink
	Errors  []RecordError // Per-record failures
}

// Err combines every record failure into one error, or returns nil
func (r *Report) Err() error {
	var err error
	for _, rerr := range r.Errors {
		err = multierr.Append(err, rerr)
	}
	return err
}

// ❌ RecordError is a failure attributed to a single record
type RecordError struct {
	Path string
	Err  error
}

func (e RecordError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e RecordError) Unwrap() error {
	return e.Err
}

// 🏃 Run starts src and hands each entry to stage, one at a time, waiting for the
// stage to finish a record before handing over the next one. Record failures
// are reported and skipped. A sink failure or a cancelled ctx stops the run and
// the producer with it.
func Run(ctx context.Context, src Producer, stage Transform, out Sink, opts RunOptions) (*Report, error) {
	logger := zerolog.Ctx(ctx)
	report := &Report{}

	srcCtx, stop := context.WithCancel(ctx)
	in := src(srcCtx)

	counting := SinkFunc(func(ctx context.Context, f *file.File) error {
		if err := out.Push(ctx, f); err != nil {
			return &sinkError{err: err}
		}
		report.Pushed++
		return nil
	})

	fail := func(path string, err error) {
		report.Errors = append(report.Errors, RecordError{Path: path, Err: err})
		logger.Error().Err(err).Str("file", path).Msg("record failed")
		if opts.OnError != nil {
			opts.OnError(path, err)
		}
	}

	defer func() {
		stop()
		// entries already in flight are discarded
		for entry := range in {
			closeStream(entry)
		}
	}()

	for {
		var entry source.Entry
		var ok bool

		select {
		case <-ctx.Done():
			return report, errors.Errorf("pipeline cancelled: %w", ctx.Err())
		case entry, ok = <-in:
		}
		if err := ctx.Err(); err != nil {
			if ok {
				closeStream(entry)
			}
			return report, errors.Errorf("pipeline cancelled: %w", err)
		}
		if !ok {
			break
		}

		if entry.Err != nil {
			fail(entry.Path, entry.Err)
			continue
		}

		report.Records++
		err := stage.Transform(ctx, entry.File, counting)
		if err == nil {
			continue
		}

		var serr *sinkError
		if errors.As(err, &serr) {
			closeStream(entry)
			return report, errors.Errorf("pushing %s: %w", entry.File.Relative(), serr.err)
		}
		closeStream(entry)
		if ctx.Err() != nil {
			return report, errors.Errorf("pipeline cancelled: %w", ctx.Err())
		}

		fail(entry.File.Path, err)
	}

	logger.Debug().Int("records", report.Records).Int("pushed", report.Pushed).Int("errors", len(report.Errors)).Msg("pipeline finished")

	return report, nil
}

// closeStream releases the stream held by entry, if any
func closeStream(entry source.Entry) {
	if entry.File != nil && entry.File.Stream != nil {
		entry.File.Stream.Close()
	}
}

// sinkError marks an error raised by the downstream sink so Run can stop
type sinkError struct {
	err error
}

func (e *sinkError) Error() string {
	return e.err.Error()
}

func (e *sinkError) Unwrap() error {
	return e.err
}

// 📥 Collector is an in-memory sink that keeps push order
type Collector struct {
	mu    sync.Mutex
	files []*file.File
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// Push implements Sink
func (c *Collector) Push(ctx context.Context, f *file.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = append(c.files, f)
	return nil
}

// Files returns the pushed records in push order
func (c *Collector) Files() []*file.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*file.File{}, c.files...)
}

// Find returns the first record whose Relative() equals rel
func (c *Collector) Find(rel string) (*file.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.files {
		if f.Relative() == rel {
			return f, true
		}
	}
	return nil, false
}

// 🔀 Tee pushes every record to each sink in order, stopping at the first error
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, f *file.File) error {
		for _, s := range sinks {
			if err := s.Push(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
}
