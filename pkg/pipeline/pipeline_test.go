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

package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/cssassets/pkg/file"
	"github.com/walteh/cssassets/pkg/source"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

// feed returns a producer emitting entries from a closed, buffered channel
func feed(entries ...source.Entry) Producer {
	ch := make(chan source.Entry, len(entries))
	for _, e := range entries {
		ch <- e
	}
	close(ch)
	return func(ctx context.Context) <-chan source.Entry { return ch }
}

func record(rel string) source.Entry {
	f := file.New("/site", "/site", "/site/"+rel, []byte(rel))
	return source.Entry{Path: f.Path, File: f}
}

var passThrough = TransformFunc(func(ctx context.Context, f *file.File, out Sink) error {
	return out.Push(ctx, f)
})

func TestRun(t *testing.T) {
	errBad := errors.Base("bad record")

	tests := []struct {
		name      string
		entries   []source.Entry
		stage     Transform
		wantFiles []string
		check     func(t *testing.T, report *Report, failed []string)
	}{
		{
			name:      "pass_through_keeps_order",
			entries:   []source.Entry{record("a.css"), record("b.css"), record("c.css")},
			stage:     passThrough,
			wantFiles: []string{"a.css", "b.css", "c.css"},
			check: func(t *testing.T, report *Report, failed []string) {
				assert.Equal(t, 3, report.Records)
				assert.Equal(t, 3, report.Pushed)
				assert.Empty(t, report.Errors)
				assert.NoError(t, report.Err())
			},
		},
		{
			name:    "stage_may_push_many",
			entries: []source.Entry{record("a.css")},
			stage: TransformFunc(func(ctx context.Context, f *file.File, out Sink) error {
				extra := file.New(f.Cwd, f.Base, "/site/a/img.png", []byte("png"))
				if err := out.Push(ctx, extra); err != nil {
					return err
				}
				return out.Push(ctx, f)
			}),
			wantFiles: []string{"a/img.png", "a.css"},
			check: func(t *testing.T, report *Report, failed []string) {
				assert.Equal(t, 1, report.Records)
				assert.Equal(t, 2, report.Pushed, "every push should be counted")
			},
		},
		{
			name: "entry_errors_are_reported",
			entries: []source.Entry{
				record("a.css"),
				{Path: "/site/gone.css", Err: errors.Errorf("%w: /site/gone.css", source.ErrNotFound)},
				record("b.css"),
			},
			stage:     passThrough,
			wantFiles: []string{"a.css", "b.css"},
			check: func(t *testing.T, report *Report, failed []string) {
				assert.Equal(t, 2, report.Records, "failed entries never reach the stage")
				require.Len(t, report.Errors, 1)
				assert.Equal(t, "/site/gone.css", report.Errors[0].Path)
				assert.True(t, errors.Is(report.Errors[0], source.ErrNotFound))
				assert.Equal(t, []string{"/site/gone.css"}, failed, "OnError should see the failure")
			},
		},
		{
			name:    "stage_errors_skip_the_record",
			entries: []source.Entry{record("a.css"), record("bad.css"), record("c.css")},
			stage: TransformFunc(func(ctx context.Context, f *file.File, out Sink) error {
				if f.Basename() == "bad.css" {
					return errors.WithStack(errBad)
				}
				return out.Push(ctx, f)
			}),
			wantFiles: []string{"a.css", "c.css"},
			check: func(t *testing.T, report *Report, failed []string) {
				require.Len(t, report.Errors, 1)
				assert.Equal(t, "/site/bad.css", report.Errors[0].Path)
				assert.Equal(t, "/site/bad.css: bad record", report.Errors[0].Error())
				assert.True(t, errors.Is(report.Err(), errBad), "combined error should keep the cause")
				assert.Len(t, multierr.Errors(report.Err()), 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewCollector()
			var failed []string

			report, err := Run(testContext(t), feed(tt.entries...), tt.stage, out, RunOptions{
				OnError: func(path string, err error) {
					failed = append(failed, path)
				},
			})
			require.NoError(t, err)

			var got []string
			for _, f := range out.Files() {
				got = append(got, f.Relative())
			}
			assert.Equal(t, tt.wantFiles, got)

			if tt.check != nil {
				tt.check(t, report, failed)
			}
		})
	}
}

func TestRunSinkFailureAborts(t *testing.T) {
	errDisk := errors.Base("disk full")
	var seen []string

	out := SinkFunc(func(ctx context.Context, f *file.File) error {
		seen = append(seen, f.Relative())
		if f.Basename() == "b.css" {
			return errDisk
		}
		return nil
	})

	report, err := Run(testContext(t), feed(record("a.css"), record("b.css"), record("c.css")), passThrough, out, RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDisk), "sink error should be returned")
	assert.Equal(t, []string{"a.css", "b.css"}, seen, "the run should stop at the failing push")
	assert.Equal(t, 1, report.Pushed)
	assert.Empty(t, report.Errors, "a sink failure is not a record failure")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))

	in := make(chan source.Entry)
	go func() {
		defer close(in)
		in <- record("a.css")
		cancel()
		// ignores ctx on purpose; Run must drain it on the way out
		for _, rel := range []string{"b.css", "c.css"} {
			in <- record(rel)
		}
	}()
	src := func(context.Context) <-chan source.Entry { return in }

	_, err := Run(ctx, src, passThrough, NewCollector(), RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

// trackedStream counts how many streams were opened and closed
type trackedStream struct {
	io.Reader
	mu     *sync.Mutex
	closed *int
	done   bool
}

func (s *trackedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.done = true
		*s.closed++
	}
	return nil
}

func TestRunSinkFailureStopsProducer(t *testing.T) {
	const total = 200

	var mu sync.Mutex
	opened, closed := 0, 0

	// behaves like source.Reader.Src in stream mode
	src := func(ctx context.Context) <-chan source.Entry {
		out := make(chan source.Entry)
		go func() {
			defer close(out)
			for i := 0; i < total; i++ {
				if ctx.Err() != nil {
					return
				}
				mu.Lock()
				opened++
				mu.Unlock()

				f := file.New("/site", "/site", fmt.Sprintf("/site/f%03d.txt", i), nil)
				f.Stream = &trackedStream{Reader: strings.NewReader("x"), mu: &mu, closed: &closed}

				select {
				case out <- source.Entry{Path: f.Path, File: f}:
				case <-ctx.Done():
					f.Stream.Close()
					return
				}
			}
		}()
		return out
	}

	errDisk := errors.Base("disk full")
	out := SinkFunc(func(ctx context.Context, f *file.File) error { return errDisk })

	_, err := Run(testContext(t), src, passThrough, out, RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDisk))

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, opened, total, "the producer should stop once the run fails")
	assert.Equal(t, opened, closed, "every opened stream should be closed")
}

func TestRunWaitsForEachRecord(t *testing.T) {
	var mu sync.Mutex
	active, maxActive := 0, 0

	stage := TransformFunc(func(ctx context.Context, f *file.File, out Sink) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		err := out.Push(ctx, f)

		mu.Lock()
		active--
		mu.Unlock()
		return err
	})

	_, err := Run(testContext(t), feed(record("a.css"), record("b.css"), record("c.css")), stage, NewCollector(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, maxActive, "records should be handed over one at a time")
}

func TestTee(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	sink := Tee(a, b)

	f := file.New("/site", "/site", "/site/x.css", []byte("x"))
	require.NoError(t, sink.Push(context.Background(), f))

	assert.Len(t, a.Files(), 1)
	assert.Len(t, b.Files(), 1)

	found, ok := b.Find("x.css")
	require.True(t, ok)
	assert.Same(t, f, found)

	_, ok = b.Find("y.css")
	assert.False(t, ok)

	errFirst := errors.Base("first")
	failing := Tee(SinkFunc(func(ctx context.Context, f *file.File) error { return errFirst }), a)
	assert.True(t, errors.Is(failing.Push(context.Background(), f), errFirst))
	assert.Len(t, a.Files(), 1, "later sinks should not see a record after an earlier failure")
}
