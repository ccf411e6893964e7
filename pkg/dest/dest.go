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

package dest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/cssassets/pkg/assets"
	"github.com/walteh/cssassets/pkg/file"
	"github.com/walteh/cssassets/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// 📊 FileStatus represents what a write did to the destination
type FileStatus int

const (
	StatusUnknown   FileStatus = iota
	StatusNew                  // File didn't exist in destination
	StatusModified             // File existed but content differed
	StatusUnchanged            // File existed and content matched
)

// String returns a string representation of FileStatus
func (s FileStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusModified:
		return "modified"
	case StatusUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// 📄 Written describes one file written by the Writer
type Written struct {
	Path     string     // Destination-relative path, '/'-separated
	Status   FileStatus // What the write did
	Size     int        // Content size in bytes
	Checksum string     // SHA-256 of the content
}

// 💾 Writer is a pipeline sink that writes each record to dir/<Relative()>
type Writer struct {
	dir     string
	console *log.Logger

	mu      sync.Mutex
	written []Written
}

// 🏭 New creates a writer rooted at dir. console may be nil.
func New(dir string, console *log.Logger) *Writer {
	return &Writer{
		dir:     filepath.Clean(dir),
		console: console,
	}
}

// Dir returns the destination directory
func (w *Writer) Dir() string {
	return w.dir
}

// 📤 Push implements pipeline.Sink
func (w *Writer) Push(ctx context.Context, f *file.File) error {
	rel := f.Relative()
	if rel == "." || filepath.IsAbs(filepath.FromSlash(rel)) || rel == ".." || strings.HasPrefix(rel, "../") {
		return errors.Errorf("refusing to write %s outside %s", f.Path, w.dir)
	}
	absPath := filepath.Join(w.dir, filepath.FromSlash(rel))

	if f.IsNull() {
		if err := os.MkdirAll(absPath, 0755); err != nil {
			return errors.Errorf("creating directory: %w", err)
		}
		return nil
	}

	content := f.Contents
	if !f.IsBuffer() {
		data, err := io.ReadAll(f.Stream)
		f.Stream.Close()
		if err != nil {
			return errors.Errorf("reading stream for %s: %w", rel, err)
		}
		content = data
	}

	status := StatusNew
	if existing, err := os.ReadFile(absPath); err == nil {
		if bytes.Equal(existing, content) {
			status = StatusUnchanged
		} else {
			status = StatusModified
		}
	}

	if status != StatusUnchanged {
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return errors.Errorf("creating parent directories: %w", err)
		}
		if err := writeFileAtomic(absPath, content); err != nil {
			return errors.Errorf("writing %s: %w", rel, err)
		}
	}

	wr := Written{
		Path:     rel,
		Status:   status,
		Size:     len(content),
		Checksum: calculateChecksum(content),
	}

	w.mu.Lock()
	w.written = append(w.written, wr)
	w.mu.Unlock()

	zerolog.Ctx(ctx).Debug().
		Str("file", rel).
		Str("status", status.String()).
		Int("size", wr.Size).
		Msg("wrote file")

	if w.console != nil {
		fileType := log.TypeAsset
		if assets.IsStylesheet(rel) {
			fileType = log.TypeStylesheet
		}
		w.console.LogFileOperation(ctx, log.FileOperation{
			Path:       rel,
			Type:       fileType,
			Status:     status.String(),
			IsNew:      status == StatusNew,
			IsModified: status == StatusModified,
		})
	}

	return nil
}

// Written returns every write in push order
func (w *Writer) Written() []Written {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Written{}, w.written...)
}

// writeFileAtomic writes to a temp file next to path and renames it into place
func writeFileAtomic(path string, content []byte) error {
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return errors.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// 🔍 calculateChecksum generates a SHA-256 hash of the content
func calculateChecksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
