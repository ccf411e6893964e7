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

// Package file defines the record that flows through a cssassets pipeline.
package file

import (
	"io"
	"path/filepath"
	"strings"
)

// 📄 File is a unit of content in flight through the pipeline.
//
// A File is owned by whichever stage currently holds it. Once it has been
// pushed to a sink the pusher must not touch it again.
type File struct {
	Cwd  string // Working directory of the pipeline
	Base string // Directory Relative() is computed from
	Path string // Absolute path

	// Contents is nil for directory markers.
	Contents []byte
	// Stream is set when the content is delivered as a stream instead of a buffer.
	Stream io.ReadCloser
}

// 🏭 New creates a buffered file record
func New(cwd, base, path string, contents []byte) *File {
	return &File{
		Cwd:      filepath.Clean(cwd),
		Base:     filepath.Clean(base),
		Path:     filepath.Clean(path),
		Contents: contents,
	}
}

// 🔍 IsNull reports whether the record carries no content at all
func (f *File) IsNull() bool {
	return f.Contents == nil && f.Stream == nil
}

// 🔍 IsStream reports whether the content is delivered as a stream
func (f *File) IsStream() bool {
	return f.Stream != nil
}

// 🔍 IsBuffer reports whether the content is fully buffered
func (f *File) IsBuffer() bool {
	return f.Contents != nil && f.Stream == nil
}

// 📍 Relative returns Path relative to Base using forward slashes.
// If Path is not under Base the cleaned Path is returned unchanged.
func (f *File) Relative() string {
	rel, err := filepath.Rel(f.Base, f.Path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(f.Path)
	}
	return filepath.ToSlash(rel)
}

// Basename returns the last element of Path
func (f *File) Basename() string {
	return filepath.Base(f.Path)
}

// Stem returns the base name without its extension
func (f *File) Stem() string {
	base := f.Basename()
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Dirname returns the directory containing Path
func (f *File) Dirname() string {
	return filepath.Dir(f.Path)
}

// 📋 Clone returns a copy of the record with its own contents buffer.
// The stream, if any, is shared.
func (f *File) Clone() *File {
	c := *f
	if f.Contents != nil {
		c.Contents = append([]byte{}, f.Contents...)
	}
	return &c
}

func (f *File) String() string {
	return f.Relative()
}
