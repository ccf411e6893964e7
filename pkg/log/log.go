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

package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for filename
	typeWidth   = 15 // Width for file type
	statusWidth = 15 // Width for status text
)

// File types reported by the writer
const (
	TypeStylesheet = "stylesheet"
	TypeAsset      = "asset"
	TypeFile       = "file"
)

// 🎯 FileOperation represents a file written to the destination
type FileOperation struct {
	Path         string // Destination-relative path
	Type         string // File type (stylesheet/asset/file)
	Status       string // Operation status
	IsNew        bool   // Whether the file did not exist before
	IsModified   bool   // Whether the file existed with other content
	IsMissing    bool   // Whether the file could not be produced
	Replacements int    // Number of rewritten references
}

// 📦 BuildOperation represents one pipeline run for logging
type BuildOperation struct {
	Src  []string // Source globs
	Dest string   // Destination directory
	Cwd  string   // Working directory
}

// 📊 Summary counts the file operations of a build
type Summary struct {
	Files     int
	New       int
	Modified  int
	Unchanged int
	Missing   int
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	currentOp  *BuildOperation
	operations []FileOperation
}

// 🏭 New creates a new logger writing human output to console and structured
// events to zlog
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
		mu:      sync.Mutex{},
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := Lookup(ctx)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🔍 Lookup gets the logger from context, reporting whether one was set
func Lookup(ctx context.Context) (*Logger, bool) {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	return logger, ok
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatFileOperation formats a file operation for display
func (l *Logger) formatFileOperation(op FileOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case op.IsMissing:
		symbol = '✗'
		symbolColor = color.FgRed
	case op.IsNew:
		symbol = '✓'
		symbolColor = color.FgGreen
	case op.IsModified:
		symbol = '⟳'
		symbolColor = color.FgBlue
	default:
		symbol = '•'
		symbolColor = color.FgCyan
	}

	var typeColor color.Attribute
	switch op.Type {
	case TypeStylesheet:
		typeColor = color.FgCyan
	case TypeAsset:
		typeColor = color.FgYellow
	default:
		typeColor = color.FgBlue
	}

	status := op.Status
	if op.Replacements > 0 {
		status = fmt.Sprintf("%s (%d refs)", status, op.Replacements)
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(typeColor).Sprint(fmt.Sprintf("%-*s", typeWidth, op.Type)),
		fmt.Sprintf("%-*s", statusWidth, status))
}

// 📝 LogFileOperation logs a file operation
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.operations = append(l.operations, op)

	fmt.Fprintln(l.console, l.formatFileOperation(op))

	l.zlog.Info().
		Str("file", op.Path).
		Str("type", op.Type).
		Str("status", op.Status).
		Bool("is_new", op.IsNew).
		Bool("is_modified", op.IsModified).
		Bool("is_missing", op.IsMissing).
		Int("replacements", op.Replacements).
		Msg("file operation")
}

// 📝 StartBuildOperation starts a new build
func (l *Logger) StartBuildOperation(ctx context.Context, op BuildOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.operations = nil

	fmt.Fprintf(l.console, "[building %s]\n",
		color.New(color.FgCyan).Sprint(op.Dest))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(strings.Join(op.Src, ", ")),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(op.Cwd))

	l.zlog.Info().
		Strs("src", op.Src).
		Str("dest", op.Dest).
		Str("cwd", op.Cwd).
		Msg("starting build")
}

// 📝 EndBuildOperation ends the current build and returns its summary
func (l *Logger) EndBuildOperation(ctx context.Context) Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sum Summary
	if l.currentOp == nil {
		return sum
	}

	for _, op := range l.operations {
		sum.Files++
		switch {
		case op.IsMissing:
			sum.Missing++
		case op.IsNew:
			sum.New++
		case op.IsModified:
			sum.Modified++
		default:
			sum.Unchanged++
		}
	}

	l.zlog.Info().
		Str("dest", l.currentOp.Dest).
		Int("files", sum.Files).
		Int("new", sum.New).
		Int("modified", sum.Modified).
		Int("missing", sum.Missing).
		Msg("build complete")

	l.currentOp = nil
	l.operations = nil

	return sum
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("cssassets")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
