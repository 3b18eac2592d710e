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
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	libraryIndent = 4  // spaces to indent library entries
	nameWidth     = 35 // Base width for library name
	scopeWidth    = 15 // Width for scope
	statusWidth   = 15 // Width for status text
)

// 📚 LibraryOperation represents one placed library for logging
type LibraryOperation struct {
	Name     string // Library name at the destination
	Path     string // Entry name or file path it was written to
	Scope    string // Dependency scope
	Unpack   bool   // Whether the library must be unpacked at runtime
	Exploded bool   // Whether it was copied next to the archive
	Skipped  bool   // Whether it was left out
}

// 📦 ArchiveOperation represents a repackaged archive for logging
type ArchiveOperation struct {
	Name        string // Artifact name
	Source      string // Source archive
	Destination string // Destination archive
	Layout      string // Layout kind
	Mode        string // embedded or exploded
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	currentOp  *ArchiveOperation
	operations []LibraryOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
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
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatLibraryOperation formats a library operation for display
func (l *Logger) formatLibraryOperation(op LibraryOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	status := "nested"
	switch {
	case op.Skipped:
		symbol = '-'
		symbolColor = color.FgYellow
		status = "skipped"
	case op.Exploded:
		symbol = '→'
		symbolColor = color.FgBlue
		status = "copied"
	default:
		symbol = '✓'
		symbolColor = color.FgGreen
	}
	if op.Unpack && !op.Skipped {
		status += " (unpack)"
	}

	var scopeColor color.Attribute
	switch op.Scope {
	case "provided":
		scopeColor = color.FgYellow
	case "runtime":
		scopeColor = color.FgMagenta
	default:
		scopeColor = color.FgCyan
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", libraryIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Name),
		color.New(scopeColor).Sprint(fmt.Sprintf("%-*s", scopeWidth, op.Scope)),
		fmt.Sprintf("%-*s", statusWidth, status))
}

// 📝 LogLibraryOperation logs a placed library
func (l *Logger) LogLibraryOperation(ctx context.Context, op LibraryOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.operations = append(l.operations, op)

	fmt.Fprintln(l.console, l.formatLibraryOperation(op))

	l.zlog.Info().
		Str("library", op.Name).
		Str("path", op.Path).
		Str("scope", op.Scope).
		Bool("unpack", op.Unpack).
		Bool("exploded", op.Exploded).
		Bool("skipped", op.Skipped).
		Msg("library placed")
}

// 📝 StartArchiveOperation starts reporting on one archive
func (l *Logger) StartArchiveOperation(ctx context.Context, op ArchiveOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.operations = nil

	fmt.Fprintf(l.console, "[repackaging %s]\n",
		color.New(color.FgCyan).Sprint(op.Destination))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Name),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(op.Layout+"/"+op.Mode))

	l.zlog.Info().
		Str("artifact", op.Name).
		Str("source", op.Source).
		Str("destination", op.Destination).
		Str("layout", op.Layout).
		Str("mode", op.Mode).
		Msg("starting archive operation")
}

// 📝 EndArchiveOperation ends the current archive operation
func (l *Logger) EndArchiveOperation(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	l.zlog.Info().
		Str("artifact", l.currentOp.Name).
		Int("libraries", len(l.operations)).
		Msg("archive operation complete")

	l.currentOp = nil
	l.operations = nil
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
	name := color.New(color.Bold, color.FgCyan).Sprint("bootpack")
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
