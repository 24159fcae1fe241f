// Package logger provides verbose logging for the retrieval engine.
// Debug, Info and Warn lines are only written when verbose mode is enabled
// via the --verbose flag; Error lines are always written. Output goes to
// stderr so it never mixes with command output.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// write holds the exclusive lock so concurrent lines never interleave.
func write(always bool, level, component, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !always && !verbose {
		return
	}
	if component != "" {
		fmt.Fprintf(output, "[%s] %s: "+format+"\n", append([]any{level, component}, args...)...)
		return
	}
	fmt.Fprintf(output, "["+level+"] "+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) { write(false, "DEBUG", "", format, args...) }

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) { write(false, "INFO", "", format, args...) }

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) { write(false, "WARN", "", format, args...) }

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) { write(true, "ERROR", "", format, args...) }

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Logger prefixes every line with a component name.
type Logger struct {
	component string
}

// For returns a logger for the named component.
func For(component string) *Logger {
	return &Logger{component: component}
}

// Debug prints a message if verbose mode is enabled.
func (l *Logger) Debug(format string, args ...any) { write(false, "DEBUG", l.component, format, args...) }

// Info prints an informational message if verbose mode is enabled.
func (l *Logger) Info(format string, args ...any) { write(false, "INFO", l.component, format, args...) }

// Warn prints a warning message if verbose mode is enabled.
func (l *Logger) Warn(format string, args ...any) { write(false, "WARN", l.component, format, args...) }

// Error prints an error message regardless of verbose mode.
func (l *Logger) Error(format string, args ...any) { write(true, "ERROR", l.component, format, args...) }
