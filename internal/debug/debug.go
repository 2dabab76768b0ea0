// Package debug holds the process-wide verbosity switches and the structured
// logger handed to import components.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	enabled     = os.Getenv("TICKETPORT_DEBUG") != ""
	verboseMode = false
	quietMode   = false
	jsonMode    = false

	loggerMu sync.Mutex
	logger   *slog.Logger
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
	resetLogger()
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

// SetJSON switches the structured logger to JSON records.
func SetJSON(on bool) {
	jsonMode = on
	resetLogger()
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		fmt.Println(args...)
	}
}

// Logger returns the process logger, writing to stderr. It logs at debug
// level when verbose mode or TICKETPORT_DEBUG is on, and at info otherwise.
func Logger() *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		logger = NewLogger(os.Stderr)
	}
	return logger
}

// NewLogger builds a logger on w honouring the current verbosity and format.
func NewLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if Enabled() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonMode {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func resetLogger() {
	loggerMu.Lock()
	logger = nil
	loggerMu.Unlock()
}
