package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	if err := writeJSON(os.Stdout, v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FatalError reports a fatal error on stderr and exits with code 1. In
// --json mode the error is written as {"error": ...} so scripted callers
// can parse it.
func FatalError(format string, args ...interface{}) {
	reportError(os.Stderr, fmt.Sprintf(format, args...), "")
	os.Exit(1)
}

// FatalErrorWithHint is FatalError with a suggested next step.
func FatalErrorWithHint(message, hint string) {
	reportError(os.Stderr, message, hint)
	os.Exit(1)
}

// WarnError writes a warning to stderr and returns. It is silent in --json
// mode so stderr stays parseable.
func WarnError(format string, args ...interface{}) {
	if jsonOutput {
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

func reportError(w io.Writer, message, hint string) {
	if jsonOutput {
		errObj := map[string]string{"error": message}
		if hint != "" {
			errObj["hint"] = hint
		}
		_ = writeJSON(w, errObj)
		return
	}
	fmt.Fprintf(w, "Error: %s\n", message)
	if hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}
