package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitOnError exits with the code classified from err.
func exitOnError(err error) {
	exitWithError(exitCodeFor(err), "%v", err)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StageResponse is the response of a pipeline stage command.
type StageResponse struct {
	Status          string  `json:"status"`
	Output          string  `json:"output"`
	Documents       int     `json:"documents,omitempty"`
	Topics          int     `json:"topics,omitempty"`
	Dimensions      int     `json:"dimensions,omitempty"`
	Warning         string  `json:"warning,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// outputStage prints a stage result: the output location first.
func outputStage(resp StageResponse, human string) {
	if humanOutput {
		outputHuman("%s ➜ %s (%s)\n", human, resp.Output, formatDuration(time.Duration(resp.DurationSeconds*float64(time.Second))))
		if resp.Warning != "" {
			fmt.Fprintf(os.Stderr, "warning: %s\n", resp.Warning)
		}
		return
	}
	outputJSON(resp)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// plural formats n with its noun, e.g. "1 topic" or "3 topics".
func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
