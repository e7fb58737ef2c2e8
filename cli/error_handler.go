package cli

import (
	"fmt"
	"os"

	"github.com/relictools/relic/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(os.Stderr, "❌ No relic.yml found. Create one in your project root.\n")
		return err

	case errors.ErrCodeDaemonNotRunning:
		fmt.Fprintf(os.Stderr, "❌ The relic daemon is not running.\n")
		fmt.Fprintf(os.Stderr, "Start it with 'relic daemon start'.\n")
		return err

	case errors.ErrCodeDaemonConflict:
		if relicErr, ok := err.(*errors.RelicError); ok {
			fmt.Fprintf(os.Stderr, "❌ A relic daemon is already running (PID %v).\n", relicErr.Details["pid"])
			fmt.Fprintf(os.Stderr, "Stop it with 'relic daemon stop' first.\n")
		}
		return err

	case errors.ErrCodeInvalidGlob:
		if relicErr, ok := err.(*errors.RelicError); ok {
			fmt.Fprintf(os.Stderr, "❌ Invalid glob pattern: %v\n", relicErr.Details["glob"])
		}
		return err

	case errors.ErrCodeAPIUnavailable:
		fmt.Fprintf(os.Stderr, "❌ Remote cache service is unreachable. Check 'cache.url' in relic.yml.\n")
		return err

	default:
		// Generic error handling
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)

		// If verbose mode, show full error details
		if h.Verbose {
			if relicErr, ok := err.(*errors.RelicError); ok {
				fmt.Fprintf(os.Stderr, "\nError details:\n%s\n", relicErr.ToJSON())
			}
		}
		return err
	}
}
