package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cdmetadl/cdscore/internal/models"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Run completed
	ExitComputation = 1 // Scores could not be computed
	ExitError       = 2 // Configuration or usage error
	ExitResource    = 3 // An input or output file could not be read or written
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, models.ErrResource):
		return ExitResource
	case errors.Is(err, models.ErrComputation):
		return ExitComputation
	default:
		// All other errors are configuration/usage errors
		return ExitError
	}
}
