package config

import (
	"fmt"
	"io"
	"os"
)

// Overridable for tests.
var (
	exitWriter io.Writer = os.Stderr
	exitFunc             = os.Exit
)

// Exitf writes a formatted error message to stderr and exits with code 1.
// It is the only fatal-exit path; everything below main returns errors.
func Exitf(format string, args ...any) {
	fmt.Fprintf(exitWriter, format+"\n", args...)
	exitFunc(1)
}
