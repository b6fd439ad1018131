package main

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// setupLog configures the process logger. Output goes to stderr so audio
// paths printed on stdout stay pipeable; without --debug only warnings and
// errors surface. SUPERTONIC_LOGFILE redirects everything to a file.
func setupLog(debug bool) *log.Logger {
	var w io.Writer = os.Stderr
	if path := os.Getenv("SUPERTONIC_LOGFILE"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			w = f
		}
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: debug,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	log.SetDefault(logger)
	return logger
}
