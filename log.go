package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"piperd/internal/config"
)

// setupLog configures the default charm logger: human text output on TTYs,
// logfmt when writing to a file or a pipe. The returned closer flushes the
// log file, if any.
func setupLog(cfg *config.Config) (func() error, error) {
	log.SetReportTimestamp(true)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("unable to open log file: %w", err)
		}
		log.SetOutput(f)
		log.SetFormatter(log.LogfmtFormatter)
		return f.Close, nil
	}

	if !term.IsTerminal(int(os.Stderr.Fd())) {
		log.SetFormatter(log.LogfmtFormatter)
	}
	return func() error { return nil }, nil
}
