package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/lox/hotpotato/internal/potato"
)

// setupLogger returns a logger at level writing to file, or stderr when file
// is empty. The returned close function releases the file.
func setupLogger(level, file string) (*log.Logger, func(), error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var (
		w       io.Writer = os.Stderr
		closeFn           = func() {}
	)
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
	})
	return logger, closeFn, nil
}

// resolveAccount accepts either an account in hex or a name to derive one from
func resolveAccount(s string) potato.Account {
	if a, err := potato.ParseAccount(s); err == nil {
		return a
	}
	return potato.AccountFromName(s)
}
