package seedlist

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/demonlist/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initialises the global logger on stdout, teeing into
// logFile when it is set.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
		closer = file
	}
	if err := logger.InitWith(w, "text"); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closer, nil
}

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`demonlist seed tool
===================

Seeds a running demonlist service through its HTTP API, then checks that
positions are dense, the ranking is ordered and unchanged resources
revalidate with 304.

Usage:
  go run ./cmd/seed-list [options]

Options:
  -url string       Base URL of the service (default "http://localhost:9080")
  -secret string    Token secret, defaults to $DEMONLIST_JWT_SECRET
  -issuer string    Token issuer (default "demonlist")
  -demons int       Demons to place (default 50)
  -players int      Players to register (default 200)
  -records int      Records to submit and approve (default 1000)
  -workers int      Concurrent submitters (default CPU cores * 2)
  -timeout duration HTTP request timeout (default 30s)
  -seed uint        Generator seed (default 1)
  -log string       Also write logs to this file
  -verbose          Log every approval
  -help             Show this help message

Examples:
  DEMONLIST_JWT_SECRET=dev go run ./cmd/seed-list
  go run ./cmd/seed-list -secret dev -demons 150 -players 1000 -records 20000
`)
}
