package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/demonlist/internal/seedlist"
)

// Default configuration constants.
const (
	defaultDemons  = 50
	defaultPlayers = 200
	defaultRecords = 1000
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	defaultTimeout = 30 * time.Second
	defaultRunTime = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		secret  = flag.String("secret", os.Getenv("DEMONLIST_JWT_SECRET"), "Token secret the service verifies with")
		issuer  = flag.String("issuer", "demonlist", "Token issuer the service expects")
		demons  = flag.Int("demons", defaultDemons, "Number of demons to place")
		players = flag.Int("players", defaultPlayers, "Number of players to register")
		records = flag.Int("records", defaultRecords, "Number of records to submit and approve")
		workers = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed    = flag.Uint64("seed", 1, "Generator seed")
		logFile = flag.String("log", "", "Also write logs to this file")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seedlist.ShowHelp()
		return
	}

	closer, err := seedlist.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTime)
	defer cancel()

	_, err = seedlist.Run(ctx, &seedlist.Config{
		BaseURL: *baseURL,
		Secret:  *secret,
		Issuer:  *issuer,
		Demons:  *demons,
		Players: *players,
		Records: *records,
		Workers: *workers,
		Timeout: *timeout,
		Seed:    *seed,
		Verbose: *verbose,
	})
	if err != nil {
		os.Stderr.WriteString("Seed run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: cancel is called explicitly
	}
}
