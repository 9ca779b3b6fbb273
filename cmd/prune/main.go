package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"mathpractice/internal/config"
	"mathpractice/internal/database"
	"mathpractice/internal/logging"
	"mathpractice/internal/repository"

	"github.com/spf13/pflag"
)

// prune deletes idempotency keys older than the retention period. Attempt and
// question-event rows keep their own unique indexes, so a retry arriving after
// its key was pruned still resolves to the original row.
func main() {
	flagEnvFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	flagOlderThan := pflag.Duration("older-than", 0, "delete keys older than this (default IDEMPOTENCY_RETENTION)")
	flagDryRun := pflag.Bool("dry-run", false, "report the cutoff without deleting anything")
	pflag.Parse()

	cfg := config.Load(*flagEnvFile)
	logger := logging.New(cfg.Env, cfg.LogLevel)

	retention := cfg.IdempotencyRetention
	if *flagOlderThan > 0 {
		retention = *flagOlderThan
	}
	if retention <= 0 {
		fmt.Fprintln(os.Stderr, "Error: retention must be positive")
		pflag.Usage()
		os.Exit(2)
	}
	cutoff := time.Now().Add(-retention)

	if *flagDryRun {
		logger.Info("dry run", "cutoff", cutoff.Format(time.RFC3339), "retention", retention)
		return
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Error("failed to initialize database", logging.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := repository.NewIdempotencyRepository(db).Prune(ctx, cutoff)
	if err != nil {
		logger.Error("failed to prune idempotency keys", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("pruned idempotency keys", "removed", removed, "cutoff", cutoff.Format(time.RFC3339))
}
