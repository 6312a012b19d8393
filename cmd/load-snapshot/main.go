// load-snapshot imports a JSON company snapshot into the reporting read model,
// replacing that company's existing rows. Use it to seed a database for demos
// or integration tests.
//
// Usage: go run ./cmd/load-snapshot internal/core/testdata/snapshot.json
package main

import (
	"context"
	"log"
	"os"

	"accounting-reports/internal/config"
	"accounting-reports/internal/core"
	"accounting-reports/internal/db"
	"accounting-reports/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: load-snapshot <snapshot.json>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logr := logger.WithComponent("load-snapshot")

	snap, err := core.LoadSnapshotFile(os.Args[1])
	if err != nil {
		logr.Fatal().Err(err).Msg("Failed to read snapshot")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logr.Fatal().Err(err).Msg("Failed to connect")
	}
	defer pool.Close()

	if err := core.NewPostgresStore(pool).ImportSnapshot(ctx, snap); err != nil {
		logr.Fatal().Err(err).Msg("Failed to import snapshot")
	}

	logr.Info().
		Str("company", snap.Company.Code).
		Int("invoices", len(snap.Invoices)).
		Int("bills", len(snap.Bills)).
		Int("payments", len(snap.Payments)).
		Int("assets", len(snap.Assets)).
		Int("items", len(snap.Items)).
		Msg("Snapshot imported")
}
