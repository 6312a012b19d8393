package main

import (
	"context"
	"log"
	"os"

	"accounting-reports/internal/adapters/cli"
	"accounting-reports/internal/ai"
	"accounting-reports/internal/app"
	"accounting-reports/internal/config"
	"accounting-reports/internal/core"
	"accounting-reports/internal/db"
	"accounting-reports/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := cli.Execute(context.Background(), newFactory(cfg)); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// newFactory builds services from a snapshot file when --data is given, and
// from PostgreSQL otherwise.
func newFactory(cfg *config.Config) cli.ServiceFactory {
	return func(ctx context.Context, dataFile string) (app.ApplicationService, func(), error) {
		var interpreter app.ReportInterpreter
		if cfg.OpenAIAPIKey != "" {
			interpreter = ai.NewAgent(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		}

		if dataFile != "" {
			snap, err := core.LoadSnapshotFile(dataFile)
			if err != nil {
				return nil, nil, err
			}
			reports := core.NewReportingService(core.NewMemoryStore(snap), cfg.ReportingConfig())
			return app.NewAppService(reports, interpreter, cfg.CompanyCode), func() {}, nil
		}

		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		reports := core.NewReportingService(core.NewPostgresStore(pool), cfg.ReportingConfig())
		return app.NewAppService(reports, interpreter, cfg.CompanyCode), pool.Close, nil
	}
}
