package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "accounting-reports/internal/adapters/web"
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
	logr := logger.WithComponent("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logr.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	reports := core.NewReportingService(core.NewPostgresStore(pool), cfg.ReportingConfig())

	var interpreter app.ReportInterpreter
	if cfg.OpenAIAPIKey == "" {
		logr.Warn().Msg("OPENAI_API_KEY is not set; natural-language reports are disabled")
	} else {
		interpreter = ai.NewAgent(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}

	svc := app.NewAppService(reports, interpreter, cfg.CompanyCode)
	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.ReportTimeout)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Error().Err(err).Msg("shutdown")
		}
	}()

	logr.Info().Str("port", cfg.ServerPort).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal().Err(err).Msg("server")
	}
	logr.Info().Msg("server stopped")
}
