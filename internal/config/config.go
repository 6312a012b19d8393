package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"accounting-reports/internal/core"
	"accounting-reports/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Database
	DatabaseURL string

	// Server
	CompanyCode    string
	ServerPort     string
	AllowedOrigins string
	ReportTimeout  time.Duration

	// Reporting defaults
	FiscalYearStartMonth   time.Month
	DecliningFactor        decimal.Decimal
	DefaultValuationMethod core.ValuationMethod

	// OpenAI
	OpenAIAPIKey string
	OpenAIModel  string

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads .env (if present) and the process environment. Invalid values are
// reported here rather than at first use.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CompanyCode:    getEnv("COMPANY_CODE", ""),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:  getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:      getEnv("LOG_OUTPUT", "stderr"),
	}

	timeout, err := time.ParseDuration(getEnv("REPORT_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("REPORT_TIMEOUT: %w", err)
	}
	c.ReportTimeout = timeout

	month, err := strconv.Atoi(getEnv("FISCAL_YEAR_START_MONTH", "1"))
	if err != nil {
		return nil, fmt.Errorf("FISCAL_YEAR_START_MONTH: %w", err)
	}
	c.FiscalYearStartMonth = time.Month(month)

	if c.DecliningFactor, err = decimal.NewFromString(getEnv("DECLINING_BALANCE_FACTOR", "2")); err != nil {
		return nil, fmt.Errorf("DECLINING_BALANCE_FACTOR: %w", err)
	}

	if c.DefaultValuationMethod, err = core.ParseValuationMethod(getEnv("DEFAULT_VALUATION_METHOD", "fifo")); err != nil {
		return nil, fmt.Errorf("DEFAULT_VALUATION_METHOD: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.ReportTimeout <= 0 {
		return fmt.Errorf("REPORT_TIMEOUT must be positive, got %s", c.ReportTimeout)
	}
	if c.FiscalYearStartMonth < time.January || c.FiscalYearStartMonth > time.December {
		return fmt.Errorf("FISCAL_YEAR_START_MONTH must be 1-12, got %d", c.FiscalYearStartMonth)
	}
	if !c.DecliningFactor.IsPositive() {
		return fmt.Errorf("DECLINING_BALANCE_FACTOR must be positive, got %s", c.DecliningFactor)
	}
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("SERVER_PORT must be numeric, got %q", c.ServerPort)
	}
	return nil
}

// ReportingConfig returns the engine defaults derived from the environment.
func (c *Config) ReportingConfig() core.ReportingConfig {
	return core.ReportingConfig{
		Calendar:               core.FiscalCalendar{StartMonth: c.FiscalYearStartMonth},
		DecliningFactor:        c.DecliningFactor,
		DefaultValuationMethod: c.DefaultValuationMethod,
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
