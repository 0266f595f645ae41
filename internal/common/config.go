package common

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Parser   ParserConfig
	Worker   WorkerConfig
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8000"`
	GRPCAddr    string `env:"GRPC_ADDR" envDefault:":9090"`
	MaxUploadMB int64  `env:"MAX_UPLOAD_MB" envDefault:"20"`
}

// DatabaseConfig holds database-related configuration.
// A postgres:// URL wins over the SQLite path.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	SQLitePath      string        `env:"PARSER_DB_PATH" envDefault:"./data/parser_models.db"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DialTimeout     time.Duration `env:"DB_DIAL_TIMEOUT" envDefault:"3s"`
}

// IsPostgres reports whether the configured URL targets Postgres.
func (d DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(d.URL, "postgres")
}

// OCRConfig holds text extraction configuration
type OCRConfig struct {
	Enabled   bool   `env:"OCR_ENABLED" envDefault:"false"`
	Lang      string `env:"OCR_LANG" envDefault:"por"`
	DPI       int    `env:"OCR_DPI" envDefault:"300"`
	Pdftotext string `env:"PDFTOTEXT_BIN" envDefault:"pdftotext"`
	Pdftoppm  string `env:"PDFTOPPM_BIN" envDefault:"pdftoppm"`
	Tesseract string `env:"TESSERACT_BIN" envDefault:"tesseract"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey      string        `env:"OPENAI_API_KEY"`
	Model       string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL     string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Temperature float32       `env:"OPENAI_TEMPERATURE" envDefault:"0.1"`
	Timeout     time.Duration `env:"OPENAI_TIMEOUT" envDefault:"60s"`
	RPS         float64       `env:"OPENAI_RPS" envDefault:"2"`
}

// ParserConfig holds model detection and business configuration paths
type ParserConfig struct {
	MappingsPath        string  `env:"MAPPINGS_PATH" envDefault:"config/mappings.yaml"`
	MyCompanyPath       string  `env:"MY_COMPANY_CONFIG_PATH" envDefault:"config/my_company.yaml"`
	ModelsPath          string  `env:"MODELS_CONFIG_PATH" envDefault:"config/models.yaml"`
	ConfidenceThreshold float64 `env:"MODEL_CONFIDENCE_THRESHOLD" envDefault:"0.6"`
	Version             string  `env:"PARSER_VERSION" envDefault:"legacy"`
	AuditLogPath        string  `env:"AUDIT_LOG_PATH"`
}

// WorkerConfig holds async queue and inbox watcher configuration
type WorkerConfig struct {
	InboxDir       string        `env:"INBOX_DIR"`
	Workers        int           `env:"WORKERS" envDefault:"4"`
	QueueSize      int           `env:"QUEUE_SIZE" envDefault:"64"`
	ProcessTimeout time.Duration `env:"PROCESS_TIMEOUT" envDefault:"3m"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config.dotenv.load_failed", "error", err)
	}
	return ParseEnv()
}

// ParseEnv loads configuration from environment variables only.
func ParseEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Database.URL == "" && c.Database.SQLitePath == "" {
		return NewAppError("CONFIG_ERROR", "DATABASE_URL or PARSER_DB_PATH is required", ErrInvalidInput)
	}
	if c.Database.URL != "" && !c.Database.IsPostgres() {
		return NewAppError("CONFIG_ERROR", "DATABASE_URL must be a postgres:// URL", ErrInvalidInput)
	}
	if c.Parser.ConfidenceThreshold < 0 || c.Parser.ConfidenceThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "MODEL_CONFIDENCE_THRESHOLD must be within [0,1]", ErrInvalidInput)
	}
	if c.Worker.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}

// NewLogger builds the JSON slog logger used by the binaries.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
