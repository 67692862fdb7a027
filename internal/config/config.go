package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Ledger backends
const (
	LedgerBackendExcel  = "excel"
	LedgerBackendSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logger         LoggerConfig         `mapstructure:"logger"`
	Ledger         LedgerConfig         `mapstructure:"ledger"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Extraction     ExtractionConfig     `mapstructure:"extraction"`
	OCR            OCRConfig            `mapstructure:"ocr"`
	Crypto         CryptoConfig         `mapstructure:"crypto"`
	OpenAI         OpenAIConfig         `mapstructure:"openai"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// LedgerConfig selects where accepted claim lines are recorded
type LedgerConfig struct {
	Backend   string `mapstructure:"backend"` // excel or sqlite
	ExcelPath string `mapstructure:"excel_path"`
	Sheet     string `mapstructure:"sheet"`
}

// DatabaseConfig holds the sqlite ledger configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ReconciliationConfig holds the engine settings
type ReconciliationConfig struct {
	Tolerance     float64  `mapstructure:"tolerance"`
	Workers       int      `mapstructure:"workers"`
	KnownInvoices []string `mapstructure:"known_invoices"`
}

// ExtractionConfig holds field extraction settings
type ExtractionConfig struct {
	YearWindowPast   int    `mapstructure:"year_window_past"`
	YearWindowFuture int    `mapstructure:"year_window_future"`
	PromptsPath      string `mapstructure:"prompts_path"`
}

// OCRConfig holds the OCR pipeline configuration
type OCRConfig struct {
	AzureEndpoint string  `mapstructure:"azure_endpoint"`
	AzureKey      string  `mapstructure:"azure_key"`
	MinConfidence float64 `mapstructure:"min_confidence"`
	TryRotations  bool    `mapstructure:"try_rotations"`
	PDFDPI        float64 `mapstructure:"pdf_dpi"`
}

// CryptoConfig holds the Fernet keys used by invoice verification
type CryptoConfig struct {
	FernetKeys []string `mapstructure:"fernet_keys"`
}

// OpenAIConfig holds the optional field fallback configuration
type OpenAIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from an optional .env file, the config file and environment variables.
// An empty configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.max_body_bytes", 64<<20)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Ledger defaults
	v.SetDefault("ledger.backend", LedgerBackendExcel)
	v.SetDefault("ledger.excel_path", "claim.xlsx")
	v.SetDefault("ledger.sheet", "Claims")

	// Database defaults
	v.SetDefault("database.path", "data/ledger.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Reconciliation defaults
	v.SetDefault("reconciliation.tolerance", 5.0)
	v.SetDefault("reconciliation.workers", 4)

	// Extraction defaults
	v.SetDefault("extraction.year_window_past", 6)
	v.SetDefault("extraction.year_window_future", 1)

	// OCR defaults
	v.SetDefault("ocr.min_confidence", 0.6)
	v.SetDefault("ocr.try_rotations", true)
	v.SetDefault("ocr.pdf_dpi", 300)

	// OpenAI defaults
	v.SetDefault("openai.enabled", false)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.temperature", 0)
	v.SetDefault("openai.timeout", 30*time.Second)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("ocr.azure_endpoint", "AZURE_VISION_ENDPOINT")
	_ = v.BindEnv("ocr.azure_key", "AZURE_VISION_KEY")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("crypto.fernet_keys", "FERNET_KEYS")
	_ = v.BindEnv("ledger.backend", "LEDGER_BACKEND")
	_ = v.BindEnv("ledger.excel_path", "LEDGER_EXCEL_PATH")
	_ = v.BindEnv("server.port", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case LedgerBackendExcel:
		if c.Ledger.ExcelPath == "" {
			return fmt.Errorf("ledger.excel_path is required for the excel backend")
		}
	case LedgerBackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be %q or %q, got %q", LedgerBackendExcel, LedgerBackendSQLite, c.Ledger.Backend)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Reconciliation.Tolerance < 0 {
		return fmt.Errorf("reconciliation.tolerance must not be negative")
	}
	if c.Reconciliation.Workers <= 0 {
		return fmt.Errorf("reconciliation.workers must be positive")
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence >= 1 {
		return fmt.Errorf("ocr.min_confidence must be in [0, 1)")
	}

	if c.OpenAI.Enabled && c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required when openai.enabled is set")
	}

	return nil
}
