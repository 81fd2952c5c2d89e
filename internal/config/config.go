package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// HTTP Server
	Port string `env:"PORT" envDefault:"8081"`

	// Transaction source
	DataBackend   string `env:"DATA_BACKEND" envDefault:"sqlite"`
	SQLiteDBPath  string `env:"SQLITE_DB_PATH" envDefault:"./data/previsioni.db"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	MemoryDataDir string `env:"MEMORY_DATA_DIR" envDefault:"./data"`

	// Google Sheets
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName          string `env:"GOOGLE_SHEET_NAME" envDefault:"Expenses"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// Reference table
	ReferenceDatasetPath    string   `env:"REFERENCE_DATASET_PATH" envDefault:"./data/reference.csv"`
	ReferenceTargetColumn   string   `env:"REFERENCE_TARGET_COLUMN" envDefault:"total_expense"`
	ReferenceExcludeColumns []string `env:"REFERENCE_EXCLUDE_COLUMNS" envDefault:"month,savings" envSeparator:","`

	// Model artifact
	ArtifactBackend string `env:"ARTIFACT_BACKEND" envDefault:"file"`
	ModelDir        string `env:"MODEL_DIR" envDefault:"./models"`
	ModelFile       string `env:"MODEL_FILE" envDefault:"expense_model.gob"`

	// AMQP
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"previsioni"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"retrain_model"`

	// Worker
	RetrainInterval time.Duration `env:"RETRAIN_INTERVAL" envDefault:"1h"`

	// Prediction cache
	PredictionCacheTTL  time.Duration `env:"PREDICTION_CACHE_TTL" envDefault:"5m"`
	PredictionCacheSize int           `env:"PREDICTION_CACHE_SIZE" envDefault:"1000"`

	// Observability
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	OTELEndpoint string `env:"OTEL_ENDPOINT"`
}

var (
	validBackends         = []string{"memory", "sqlite", "postgres", "sheets"}
	validArtifactBackends = []string{"file", "sqlite"}
	validLogLevels        = []string{"debug", "info", "warn", "error"}
	validLogFormats       = []string{"text", "json"}
)

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ModelPath is the artifact file used by the file backend.
func (c *Config) ModelPath() string {
	return filepath.Join(c.ModelDir, c.ModelFile)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if !slices.Contains(validArtifactBackends, c.ArtifactBackend) {
		errors = append(errors, fmt.Sprintf("invalid artifact backend '%s': must be one of %v", c.ArtifactBackend, validArtifactBackends))
	}

	if c.DataBackend == "sqlite" || c.ArtifactBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "postgres" && c.PostgresDSN == "" {
		errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
	}

	if c.DataBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if strings.TrimSpace(c.ReferenceDatasetPath) == "" {
		errors = append(errors, "reference dataset path cannot be empty")
	}
	if strings.TrimSpace(c.ReferenceTargetColumn) == "" {
		errors = append(errors, "reference target column cannot be empty")
	}
	if c.ArtifactBackend == "file" && (c.ModelDir == "" || c.ModelFile == "") {
		errors = append(errors, "MODEL_DIR and MODEL_FILE cannot be empty when using file artifacts")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RetrainInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid retrain interval %v: must be at least 1 minute", c.RetrainInterval))
	} else if c.RetrainInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid retrain interval %v: must be at most 7 days", c.RetrainInterval))
	}
	if c.PredictionCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid prediction cache TTL %v: must not be negative", c.PredictionCacheTTL))
	}
	if c.PredictionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid prediction cache size %d: must be at least 1", c.PredictionCacheSize))
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
