package backend

import (
	"fmt"

	"previsioni/internal/config"
	"previsioni/internal/storage"
)

// Config holds configuration for backend creation
type Config struct {
	Type      BackendType
	Artifacts ArtifactType

	// SQLite, used by the sqlite source and the sqlite artifact slot
	SQLiteDBPath string
	ArtifactSlot string

	// Postgres specific
	PostgresDSN string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Memory backend specific
	DataDirectory string

	// File artifacts
	ModelPath string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:      BackendType(appConfig.DataBackend),
		Artifacts: ArtifactType(appConfig.ArtifactBackend),

		SQLiteDBPath: appConfig.SQLiteDBPath,
		ArtifactSlot: storage.DefaultArtifactSlot,

		PostgresDSN: appConfig.PostgresDSN,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		DataDirectory: appConfig.MemoryDataDir,
		ModelPath:     appConfig.ModelPath(),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.Artifacts.IsValid() {
		return fmt.Errorf("invalid artifact backend: %s", c.Artifacts)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres DSN is required for postgres backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("spreadsheet ID is required for sheets backend")
		}
	}

	switch c.Artifacts {
	case SQLiteArtifacts:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite artifacts")
		}
	case FileArtifacts:
		if c.ModelPath == "" {
			return fmt.Errorf("model path is required for file artifacts")
		}
	}
	return nil
}

// needsSQLite reports whether a SQLite database must be opened.
func (c Config) needsSQLite() bool {
	return c.Type == SQLiteBackend || c.Artifacts == SQLiteArtifacts
}
