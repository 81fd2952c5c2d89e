package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"previsioni/internal/artifact"
	gsource "previsioni/internal/source/google"
	"previsioni/internal/source/memory"
	"previsioni/internal/storage"
	"previsioni/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the transaction source, the artifact store and the run
// log described by config. Resources are released by Cleanup.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &BackendResult{}
	var closers []func() error
	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*BackendResult, error) {
		_ = res.Cleanup()
		return nil, err
	}

	var repo *storage.SQLiteRepository
	if config.needsSQLite() {
		var err error
		repo, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize SQLite repository: %w", err))
		}
		closers = append(closers, repo.Close)
		res.Runs = repo
		f.logger.Info("Initialized SQLite repository",
			"db_path", config.SQLiteDBPath,
			"schema_version", repo.SchemaVersion())
	} else {
		res.Runs = newMemoryRunLog()
	}

	switch config.Type {
	case SQLiteBackend:
		res.Source, res.Writer = repo, repo
	case MemoryBackend:
		store, err := memory.NewFromDir(config.DataDirectory)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize memory backend: %w", err))
		}
		res.Source, res.Writer = store, store
		f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
	case PostgresBackend:
		db, err := postgres.New(ctx, config.PostgresDSN)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to postgres: %w", err))
		}
		closers = append(closers, db.Close)
		// The expenses schema is owned by the bookkeeping backend: read only.
		res.Source = postgres.NewSource(db)
		f.logger.Info("Initialized postgres backend")
	case SheetsBackend:
		cli, err := gsource.New(ctx, gsource.Config{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			SheetName:          config.GoogleSheetName,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			ServiceAccountFile: config.GoogleServiceAccountFile,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to initialize Google Sheets client: %w", err))
		}
		res.Source, res.Writer = cli, cli
		f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)
	}

	switch config.Artifacts {
	case SQLiteArtifacts:
		res.Artifacts = repo.ArtifactStore(config.ArtifactSlot)
	default:
		res.Artifacts = artifact.NewFileStore(config.ModelPath)
	}
	f.logger.Info("Model artifact store ready",
		"backend", string(config.Artifacts),
		"location", res.Artifacts.Location())

	return res, nil
}
