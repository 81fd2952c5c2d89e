package backend

import (
	"context"

	"previsioni/internal/artifact"
	"previsioni/internal/core"
	"previsioni/internal/forecast"
	"previsioni/internal/source"
)

// RunLog records training runs and lists the most recent ones.
type RunLog interface {
	forecast.RunRecorder
	ListTrainingRuns(ctx context.Context, limit int) ([]core.TrainingRun, error)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles everything built from the data and artifact settings.
type BackendResult struct {
	Source source.TransactionSource
	// Writer is nil for read-only sources.
	Writer    source.TransactionWriter
	Artifacts artifact.Store
	Runs      RunLog
	Cleanup   CleanupFunc
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents where transactions are read from
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend:
		return true
	default:
		return false
	}
}

// ArtifactType represents where the model artifact is persisted
type ArtifactType string

const (
	FileArtifacts   ArtifactType = "file"
	SQLiteArtifacts ArtifactType = "sqlite"
)

// IsValid returns true if the artifact type is valid
func (at ArtifactType) IsValid() bool {
	return at == FileArtifacts || at == SQLiteArtifacts
}
