package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"previsioni/internal/artifact"
)

const DefaultArtifactSlot = "expense_model"

// ArtifactStore keeps the model artifact in the model_artifacts table. Each
// save replaces the slot inside one transaction.
type ArtifactStore struct {
	db   *sql.DB
	slot string
}

var _ artifact.Store = (*ArtifactStore)(nil)

func (s *ArtifactStore) Location() string {
	return "sqlite:model_artifacts/" + s.slot
}

func (s *ArtifactStore) Exists(ctx context.Context) bool {
	ok, err := New(s.db).ModelArtifactExists(ctx, s.slot)
	return err == nil && ok
}

func (s *ArtifactStore) Load(ctx context.Context) (*artifact.Artifact, error) {
	row, err := New(s.db).GetModelArtifact(ctx, s.slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, artifact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get model artifact: %w", err)
	}
	return artifact.Decode(row.Payload)
}

func (s *ArtifactStore) Save(ctx context.Context, a *artifact.Artifact) error {
	payload, err := artifact.Encode(a)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin artifact tx: %w", err)
	}
	defer tx.Rollback()

	if err := New(s.db).WithTx(tx).UpsertModelArtifact(ctx, UpsertModelArtifactParams{
		Slot:           s.slot,
		Payload:        payload,
		Mode:           string(a.Mode),
		FeatureColumns: strings.Join(a.FeatureColumns, ","),
	}); err != nil {
		return fmt.Errorf("upsert model artifact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit artifact tx: %w", err)
	}
	return nil
}
