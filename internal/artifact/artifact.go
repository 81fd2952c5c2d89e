// Package artifact persists the fitted model together with the ordered list
// of input columns it expects.
package artifact

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"previsioni/internal/ml"
)

// Mode records how an artifact was produced.
type Mode string

const (
	ModeBaseline Mode = "baseline"
	ModeTrained  Mode = "trained"
)

var (
	ErrNotFound = errors.New("model artifact not found")
	ErrCorrupt  = errors.New("model artifact is corrupt")
)

// Artifact is a fitted pipeline plus its input column order.
type Artifact struct {
	Pipeline       *ml.Pipeline
	FeatureColumns []string
	Mode           Mode
	TrainedAt      time.Time
}

// Validate checks that the pipeline is usable with the stored columns. A
// baseline may list no columns at all; a trained model needs at least one.
func (a *Artifact) Validate() error {
	if a == nil || a.Pipeline == nil || a.Pipeline.Model == nil {
		return fmt.Errorf("%w: missing pipeline", ErrCorrupt)
	}
	switch a.Mode {
	case ModeBaseline:
	case ModeTrained:
		if len(a.FeatureColumns) == 0 {
			return fmt.Errorf("%w: trained model without feature columns", ErrCorrupt)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrCorrupt, a.Mode)
	}
	if n := a.Pipeline.NumFeatures(); n != len(a.FeatureColumns) {
		return fmt.Errorf("%w: pipeline expects %d features, artifact lists %d", ErrCorrupt, n, len(a.FeatureColumns))
	}
	if err := a.Pipeline.Validate(len(a.FeatureColumns)); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

// Store is the single artifact slot.
type Store interface {
	Load(ctx context.Context) (*Artifact, error)
	Save(ctx context.Context, a *Artifact) error
	Exists(ctx context.Context) bool
	Location() string
}

// Encode serializes a validated artifact.
func Encode(a *Artifact) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses and validates an artifact.
func Decode(data []byte) (a *Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorrupt)
	}
	var out Artifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}
