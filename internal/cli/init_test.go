package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"previsioni/internal/config"
	"previsioni/internal/core"
	"previsioni/internal/forecast"
	"previsioni/internal/reference"
)

const referenceCSV = `month,last_month_expense,mean_expense,savings,total_expense
1,400,400,5,410
2,410,405,5,430
`

func testConfig(t *testing.T, backend, artifacts string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	refPath := filepath.Join(dir, "reference.csv")
	if err := os.WriteFile(refPath, []byte(referenceCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		Port:                    "8081",
		DataBackend:             backend,
		SQLiteDBPath:            filepath.Join(dir, "previsioni.db"),
		MemoryDataDir:           dir,
		ReferenceDatasetPath:    refPath,
		ReferenceTargetColumn:   "total_expense",
		ReferenceExcludeColumns: []string{"month", "savings"},
		ArtifactBackend:         artifacts,
		ModelDir:                filepath.Join(dir, "models"),
		ModelFile:               "expense_model.gob",
		PredictionCacheSize:     10,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBootstrap(t *testing.T) {
	tests := []struct {
		name      string
		backend   string
		artifacts string
	}{
		{"memory with file artifacts", "memory", "file"},
		{"sqlite with sqlite artifacts", "sqlite", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			hooked := 0
			stack, err := Bootstrap(ctx, testConfig(t, tt.backend, tt.artifacts), discard(),
				forecast.OnTrained(func() { hooked++ }))
			if err != nil {
				t.Fatalf("Bootstrap: %v", err)
			}
			defer stack.Close()

			if stack.Queue != nil {
				t.Error("queue should be nil without AMQP_URL")
			}
			if err := stack.Training.RequestRetrain(ctx, "", "test"); err == nil {
				t.Error("RequestRetrain should fail without a queue")
			}

			res, err := stack.Training.Retrain(ctx, "")
			if err != nil {
				t.Fatalf("Retrain: %v", err)
			}
			if res.Status != core.StatusFallbackModelTrained {
				t.Errorf("status = %s", res.Status)
			}
			if hooked != 1 {
				t.Errorf("trained hook ran %d times", hooked)
			}
			if !stack.Backend.Artifacts.Exists(ctx) {
				t.Error("artifact not saved")
			}
			runs, err := stack.Backend.Runs.ListTrainingRuns(ctx, 10)
			if err != nil || len(runs) != 1 {
				t.Errorf("runs = %v, err = %v", runs, err)
			}
			if got := stack.Predictor.Predict(ctx, nil); got != 420 {
				t.Errorf("Predict = %v, want 420", got)
			}
		})
	}
}

func TestLoadReference_MissingTarget(t *testing.T) {
	cfg := testConfig(t, "memory", "file")
	cfg.ReferenceTargetColumn = "amount"
	if _, err := LoadReference(cfg); !errors.Is(err, reference.ErrConfig) {
		t.Errorf("error = %v, want ErrConfig", err)
	}
}
