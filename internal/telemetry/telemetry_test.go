package telemetry

import (
	"context"
	"testing"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "previsioni-test", "")
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a shutdown function")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown error = %v", err)
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Setup(ctx, "previsioni-test", "http://127.0.0.1:4318")
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	// Nothing was exported, so shutdown only tears down the batcher.
	_ = shutdown(ctx)
}
