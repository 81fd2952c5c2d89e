package http

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"previsioni/internal/artifact"
	"previsioni/internal/core"
	"previsioni/internal/forecast"
	"previsioni/internal/reference"
	"previsioni/internal/services"
	"previsioni/internal/source/memory"
)

const referenceCSV = `month,last_month_expense,mean_expense,savings,total_expense
1,500,500,10,520
2,520,510,20,540
3,540,520,30,560
`

type testEnv struct {
	srv       *Server
	store     *memory.Store
	artifacts *artifact.FileStore
	refPath   string
}

type runLog struct{ runs []core.TrainingRun }

func (l *runLog) RecordTrainingRun(_ context.Context, run core.TrainingRun) (core.TrainingRun, error) {
	run.ID = int64(len(l.runs) + 1)
	run.CreatedAt = time.Now().UTC()
	l.runs = append([]core.TrainingRun{run}, l.runs...)
	return run, nil
}

func (l *runLog) ListTrainingRuns(_ context.Context, limit int) ([]core.TrainingRun, error) {
	if limit < len(l.runs) {
		return l.runs[:limit], nil
	}
	return l.runs, nil
}

func newTestEnv(t *testing.T, seed []core.Transaction) *testEnv {
	t.Helper()
	dir := t.TempDir()
	refPath := filepath.Join(dir, "reference.csv")
	if err := os.WriteFile(refPath, []byte(referenceCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	means, err := reference.Load(refPath, reference.Options{TargetColumn: "total_expense"})
	if err != nil {
		t.Fatalf("load reference: %v", err)
	}

	artifacts := artifact.NewFileStore(filepath.Join(dir, "models", "model.gob"))
	baseline := forecast.NewBaselineBuilder(means)
	store := memory.New(seed)
	runs := &runLog{}

	var srv *Server
	trainer := forecast.NewTrainer(artifacts, baseline,
		forecast.WithRunRecorder(runs),
		forecast.OnTrained(func() { srv.InvalidatePredictions() }))

	srv = NewServer(":0", Deps{
		Predictor:     forecast.NewPredictor(artifacts, means, baseline),
		Training:      services.NewTrainingService(store, trainer, nil),
		Expenses:      services.NewExpenseService(store, nil),
		Source:        store,
		Runs:          runs,
		Artifacts:     artifacts,
		ReferencePath: refPath,
		CacheSize:     10,
		CacheTTL:      time.Minute,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, store: store, artifacts: artifacts, refPath: refPath}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func history(user string) []core.Transaction {
	amounts := []string{"100", "120", "90", "130", "110", "125"}
	out := make([]core.Transaction, len(amounts))
	for i, a := range amounts {
		out[i] = core.Transaction{
			UserID:   user,
			Amount:   decimal.RequireFromString(a),
			Category: "food",
			Date:     time.Date(2026, time.Month(i+1), 10, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		}
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	h := decode[healthResponse](t, rr)
	if h.Status != "ok" || h.ModelFileFound || !h.FallbackDatasetFound {
		t.Errorf("health = %+v", h)
	}
	if h.ModelPathChecked != env.artifacts.Location() {
		t.Errorf("model_path_checked = %q", h.ModelPathChecked)
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
	if rr := env.do(t, http.MethodGet, "/predict", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /predict status = %d", rr.Code)
	}
}

func TestPredict_MissingUserID(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, body := range []string{`{}`, `{"user_id": ""}`, `{"user_id": null}`, `{"features": {"mean_expense": 1}}`} {
		rr := env.do(t, http.MethodPost, "/predict", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rr.Code)
			continue
		}
		if got := decode[errorResponse](t, rr).Error; got != "Missing user_id" {
			t.Errorf("%s: error = %q", body, got)
		}
	}

	if rr := env.do(t, http.MethodPost, "/predict", `not json`); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d", rr.Code)
	}
}

func TestPredict_WithoutArtifactUsesBaseline(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/predict", `{"user_id": 42}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"user_id":42`) {
		t.Errorf("numeric user id should be echoed as a number: %s", rr.Body.String())
	}
	resp := decode[map[string]any](t, rr)
	if resp["based_on"] != BasedOnReferenceMeans {
		t.Errorf("based_on = %v", resp["based_on"])
	}
	if resp["model"] != string(forecast.SourceUnpersistedBaseline) {
		t.Errorf("model = %v", resp["model"])
	}
	if v := resp["predicted_next_month_expense"].(float64); v != 540 {
		t.Errorf("prediction = %v, want the reference target mean 540", v)
	}
	if env.artifacts.Exists(context.Background()) {
		t.Error("predict must not persist the baseline")
	}
}

func TestPredict_RequestFeaturesAndCache(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"user_id": "u1", "features": {"last_month_expense": 510, "mean_expense": null}}`
	first := env.do(t, http.MethodPost, "/predict", body)
	second := env.do(t, http.MethodPost, "/predict", body)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status = %d/%d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("cached answer differs: %s vs %s", first.Body.String(), second.Body.String())
	}
	resp := decode[map[string]any](t, first)
	if resp["based_on"] != BasedOnRequestFeatures || resp["user_id"] != "u1" {
		t.Errorf("response = %v", resp)
	}
	if stats := env.srv.predictions.Stats(); stats.Hits != 1 || stats.Size != 1 {
		t.Errorf("cache stats = %+v", stats)
	}
}

func TestTrainThenPredictFromHistory(t *testing.T) {
	env := newTestEnv(t, history("u1"))

	// Warm the cache with a baseline answer; training must flush it.
	warm := decode[map[string]any](t, env.do(t, http.MethodPost, "/predict", `{"user_id": "u1"}`))
	if warm["model"] != string(forecast.SourceUnpersistedBaseline) {
		t.Fatalf("model before training = %v", warm["model"])
	}

	rr := env.do(t, http.MethodPost, "/train?user_id=u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("train status = %d body=%s", rr.Code, rr.Body.String())
	}
	res := decode[trainResponse](t, rr)
	if res.Status != string(core.StatusTrainedUsingDB) || res.Rows != 5 {
		t.Errorf("train response = %+v", res)
	}

	resp := decode[map[string]any](t, env.do(t, http.MethodPost, "/predict", `{"user_id": "u1"}`))
	if resp["based_on"] != BasedOnUserHistory || resp["model"] != string(forecast.SourceTrained) {
		t.Errorf("response = %v", resp)
	}
	v := resp["predicted_next_month_expense"].(float64)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		t.Errorf("prediction = %v", v)
	}

	runs := decode[map[string][]core.TrainingRun](t, env.do(t, http.MethodGet, "/train/runs?limit=5", ""))
	if len(runs["runs"]) != 1 || runs["runs"][0].UserID != "u1" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestTrain_FallbackAndAsyncWithoutQueue(t *testing.T) {
	env := newTestEnv(t, nil)

	res := decode[trainResponse](t, env.do(t, http.MethodPost, "/train", `{"user_id": 7}`))
	if res.Status != string(core.StatusFallbackModelTrained) || res.Reason != string(forecast.ReasonEmpty) {
		t.Errorf("train response = %+v", res)
	}
	if !env.artifacts.Exists(context.Background()) {
		t.Error("fallback training must persist the baseline artifact")
	}

	if rr := env.do(t, http.MethodPost, "/train?async=true", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("async without queue status = %d", rr.Code)
	}
}

func TestCreateExpense(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/expenses", `{"user_id": "u9", "amount": "12,50", "category": "food", "date": "2026-03-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	records, _ := env.store.ListTransactions(context.Background(), "u9")
	if len(records) != 1 || records[0].Amount.String() != "12.5" {
		t.Errorf("stored = %+v", records)
	}

	tests := []struct {
		name string
		body string
	}{
		{"negative amount", `{"user_id": "u9", "amount": -3, "category": "food", "date": "2026-03-01"}`},
		{"bad date", `{"user_id": "u9", "amount": 3, "category": "food", "date": "yesterday"}`},
		{"missing user", `{"amount": 3, "category": "food", "date": "2026-03-01"}`},
		{"missing category", `{"user_id": "u9", "amount": 3, "date": "2026-03-01"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, http.MethodPost, "/expenses", tt.body); rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestCreateExpense_ReadOnlySource(t *testing.T) {
	srv := NewServer(":0", Deps{})
	defer srv.Shutdown(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/health", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
