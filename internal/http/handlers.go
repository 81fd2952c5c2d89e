package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"previsioni/internal/cache"
	"previsioni/internal/core"
	"previsioni/internal/features"
	applog "previsioni/internal/log"
	"previsioni/internal/services"
)

// Values of based_on in prediction responses.
const (
	BasedOnRequestFeatures = "request_features"
	BasedOnUserHistory     = "user_history"
	BasedOnReferenceMeans  = "reference_means"
)

// missingUserIDMessage is the exact error body expected by existing clients.
const missingUserIDMessage = "Missing user_id"

type healthResponse struct {
	Status               string `json:"status"`
	ModelFileFound       bool   `json:"model_file_found"`
	FallbackDatasetFound bool   `json:"fallback_dataset_found"`
	ModelPathChecked     string `json:"model_path_checked"`
}

// handleHealth reports artifact and reference file presence without loading
// the model.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.deps.Artifacts != nil {
		resp.ModelFileFound = s.deps.Artifacts.Exists(r.Context())
		resp.ModelPathChecked = s.deps.Artifacts.Location()
	}
	if s.deps.ReferencePath != "" {
		if _, err := os.Stat(s.deps.ReferencePath); err == nil {
			resp.FallbackDatasetFound = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLive performs basic liveness check
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.deps.Predictor == nil {
		checks["predictor"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["predictor"] = "ok"
	}

	if s.deps.Source != nil {
		if _, err := s.deps.Source.ListTransactions(ctx, "__readiness_check__"); err != nil {
			checks["transaction_source"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["transaction_source"] = "ok"
		}
	} else {
		checks["transaction_source"] = "not_configured"
	}

	// A missing artifact is not fatal: predictions fall back to the baseline.
	if s.deps.Artifacts != nil && s.deps.Artifacts.Exists(ctx) {
		checks["model_artifact"] = "ok"
	} else {
		checks["model_artifact"] = "missing"
	}

	checks["cache"] = s.predictions.Stats()
	checks["rate_limiter"] = s.rateLimiter.GetMetrics()

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request, cache and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	cacheStats := s.predictions.Stats()
	rateMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "# TYPE http_requests_total counter\nhttp_requests_total %d\n\n", traceMetrics.TotalRequests)
	fmt.Fprintf(w, "# TYPE prediction_cache_hits_total counter\nprediction_cache_hits_total %d\n\n", cacheStats.Hits)
	fmt.Fprintf(w, "# TYPE prediction_cache_misses_total counter\nprediction_cache_misses_total %d\n\n", cacheStats.Misses)
	fmt.Fprintf(w, "# TYPE prediction_cache_entries gauge\nprediction_cache_entries %d\n\n", cacheStats.Size)
	fmt.Fprintf(w, "# TYPE rate_limit_rejections_total counter\nrate_limit_rejections_total %d\n\n", rateMetrics.Rejected)
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\nsuspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\nuptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

type predictResponse struct {
	UserID     UserID  `json:"user_id"`
	Prediction float64 `json:"predicted_next_month_expense"`
	BasedOn    string  `json:"based_on"`
	Model      string  `json:"model"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	req, err := ParsePredictRequest(w, r)
	if err != nil {
		if errors.Is(err, errMissingUserID) {
			writeError(w, http.StatusBadRequest, missingUserIDMessage)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := cache.PredictionKey(req.UserID.String(), req.Features)
	if hit, ok := s.predictions.Get(key); ok {
		writeJSON(w, http.StatusOK, predictResponse{
			UserID:     req.UserID,
			Prediction: hit.Value,
			BasedOn:    hit.BasedOn,
			Model:      string(hit.Model),
		})
		return
	}

	in, basedOn := s.predictionInputs(ctx, req)
	value, model := s.deps.Predictor.PredictWithSource(ctx, in)
	s.predictions.Set(key, prediction{Value: value, BasedOn: basedOn, Model: model})

	logger.InfoContext(ctx, "Prediction served", applog.NewFields().
		WithPrediction(req.UserID.String(), value, string(model)).
		WithOperation(applog.OpPredict).ToSlice()...)

	writeJSON(w, http.StatusOK, predictResponse{
		UserID:     req.UserID,
		Prediction: value,
		BasedOn:    basedOn,
		Model:      string(model),
	})
}

// predictionInputs picks the model inputs: explicit features win, then the
// user's own history, then nothing (reference means fill every column).
func (s *Server) predictionInputs(ctx context.Context, req PredictRequest) (core.Features, string) {
	if len(req.Features) > 0 {
		return req.Features, BasedOnRequestFeatures
	}
	if s.deps.Source == nil {
		return core.Features{}, BasedOnReferenceMeans
	}

	records, err := s.deps.Source.ListTransactions(ctx, req.UserID.String())
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Could not read user history, using reference means",
			applog.FieldUserID, req.UserID.String(),
			applog.FieldError, err)
		return core.Features{}, BasedOnReferenceMeans
	}
	in, err := features.LatestInputs(records)
	if err != nil {
		if !errors.Is(err, features.ErrEmpty) {
			applog.FromContext(ctx).WarnContext(ctx, "User history unusable, using reference means",
				applog.FieldUserID, req.UserID.String(),
				applog.FieldError, err)
		}
		return core.Features{}, BasedOnReferenceMeans
	}
	return in, BasedOnUserHistory
}

type trainResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Rows   int    `json:"rows"`
	Queued bool   `json:"queued,omitempty"`
}

type trainRequest struct {
	UserID UserID `json:"user_id"`
}

// handleTrain retrains inline, or queues a retrain request with ?async=true.
// The user may be given as ?user_id= or in a JSON body.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.deps.Training == nil {
		writeError(w, http.StatusNotImplemented, "training is not configured")
		return
	}

	userID := sanitizeInput(r.URL.Query().Get("user_id"))
	if userID == "" && r.ContentLength > 0 {
		var req trainRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		userID = req.UserID.String()
	}

	if queryBool(r, "async") {
		if err := s.deps.Training.RequestRetrain(ctx, userID, "api"); err != nil {
			if errors.Is(err, services.ErrQueueUnavailable) {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			applog.FromContext(ctx).ErrorContext(ctx, "Failed to queue retrain", applog.FieldError, err)
			writeError(w, http.StatusBadGateway, "failed to queue retrain request")
			return
		}
		writeJSON(w, http.StatusAccepted, trainResponse{Status: "queued", Queued: true})
		return
	}

	res, err := s.deps.Training.Retrain(ctx, userID)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Training failed", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "training failed")
		return
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogTraining(ctx, userID, string(res.Status), string(res.Reason), res.Rows)
	writeJSON(w, http.StatusOK, trainResponse{
		Status: string(res.Status),
		Reason: string(res.Reason),
		Mode:   string(res.Mode),
		Rows:   res.Rows,
	})
}

func (s *Server) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusNotImplemented, "training run log is not configured")
		return
	}
	runs, err := s.deps.Runs.ListTrainingRuns(r.Context(), queryInt(r, "limit", 20, 100))
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list training runs", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list training runs")
		return
	}
	if runs == nil {
		runs = []core.TrainingRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.deps.Expenses == nil {
		writeError(w, http.StatusNotImplemented, "the configured transaction source is read-only")
		return
	}

	t, err := ParseExpenseRequest(w, r)
	if err != nil {
		if errors.Is(err, errMissingUserID) {
			writeError(w, http.StatusBadRequest, missingUserIDMessage)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := s.deps.Expenses.CreateExpense(ctx, t)
	if err != nil {
		if errors.Is(err, core.ErrEmptyCategory) || errors.Is(err, core.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to save expense", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to save expense")
		return
	}

	// History-derived predictions for this user are now stale.
	s.InvalidatePredictions()

	writeJSON(w, http.StatusCreated, map[string]string{"ref": ref})
}
