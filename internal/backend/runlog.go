package backend

import (
	"context"
	"sync"
	"time"

	"previsioni/internal/core"
)

const memoryRunLogSize = 100

// memoryRunLog keeps the latest runs when no SQLite database is configured.
type memoryRunLog struct {
	mu   sync.Mutex
	runs []core.TrainingRun
	next int64
}

func newMemoryRunLog() *memoryRunLog {
	return &memoryRunLog{}
}

func (l *memoryRunLog) RecordTrainingRun(_ context.Context, run core.TrainingRun) (core.TrainingRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	run.ID = l.next
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	l.runs = append(l.runs, run)
	if len(l.runs) > memoryRunLogSize {
		l.runs = l.runs[len(l.runs)-memoryRunLogSize:]
	}
	return run, nil
}

// ListTrainingRuns returns the newest runs first.
func (l *memoryRunLog) ListTrainingRuns(_ context.Context, limit int) ([]core.TrainingRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.runs) {
		limit = len(l.runs)
	}
	out := make([]core.TrainingRun, 0, limit)
	for i := len(l.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.runs[i])
	}
	return out, nil
}
