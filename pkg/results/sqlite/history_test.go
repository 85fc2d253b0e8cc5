package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fan1dy/personalized-llms-colm/pkg/telemetry"
)

func newTestHistory(t *testing.T, runID string) *History {
	t.Helper()
	h, err := NewHistory(filepath.Join(t.TempDir(), "history.db"), runID)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, h.Close(context.Background()))
	})

	return h
}

func TestRecordEval(t *testing.T) {
	h := newTestHistory(t, "run-1")
	ctx := context.Background()

	events := []telemetry.Event{
		{Round: 2, ClientID: 0, Iteration: 2, Epoch: 0, TrainLoss: 1.2, ValLoss: 1.4, ValPP: 4.05, ValAccuracy: 0.4, LearningRate: 1e-3, GradNorm: 0.8},
		{Round: 2, ClientID: 1, Iteration: 2, Epoch: 0, TrainLoss: 1.3, ValLoss: 1.5, ValPP: 4.48, ValAccuracy: 0.35, LearningRate: 1e-3},
		{Round: 4, ClientID: 0, Iteration: 4, Epoch: 1, TrainLoss: 1.0, ValLoss: 1.2, ValPP: 3.32, ValAccuracy: 0.5, LearningRate: 8e-4},
	}
	for _, ev := range events {
		require.NoError(t, h.RecordEval(ctx, ev))
	}

	got, err := h.ListEvaluations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Ordered by client then iteration.
	assert.Equal(t, 0, got[0].ClientID)
	assert.Equal(t, 2, got[0].Iteration)
	assert.Equal(t, 0, got[1].ClientID)
	assert.Equal(t, 4, got[1].Iteration)
	assert.Equal(t, 1, got[2].ClientID)

	assert.Equal(t, "run-1", got[0].RunID)
	assert.InDelta(t, 1.2, got[0].TrainLoss, 1e-9)
	assert.InDelta(t, 1.4, got[0].ValLoss, 1e-9)
	assert.InDelta(t, 0.4, got[0].ValAcc, 1e-9)
	assert.InDelta(t, 1e-3, got[0].LR, 1e-12)
	assert.InDelta(t, 0.8, got[0].GradNorm, 1e-9)
	assert.False(t, got[0].RecordedAt.IsZero())
}

func TestListEvaluationsFiltersByRun(t *testing.T) {
	h := newTestHistory(t, "run-a")
	ctx := context.Background()

	require.NoError(t, h.RecordEval(ctx, telemetry.Event{Round: 1, ClientID: 0, Iteration: 1}))

	got, err := h.ListEvaluations(ctx, "run-b")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordMeans(t *testing.T) {
	h := newTestHistory(t, "run-1")
	ctx := context.Background()

	require.NoError(t, h.RecordMeans(ctx, telemetry.Means{
		Round:       2,
		TrainLoss:   1.25,
		ValLoss:     1.45,
		ValPP:       4.26,
		ValAccuracy: 0.375,
	}))

	var count int
	require.NoError(t, h.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM evaluation_means WHERE run_id = ? AND round = ?`, "run-1", 2))
	assert.Equal(t, 1, count)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := NewHistory(path, "run-1")
	require.NoError(t, err)
	require.NoError(t, first.RecordEval(context.Background(), telemetry.Event{Round: 1}))
	require.NoError(t, first.Close(context.Background()))

	second, err := NewHistory(path, "run-2")
	require.NoError(t, err)
	defer second.Close(context.Background())

	got, err := second.ListEvaluations(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1, "reopening must preserve prior runs")
}
