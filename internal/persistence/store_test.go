package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KlmnCapital/simulation-engine/internal/core"
	"github.com/KlmnCapital/simulation-engine/internal/engine"
	"github.com/KlmnCapital/simulation-engine/internal/stats"
)

func TestSaveAndLoadRunRoundTrips(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	record := engine.RunRecord{
		RunID:           "run-1",
		StrategyName:    "grid",
		StartedAt:       time.Unix(1000, 0),
		FinishedAt:      time.Unix(2000, 0),
		QuotesProcessed: 42,
		Summary: stats.Summary{
			StartValue:  1000 * core.TickScale,
			FinalValue:  1100 * core.TickScale,
			TotalReturn: 0.1,
			FillCount:   3,
			OrderCount:  5,
		},
		Report: "strategy grid: +10%",
	}

	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, record))

	loaded, ok, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, record.RunID, loaded.RunID)
	assert.Equal(t, record.StrategyName, loaded.StrategyName)
	assert.Equal(t, record.QuotesProcessed, loaded.QuotesProcessed)
	assert.Equal(t, record.Summary, loaded.Summary)
	assert.Equal(t, record.Report, loaded.Report)
	assert.WithinDuration(t, record.StartedAt, loaded.StartedAt, time.Second)
}

func TestLoadRunMissingIdReturnsFalse(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.LoadRun(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveRunOverwritesExistingRecord(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := engine.RunRecord{RunID: "run-1", StrategyName: "v1", QuotesProcessed: 1}
	require.NoError(t, store.SaveRun(ctx, base))

	updated := base
	updated.StrategyName = "v2"
	updated.QuotesProcessed = 99
	require.NoError(t, store.SaveRun(ctx, updated))

	loaded, ok, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", loaded.StrategyName)
	assert.Equal(t, uint64(99), loaded.QuotesProcessed)
}
