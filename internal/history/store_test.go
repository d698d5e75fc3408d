package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorten/stagehand/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(input string, success bool) *models.OrchestrationRecord {
	tc := models.TokenCount{Prompt: 100, Completion: 50}
	return &models.OrchestrationRecord{
		Input: input,
		Plan: &models.Plan{
			Model:      "gpt-4o-mini",
			TokenCount: &tc,
			Steps: []models.PlanStep{
				{Description: "read main", Tool: "ReadFileTool", Params: map[string]any{"filePath": "main.go"}},
			},
		},
		Results: []models.StepResult{
			{Success: success, Step: models.PlanStep{Description: "read main", Tool: "ReadFileTool"}},
		},
		Reflection:   &models.Reflection{Status: models.ReflectionSuccess, SuccessfulSteps: 1},
		Success:      success,
		ReplanCount:  1,
		ModelCostUSD: 0.0021,
	}
}

func TestSaveAssignsIDTypeAndTimestamp(t *testing.T) {
	store := newTestStore(t)
	record := sampleRecord("read main.go", true)

	require.NoError(t, store.Save(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, models.RecordTypeUserRequest, record.Type)
	assert.False(t, record.Timestamp.IsZero())
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	record := sampleRecord("read main.go", true)
	record.StoppedAtStep = "read main"
	record.StopReason = "critical step failed"
	require.NoError(t, store.Save(context.Background(), record))

	loaded, err := store.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Input, loaded.Input)
	assert.Equal(t, record.Success, loaded.Success)
	assert.Equal(t, "critical step failed", loaded.StopReason)
	assert.Equal(t, 1, loaded.ReplanCount)
	assert.InDelta(t, 0.0021, loaded.ModelCostUSD, 1e-9)
	require.NotNil(t, loaded.Plan)
	require.Len(t, loaded.Plan.Steps, 1)
	assert.Equal(t, "ReadFileTool", loaded.Plan.Steps[0].Tool)
	require.NotNil(t, loaded.Reflection)
	assert.Equal(t, models.ReflectionSuccess, loaded.Reflection.Status)
	require.Len(t, loaded.Results, 1)
}

func TestGetMissingRecord(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "no-such-id")
	assert.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := sampleRecord("first request", true)
	older.Timestamp = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := sampleRecord("second request", false)
	newer.Timestamp = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	summaries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "second request", summaries[0].Input)
	assert.Equal(t, "first request", summaries[1].Input)
	assert.False(t, summaries[0].Success)
}

func TestListLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, sampleRecord("request", true)))
	}

	summaries, err := store.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, summaries, 3)
}

func TestFileBackedStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history", "history.db")
	store, err := NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	record := sampleRecord("persisted request", true)
	require.NoError(t, store.Save(context.Background(), record))

	loaded, err := store.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted request", loaded.Input)
}
