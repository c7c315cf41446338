package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/repository"
)

var (
	_ repository.RunRepository    = (*RunRepository)(nil)
	_ repository.SampleRepository = (*SampleRepository)(nil)
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "faceshield.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run := &models.Run{
		ID:              "run-1",
		InputPath:       "/videos/in.mp4",
		OutputPath:      "/videos/out.mp4",
		ModelPath:       "/models/face.onnx",
		Backend:         "opencv",
		Status:          models.RunFailed,
		FramesProcessed: 42,
		TotalFrames:     100,
		BoxesRedacted:   17,
		BoxesRejected:   2,
		Error:           "ProcessingFailure: write frame: disk full",
		StartedAt:       start,
		FinishedAt:      start.Add(90 * time.Second),
	}
	require.NoError(t, repo.Insert(run))

	got, err := repo.GetByID("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.Status, got.Status)
	assert.Equal(t, run.FramesProcessed, got.FramesProcessed)
	assert.Equal(t, run.BoxesRedacted, got.BoxesRedacted)
	assert.Equal(t, run.Error, got.Error)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 90*time.Second, got.Duration())

	missing, err := repo.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, repo.Insert(run), "duplicate id")
}

func TestRunRepositoryListRecent(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		at := start.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Insert(&models.Run{
			ID: id, InputPath: "in", OutputPath: "out", ModelPath: "m",
			Status: models.RunCompleted, StartedAt: at, FinishedAt: at,
		}))
	}

	runs, err := repo.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	runs, err = repo.ListRecent(0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestSampleRepository(t *testing.T) {
	repo := NewSampleRepository(openTestDB(t))
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := &models.Sample{
		RunID: "run-1", Filename: "run-1_000015.jpg", FrameIndex: 15, Timestamp: at,
		FilePath: "/images/run-1_000015.jpg", FileSize: 2048,
		Regions: []models.Region{
			{X: 10, Y: 20, Width: 30, Height: 40},
			{X: 100, Y: 120, Width: 16, Height: 16},
		},
	}
	id, err := repo.Insert(first)
	require.NoError(t, err)
	assert.Equal(t, id, first.ID)

	_, err = repo.Insert(&models.Sample{
		RunID: "run-2", Filename: "run-2_000000.jpg", Timestamp: at.Add(time.Minute), FilePath: "/images/run-2_000000.jpg",
	})
	require.NoError(t, err)

	got, err := repo.GetByFilename("run-1_000015.jpg")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(15), got.FrameIndex)
	require.Len(t, got.Regions, 2)
	assert.Equal(t, 30, got.Regions[0].Width)
	assert.Equal(t, id, got.Regions[1].SampleID)

	all, err := repo.GetAll(&models.SampleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "run-2", all[0].RunID)

	byRun, err := repo.GetAll(&models.SampleFilter{RunID: "run-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, byRun, 1)

	count, err := repo.GetTotalCount(&models.SampleFilter{RunID: "run-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.DeleteAll())
	count, err = repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	none, err := repo.GetByFilename("run-1_000015.jpg")
	require.NoError(t, err)
	assert.Nil(t, none)
}
