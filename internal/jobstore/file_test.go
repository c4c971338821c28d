package jobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elegant-foods/costing-cli/internal/model"
)

func testJob() *model.Job {
	job := model.NewJob(ActiveJobID, []model.MenuItem{
		{Name: "Deviled Eggs", Category: "appetizers"},
		{Name: "Brisket Sliders", Category: "main_plates"},
	})
	job.Status = model.JobStatusInProgress
	return job
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip preserves the job", func(t *testing.T) {
		st, err := NewFile(t.TempDir())
		require.NoError(t, err)

		job := testJob()
		require.NoError(t, st.Save(ctx, job))

		got, err := st.Load(ctx, ActiveJobID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, job.Status, got.Status)
		assert.Equal(t, job.TotalItems, got.TotalItems)
		assert.Equal(t, job.Learnings, got.Learnings)
		assert.Equal(t, job.PendingQueue, got.PendingQueue)
		assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("load of absent job returns nil without error", func(t *testing.T) {
		st, err := NewFile(t.TempDir())
		require.NoError(t, err)

		got, err := st.Load(ctx, ActiveJobID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("save overwrites the previous record", func(t *testing.T) {
		st, err := NewFile(t.TempDir())
		require.NoError(t, err)

		job := testJob()
		require.NoError(t, st.Save(ctx, job))

		job.ProcessedCount = 1
		job.Results = []model.LineItem{{ItemName: "Deviled Eggs"}}
		job.PendingQueue = job.PendingQueue[1:]
		require.NoError(t, st.Save(ctx, job))

		got, err := st.Load(ctx, ActiveJobID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.ProcessedCount)
		assert.Len(t, got.PendingQueue, 1)
	})

	t.Run("undecodable record is corrupt", func(t *testing.T) {
		dir := t.TempDir()
		st, err := NewFile(dir)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(dir, ActiveJobID+".json"), []byte(`{"id": "active", "status`), 0o644))

		_, err = st.Load(ctx, ActiveJobID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("invariant-violating record is corrupt", func(t *testing.T) {
		dir := t.TempDir()
		st, err := NewFile(dir)
		require.NoError(t, err)

		// processed_count claims 2 but results holds nothing.
		bad := []byte(`{"id":"active","status":"in_progress","total_items":2,"processed_count":2,"results":[],"pending_queue":[]}`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ActiveJobID+".json"), bad, 0o644))

		_, err = st.Load(ctx, ActiveJobID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("leftover temp file from a crashed save is ignored", func(t *testing.T) {
		dir := t.TempDir()
		st, err := NewFile(dir)
		require.NoError(t, err)

		job := testJob()
		require.NoError(t, st.Save(ctx, job))

		// Simulates a crash between temp write and rename.
		require.NoError(t, os.WriteFile(filepath.Join(dir, ActiveJobID+".12345.tmp"), []byte("partial"), 0o644))

		got, err := st.Load(ctx, ActiveJobID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, job.TotalItems, got.TotalItems)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		st, err := NewFile(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, st.Save(ctx, testJob()))
		require.NoError(t, st.Delete(ctx, ActiveJobID))

		got, err := st.Load(ctx, ActiveJobID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete of absent job is a no-op", func(t *testing.T) {
		st, err := NewFile(t.TempDir())
		require.NoError(t, err)
		assert.NoError(t, st.Delete(ctx, ActiveJobID))
	})

	t.Run("save without ID fails", func(t *testing.T) {
		st, err := NewFile(t.TempDir())
		require.NoError(t, err)
		err = st.Save(ctx, &model.Job{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWrite)
	})

	t.Run("creates nested store directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		_, err := NewFile(dir)
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}
