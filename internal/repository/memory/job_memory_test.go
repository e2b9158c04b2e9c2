package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"docex/internal/model"
	"docex/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)}
}

func TestJobMemory_Create(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	m := NewJobMemory(WithClock(clk.Now))

	job, err := m.Create(ctx, "j1", "id.png", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, model.StatusPending, job.Status)
	assert.Equal(t, clk.Now(), job.CreatedAt)
	assert.Nil(t, job.CompletedAt)
	assert.Nil(t, job.Result)
	assert.Empty(t, job.Error)

	img, err := m.GetImage(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), img)

	t.Run("duplicate id", func(t *testing.T) {
		_, err := m.Create(ctx, "j1", "other.png", []byte("x"))
		assert.ErrorIs(t, err, repository.ErrDuplicateID)

		got, err := m.Get(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, "id.png", got.Filename)
	})

	t.Run("image is copied", func(t *testing.T) {
		src := []byte("abc")
		_, err := m.Create(ctx, "j2", "a.jpg", src)
		require.NoError(t, err)
		src[0] = 'z'

		img, err := m.GetImage(ctx, "j2")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), img)
	})
}

func TestJobMemory_GetNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewJobMemory()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = m.GetImage(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = m.UpdateStatus(ctx, "missing", repository.JobUpdate{Status: model.StatusProcessing})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestJobMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewJobMemory()
	_, err := m.Create(ctx, "j1", "a.png", []byte("x"))
	require.NoError(t, err)

	got, err := m.Get(ctx, "j1")
	require.NoError(t, err)
	got.Status = model.StatusFailed
	got.Error = "tampered"

	again, err := m.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, again.Status)
	assert.Empty(t, again.Error)
}

func TestJobMemory_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	result := &model.ExtractionResult{
		DocumentType: model.StringPtr("passport"),
		Fields:       map[string]*string{"full_name": model.StringPtr("Jane Doe"), "height": nil},
		RawResponse:  `{"document_type":"passport"}`,
	}

	tests := []struct {
		name      string
		final     repository.JobUpdate
		wantErr   string
		wantResul bool
	}{
		{
			name:      "completed",
			final:     repository.JobUpdate{Status: model.StatusCompleted, Result: result, Error: "ignored"},
			wantResul: true,
		},
		{
			name:    "failed",
			final:   repository.JobUpdate{Status: model.StatusFailed, Result: result, Error: "boom"},
			wantErr: "boom",
		},
		{
			name:    "failed without message",
			final:   repository.JobUpdate{Status: model.StatusFailed},
			wantErr: "unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := newClock()
			m := NewJobMemory(WithClock(clk.Now))
			_, err := m.Create(ctx, "j", "a.png", []byte("x"))
			require.NoError(t, err)

			job, err := m.UpdateStatus(ctx, "j", repository.JobUpdate{Status: model.StatusProcessing})
			require.NoError(t, err)
			assert.Equal(t, model.StatusProcessing, job.Status)
			assert.Nil(t, job.CompletedAt)

			// image must survive the non-terminal transition
			_, err = m.GetImage(ctx, "j")
			require.NoError(t, err)

			clk.Set(clk.Now().Add(3 * time.Second))
			job, err = m.UpdateStatus(ctx, "j", tt.final)
			require.NoError(t, err)
			assert.Equal(t, tt.final.Status, job.Status)
			require.NotNil(t, job.CompletedAt)
			assert.Equal(t, clk.Now(), *job.CompletedAt)

			if tt.wantResul {
				require.NotNil(t, job.Result)
				assert.Equal(t, "Jane Doe", *job.Result.Fields["full_name"])
				assert.Nil(t, job.Result.Fields["height"])
				assert.Empty(t, job.Error)
			} else {
				assert.Nil(t, job.Result)
				assert.Equal(t, tt.wantErr, job.Error)
			}

			_, err = m.GetImage(ctx, "j")
			assert.ErrorIs(t, err, repository.ErrNotFound)
		})
	}
}

func TestJobMemory_UpdateStatusRejectsRegression(t *testing.T) {
	ctx := context.Background()
	m := NewJobMemory()
	_, err := m.Create(ctx, "j", "a.png", []byte("x"))
	require.NoError(t, err)

	_, err = m.UpdateStatus(ctx, "j", repository.JobUpdate{Status: model.StatusPending})
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)

	_, err = m.UpdateStatus(ctx, "j", repository.JobUpdate{Status: model.StatusFailed, Error: "first"})
	require.NoError(t, err)

	_, err = m.UpdateStatus(ctx, "j", repository.JobUpdate{Status: model.StatusCompleted})
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
	_, err = m.UpdateStatus(ctx, "j", repository.JobUpdate{Status: model.StatusProcessing})
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)

	job, err := m.Get(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Equal(t, "first", job.Error)
	assert.Nil(t, job.Result)
}

func TestJobMemory_List(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	m := NewJobMemory(WithClock(clk.Now))

	for i := 0; i < 3; i++ {
		_, err := m.Create(ctx, fmt.Sprintf("j%d", i), "a.png", []byte("x"))
		require.NoError(t, err)
		clk.Set(clk.Now().Add(time.Second))
	}

	jobs, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "j0", jobs[0].ID)
	assert.Equal(t, "j2", jobs[2].ID)

	jobs[0].Status = model.StatusFailed
	got, err := m.Get(ctx, "j0")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestJobMemory_RemoveExpired(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	m := NewJobMemory(WithClock(clk.Now))

	start := clk.Now()
	clk.Set(start.Add(-15 * time.Minute))
	_, err := m.Create(ctx, "old-pending", "a.png", []byte("x"))
	require.NoError(t, err)
	_, err = m.Create(ctx, "old-done", "a.png", []byte("x"))
	require.NoError(t, err)
	_, err = m.UpdateStatus(ctx, "old-done", repository.JobUpdate{Status: model.StatusFailed, Error: "e"})
	require.NoError(t, err)

	clk.Set(start)
	_, err = m.Create(ctx, "fresh", "a.png", []byte("x"))
	require.NoError(t, err)

	removed, err := m.RemoveExpired(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = m.Get(ctx, "old-pending")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = m.GetImage(ctx, "old-pending")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = m.Get(ctx, "fresh")
	assert.NoError(t, err)

	removed, err = m.RemoveExpired(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestJobMemory_Stats(t *testing.T) {
	ctx := context.Background()
	m := NewJobMemory()
	_, _ = m.Create(ctx, "a", "a.png", []byte("1234"))
	_, _ = m.Create(ctx, "b", "b.png", []byte("12"))
	_, _ = m.UpdateStatus(ctx, "b", repository.JobUpdate{Status: model.StatusCompleted})

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ByStatus[model.StatusPending])
	assert.Equal(t, 1, st.ByStatus[model.StatusCompleted])
	assert.Equal(t, 1, st.Images)
	assert.Equal(t, int64(4), st.ImageBytes)
}

func TestJobMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewJobMemory()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", i)
			_, err := m.Create(ctx, id, "a.png", []byte("x"))
			assert.NoError(t, err)
			_, err = m.UpdateStatus(ctx, id, repository.JobUpdate{Status: model.StatusProcessing})
			assert.NoError(t, err)
			_, err = m.UpdateStatus(ctx, id, repository.JobUpdate{Status: model.StatusCompleted})
			assert.NoError(t, err)
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			jobs, err := m.List(ctx)
			assert.NoError(t, err)
			for _, j := range jobs {
				// a terminal job never has its image visible
				if j.Status.Terminal() {
					_, err := m.GetImage(ctx, j.ID)
					assert.ErrorIs(t, err, repository.ErrNotFound)
				}
			}
		}()
	}
	wg.Wait()

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, st.ByStatus[model.StatusCompleted])
	assert.Zero(t, st.Images)
}
