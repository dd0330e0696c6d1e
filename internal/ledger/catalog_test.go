package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/reward-ledger/internal/repository"
)

func TestSeedIfEmpty_Idempotent(t *testing.T) {
	c := NewCatalog(repository.NewMemoryStore())
	ctx := context.Background()

	seeded, err := c.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = c.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	tasks, err := c.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	want := []struct {
		id     int64
		title  string
		reward int64
	}{
		{1, "Visit our Blogger site", 10},
		{2, "Join Telegram Channel", 15},
		{3, "Watch Ad", 5},
	}
	for i, w := range want {
		assert.Equal(t, w.id, tasks[i].ID)
		assert.Equal(t, w.title, tasks[i].Title)
		assert.Equal(t, w.reward, tasks[i].Reward)
	}
}

func TestSeedIfEmpty_Concurrent(t *testing.T) {
	c := NewCatalog(repository.NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.SeedIfEmpty(ctx); err != nil {
				t.Errorf("seed: %v", err)
			}
		}()
	}
	wg.Wait()

	tasks, err := c.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, len(DemoTasks))
}

func TestSeedIfEmpty_SkipsNonEmptyCatalog(t *testing.T) {
	c := NewCatalog(repository.NewMemoryStore())
	ctx := context.Background()

	_, err := c.AddTask(ctx, "Custom", 1, "#")
	require.NoError(t, err)

	seeded, err := c.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	tasks, err := c.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestAddTask(t *testing.T) {
	c := NewCatalog(repository.NewMemoryStore())
	ctx := context.Background()

	first, err := c.AddTask(ctx, "Follow", 3, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)

	second, err := c.AddTask(ctx, "  Share  ", 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, "Share", second.Title)

	_, err = c.AddTask(ctx, "Bad", -1, "#")
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = c.AddTask(ctx, " ", 1, "#")
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	got, err := c.GetTask(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = c.GetTask(ctx, 3)
	require.ErrorIs(t, err, repository.ErrTaskNotFound)
}
