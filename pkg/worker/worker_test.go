package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	t.Parallel()

	p := New(context.Background(), Config{Concurrency: 4}, nil)
	t.Cleanup(func() { _ = p.Stop(context.Background()) })

	var wg sync.WaitGroup
	results := make(chan int, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		n := i
		require.True(t, p.TrySubmit(func(ctx context.Context) {
			defer wg.Done()
			results <- n * n
		}))
	}
	wg.Wait()
	close(results)

	sum := 0
	for r := range results {
		sum += r
	}
	require.Equal(t, 0+1+4+9, sum)
}

func TestPool_TrySubmitRefusesWhenSaturated(t *testing.T) {
	t.Parallel()

	p := New(context.Background(), Config{Concurrency: 1}, nil)
	t.Cleanup(func() { _ = p.Stop(context.Background()) })

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.TrySubmit(func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	require.Equal(t, 1, p.Active())
	require.False(t, p.TrySubmit(func(ctx context.Context) {}), "second task must be refused while the only slot is busy")

	close(release)
	require.Eventually(t, func() bool {
		return p.TrySubmit(func(ctx context.Context) {})
	}, time.Second, 5*time.Millisecond)
}

func TestPool_StopCancelsTaskContext(t *testing.T) {
	t.Parallel()

	p := New(context.Background(), Config{Concurrency: 2}, nil)

	cancelled := make(chan struct{})
	require.True(t, p.TrySubmit(func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))

	select {
	case <-cancelled:
	default:
		t.Fatal("task context was not cancelled by Stop")
	}

	require.False(t, p.TrySubmit(func(ctx context.Context) {}), "stopped pool must refuse work")
	require.NoError(t, p.Stop(ctx), "Stop must be idempotent")
}

func TestPool_StopHonoursDeadline(t *testing.T) {
	t.Parallel()

	p := New(context.Background(), Config{Concurrency: 1}, nil)

	release := make(chan struct{})
	require.True(t, p.TrySubmit(func(ctx context.Context) {
		// Ignores cancellation on purpose.
		<-release
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Stop(ctx), context.DeadlineExceeded)

	close(release)
}
