package tickflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TicksPerStage = 50
	cfg.MaxAdmissionRetries = 8
	cfg.OffThreadWorkers = 2
	cfg.TickInterval = time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	eng, err := NewInMemoryEngine(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	return eng
}

// drive ticks eng until done is closed. Off-thread results arrive
// asynchronously, so each tick yields briefly.
func drive(t *testing.T, eng Engine, done <-chan struct{}) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 2000; i++ {
		select {
		case <-done:
			return
		default:
		}
		require.NoError(t, eng.Tick(ctx))
		time.Sleep(100 * time.Microsecond)
	}
	t.Fatalf("future not resolved after %d ticks", eng.CurrentTick())
}
