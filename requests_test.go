package tickflow

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

var errOdd = errors.New("odd input")

// registerSignatureZoo registers one workflow per signature class.
func registerSignatureZoo(t *testing.T, eng Engine, calls *atomic.Int64) {
	t.Helper()

	none := func(ctx context.Context, _ None) None { calls.Add(1); return None{} }
	in := func(ctx context.Context, n int) None { calls.Add(int64(n)); return None{} }
	out := func(ctx context.Context, _ None) int { return 7 }
	inOut := func(ctx context.Context, n int) string { return strconv.Itoa(n * 10) }

	failNone := func(ctx context.Context, _ None) (None, error) { return None{}, errOdd }
	failIn := func(ctx context.Context, n int) (None, error) {
		if n%2 == 1 {
			return None{}, errOdd
		}
		return None{}, nil
	}
	failOut := func(ctx context.Context, _ None) (string, error) { return "ok", nil }
	failInOut := func(ctx context.Context, n int) (int, error) {
		if n%2 == 1 {
			return 0, errOdd
		}
		return n / 2, nil
	}

	NewModule("zoo").Add(
		NewFlow("none", OneShot("s", DomainMain, none)),
		NewFlow("in", OneShot("s", DomainMain, in)),
		NewFlow("out", OneShot("s", DomainOffThread, out)),
		NewFlow("in-out", OneShot("s", DomainIsolated, inOut)),
		NewFlow("err", Fallible("s", DomainMain, failNone)),
		NewFlow("in-err", Fallible("s", DomainMain, failIn)),
		NewFlow("out-err", Fallible("s", DomainOffThread, failOut)),
		NewFlow("in-out-err", Fallible("s", DomainMain, failInOut)),
	).MustRegister(eng)
}

func TestRequests_AllSignatureClasses(t *testing.T) {
	eng := newTestEngine(t)
	var calls atomic.Int64
	registerSignatureZoo(t, eng, &calls)
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		f := Run(eng, "zoo", "none")
		drive(t, eng, f.Done())
		_, err := f.Await(ctx)
		require.NoError(t, err)
	})

	t.Run("input", func(t *testing.T) {
		f := RunWithInput(eng, "zoo", "in", 5)
		drive(t, eng, f.Done())
		_, err := f.Await(ctx)
		require.NoError(t, err)
	})

	t.Run("output", func(t *testing.T) {
		f := RunWithOutput[int](eng, "zoo", "out")
		drive(t, eng, f.Done())
		n, err := f.Await(ctx)
		require.NoError(t, err)
		require.Equal(t, 7, n)
	})

	t.Run("input output", func(t *testing.T) {
		f := RunWithInputOutput[int, string](eng, "zoo", "in-out", 4)
		drive(t, eng, f.Done())
		s, err := f.Await(ctx)
		require.NoError(t, err)
		require.Equal(t, "40", s)
	})

	t.Run("error", func(t *testing.T) {
		f := RunWithError(eng, "zoo", "err")
		drive(t, eng, f.Done())
		_, err := f.Await(ctx)
		require.ErrorIs(t, err, errOdd)

		var se *StageError
		require.ErrorAs(t, err, &se)
		require.Equal(t, "s", se.StageName)
		require.False(t, IsFatal(err))
	})

	t.Run("input error", func(t *testing.T) {
		f := RunWithInputError(eng, "zoo", "in-err", 2)
		drive(t, eng, f.Done())
		_, err := f.Await(ctx)
		require.NoError(t, err)

		f = RunWithInputError(eng, "zoo", "in-err", 3)
		drive(t, eng, f.Done())
		_, err = f.Await(ctx)
		require.ErrorIs(t, err, errOdd)
	})

	t.Run("output error", func(t *testing.T) {
		f := RunWithOutputError[string](eng, "zoo", "out-err")
		drive(t, eng, f.Done())
		s, err := f.Await(ctx)
		require.NoError(t, err)
		require.Equal(t, "ok", s)
	})

	t.Run("input output error", func(t *testing.T) {
		f := RunWithInputOutputError[int, int](eng, "zoo", "in-out-err", 8)
		drive(t, eng, f.Done())
		n, err := f.Await(ctx)
		require.NoError(t, err)
		require.Equal(t, 4, n)
	})

	require.Equal(t, int64(6), calls.Load())
}

func TestRequests_SignatureMismatchPanics(t *testing.T) {
	eng := newTestEngine(t)
	var calls atomic.Int64
	registerSignatureZoo(t, eng, &calls)

	require.PanicsWithError(t,
		"tickflow: request signature does not match workflow: zoo/in-out has signature input|output, requested as output",
		func() { RunWithOutput[string](eng, "zoo", "in-out") },
	)
	require.Panics(t, func() { Run(eng, "zoo", "err") })
	require.Panics(t, func() { Run(eng, "zoo", "missing") })

	// Wrong payload types are caught at the call, before anything is admitted.
	require.PanicsWithError(t,
		"tickflow: request signature does not match workflow: zoo/in-out takes int, got string",
		func() { RunWithInputOutput[string, string](eng, "zoo", "in-out", "five") },
	)
	require.PanicsWithError(t,
		"tickflow: request signature does not match workflow: zoo/in-out produces string, requested as int",
		func() { RunWithInputOutput[int, int](eng, "zoo", "in-out", 5) },
	)
	require.PanicsWithError(t,
		"tickflow: request signature does not match workflow: zoo/in-out-err takes int, got float64",
		func() { RunWithInputOutputError[float64, int](eng, "zoo", "in-out-err", 1.5) },
	)
	require.Panics(t, func() { RunWithOutputError[int](eng, "zoo", "out-err") })
	require.Empty(t, eng.Instances())

	// A mismatched request never reaches a stage, so the engine keeps ticking.
	for i := 0; i < 3; i++ {
		require.NoError(t, eng.Tick(context.Background()))
	}
}

func TestFuture_PollBeforeAndAfterResolution(t *testing.T) {
	eng := newTestEngine(t)
	NewModule("m").Add(
		NewFlow("w", OneShot("s", DomainMain, func(ctx context.Context, n int) int { return n + 1 })),
	).MustRegister(eng)

	f := RunWithInputOutput[int, int](eng, "m", "w", 1)
	require.NotEmpty(t, f.RequestID())

	_, ok, err := f.Poll()
	require.False(t, ok)
	require.NoError(t, err)

	drive(t, eng, f.Done())

	n, ok, err := f.Poll()
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestFuture_AwaitHonoursContext(t *testing.T) {
	eng := newTestEngine(t)
	NewModule("m").Add(
		NewFlow("w", OneShot("s", DomainMain, func(ctx context.Context, _ None) None { return None{} })),
	).MustRegister(eng)

	f := Run(eng, "m", "w")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Await(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The workflow still runs once ticked.
	drive(t, eng, f.Done())
	_, err = f.Await(context.Background())
	require.NoError(t, err)
}

func TestRequests_LoopingStageAcrossTicks(t *testing.T) {
	eng := newTestEngine(t)
	polls := 0
	count := Looping("count", DomainMainLooping,
		func(ctx context.Context, target int) [2]int { return [2]int{0, target} },
		func(ctx context.Context, s [2]int) ([2]int, int, bool) {
			polls++
			s[0]++
			return s, s[0], s[0] >= s[1]
		},
	)
	NewModule("m").Add(NewFlow("count", count)).MustRegister(eng)

	f := RunWithInputOutput[int, int](eng, "m", "count", 3)
	drive(t, eng, f.Done())

	n, err := f.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, polls)
	require.Equal(t, uint64(4), eng.CurrentTick())
}
