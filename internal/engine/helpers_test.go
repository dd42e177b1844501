package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/tickflow/internal/persistence"
	"github.com/petrijr/tickflow/pkg/api"
)

func testSettings() api.Config {
	cfg := api.DefaultConfig()
	cfg.TicksPerStage = 50
	cfg.MaxAdmissionRetries = 8
	cfg.OffThreadWorkers = 2
	return cfg
}

type testEngine struct {
	*engineImpl
	events *persistence.InMemoryEventStore
}

func newTestEngine(t *testing.T, settings api.Config, obs api.Observer) *testEngine {
	t.Helper()
	events := persistence.NewInMemoryEventStore()
	eng, err := NewEngineWithConfig(Config{
		Settings: settings,
		Observer: obs,
		Events:   events,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Close(ctx)
	})
	return &testEngine{engineImpl: eng.(*engineImpl), events: events}
}

// tick runs n ticks and fails the test on any error.
func (e *testEngine) tickN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, e.Tick(context.Background()))
	}
}

// tickUntilDone ticks until p resolves, for work that finishes off-thread.
func (e *testEngine) tickUntilDone(t *testing.T, p *api.Pending) api.Completion {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, e.Tick(context.Background()))
		if c, ok := p.Result(); ok {
			return c
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("request %s never resolved", p.Key)
	return api.Completion{}
}

func oneShot(name string, d api.Domain, sig api.Signature, run api.RunFunc) api.StageDefinition {
	return api.StageDefinition{Name: name, Domain: d, Signature: sig, Run: run}
}

func looping(name string, d api.Domain, sig api.Signature, setup api.SetupFunc, poll api.PollFunc) api.StageDefinition {
	return api.StageDefinition{Name: name, Domain: d, Signature: sig, Setup: setup, Poll: poll}
}

func noop(name string, d api.Domain) api.StageDefinition {
	return oneShot(name, d, 0, func(ctx context.Context, in api.Payload) (api.Payload, error) {
		return api.None, nil
	})
}

// forever is a looping stage that never finishes.
func forever(name string, d api.Domain) api.StageDefinition {
	return looping(name, d, 0,
		func(ctx context.Context, in api.Payload) (api.Payload, error) { return api.Box(0), nil },
		func(ctx context.Context, state api.Payload) (api.Outcome, error) {
			return api.Wait(api.Box(api.Unbox[int](state) + 1)), nil
		},
	)
}

func doubler() api.StageDefinition {
	return oneShot("double", api.DomainMain, api.HasInput|api.HasOutput, func(ctx context.Context, in api.Payload) (api.Payload, error) {
		return api.Box(api.Unbox[int](in) * 2), nil
	})
}

func formatter(d api.Domain) api.StageDefinition {
	return oneShot("format", d, api.HasInput|api.HasOutput, func(ctx context.Context, in api.Payload) (api.Payload, error) {
		return api.Box(fmt.Sprint(api.Unbox[int](in))), nil
	})
}

func register(t *testing.T, e *testEngine, module string, defs ...api.WorkflowDefinition) {
	t.Helper()
	require.NoError(t, e.RegisterModule(module, defs...))
}
