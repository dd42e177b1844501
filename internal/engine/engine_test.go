package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/tickflow/pkg/api"
)

func TestRegisterModule_RejectsDuplicates(t *testing.T) {
	e := newTestEngine(t, testSettings(), nil)

	def := api.WorkflowDefinition{Name: "load", Stages: []api.StageDefinition{noop("s0", api.DomainMain)}}
	register(t, e, "chunks", def)

	err := e.RegisterModule("chunks", def)
	require.ErrorIs(t, err, api.ErrDuplicateWorkflow)

	// Same name under another module is a different workflow.
	require.NoError(t, e.RegisterModule("player", def))

	err = e.RegisterModule("gpu", def, def)
	require.ErrorIs(t, err, api.ErrDuplicateWorkflow)
	require.Panics(t, func() { e.Lookup("gpu", "load") }, "a failed module must register nothing")
}

func TestRegisterModule_RejectsMiswiredStages(t *testing.T) {
	e := newTestEngine(t, testSettings(), nil)

	bad := api.WorkflowDefinition{Name: "bad", Stages: []api.StageDefinition{
		noop("s0", api.DomainMain),
		doubler(), // expects input that s0 does not produce
	}}
	require.ErrorIs(t, e.RegisterModule("m", bad), api.ErrInvalidDefinition)

	loopingInOneShotDomain := api.WorkflowDefinition{Name: "loop", Stages: []api.StageDefinition{
		forever("spin", api.DomainMain),
	}}
	require.ErrorIs(t, e.RegisterModule("m", loopingInOneShotDomain), api.ErrInvalidDefinition)

	require.ErrorIs(t, e.RegisterModule("m", api.WorkflowDefinition{Name: "empty"}), api.ErrInvalidDefinition)
}

func TestLookup_UnknownWorkflowPanics(t *testing.T) {
	e := newTestEngine(t, testSettings(), nil)

	require.PanicsWithError(t, "tickflow: unknown workflow: nope/missing", func() {
		e.Lookup("nope", "missing")
	})
	require.Panics(t, func() {
		e.Request("nope", "missing", 0, api.None)
	})
}

func TestRequest_SignatureMismatchPanics(t *testing.T) {
	e := newTestEngine(t, testSettings(), nil)
	register(t, e, "math", api.WorkflowDefinition{Name: "fmt", Stages: []api.StageDefinition{
		doubler(), formatter(api.DomainMain),
	}})

	def := e.Lookup("math", "fmt")
	require.Equal(t, api.HasInput|api.HasOutput, def.Signature())

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		require.ErrorIs(t, err, api.ErrSignatureMismatch)
	}()
	e.Request("math", "fmt", api.HasOutput, api.None)
}

func TestTwoStageWorkflow_DoublesAndFormats(t *testing.T) {
	e := newTestEngine(t, testSettings(), nil)
	register(t, e, "math", api.WorkflowDefinition{Name: "W", Stages: []api.StageDefinition{
		doubler(), formatter(api.DomainMain),
	}})

	p := e.Request("math", "W", api.HasInput|api.HasOutput, api.Box(5))

	e.tickN(t, 1)
	_, done := p.Result()
	require.False(t, done)
	inst, ok := e.Instance("math", "W")
	require.True(t, ok)
	require.Equal(t, 1, inst.CurrentStage)
	require.Equal(t, api.StatusProcessing, inst.Status)

	e.tickN(t, 1)
	c, done := p.Result()
	require.True(t, done)
	require.NoError(t, c.Err)
	require.Equal(t, "10", api.Unbox[string](c.Output))

	_, ok = e.Instance("math", "W")
	require.False(t, ok, "instance must be removed the tick it completes")
	require.Empty(t, e.Instances())
	require.Equal(t, uint64(2), e.CurrentTick())
}

func TestLoopingStage_ConvergesAfterFourTicks(t *testing.T) {
	var polls []int
	counter := looping("count", api.DomainMainLooping, api.HasOutput,
		func(ctx context.Context, in api.Payload) (api.Payload, error) {
			info, _ := api.StageInfoFromContext(ctx)
			polls = append(polls, info.Poll)
			return api.Box(0), nil
		},
		func(ctx context.Context, state api.Payload) (api.Outcome, error) {
			info, _ := api.StageInfoFromContext(ctx)
			polls = append(polls, info.Poll)
			n := api.Unbox[int](state) + 1
			if n == 3 {
				return api.Done(api.Box(n)), nil
			}
			return api.Wait(api.Box(n)), nil
		},
	)

	e := newTestEngine(t, testSettings(), nil)
	register(t, e, "loops", api.WorkflowDefinition{Name: "count", Stages: []api.StageDefinition{counter}})

	p := e.Request("loops", "count", api.HasOutput, api.None)

	for i := 1; i <= 3; i++ {
		e.tickN(t, 1)
		_, done := p.Result()
		require.False(t, done, "finished early on tick %d", i)
		inst, ok := e.Instance("loops", "count")
		require.True(t, ok)
		require.True(t, inst.Initialized)
		require.Equal(t, 0, inst.CurrentStage)
	}

	e.tickN(t, 1)
	c, done := p.Result()
	require.True(t, done)
	require.Equal(t, 3, api.Unbox[int](c.Output))
	require.Equal(t, []int{1, 2, 3, 4}, polls)
}

func TestLoopingStage_AdvancesToNextStage(t *testing.T) {
	var secondRanOn uint64
	counter := looping("count", api.DomainOffThread, api.HasOutput,
		func(ctx context.Context, in api.Payload) (api.Payload, error) { return api.Box(0), nil },
		func(ctx context.Context, state api.Payload) (api.Outcome, error) {
			n := api.Unbox[int](state) + 1
			if n == 2 {
				return api.Done(api.Box(n)), nil
			}
			return api.Wait(api.Box(n)), nil
		},
	)
	after := oneShot("after", api.DomainMain, api.HasInput|api.HasOutput, func(ctx context.Context, in api.Payload) (api.Payload, error) {
		info, _ := api.StageInfoFromContext(ctx)
		secondRanOn = info.Tick
		return api.Box(api.Unbox[int](in) * 10), nil
	})

	e := newTestEngine(t, testSettings(), nil)
	register(t, e, "loops", api.WorkflowDefinition{Name: "two", Stages: []api.StageDefinition{counter, after}})

	p := e.Request("loops", "two", api.HasOutput, api.None)
	c := e.tickUntilDone(t, p)
	require.NoError(t, c.Err)
	require.Equal(t, 20, api.Unbox[int](c.Output))
	require.NotZero(t, secondRanOn)
}

func TestErrorShortCircuit(t *testing.T) {
	errBoom := errors.New("boom")
	var ran []string
	stage := func(name string, err error) api.StageDefinition {
		return oneShot(name, api.DomainMain, api.HasError, func(ctx context.Context, in api.Payload) (api.Payload, error) {
			ran = append(ran, name)
			return api.None, err
		})
	}

	e := newTestEngine(t, testSettings(), nil)
	register(t, e, "m", api.WorkflowDefinition{Name: "w", Stages: []api.StageDefinition{
		stage("s0", nil), stage("s1", errBoom), stage("s2", nil), stage("s3", nil),
	}})

	p := e.Request("m", "w", api.HasError, api.None)
	e.tickN(t, 5)

	c, done := p.Result()
	require.True(t, done)
	require.ErrorIs(t, c.Err, errBoom)
	require.False(t, api.IsFatal(c.Err))

	var stageErr *api.StageError
	require.ErrorAs(t, c.Err, &stageErr)
	require.Equal(t, 1, stageErr.StageIndex)
	require.Equal(t, "s1", stageErr.StageName)

	require.Equal(t, []string{"s0", "s1"}, ran)
	require.Empty(t, e.Instances())
}

func TestStageOrder_StrictlyIncreasing(t *testing.T) {
	rec := &recordingObserver{}
	e := newTestEngine(t, testSettings(), rec)

	stages := []api.StageDefinition{
		noop("a", api.DomainMain),
		noop("b", api.DomainIsolated),
		noop("c", api.DomainOffThread),
		noop("d", api.DomainMain),
	}
	register(t, e, "m", api.WorkflowDefinition{Name: "w", Stages: stages})

	p := e.Request("m", "w", 0, api.None)
	c := e.tickUntilDone(t, p)
	require.NoError(t, c.Err)

	require.Equal(t, []int{0, 1, 2, 3}, rec.dispatchedIndices())
}

func TestStageInfo_DescribesInvocation(t *testing.T) {
	var got api.StageInfo
	stage := oneShot("inspect", api.DomainMain, 0, func(ctx context.Context, in api.Payload) (api.Payload, error) {
		got, _ = api.StageInfoFromContext(ctx)
		return api.None, nil
	})

	e := newTestEngine(t, testSettings(), nil)
	register(t, e, "m", api.WorkflowDefinition{Name: "w", Stages: []api.StageDefinition{noop("first", api.DomainMain), stage}})

	e.Request("m", "w", 0, api.None)
	e.tickN(t, 1)
	inst, ok := e.Instance("m", "w")
	require.True(t, ok)
	e.tickN(t, 1)

	require.Equal(t, api.Key{Module: "m", Name: "w"}, got.Key)
	require.Equal(t, inst.ID, got.InstanceID)
	require.Equal(t, 1, got.StageIndex)
	require.Equal(t, "inspect", got.StageName)
	require.Equal(t, api.DomainMain, got.Domain)
	require.Equal(t, uint64(2), got.Tick)
	require.Equal(t, 1, got.Poll)
}

func TestNoOutputWorkflow_ResolvesWithEmptyPayload(t *testing.T) {
	e := newTestEngine(t, testSettings(), nil)
	// The last stage produces a value but does not declare an output.
	stage := oneShot("s", api.DomainMain, 0, func(ctx context.Context, in api.Payload) (api.Payload, error) {
		return api.Box("leak"), nil
	})
	register(t, e, "m", api.WorkflowDefinition{Name: "w", Stages: []api.StageDefinition{stage}})

	p := e.Request("m", "w", 0, api.None)
	e.tickN(t, 1)
	c, done := p.Result()
	require.True(t, done)
	require.True(t, c.Output.IsEmpty())
}
