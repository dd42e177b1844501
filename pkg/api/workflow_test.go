package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(context.Context, Payload) (Payload, error)   { return None, nil }
func setup(context.Context, Payload) (Payload, error) { return None, nil }
func poll(context.Context, Payload) (Outcome, error)  { return Done(None), nil }

func TestSignature_String(t *testing.T) {
	require.Equal(t, "none", Signature(0).String())
	require.Equal(t, "input|error", (HasInput | HasError).String())
	require.Equal(t, "input|output|error", (HasInput | HasOutput | HasError).String())
}

func TestDomain_Properties(t *testing.T) {
	require.True(t, DomainMainLooping.Looping())
	require.True(t, DomainIsolatedLooping.Looping())
	require.False(t, DomainOffThread.Looping())
	require.True(t, DomainIsolated.Isolated())
	require.False(t, DomainMain.Isolated())
	require.False(t, Domain(9).Valid())
	require.Equal(t, "domain(9)", Domain(9).String())
}

func TestStageDefinition_Validate(t *testing.T) {
	cases := []struct {
		name string
		def  StageDefinition
		ok   bool
	}{
		{"one-shot main", StageDefinition{Name: "a", Domain: DomainMain, Run: run}, true},
		{"looping main-looping", StageDefinition{Name: "a", Domain: DomainMainLooping, Setup: setup, Poll: poll}, true},
		{"looping off-thread", StageDefinition{Name: "a", Domain: DomainOffThread, Setup: setup, Poll: poll}, true},
		{"one-shot off-thread", StageDefinition{Name: "a", Domain: DomainOffThread, Run: run}, true},
		{"missing name", StageDefinition{Domain: DomainMain, Run: run}, false},
		{"nil run", StageDefinition{Name: "a", Domain: DomainMain}, false},
		{"one-shot in looping domain", StageDefinition{Name: "a", Domain: DomainIsolatedLooping, Run: run}, false},
		{"looping in one-shot domain", StageDefinition{Name: "a", Domain: DomainIsolated, Setup: setup, Poll: poll}, false},
		{"half looping", StageDefinition{Name: "a", Domain: DomainMainLooping, Setup: setup}, false},
		{"unknown domain", StageDefinition{Name: "a", Domain: Domain(7), Run: run}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.Validate()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestWorkflowDefinition_Signature(t *testing.T) {
	def := WorkflowDefinition{
		Name: "w",
		Stages: []StageDefinition{
			{Name: "a", Domain: DomainMain, Signature: HasInput | HasOutput, Run: run},
			{Name: "b", Domain: DomainOffThread, Signature: HasInput | HasError, Run: run},
		},
	}
	require.Equal(t, HasInput|HasError, def.Signature())
	require.Equal(t, Signature(0), WorkflowDefinition{}.Signature())
}

func TestWorkflowDefinition_ValidateWiring(t *testing.T) {
	t.Run("output must feed input", func(t *testing.T) {
		def := WorkflowDefinition{Name: "w", Stages: []StageDefinition{
			{Name: "a", Domain: DomainMain, Signature: HasOutput, Run: run},
			{Name: "b", Domain: DomainMain, Run: run},
		}}
		require.ErrorIs(t, def.Validate(), ErrInvalidDefinition)
	})

	t.Run("type tags must agree", func(t *testing.T) {
		def := WorkflowDefinition{Name: "w", Stages: []StageDefinition{
			{Name: "a", Domain: DomainMain, Signature: HasOutput, OutputType: "int", Run: run},
			{Name: "b", Domain: DomainMain, Signature: HasInput, InputType: "string", Run: run},
		}}
		err := def.Validate()
		require.ErrorIs(t, err, ErrInvalidDefinition)
		require.Contains(t, err.Error(), "produces int")
	})

	t.Run("duplicate stage names", func(t *testing.T) {
		def := WorkflowDefinition{Name: "w", Stages: []StageDefinition{
			{Name: "a", Domain: DomainMain, Run: run},
			{Name: "a", Domain: DomainMain, Run: run},
		}}
		require.ErrorIs(t, def.Validate(), ErrInvalidDefinition)
	})

	t.Run("empty", func(t *testing.T) {
		require.ErrorIs(t, WorkflowDefinition{Name: "w"}.Validate(), ErrInvalidDefinition)
	})
}

func TestOutcome(t *testing.T) {
	w := Wait(Box(3))
	require.False(t, w.IsDone())
	require.Equal(t, 3, Unbox[int](w.Value()))

	d := Done(Box("x"))
	require.True(t, d.IsDone())
	require.Equal(t, "x", Unbox[string](d.Value()))
}
