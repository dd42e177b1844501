package tickflow

import (
	"context"
	"fmt"
	"reflect"

	"github.com/petrijr/tickflow/pkg/api"
)

// None marks an absent input or output in a stage or request signature:
// Stage[None, int] takes nothing and produces an int.
type None = struct{}

// Stage is a typed stage ready to be chained into a Flow. I and O are the
// stage's input and output types.
type Stage[I, O any] struct {
	def api.StageDefinition
}

// Name returns the stage name.
func (s Stage[I, O]) Name() string { return s.def.Name }

// Definition returns the erased stage definition.
func (s Stage[I, O]) Definition() StageDefinition { return s.def }

func isNone[T any]() bool {
	return reflect.TypeFor[T]() == reflect.TypeFor[None]()
}

func signatureOf[I, O any](fallible bool) api.Signature {
	var sig api.Signature
	if !isNone[I]() {
		sig |= api.HasInput
	}
	if !isNone[O]() {
		sig |= api.HasOutput
	}
	if fallible {
		sig |= api.HasError
	}
	return sig
}

func unboxInput[I any](p api.Payload) I {
	var zero I
	if isNone[I]() {
		return zero
	}
	return api.Unbox[I](p)
}

func boxOutput[O any](v O) api.Payload {
	if isNone[O]() {
		return api.None
	}
	return api.Box(v)
}

func newStage[I, O any](name string, domain Domain, fallible bool) api.StageDefinition {
	if name == "" {
		panic("tickflow: stage name must not be empty")
	}
	def := api.StageDefinition{
		Name:      name,
		Domain:    domain,
		Signature: signatureOf[I, O](fallible),
	}
	if !isNone[I]() {
		def.InputType = api.TypeTag[I]()
	}
	if !isNone[O]() {
		def.OutputType = api.TypeTag[O]()
	}
	return def
}

// OneShot creates a stage that runs fn once and cannot fail.
func OneShot[I, O any](name string, domain Domain, fn func(ctx context.Context, in I) O) Stage[I, O] {
	if fn == nil {
		panic(fmt.Sprintf("tickflow: stage %q has nil function", name))
	}
	def := newStage[I, O](name, domain, false)
	def.Run = func(ctx context.Context, in api.Payload) (api.Payload, error) {
		return boxOutput(fn(ctx, unboxInput[I](in))), nil
	}
	return Stage[I, O]{def: def}
}

// Fallible creates a one-shot stage whose error ends the workflow.
func Fallible[I, O any](name string, domain Domain, fn func(ctx context.Context, in I) (O, error)) Stage[I, O] {
	if fn == nil {
		panic(fmt.Sprintf("tickflow: stage %q has nil function", name))
	}
	def := newStage[I, O](name, domain, true)
	def.Run = func(ctx context.Context, in api.Payload) (api.Payload, error) {
		out, err := fn(ctx, unboxInput[I](in))
		if err != nil {
			return api.None, err
		}
		return boxOutput(out), nil
	}
	return Stage[I, O]{def: def}
}

// Looping creates a stage that turns its input into loop state S once and
// then polls once per dispatch until poll reports done. While not done the
// returned state replaces the old one and out is ignored.
func Looping[I, S, O any](
	name string,
	domain Domain,
	setup func(ctx context.Context, in I) S,
	poll func(ctx context.Context, state S) (next S, out O, done bool),
) Stage[I, O] {
	if setup == nil || poll == nil {
		panic(fmt.Sprintf("tickflow: looping stage %q needs setup and poll", name))
	}
	def := newStage[I, O](name, domain, false)
	def.Setup = func(ctx context.Context, in api.Payload) (api.Payload, error) {
		return api.Box(setup(ctx, unboxInput[I](in))), nil
	}
	def.Poll = func(ctx context.Context, state api.Payload) (api.Outcome, error) {
		next, out, done := poll(ctx, api.Unbox[S](state))
		if done {
			return api.Done(boxOutput(out)), nil
		}
		return api.Wait(api.Box(next)), nil
	}
	return Stage[I, O]{def: def}
}

// FallibleLooping is Looping with errors from setup and poll.
func FallibleLooping[I, S, O any](
	name string,
	domain Domain,
	setup func(ctx context.Context, in I) (S, error),
	poll func(ctx context.Context, state S) (next S, out O, done bool, err error),
) Stage[I, O] {
	if setup == nil || poll == nil {
		panic(fmt.Sprintf("tickflow: looping stage %q needs setup and poll", name))
	}
	def := newStage[I, O](name, domain, true)
	def.Setup = func(ctx context.Context, in api.Payload) (api.Payload, error) {
		state, err := setup(ctx, unboxInput[I](in))
		if err != nil {
			return api.None, err
		}
		return api.Box(state), nil
	}
	def.Poll = func(ctx context.Context, state api.Payload) (api.Outcome, error) {
		next, out, done, err := poll(ctx, api.Unbox[S](state))
		if err != nil {
			return api.Outcome{}, err
		}
		if done {
			return api.Done(boxOutput(out)), nil
		}
		return api.Wait(api.Box(next)), nil
	}
	return Stage[I, O]{def: def}
}
