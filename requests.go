package tickflow

import (
	"context"
	"fmt"

	"github.com/petrijr/tickflow/pkg/api"
)

// Future is the typed, single-resolution result of a request. It is
// resolved by the engine's tick, never by the caller.
type Future[O any] struct {
	pending *api.Pending
}

func newFuture[O any](p *api.Pending) *Future[O] {
	return &Future[O]{pending: p}
}

// RequestID labels the request in logs and history. Requests are still
// matched to instances by (module, name).
func (f *Future[O]) RequestID() string {
	return f.pending.RequestID
}

// Done is closed once the future resolves.
func (f *Future[O]) Done() <-chan struct{} {
	return f.pending.Done()
}

// Await blocks until the workflow finishes or ctx is done. Abandoning the
// wait does not cancel the workflow.
func (f *Future[O]) Await(ctx context.Context) (O, error) {
	c, err := f.pending.Wait(ctx)
	if err != nil {
		var zero O
		return zero, err
	}
	return result[O](c)
}

// Poll is the non-blocking form of Await. ok is false while the workflow
// is still in flight.
func (f *Future[O]) Poll() (out O, ok bool, err error) {
	c, ok := f.pending.Result()
	if !ok {
		return out, false, nil
	}
	out, err = result[O](c)
	return out, true, err
}

func result[O any](c api.Completion) (O, error) {
	var zero O
	if c.Err != nil {
		return zero, c.Err
	}
	if isNone[O]() {
		return zero, nil
	}
	return api.TryUnbox[O](c.Output)
}

func request[O any](eng Engine, module, name string, class Signature, input api.Payload) *Future[O] {
	if !isNone[O]() {
		def := eng.Lookup(module, name)
		if want, got := def.Stages[len(def.Stages)-1].OutputType, api.TypeTag[O](); want != "" && want != got {
			panic(fmt.Errorf("%w: %s produces %s, requested as %s", api.ErrSignatureMismatch, def.Key(), want, got))
		}
	}
	return newFuture[O](eng.Request(module, name, class, input))
}

// The eight entry points below differ only in signature class. Calling one
// whose class or payload types do not match the registered workflow panics
// with ErrSignatureMismatch.

// Run requests a workflow without input, output or error.
func Run(eng Engine, module, name string) *Future[None] {
	return request[None](eng, module, name, 0, api.None)
}

// RunWithInput requests a workflow that only takes input.
func RunWithInput[I any](eng Engine, module, name string, in I) *Future[None] {
	return request[None](eng, module, name, HasInput, api.Box(in))
}

// RunWithOutput requests a workflow that only produces output.
func RunWithOutput[O any](eng Engine, module, name string) *Future[O] {
	return request[O](eng, module, name, HasOutput, api.None)
}

// RunWithInputOutput requests a workflow with input and output.
func RunWithInputOutput[I, O any](eng Engine, module, name string, in I) *Future[O] {
	return request[O](eng, module, name, HasInput|HasOutput, api.Box(in))
}

// RunWithError requests a workflow whose stages may fail.
func RunWithError(eng Engine, module, name string) *Future[None] {
	return request[None](eng, module, name, HasError, api.None)
}

// RunWithInputError requests a fallible workflow that takes input.
func RunWithInputError[I any](eng Engine, module, name string, in I) *Future[None] {
	return request[None](eng, module, name, HasInput|HasError, api.Box(in))
}

// RunWithOutputError requests a fallible workflow that produces output.
func RunWithOutputError[O any](eng Engine, module, name string) *Future[O] {
	return request[O](eng, module, name, HasOutput|HasError, api.None)
}

// RunWithInputOutputError requests a fallible workflow with input and output.
func RunWithInputOutputError[I, O any](eng Engine, module, name string, in I) *Future[O] {
	return request[O](eng, module, name, HasInput|HasOutput|HasError, api.Box(in))
}
