package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/petrijr/tickflow/pkg/api"
)

// request is an accepted call to Request that has not become an instance yet.
type request struct {
	key     api.Key
	def     *api.WorkflowDefinition
	input   api.Payload
	pending *api.Pending
}

// retryRecord is a duplicate request waiting for its key to become free.
type retryRecord struct {
	req      *request
	attempts int
}

// Request validates the call against the registry and queues it for the
// next tick's intake. Unknown workflows, signature mismatches and input
// payloads of the wrong type are programmer errors and panic.
func (e *engineImpl) Request(module, name string, class api.Signature, input api.Payload) *api.Pending {
	key := api.Key{Module: module, Name: name}
	def := e.registry.MustGet(key)

	if sig := def.Signature(); sig != class {
		panic(fmt.Errorf("%w: %s has signature %s, requested as %s", api.ErrSignatureMismatch, key, sig, class))
	}
	if !class.Has(api.HasInput) && !input.IsEmpty() {
		panic(fmt.Errorf("%w: %s takes no input, got %s", api.ErrSignatureMismatch, key, input.Tag()))
	}
	if class.Has(api.HasInput) {
		if input.IsEmpty() {
			panic(fmt.Errorf("%w: %s requires input", api.ErrSignatureMismatch, key))
		}
		if want := def.Stages[0].InputType; want != "" && want != input.Tag() {
			panic(fmt.Errorf("%w: %s takes %s, got %s", api.ErrSignatureMismatch, key, want, input.Tag()))
		}
	}

	pending := api.NewPending(key)

	e.intakeMu.Lock()
	if e.closed.Load() {
		e.intakeMu.Unlock()
		pending.Resolve(api.Completion{Err: api.ErrEngineClosed})
		return pending
	}
	e.intake = append(e.intake, &request{
		key:     key,
		def:     def,
		input:   input,
		pending: pending,
	})
	e.intakeMu.Unlock()

	e.record(context.Background(), api.WorkflowEvent{
		InstanceID: pending.RequestID,
		Tick:       e.tick.Load(),
		Type:       api.EventWorkflowRequested,
		Module:     module,
		Workflow:   name,
		Stage:      -1,
	})
	return pending
}

// arbitrateRetries runs before intake so older duplicates win over newer
// requests for the same key.
func (e *engineImpl) arbitrateRetries(ctx context.Context, advanced map[string]struct{}) {
	if len(e.retries) == 0 {
		return
	}

	kept := e.retries[:0]
	for _, rec := range e.retries {
		if !e.instances.busy(rec.req.key) {
			inst := e.admit(ctx, rec.req)
			advanced[inst.id] = struct{}{}
			continue
		}

		rec.attempts++
		if rec.attempts >= e.settings.MaxAdmissionRetries {
			e.reject(ctx, rec.req, rec.attempts)
			continue
		}
		kept = append(kept, rec)
	}
	clear(e.retries[len(kept):])
	e.retries = kept
}

// intakeRequests admits every queued request whose key is free and parks
// the rest in the retry queue, in arrival order.
func (e *engineImpl) intakeRequests(ctx context.Context, advanced map[string]struct{}) {
	e.intakeMu.Lock()
	reqs := e.intake
	e.intake = nil
	e.intakeMu.Unlock()

	for _, req := range reqs {
		if !e.instances.busy(req.key) {
			inst := e.admit(ctx, req)
			advanced[inst.id] = struct{}{}
			continue
		}

		if e.settings.MaxAdmissionRetries == 0 {
			e.reject(ctx, req, 0)
			continue
		}

		e.retries = append(e.retries, &retryRecord{req: req})
		e.record(ctx, api.WorkflowEvent{
			InstanceID: req.pending.RequestID,
			Tick:       e.current,
			Type:       api.EventWorkflowDeferred,
			Module:     req.key.Module,
			Workflow:   req.key.Name,
			Stage:      -1,
		})
		e.logger.Debug("request deferred",
			slog.String("workflow", req.key.String()),
			slog.String("request_id", req.pending.RequestID),
		)
	}
}

func (e *engineImpl) admit(ctx context.Context, req *request) *instance {
	budget := len(req.def.Stages) * e.settings.TicksPerStage
	inst := newInstance(req, budget, e.current)
	e.instances.insert(inst)

	e.observer.OnWorkflowAdmitted(ctx, inst.snapshot())
	e.recordInstance(ctx, inst, api.EventWorkflowAdmitted, "request_id="+req.pending.RequestID)
	return inst
}

func (e *engineImpl) reject(ctx context.Context, req *request, attempts int) {
	err := &api.AdmissionError{Key: req.key, Attempts: attempts}
	req.pending.Resolve(api.Completion{Err: err})

	e.observer.OnAdmissionRejected(ctx, req.key, attempts, err)
	e.record(ctx, api.WorkflowEvent{
		InstanceID: req.pending.RequestID,
		Tick:       e.current,
		Type:       api.EventWorkflowRejected,
		Module:     req.key.Module,
		Workflow:   req.key.Name,
		Stage:      -1,
		Detail:     err.Error(),
	})
}
