package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/petrijr/tickflow/internal/taskqueue"
	"github.com/petrijr/tickflow/pkg/api"
)

// Tick runs one host tick: retry arbitration, intake, dispatch, domain
// execution, relay consumption with state advancement, and timeout
// supervision, in that order.
func (e *engineImpl) Tick(ctx context.Context) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	if e.closed.Load() {
		return api.ErrEngineClosed
	}

	e.current = e.tick.Load() + 1
	advanced := make(map[string]struct{})

	e.mu.Lock()
	e.arbitrateRetries(ctx, advanced)
	e.intakeRequests(ctx, advanced)
	e.dispatch(ctx)
	e.mu.Unlock()

	// Stage bodies run without holding mu so they may inspect the engine.
	e.runMain(ctx)
	e.extractIsolated(ctx)
	e.spawnOffThread()

	e.mu.Lock()
	fatal := e.consumeRelay(ctx, advanced)
	fatal = append(fatal, e.superviseTimeouts(ctx, advanced)...)
	e.mu.Unlock()

	e.tick.Store(e.current)

	if len(fatal) > 0 {
		e.logger.Error("fatal engine error",
			slog.Uint64("tick", e.current),
			slog.Int("count", len(fatal)),
		)
		return errors.Join(fatal...)
	}
	return nil
}

// TickIsolated runs the work copied into the isolated domain at the last
// extraction boundary. Results stay buffered until the next boundary.
func (e *engineImpl) TickIsolated(ctx context.Context) error {
	if e.closed.Load() {
		return api.ErrEngineClosed
	}
	work := e.isolated.take()
	if len(work) == 0 {
		return nil
	}
	msgs := make([]relayMessage, 0, len(work))
	for _, task := range work {
		msgs = append(msgs, execute(ctx, task))
	}
	e.isolated.publish(msgs...)
	return nil
}

// dispatch queues the current stage of every instance that has nothing
// in flight. At most one work item per instance exists at any time.
func (e *engineImpl) dispatch(ctx context.Context) {
	for _, inst := range e.instances.live() {
		if inst.inFlight {
			continue
		}
		if inst.status() == api.StatusRequested {
			e.transition(inst, triggerDispatch)
		}

		st := inst.currentStage()
		phase := taskqueue.PhaseRun
		if st.Looping() {
			phase = taskqueue.PhaseSetup
			if inst.initialized {
				phase = taskqueue.PhasePoll
			}
		}

		inst.polls++
		task := taskqueue.Task{
			Key:        inst.key,
			InstanceID: inst.id,
			StageIndex: inst.stage,
			Stage:      st,
			Phase:      phase,
			Payload:    inst.buffer,
			Poll:       inst.polls,
			Tick:       e.current,
		}
		inst.buffer = api.None
		inst.inFlight = true

		e.queues.For(st.Domain).Enqueue(task)

		e.observer.OnStageDispatched(ctx, inst.snapshot(), st.Name, inst.stage, st.Domain)
		e.recordInstance(ctx, inst, api.EventStageDispatched, st.Domain.String()+"/"+phase.String())
	}
}

func (e *engineImpl) runMain(ctx context.Context) {
	for _, d := range []api.Domain{api.DomainMain, api.DomainMainLooping} {
		for _, task := range e.queues.For(d).Drain() {
			e.relay.Send(execute(ctx, task))
		}
	}
}

// extractIsolated is the extraction boundary of the isolated domain.
func (e *engineImpl) extractIsolated(ctx context.Context) {
	var work []taskqueue.Task
	for _, d := range []api.Domain{api.DomainIsolated, api.DomainIsolatedLooping} {
		work = append(work, e.queues.For(d).Drain()...)
	}

	for _, msg := range e.isolated.exchange(work) {
		e.relay.Send(msg)
	}

	if !e.settings.ExternalIsolatedHost {
		// Only fails once closed, which Tick already checked.
		_ = e.TickIsolated(ctx)
	}
}

// spawnOffThread hands off-thread work to the pool. Work the pool cannot
// take this tick goes back to the head of the queue.
func (e *engineImpl) spawnOffThread() {
	q := e.queues.For(api.DomainOffThread)
	tasks := q.Drain()
	for i, task := range tasks {
		ok := e.pool.TrySubmit(func(ctx context.Context) {
			e.relay.Send(execute(ctx, task))
		})
		if !ok {
			q.Requeue(tasks[i:]...)
			e.logger.Debug("off-thread pool saturated",
				slog.Int("deferred", len(tasks)-i),
				slog.Int("active", e.pool.Active()),
			)
			return
		}
	}
}

// consumeRelay applies every delivered stage result to its instance and
// returns the fatal errors among them.
func (e *engineImpl) consumeRelay(ctx context.Context, advanced map[string]struct{}) []error {
	var fatal []error

	for _, msg := range e.relay.Drain() {
		inst, ok := e.instances.get(msg.Key)
		if !ok || inst.id != msg.InstanceID || inst.stage != msg.StageIndex || !inst.inFlight {
			e.logger.Warn("discarding stale relay message",
				slog.String("workflow", msg.Key.String()),
				slog.String("instance_id", msg.InstanceID),
				slog.Int("stage_index", msg.StageIndex),
				slog.String("result", string(msg.Kind.result())),
			)
			continue
		}
		inst.inFlight = false

		e.observer.OnStageReported(ctx, inst.snapshot(), msg.Stage.Name, msg.StageIndex, msg.Kind.result(), msg.Err, msg.Duration)

		switch msg.Kind {
		case relaySetupDone, relayWait:
			// Both mean "not finished, keep this state and poll again".
			inst.buffer = msg.Payload
			inst.initialized = true
			e.recordInstance(ctx, inst, api.EventStageWaiting, string(msg.Kind.result()))

		case relayCompletion:
			e.recordInstance(ctx, inst, api.EventStageCompleted, "")
			if inst.stage+1 == len(inst.def.Stages) {
				e.complete(ctx, inst, msg.Payload)
				continue
			}
			e.advance(inst, msg.Payload)
			advanced[inst.id] = struct{}{}

		case relayFailure:
			stageErr := &api.StageError{
				Key:        inst.key,
				InstanceID: inst.id,
				StageIndex: inst.stage,
				StageName:  msg.Stage.Name,
				Err:        msg.Err,
			}
			e.recordInstance(ctx, inst, api.EventStageFailed, msg.Err.Error())
			e.fail(ctx, inst, stageErr, api.EventWorkflowFailed)
			if api.IsFatal(stageErr) {
				fatal = append(fatal, stageErr)
			}
		}
	}
	return fatal
}

func (e *engineImpl) advance(inst *instance, out api.Payload) {
	inst.stage++
	inst.initialized = false
	inst.polls = 0
	inst.buffer = out
	inst.timeoutTicks = inst.budget
	e.transition(inst, triggerAdvance)
}

func (e *engineImpl) complete(ctx context.Context, inst *instance, out api.Payload) {
	if !inst.def.Signature().Has(api.HasOutput) {
		out = api.None
	}
	e.transition(inst, triggerComplete)
	e.instances.remove(inst)
	inst.pending.Resolve(api.Completion{Output: out})

	e.observer.OnWorkflowCompleted(ctx, inst.snapshot())
	e.recordInstance(ctx, inst, api.EventWorkflowCompleted, "")
}

// fail removes inst and resolves its request with err.
func (e *engineImpl) fail(ctx context.Context, inst *instance, err error, typ api.EventType) {
	e.transition(inst, triggerFail)
	e.instances.remove(inst)
	inst.pending.Resolve(api.Completion{Err: err})

	snap := inst.snapshot()
	snap.Err = err
	e.observer.OnWorkflowFailed(ctx, snap, err)
	e.recordInstance(ctx, inst, typ, err.Error())
}

func (e *engineImpl) transition(inst *instance, t trigger) {
	if err := inst.fire(t); err != nil {
		e.logger.Error("instance state transition rejected",
			slog.String("workflow", inst.key.String()),
			slog.String("instance_id", inst.id),
			slog.String("trigger", string(t)),
			slog.Any("error", err),
		)
	}
}
