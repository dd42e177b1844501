package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/tickflow/internal/taskqueue"
	"github.com/petrijr/tickflow/pkg/api"
)

// execute runs one work item in whatever domain the caller is in and
// turns the result into a relay message. It never panics.
func execute(ctx context.Context, task taskqueue.Task) relayMessage {
	st := task.Stage
	stageCtx := api.WithStageInfo(ctx, api.StageInfo{
		Key:        task.Key,
		InstanceID: task.InstanceID,
		StageIndex: task.StageIndex,
		StageName:  st.Name,
		Domain:     st.Domain,
		Tick:       task.Tick,
		Poll:       task.Poll,
	})

	start := time.Now()
	kind, out, err := invoke(stageCtx, task)
	msg := relayMessage{
		Kind:       kind,
		Key:        task.Key,
		InstanceID: task.InstanceID,
		StageIndex: task.StageIndex,
		Stage:      st,
		Payload:    out,
		Duration:   time.Since(start),
	}
	if kind == relayFailure {
		msg.Payload = api.None
		msg.Err = checkDeclaredError(st, err)
	}
	return msg
}

func invoke(ctx context.Context, task taskqueue.Task) (kind relayKind, out api.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			kind, out, err = relayFailure, api.None, recovered(r)
		}
	}()

	st := task.Stage
	switch task.Phase {
	case taskqueue.PhaseRun:
		out, err = st.Run(ctx, task.Payload)
		if err != nil {
			return relayFailure, api.None, err
		}
		return relayCompletion, out, nil

	case taskqueue.PhaseSetup:
		out, err = st.Setup(ctx, task.Payload)
		if err != nil {
			return relayFailure, api.None, err
		}
		return relaySetupDone, out, nil

	case taskqueue.PhasePoll:
		var outcome api.Outcome
		outcome, err = st.Poll(ctx, task.Payload)
		if err != nil {
			return relayFailure, api.None, err
		}
		if outcome.IsDone() {
			return relayCompletion, outcome.Value(), nil
		}
		return relayWait, outcome.Value(), nil

	default:
		return relayFailure, api.None, fmt.Errorf("%w: unknown phase %s", api.ErrInvalidDefinition, task.Phase)
	}
}

// recovered maps a panic value to an error. Type-binding panics keep their
// identity so the driver can treat them as fatal.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		var tb *api.TypeBindingError
		if errors.As(err, &tb) {
			return err
		}
	}
	return &api.StagePanicError{Value: r}
}

// checkDeclaredError flags errors returned by stages that declare none.
func checkDeclaredError(st *api.StageDefinition, err error) error {
	if st.Signature.Has(api.HasError) {
		return err
	}
	var tb *api.TypeBindingError
	var sp *api.StagePanicError
	if errors.As(err, &tb) || errors.As(err, &sp) {
		return err
	}
	return fmt.Errorf("%w: %w", api.ErrSignatureViolation, err)
}
