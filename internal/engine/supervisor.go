package engine

import (
	"context"
	"log/slog"

	"github.com/petrijr/tickflow/pkg/api"
)

// superviseTimeouts charges one tick to every live instance that did not
// advance this tick and force-fails those whose budget ran out.
func (e *engineImpl) superviseTimeouts(ctx context.Context, advanced map[string]struct{}) []error {
	var fatal []error

	for _, inst := range e.instances.live() {
		if _, ok := advanced[inst.id]; ok {
			continue
		}
		inst.timeoutTicks--
		if inst.timeoutTicks > 0 {
			continue
		}

		err := &api.TimeoutError{
			Key:        inst.key,
			InstanceID: inst.id,
			StageIndex: inst.stage,
			StageName:  inst.currentStage().Name,
			Ticks:      inst.budget,
		}
		e.logger.Error("workflow timed out",
			slog.String("workflow", inst.key.String()),
			slog.String("instance_id", inst.id),
			slog.String("stage", err.StageName),
			slog.Int("stage_index", inst.stage),
			slog.Uint64("tick", e.current),
		)
		e.fail(ctx, inst, err, api.EventWorkflowTimeout)
		fatal = append(fatal, err)
	}
	return fatal
}
