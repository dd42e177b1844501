package api

import "context"

// StageInfo describes the stage invocation currently executing. It is the
// execution context handed to every stage body through its ctx.
type StageInfo struct {
	Key        Key
	InstanceID string
	StageIndex int
	StageName  string
	Domain     Domain

	// Tick is the host tick on which the work item was dispatched.
	Tick uint64

	// Poll counts invocations of this stage for this instance, starting at
	// 1 for the first call (setup, for looping stages).
	Poll int
}

type stageInfoKey struct{}

// WithStageInfo attaches info to ctx.
func WithStageInfo(ctx context.Context, info StageInfo) context.Context {
	return context.WithValue(ctx, stageInfoKey{}, info)
}

// StageInfoFromContext returns the StageInfo attached by the engine, if any.
func StageInfoFromContext(ctx context.Context) (StageInfo, bool) {
	info, ok := ctx.Value(stageInfoKey{}).(StageInfo)
	return info, ok
}
