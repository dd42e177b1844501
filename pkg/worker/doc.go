// Package worker provides the bounded goroutine pool behind the off-thread
// execution domain.
//
// The engine's tick thread hands off-thread stage bodies to a Pool with
// TrySubmit. The pool never blocks the caller: when every slot is busy the
// submission is refused and the engine keeps the work item queued for the
// next tick. Results travel back to the engine through its lifecycle relay,
// not through the pool.
//
// # Lifecycle
//
// A Pool is created once per engine and lives until the engine is closed.
// Stop cancels the context passed to every running body and waits for
// them to return, bounded by the caller's context.
package worker
