// Package tickflow provides a tick-driven workflow engine for Go programs
// that already have a frame loop: games, simulations, and hosts that must
// keep some work on one thread.
//
// A workflow is a fixed sequence of stages. Each stage declares the
// execution domain it may run in, and the engine moves work between
// domains once per host tick. Nothing is persisted beyond an optional
// lifecycle history; workflows live as long as the process.
//
// # Core Concepts
//
// The programming model is small:
//
//  1. Engine
//  2. Stage
//  3. Flow and ModuleBuilder
//  4. Future
//  5. HostLoop
//
// # Engine
//
// The Engine holds the registered workflows and their live instances. The
// host calls Tick once per frame. Each tick:
//
//   - resolves or re-queues duplicate requests waiting for their key
//   - admits new requests
//   - dispatches the current stage of every idle instance to its domain
//   - runs main-thread work, hands isolated work over at the extraction
//     boundary, and submits off-thread work to the worker pool
//   - consumes reported results and advances, completes or fails instances
//   - force-fails instances that stopped making progress
//
// At most one instance of a given (module, name) pair is live at a time. A
// second request for the same workflow waits, one attempt per tick, until
// the first finishes or Config.MaxAdmissionRetries runs out.
//
// Tick returns an error only for structural failures: a payload type
// mismatch, a stage returning an error it never declared, or a timeout.
// Ordinary stage errors resolve the request's future and nothing else.
//
// History can be kept in memory, in SQLite, or in Redis:
//
//	eng, _ := tickflow.NewSQLiteEngine(cfg, db)
//	events, _ := eng.History(ctx, inst.ID)
//
// # Stage
//
// A Stage is a typed unit of work bound to a Domain:
//
//   - DomainMain and DomainIsolated run one-shot stages
//   - DomainMainLooping and DomainIsolatedLooping run setup/poll stages
//   - DomainOffThread runs either kind on a bounded goroutine pool
//
// One-shot stages are built with OneShot or Fallible. Looping stages are
// built with Looping or FallibleLooping: setup runs once, then poll runs once
// per tick until it reports done. Use None for an absent input or output.
//
// Stage bodies receive a context carrying StageInfo:
//
//	info, _ := tickflow.StageInfoFromContext(ctx)
//
// # Flow and ModuleBuilder
//
// NewFlow and Then chain stages. The compiler checks that each stage's
// input is the previous stage's output:
//
//	f := tickflow.NewFlow("spawn", tickflow.OneShot("pick", tickflow.DomainMain, pick))
//	g := tickflow.Then(f, tickflow.Fallible("load", tickflow.DomainOffThread, load))
//
//	tickflow.NewModule("player").Add(g).MustRegister(eng)
//
// Registration happens at startup; the set of workflows is fixed afterwards.
//
// # Future
//
// Requests are made through one of eight entry points, one per signature
// class: Run, RunWithInput, RunWithOutput, RunWithInputOutput, and their
// WithError variants. Each returns a Future that the engine resolves
// exactly once:
//
//	fut := tickflow.RunWithInputOutputError[string, int](eng, "player", "spawn", "alice")
//	id, err := fut.Await(ctx)
//
// Calling an entry point whose class does not match the registered
// workflow panics.
//
// # HostLoop
//
// HostLoop drives an Engine from a time.Ticker for programs without a frame
// loop of their own, and for tests. NewEngineFromConfig builds an Engine, its
// history backend and a HostLoop from a Config loaded with LoadConfig.
package tickflow
