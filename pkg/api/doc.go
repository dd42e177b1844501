// Package api contains the erased building blocks of the tickflow engine:
// workflow and stage definitions, payload boxing, request handles, errors,
// lifecycle events and observers.
//
// Most users interact with the higher-level tickflow package, which builds
// typed stages, flows and futures on top of these types and re-exports the
// ones callers need. The api package is meant for engine internals, custom
// observers, and hosts that register hand-built definitions.
//
// # Definitions
//
// A WorkflowDefinition is an ordered list of StageDefinitions identified by
// (Module, Name). Each stage carries a Domain and a Signature bitmask. The
// workflow's signature class is derived from its stages: input from the
// first, output from the last, error from any. Validate checks that adjacent
// stages fit together before anything is registered.
//
// # Payloads
//
// Data moves between stages as a Payload. Box and Unbox convert between a
// concrete value and the erased form; a mismatch panics with a
// TypeBindingError, which the engine treats as a fatal wiring defect.
//
// # Observability
//
// Observer receives admission, dispatch, report and completion callbacks on
// the tick thread. LoggingObserver, BasicMetrics and CompositeObserver cover
// the common cases.
package api
