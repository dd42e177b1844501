package api

import (
	"context"
	"fmt"
	"strings"
)

// Domain identifies the scheduling context a stage is permitted to run in.
type Domain uint8

const (
	// DomainMain runs one-shot stages synchronously on the tick thread.
	DomainMain Domain = iota
	// DomainMainLooping runs setup/poll stages on the tick thread.
	DomainMainLooping
	// DomainIsolated runs one-shot stages in the isolated synchronous
	// context, reachable once per host tick at the extraction boundary.
	DomainIsolated
	// DomainIsolatedLooping runs setup/poll stages in the isolated context.
	DomainIsolatedLooping
	// DomainOffThread runs stages on the background worker pool.
	DomainOffThread
)

// Domains lists every execution domain in queue-drain order.
var Domains = []Domain{
	DomainMain,
	DomainMainLooping,
	DomainIsolated,
	DomainIsolatedLooping,
	DomainOffThread,
}

func (d Domain) String() string {
	switch d {
	case DomainMain:
		return "main"
	case DomainMainLooping:
		return "main-looping"
	case DomainIsolated:
		return "isolated"
	case DomainIsolatedLooping:
		return "isolated-looping"
	case DomainOffThread:
		return "off-thread"
	default:
		return fmt.Sprintf("domain(%d)", uint8(d))
	}
}

// Valid reports whether d is one of the declared domains.
func (d Domain) Valid() bool {
	return d <= DomainOffThread
}

// Looping reports whether the domain tag itself demands setup/poll stages.
// Off-thread stages may be either kind; see StageDefinition.Looping.
func (d Domain) Looping() bool {
	return d == DomainMainLooping || d == DomainIsolatedLooping
}

// Isolated reports whether the domain is the isolated synchronous context.
func (d Domain) Isolated() bool {
	return d == DomainIsolated || d == DomainIsolatedLooping
}

// Signature is a bitmask describing which of Input, Output and Error a
// stage or workflow carries. The eight values of the mask are the eight
// signature classes of the request API.
type Signature uint8

const (
	HasInput Signature = 1 << iota
	HasOutput
	HasError
)

// Has reports whether every bit of flag is set in s.
func (s Signature) Has(flag Signature) bool {
	return s&flag == flag
}

func (s Signature) String() string {
	var parts []string
	if s.Has(HasInput) {
		parts = append(parts, "input")
	}
	if s.Has(HasOutput) {
		parts = append(parts, "output")
	}
	if s.Has(HasError) {
		parts = append(parts, "error")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Key identifies a workflow by owning module and name.
type Key struct {
	Module string
	Name   string
}

func (k Key) String() string {
	return k.Module + "/" + k.Name
}

// RunFunc is the erased body of a one-shot stage.
type RunFunc func(ctx context.Context, in Payload) (Payload, error)

// SetupFunc is the erased first half of a looping stage. It turns the
// stage input into the initial loop state.
type SetupFunc func(ctx context.Context, in Payload) (Payload, error)

// PollFunc is the erased body of a looping stage, invoked once per poll
// with the current loop state.
type PollFunc func(ctx context.Context, state Payload) (Outcome, error)

// Outcome is the Wait/Done discriminator returned by a looping stage.
type Outcome struct {
	done  bool
	value Payload
}

// Wait keeps the stage looping with the given state.
func Wait(state Payload) Outcome {
	return Outcome{value: state}
}

// Done finishes the stage with the given output.
func Done(out Payload) Outcome {
	return Outcome{done: true, value: out}
}

// IsDone reports whether the stage finished.
func (o Outcome) IsDone() bool { return o.done }

// Value returns the loop state (Wait) or the stage output (Done).
func (o Outcome) Value() Payload { return o.value }

// StageDefinition describes one stage of a workflow.
//
// One-shot stages set Run. Looping stages set Setup and Poll. Stages in the
// looping domains must be looping; stages in the one-shot domains must be
// one-shot; off-thread stages may be either.
type StageDefinition struct {
	Name      string
	Domain    Domain
	Signature Signature

	Run   RunFunc
	Setup SetupFunc
	Poll  PollFunc

	// InputType and OutputType are type tags (see TypeTag). Empty means
	// "not declared". Registration compares them across stage boundaries
	// and Request checks the caller's payload types against them.
	InputType  string
	OutputType string
}

// Looping reports whether the stage runs as setup + repeated polls.
func (s StageDefinition) Looping() bool {
	return s.Setup != nil || s.Poll != nil
}

// Validate checks the stage in isolation.
func (s StageDefinition) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: stage name is required", ErrInvalidDefinition)
	}
	if !s.Domain.Valid() {
		return fmt.Errorf("%w: stage %q has unknown domain %s", ErrInvalidDefinition, s.Name, s.Domain)
	}
	if s.Signature > HasInput|HasOutput|HasError {
		return fmt.Errorf("%w: stage %q has invalid signature %d", ErrInvalidDefinition, s.Name, s.Signature)
	}

	if s.Looping() {
		if s.Setup == nil || s.Poll == nil {
			return fmt.Errorf("%w: looping stage %q needs both setup and poll", ErrInvalidDefinition, s.Name)
		}
		if s.Run != nil {
			return fmt.Errorf("%w: looping stage %q must not set run", ErrInvalidDefinition, s.Name)
		}
		if s.Domain == DomainMain || s.Domain == DomainIsolated {
			return fmt.Errorf("%w: looping stage %q declared in one-shot domain %s", ErrInvalidDefinition, s.Name, s.Domain)
		}
		return nil
	}

	if s.Run == nil {
		return fmt.Errorf("%w: stage %q has nil run function", ErrInvalidDefinition, s.Name)
	}
	if s.Domain.Looping() {
		return fmt.Errorf("%w: one-shot stage %q declared in looping domain %s", ErrInvalidDefinition, s.Name, s.Domain)
	}
	return nil
}

// WorkflowDefinition describes a workflow as an ordered list of stages.
// Identity is (Module, Name). Definitions are immutable once registered.
type WorkflowDefinition struct {
	Module string
	Name   string
	Stages []StageDefinition
}

// Key returns the (module, name) identity of the definition.
func (d WorkflowDefinition) Key() Key {
	return Key{Module: d.Module, Name: d.Name}
}

// Definition returns d itself, so raw definitions can be passed wherever
// a typed flow is accepted.
func (d WorkflowDefinition) Definition() WorkflowDefinition {
	return d
}

// Signature derives the workflow-level signature class: input from the
// first stage, output from the last stage, error from any stage.
func (d WorkflowDefinition) Signature() Signature {
	if len(d.Stages) == 0 {
		return 0
	}
	var sig Signature
	if d.Stages[0].Signature.Has(HasInput) {
		sig |= HasInput
	}
	if d.Stages[len(d.Stages)-1].Signature.Has(HasOutput) {
		sig |= HasOutput
	}
	for _, st := range d.Stages {
		if st.Signature.Has(HasError) {
			sig |= HasError
			break
		}
	}
	return sig
}

// Validate checks the definition and the wiring between adjacent stages:
// stage k carries an input exactly when stage k-1 carries an output, and
// declared type tags must agree across every boundary.
func (d WorkflowDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: workflow name is required", ErrInvalidDefinition)
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("%w: workflow %q must have at least one stage", ErrInvalidDefinition, d.Name)
	}

	seen := make(map[string]struct{}, len(d.Stages))
	for i, st := range d.Stages {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("workflow %q stage %d: %w", d.Name, i, err)
		}
		if _, dup := seen[st.Name]; dup {
			return fmt.Errorf("%w: workflow %q has duplicate stage name %q", ErrInvalidDefinition, d.Name, st.Name)
		}
		seen[st.Name] = struct{}{}

		if i == 0 {
			continue
		}
		prev := d.Stages[i-1]
		if prev.Signature.Has(HasOutput) != st.Signature.Has(HasInput) {
			return fmt.Errorf("%w: workflow %q: stage %q output (%v) does not feed stage %q input (%v)",
				ErrInvalidDefinition, d.Name, prev.Name, prev.Signature.Has(HasOutput), st.Name, st.Signature.Has(HasInput))
		}
		if prev.OutputType != "" && st.InputType != "" && prev.OutputType != st.InputType {
			return fmt.Errorf("%w: workflow %q: stage %q produces %s but stage %q expects %s",
				ErrInvalidDefinition, d.Name, prev.Name, prev.OutputType, st.Name, st.InputType)
		}
	}
	return nil
}
