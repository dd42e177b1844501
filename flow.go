package tickflow

import (
	"fmt"

	"github.com/petrijr/tickflow/pkg/api"
)

// Flow is a typed workflow under construction. The compiler checks that
// each stage's input type matches the previous stage's output type:
//
//	load := tickflow.NewFlow("load", tickflow.OneShot("resolve", tickflow.DomainMain, resolve))
//	load2 := tickflow.Then(load, tickflow.Fallible("generate", tickflow.DomainOffThread, generate))
//	final := tickflow.Then(load2, tickflow.OneShot("upload", tickflow.DomainIsolated, upload))
//
//	tickflow.NewModule("chunks").Add(final).MustRegister(eng)
//	out, err := tickflow.RunWithInputOutputError[ChunkPos, Mesh](eng, "chunks", "load", pos).Await(ctx)
type Flow[I, O any] struct {
	name   string
	stages []api.StageDefinition
}

// NewFlow starts a workflow with its first stage.
func NewFlow[I, O any](name string, first Stage[I, O]) *Flow[I, O] {
	if name == "" {
		panic("tickflow: workflow name must not be empty")
	}
	return &Flow[I, O]{
		name:   name,
		stages: []api.StageDefinition{first.def},
	}
}

// Then returns a new flow with next appended. f is left unchanged.
func Then[I, M, O any](f *Flow[I, M], next Stage[M, O]) *Flow[I, O] {
	stages := make([]api.StageDefinition, 0, len(f.stages)+1)
	stages = append(stages, f.stages...)
	stages = append(stages, next.def)
	return &Flow[I, O]{name: f.name, stages: stages}
}

// Name returns the workflow name.
func (f *Flow[I, O]) Name() string {
	return f.name
}

// Definition returns the underlying WorkflowDefinition.
// Typically used when interacting with lower-level APIs.
func (f *Flow[I, O]) Definition() WorkflowDefinition {
	return api.WorkflowDefinition{
		Name:   f.name,
		Stages: append([]api.StageDefinition(nil), f.stages...),
	}
}

// Signature returns the request signature class of the workflow.
func (f *Flow[I, O]) Signature() Signature {
	return f.Definition().Signature()
}

// Definer is anything that yields a workflow definition; *Flow and raw
// definitions both qualify.
type Definer interface {
	Definition() WorkflowDefinition
}

// ModuleBuilder collects the workflows a feature module registers at
// startup:
//
//	tickflow.NewModule("player").
//	    Add(spawn).
//	    Add(despawn).
//	    MustRegister(eng)
type ModuleBuilder struct {
	name string
	defs []api.WorkflowDefinition
}

// NewModule creates a builder for the named module.
func NewModule(name string) *ModuleBuilder {
	if name == "" {
		panic("tickflow: module name must not be empty")
	}
	return &ModuleBuilder{name: name}
}

// Name returns the module name.
func (m *ModuleBuilder) Name() string {
	return m.name
}

// Add appends workflows to the module.
func (m *ModuleBuilder) Add(flows ...Definer) *ModuleBuilder {
	for _, f := range flows {
		if f == nil {
			panic(fmt.Sprintf("tickflow: module %q: nil workflow", m.name))
		}
		m.defs = append(m.defs, f.Definition())
	}
	return m
}

// Definitions returns the collected definitions.
func (m *ModuleBuilder) Definitions() []WorkflowDefinition {
	return append([]api.WorkflowDefinition(nil), m.defs...)
}

// Register registers every workflow of the module with the given engine.
func (m *ModuleBuilder) Register(eng Engine) error {
	return eng.RegisterModule(m.name, m.defs...)
}

// MustRegister is like Register but panics on error.
// Useful for initialization in main().
func (m *ModuleBuilder) MustRegister(eng Engine) {
	if err := m.Register(eng); err != nil {
		panic(err)
	}
}
