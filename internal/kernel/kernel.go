// Package kernel defines the uniform interface every language runtime
// implements (spec.md §4.3): start/stop, status reporting, execute/evaluate,
// variable inspection, forking, and signal delivery. Concrete runtimes live
// in the jsruntime, sidecar, and jupyter subpackages; this package owns the
// interface, the status state machine, and a registry that multiplexes
// execution across running kernel instances.
package kernel

import (
	"context"

	"github.com/stencila-go/docengine/internal/message"
	"github.com/stencila-go/docengine/internal/schema"
)

// Signal is delivered to a running kernel on its signal channel.
type Signal int

const (
	Interrupt Signal = iota
	Terminate
	Kill
)

func (s Signal) String() string {
	switch s {
	case Interrupt:
		return "Interrupt"
	case Terminate:
		return "Terminate"
	case Kill:
		return "Kill"
	default:
		return "Unknown"
	}
}

// ExecResult is the output of execute/evaluate: zero or more values
// (outputs) plus zero or more structured log records (messages). An
// output is always a schema node: either the schema type named by a
// value's own "type" property, or one of the Primitive node types
// (Null/Boolean/Integer/Number/String/Array/Object) spec.md §4.3.2
// assigns to everything else.
type ExecResult struct {
	Outputs  []schema.Node
	Messages []message.ExecutionMessage
}

// Info describes a running kernel's runtime identity.
type Info struct {
	Name                string
	ProgrammingLanguage string
	LanguageVersion     string
	KernelVersion       string
}

// Package describes one installed library, as reported by the "packages"
// operation.
type Package struct {
	Name    string
	Version string
}

// Kernel is the uniform surface spec.md §4.3.1 requires of every runtime:
// in-process (jsruntime), sidecar child process (sidecar), and external
// Jupyter-protocol kernels (jupyter) all implement it identically.
type Kernel interface {
	Start(ctx context.Context, workingDir string) error
	Stop(ctx context.Context) error

	Status() Status
	StatusWatch() <-chan Status

	Execute(ctx context.Context, code string) (ExecResult, error)
	Evaluate(ctx context.Context, code string) (ExecResult, error)

	Info(ctx context.Context) (Info, error)
	Packages(ctx context.Context) ([]Package, error)

	List(ctx context.Context) ([]message.VariableDescriptor, error)
	Get(ctx context.Context, name string) (schema.Node, bool, error)
	Set(ctx context.Context, name string, value schema.Node) error
	Remove(ctx context.Context, name string) error

	Fork(ctx context.Context) (Kernel, error)

	Signal(sig Signal)
}
