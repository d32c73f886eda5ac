package kernel

import (
	"context"
	"fmt"
	"sync"
)

// Factory starts a new kernel instance for the named programming language.
// jsruntime and jupyter register theirs at process init; the sidecar
// runtime's factory is registered by cmd/docengine.
type Factory func() Kernel

// Registry holds factories for every supported language plus the live
// kernel instances created from them, keyed by an instance id the caller
// chooses (spec.md §4.3: "multiplex code execution across heterogeneous
// language runtimes through one uniform interface").
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Kernel
}

// Default is the process-wide registry. The jsruntime and jupyter
// packages register themselves into it from an init function; the
// sidecar runtime is registered into it by cmd/docengine.
var Default = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Kernel),
	}
}

// RegisterFactory associates a programming language name with a kernel
// factory. Panics on a duplicate language, matching the teacher's
// mcp.Registry.Register panic-on-collision convention.
func (r *Registry) RegisterFactory(language string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[language]; exists {
		panic(fmt.Sprintf("kernel factory for %q already registered", language))
	}
	r.factories[language] = f
}

// Languages lists the programming languages with a registered factory.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for lang := range r.factories {
		out = append(out, lang)
	}
	return out
}

// Start creates a new kernel instance of language, starts it against
// workingDir, and stores it under id for later lookup. Returns an error
// if language has no registered factory or id is already in use.
func (r *Registry) Start(ctx context.Context, id, language, workingDir string) (Kernel, error) {
	r.mu.Lock()
	if _, exists := r.instances[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("kernel instance %q already exists", id)
	}
	factory, ok := r.factories[language]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no kernel registered for language %q", language)
	}

	k := factory()
	if err := k.Start(ctx, workingDir); err != nil {
		return nil, fmt.Errorf("starting %s kernel: %w", language, err)
	}

	r.mu.Lock()
	r.instances[id] = k
	r.mu.Unlock()
	return k, nil
}

// Adopt registers an already-started kernel instance under id, for
// callers that construct a Kernel outside Start — notably Fork, whose
// result is a live sibling kernel the registry never created itself.
// Returns an error if id is already in use.
func (r *Registry) Adopt(id string, k Kernel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[id]; exists {
		return fmt.Errorf("kernel instance %q already exists", id)
	}
	r.instances[id] = k
	return nil
}

// Get returns a running instance by id, or nil if none exists.
func (r *Registry) Get(id string) Kernel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instances[id]
}

// Stop stops and forgets the instance with id.
func (r *Registry) Stop(ctx context.Context, id string) error {
	r.mu.Lock()
	k, ok := r.instances[id]
	if ok {
		delete(r.instances, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no kernel instance %q", id)
	}
	return k.Stop(ctx)
}

// PruneDead stops and forgets every instance whose status has reached
// Failed or Unresponsive, returning how many were removed. Intended to
// be run periodically (see cmd/docengine's reaper job) so a long-lived
// server doesn't accumulate dead sidecar/Jupyter processes under
// instance ids nobody will reuse.
func (r *Registry) PruneDead(ctx context.Context) int {
	r.mu.Lock()
	dead := make(map[string]Kernel)
	for id, k := range r.instances {
		switch k.Status() {
		case Failed, Unresponsive:
			dead[id] = k
		}
	}
	for id := range dead {
		delete(r.instances, id)
	}
	r.mu.Unlock()

	for _, k := range dead {
		_ = k.Stop(ctx)
	}
	return len(dead)
}

// Instances lists all live instance ids.
func (r *Registry) Instances() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.instances))
	for id := range r.instances {
		out = append(out, id)
	}
	return out
}
