package kernel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencila-go/docengine/internal/kernel"
	"github.com/stencila-go/docengine/internal/message"
	"github.com/stencila-go/docengine/internal/schema"
)

// fakeKernel is a minimal in-memory kernel.Kernel used to exercise
// Registry without spinning up goja/a subprocess/ZeroMQ.
type fakeKernel struct {
	status  *kernel.StatusBox
	stopped bool
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{status: kernel.NewStatusBox()}
}

func (f *fakeKernel) Start(ctx context.Context, workingDir string) error {
	f.status.Set(kernel.Starting)
	f.status.Set(kernel.Ready)
	return nil
}
func (f *fakeKernel) Stop(ctx context.Context) error {
	f.status.Set(kernel.Stopping)
	f.status.Set(kernel.Stopped)
	f.stopped = true
	return nil
}
func (f *fakeKernel) Status() kernel.Status             { return f.status.Get() }
func (f *fakeKernel) StatusWatch() <-chan kernel.Status { return f.status.Watch() }
func (f *fakeKernel) Execute(ctx context.Context, code string) (kernel.ExecResult, error) {
	return kernel.ExecResult{}, nil
}
func (f *fakeKernel) Evaluate(ctx context.Context, code string) (kernel.ExecResult, error) {
	return kernel.ExecResult{}, nil
}
func (f *fakeKernel) Info(ctx context.Context) (kernel.Info, error) { return kernel.Info{}, nil }
func (f *fakeKernel) Packages(ctx context.Context) ([]kernel.Package, error) { return nil, nil }
func (f *fakeKernel) List(ctx context.Context) ([]message.VariableDescriptor, error) {
	return nil, nil
}
func (f *fakeKernel) Get(ctx context.Context, name string) (schema.Node, bool, error) {
	return nil, false, nil
}
func (f *fakeKernel) Set(ctx context.Context, name string, value schema.Node) error { return nil }
func (f *fakeKernel) Remove(ctx context.Context, name string) error                 { return nil }
func (f *fakeKernel) Fork(ctx context.Context) (kernel.Kernel, error) {
	return newFakeKernel(), nil
}
func (f *fakeKernel) Signal(sig kernel.Signal) {}

// markFailed forces the fake into a terminal Failed state, for exercising
// PruneDead.
func (f *fakeKernel) markFailed() { f.status.Set(kernel.Starting); f.status.Set(kernel.Failed) }

var _ kernel.Kernel = (*fakeKernel)(nil)

func newTestRegistry(t *testing.T) *kernel.Registry {
	t.Helper()
	r := kernel.NewRegistry()
	r.RegisterFactory("fake", func() kernel.Kernel { return newFakeKernel() })
	return r
}

func TestRegistryStartAndGet(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	k, err := r.Start(ctx, "inst-1", "fake", "/tmp")
	require.NoError(t, err)
	assert.Equal(t, kernel.Ready, k.Status())

	assert.Same(t, k, r.Get("inst-1"))
	assert.Nil(t, r.Get("does-not-exist"))
}

func TestRegistryStartDuplicateIDErrors(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Start(ctx, "inst-1", "fake", "/tmp")
	require.NoError(t, err)

	_, err = r.Start(ctx, "inst-1", "fake", "/tmp")
	assert.Error(t, err)
}

func TestRegistryStartUnknownLanguageErrors(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Start(context.Background(), "inst-1", "cobol", "/tmp")
	assert.Error(t, err)
}

func TestRegistryStop(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	k, err := r.Start(ctx, "inst-1", "fake", "/tmp")
	require.NoError(t, err)

	require.NoError(t, r.Stop(ctx, "inst-1"))
	assert.Equal(t, kernel.Stopped, k.Status())
	assert.Nil(t, r.Get("inst-1"))

	assert.Error(t, r.Stop(ctx, "inst-1"), "stopping an unknown instance should error")
}

func TestRegistryAdopt(t *testing.T) {
	r := newTestRegistry(t)
	forked := newFakeKernel()

	require.NoError(t, r.Adopt("forked-1", forked))
	assert.Same(t, kernel.Kernel(forked), r.Get("forked-1"))

	assert.Error(t, r.Adopt("forked-1", newFakeKernel()), "adopting a duplicate id should error")
}

func TestRegistryPruneDead(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	alive, err := r.Start(ctx, "alive", "fake", "/tmp")
	require.NoError(t, err)

	dead, err := r.Start(ctx, "dead", "fake", "/tmp")
	require.NoError(t, err)
	dead.(*fakeKernel).markFailed()

	n := r.PruneDead(ctx)
	assert.Equal(t, 1, n)

	assert.Equal(t, kernel.Ready, alive.Status())
	assert.NotNil(t, r.Get("alive"))
	assert.Nil(t, r.Get("dead"))
}

func TestRegistryLanguagesAndInstances(t *testing.T) {
	r := newTestRegistry(t)
	assert.Contains(t, r.Languages(), "fake")

	ctx := context.Background()
	_, err := r.Start(ctx, "inst-1", "fake", "/tmp")
	require.NoError(t, err)
	assert.Contains(t, r.Instances(), "inst-1")
}

func TestRegistryRegisterFactoryPanicsOnDuplicate(t *testing.T) {
	r := kernel.NewRegistry()
	r.RegisterFactory("fake", func() kernel.Kernel { return newFakeKernel() })

	assert.Panics(t, func() {
		r.RegisterFactory("fake", func() kernel.Kernel { return newFakeKernel() })
	})
}
