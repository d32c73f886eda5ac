package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencila-go/docengine/internal/kernel"
	"github.com/stencila-go/docengine/internal/message"
	"github.com/stencila-go/docengine/internal/schema"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLogLevel(input), "input %q", input)
	}
}

// deadKernel is a minimal kernel.Kernel whose status is immediately
// Failed, used to exercise reaperJob.Run against kernel.Registry.PruneDead
// without a real runtime.
type deadKernel struct {
	status  *kernel.StatusBox
	stopped bool
}

func newDeadKernel() *deadKernel {
	k := &deadKernel{status: kernel.NewStatusBox()}
	k.status.Set(kernel.Starting)
	k.status.Set(kernel.Failed)
	return k
}

func (k *deadKernel) Start(ctx context.Context, workingDir string) error { return nil }
func (k *deadKernel) Stop(ctx context.Context) error                    { k.stopped = true; return nil }
func (k *deadKernel) Status() kernel.Status                             { return k.status.Get() }
func (k *deadKernel) StatusWatch() <-chan kernel.Status                 { return k.status.Watch() }
func (k *deadKernel) Execute(ctx context.Context, code string) (kernel.ExecResult, error) {
	return kernel.ExecResult{}, nil
}
func (k *deadKernel) Evaluate(ctx context.Context, code string) (kernel.ExecResult, error) {
	return kernel.ExecResult{}, nil
}
func (k *deadKernel) Info(ctx context.Context) (kernel.Info, error) { return kernel.Info{}, nil }
func (k *deadKernel) Packages(ctx context.Context) ([]kernel.Package, error) {
	return nil, nil
}
func (k *deadKernel) List(ctx context.Context) ([]message.VariableDescriptor, error) {
	return nil, nil
}
func (k *deadKernel) Get(ctx context.Context, name string) (schema.Node, bool, error) {
	return nil, false, nil
}
func (k *deadKernel) Set(ctx context.Context, name string, value schema.Node) error { return nil }
func (k *deadKernel) Remove(ctx context.Context, name string) error                 { return nil }
func (k *deadKernel) Fork(ctx context.Context) (kernel.Kernel, error)               { return nil, nil }
func (k *deadKernel) Signal(sig kernel.Signal)                                      {}

var _ kernel.Kernel = (*deadKernel)(nil)

func TestReaperJobPrunesDeadKernelsAndLogsCount(t *testing.T) {
	registry := kernel.NewRegistry()
	dead := newDeadKernel()
	require.NoError(t, registry.Adopt("dead-1", dead))

	job := &reaperJob{registry: registry, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	assert.Equal(t, "kernel-reaper", job.Name())

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, dead.stopped)
	assert.Empty(t, registry.Instances())
}

func TestReaperJobNoopWhenNothingIsDead(t *testing.T) {
	registry := kernel.NewRegistry()
	job := &reaperJob{registry: registry, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.NoError(t, job.Run(context.Background()))
}
