package kernel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencila-go/docengine/internal/kernel"
)

func TestStatusBoxStartsPending(t *testing.T) {
	b := kernel.NewStatusBox()
	assert.Equal(t, kernel.Pending, b.Get())
}

func TestStatusBoxNormalProgression(t *testing.T) {
	b := kernel.NewStatusBox()
	b.Set(kernel.Starting)
	assert.Equal(t, kernel.Starting, b.Get())
	b.Set(kernel.Ready)
	assert.Equal(t, kernel.Ready, b.Get())
	b.Set(kernel.Busy)
	assert.Equal(t, kernel.Busy, b.Get())
	b.Set(kernel.Ready)
	assert.Equal(t, kernel.Ready, b.Get())
}

func TestStatusBoxTerminalStatesAreAbsorbing(t *testing.T) {
	b := kernel.NewStatusBox()
	b.Set(kernel.Starting)
	b.Set(kernel.Failed)
	require.Equal(t, kernel.Failed, b.Get())

	// Any further transition, including a plausible restart attempt, is dropped.
	b.Set(kernel.Starting)
	assert.Equal(t, kernel.Failed, b.Get())
	b.Set(kernel.Ready)
	assert.Equal(t, kernel.Failed, b.Get())
}

func TestStatusBoxDropsRegressionPastStopping(t *testing.T) {
	b := kernel.NewStatusBox()
	b.Set(kernel.Starting)
	b.Set(kernel.Ready)
	b.Set(kernel.Stopping)

	// A write that would regress below Stopping (e.g. a stale Ready/Busy
	// report racing the shutdown path) is silently dropped.
	b.Set(kernel.Busy)
	assert.Equal(t, kernel.Stopping, b.Get())

	b.Set(kernel.Stopped)
	assert.Equal(t, kernel.Stopped, b.Get())
}

func TestStatusBoxWatchReceivesTransitions(t *testing.T) {
	b := kernel.NewStatusBox()
	ch := b.Watch()

	b.Set(kernel.Starting)
	b.Set(kernel.Ready)

	select {
	case got := <-ch:
		assert.Equal(t, kernel.Starting, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first transition")
	}

	select {
	case got := <-ch:
		assert.Equal(t, kernel.Ready, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second transition")
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Ready", kernel.Ready.String())
	assert.Equal(t, "Unresponsive", kernel.Unresponsive.String())
}
