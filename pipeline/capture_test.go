package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture_OpenFailure(t *testing.T) {
	src := &mockSource{openErr: errors.New("no such device")}
	frames := NewFrameSlot()

	err := NewCapture(src, frames, 0, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Contains(t, err.Error(), "no such device")
	assert.Equal(t, uint64(0), frames.Pending())
	assert.False(t, src.closed.Load())
}

func TestCapture_SkipsFailedReads(t *testing.T) {
	src := &mockSource{script: []error{errRead, errRead, nil, errRead, nil, nil}}
	frames := NewFrameSlot()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewCapture(src, frames, time.Millisecond, nil).Run(ctx) }()

	require.Eventually(t, func() bool { return frames.Pending() == 3 }, 2*time.Second, 5*time.Millisecond)
	frame, ok := frames.Load()
	require.True(t, ok)
	assert.Equal(t, testFrame(3).Width, frame.Width)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("capture did not stop")
	}
	assert.True(t, src.closed.Load())
	assert.Equal(t, uint64(3), frames.Pending())
}

// Capture never waits for the classifier: signals pile up unconsumed.
func TestCapture_NeverBlocksOnConsumer(t *testing.T) {
	script := make([]error, 50)
	src := &mockSource{script: script}
	frames := NewFrameSlot()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewCapture(src, frames, 0, nil).Run(ctx) }()

	require.Eventually(t, func() bool { return frames.Pending() == 50 }, 2*time.Second, 5*time.Millisecond)
}
