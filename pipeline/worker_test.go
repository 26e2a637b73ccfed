package pipeline

import (
	"PostureServer/posture"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_Process(t *testing.T) {
	cases := []struct {
		name     string
		detector *mockDetector
		label    posture.Label
	}{
		{"Test Standing", &mockDetector{landmarks: pose(0.50, 0.70)}, posture.Standing},
		{"Test Sitting", &mockDetector{landmarks: pose(0.50, 0.55)}, posture.Sitting},
		{"Test Undetected", &mockDetector{}, posture.Undetected},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frames, state := NewFrameSlot(), NewPostureState()
			w := NewClassifier(frames, state, c.detector, nil)
			frames.Publish(testFrame(1))

			label, published := w.Process()
			assert.True(t, published)
			assert.Equal(t, c.label, label)
			assert.Equal(t, c.label, state.Get())
		})
	}
}

func TestClassifier_SkipsWithoutFrame(t *testing.T) {
	det := &mockDetector{landmarks: pose(0.5, 0.7)}
	frames, state := NewFrameSlot(), NewPostureState()
	w := NewClassifier(frames, state, det, nil)

	frames.Signal()
	_, published := w.Process()
	assert.False(t, published)
	assert.Empty(t, det.calls())
	assert.Equal(t, posture.Unknown, state.Get())
}

func TestClassifier_DetectorFailureKeepsLabel(t *testing.T) {
	frames, state := NewFrameSlot(), NewPostureState()
	state.Set(posture.Sitting)
	frames.Publish(testFrame(1))

	t.Run("Test Error", func(t *testing.T) {
		w := NewClassifier(frames, state, &mockDetector{err: errors.New("session run failed")}, nil)
		_, published := w.Process()
		assert.False(t, published)
		assert.Equal(t, posture.Sitting, state.Get())
	})

	t.Run("Test Panic", func(t *testing.T) {
		w := NewClassifier(frames, state, &mockDetector{panicMsg: "bad tensor"}, nil)
		_, err := w.detect(testFrame(1))
		assert.ErrorIs(t, err, ErrDetectorPanic)
		_, published := w.Process()
		assert.False(t, published)
		assert.Equal(t, posture.Sitting, state.Get())
	})
}

// N captures with no classification in between yield at least N passes, all
// over the latest frame.
func TestClassifier_DrainsEverySignal(t *testing.T) {
	const captures = 7
	frames, state := NewFrameSlot(), NewPostureState()
	det := &mockDetector{landmarks: pose(0.5, 0.7)}
	for i := 1; i <= captures; i++ {
		frames.Publish(testFrame(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- NewClassifier(frames, state, det, nil).Run(ctx) }()

	require.Eventually(t, func() bool { return frames.Pending() == 0 && len(det.calls()) == captures },
		2*time.Second, 5*time.Millisecond)
	for _, width := range det.calls() {
		assert.Equal(t, testFrame(captures).Width, width)
	}
	assert.Equal(t, posture.Standing, state.Get())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("classifier did not stop")
	}
	assert.Len(t, det.calls(), captures)
}
