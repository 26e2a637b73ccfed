package pipeline

import (
	iface "PostureServer/interface"
	"PostureServer/logger"
	"PostureServer/monitor"
	"PostureServer/posture"
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
)

var ErrDetectorPanic = errors.New("landmark detector panicked")

// Classifier consumes availability signals, runs the detector on the latest
// frame and publishes the resulting label.
type Classifier struct {
	frames   *FrameSlot
	state    *PostureState
	detector iface.Detector
	log      *zap.Logger
	last     posture.Label
}

func NewClassifier(frames *FrameSlot, state *PostureState, detector iface.Detector, log *zap.Logger) *Classifier {
	return &Classifier{
		frames:   frames,
		state:    state,
		detector: detector,
		log:      logger.OrNop(log),
		last:     posture.Unknown,
	}
}

// Run processes one pass per availability signal until ctx ends.
func (w *Classifier) Run(ctx context.Context) error {
	// Keep the detector on one OS thread for backends that need thread affinity.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w.log.Info("classifier started")
	for {
		pending, err := w.frames.Wait(ctx)
		if err != nil {
			return err
		}
		monitor.FrameSignalPending.Set(float64(pending))
		w.Process()
	}
}

// Process runs a single pass over the current frame. It reports the label and
// whether it was published; nothing is published when no frame has been
// captured yet or the detector failed.
func (w *Classifier) Process() (posture.Label, bool) {
	monitor.ClassificationPasses.Inc()

	frame, ok := w.frames.Load()
	if !ok {
		monitor.ClassificationSkipped.Inc()
		return posture.Unknown, false
	}

	landmarks, err := w.detect(frame)
	if err != nil {
		monitor.DetectorErrors.Inc()
		w.log.Warn("landmark detection failed, pass skipped", zap.Error(err))
		return posture.Unknown, false
	}

	label := posture.Classify(landmarks)
	w.state.Set(label)
	monitor.LabelsTotal.WithLabelValues(label.Name()).Inc()

	if label != w.last {
		fields := []zap.Field{zap.String("from", w.last.Name()), zap.String("to", label.Name())}
		if landmarks != nil {
			fields = append(fields, zap.Float64("hipKneeGap", posture.HipKneeGap(landmarks)))
		}
		w.log.Info("posture changed", fields...)
		w.last = label
	}
	return label, true
}

func (w *Classifier) detect(frame iface.Frame) (landmarks *iface.LandmarkSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			landmarks, err = nil, fmt.Errorf("%w: %v", ErrDetectorPanic, r)
		}
	}()
	start := time.Now()
	defer func() { monitor.DetectorSeconds.Observe(time.Since(start).Seconds()) }()
	return w.detector.Detect(frame)
}
