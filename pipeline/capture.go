package pipeline

import (
	iface "PostureServer/interface"
	"PostureServer/logger"
	"PostureServer/monitor"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var ErrDeviceUnavailable = errors.New("capture device unavailable")

// DefaultYield is the pause after each stored frame.
const DefaultYield = 10 * time.Millisecond

// Capture moves frames from a FrameSource into a FrameSlot.
type Capture struct {
	source iface.FrameSource
	frames *FrameSlot
	yield  time.Duration
	log    *zap.Logger
}

func NewCapture(source iface.FrameSource, frames *FrameSlot, yield time.Duration, log *zap.Logger) *Capture {
	return &Capture{
		source: source,
		frames: frames,
		yield:  yield,
		log:    logger.OrNop(log),
	}
}

// Run opens the source and captures until ctx ends. A failed open returns
// ErrDeviceUnavailable. Read failures are skipped and retried at once.
func (c *Capture) Run(ctx context.Context) error {
	if err := c.source.Open(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	defer func() {
		if err := c.source.Close(); err != nil {
			c.log.Warn("closing capture source", zap.Error(err))
		}
	}()
	c.log.Info("capture started", zap.Duration("yield", c.yield))

	var failures uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := c.source.Read()
		if err != nil {
			monitor.CaptureReadFailures.Inc()
			if failures == 0 {
				c.log.Warn("frame read failed, retrying", zap.Error(err))
			}
			failures++
			continue
		}
		if failures > 0 {
			c.log.Info("frame reads recovered", zap.Uint64("failed", failures))
			failures = 0
		}

		pending := c.frames.Publish(frame)
		monitor.FramesCaptured.Inc()
		monitor.FrameSignalPending.Set(float64(pending))

		if c.yield > 0 {
			t := time.NewTimer(c.yield)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
}
