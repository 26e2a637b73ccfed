package pipeline

import (
	iface "PostureServer/interface"
	"context"
	"sync"
)

// FrameSlot holds the latest captured frame plus a counting availability
// signal. The count is decoupled from the frame: N stores followed by N waits
// hand out the same latest frame N times. It is not a queue.
type FrameSlot struct {
	mu    sync.Mutex
	frame iface.Frame
	has   bool

	sigMu   sync.Mutex
	sigCond *sync.Cond
	pending uint64
}

func NewFrameSlot() *FrameSlot {
	s := &FrameSlot{}
	s.sigCond = sync.NewCond(&s.sigMu)
	return s
}

// Store replaces the held frame. It never blocks on readers beyond the copy.
func (s *FrameSlot) Store(frame iface.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.has = true
}

// Load copies the held frame out. ok is false until the first Store.
func (s *FrameSlot) Load() (frame iface.Frame, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.has
}

// Signal adds one to the availability count and returns the new count.
func (s *FrameSlot) Signal() uint64 {
	s.sigMu.Lock()
	defer s.sigMu.Unlock()
	s.pending++
	s.sigCond.Signal()
	return s.pending
}

// Publish stores the frame, then signals.
func (s *FrameSlot) Publish(frame iface.Frame) uint64 {
	s.Store(frame)
	return s.Signal()
}

// Wait blocks until the count is non-zero and decrements it. It returns the
// remaining count, or ctx.Err() if ctx ends first.
func (s *FrameSlot) Wait(ctx context.Context) (uint64, error) {
	stop := context.AfterFunc(ctx, func() {
		s.sigMu.Lock()
		s.sigCond.Broadcast()
		s.sigMu.Unlock()
	})
	defer stop()

	s.sigMu.Lock()
	defer s.sigMu.Unlock()
	for s.pending == 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s.sigCond.Wait()
	}
	s.pending--
	return s.pending, nil
}

// Pending returns the current availability count.
func (s *FrameSlot) Pending() uint64 {
	s.sigMu.Lock()
	defer s.sigMu.Unlock()
	return s.pending
}
