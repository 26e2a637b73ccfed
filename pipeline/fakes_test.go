package pipeline

import (
	iface "PostureServer/interface"
	"PostureServer/posture"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var errRead = errors.New("mock read failure")

// mockSource replays a script of reads, then keeps failing unless endless.
type mockSource struct {
	openErr error
	mu      sync.Mutex
	script  []error // nil entry means a good frame
	endless bool    // produce good frames once the script is done
	next    int
	frames  int
	closed  atomic.Bool
}

func (m *mockSource) Open() error { return m.openErr }

func (m *mockSource) Read() (iface.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next >= len(m.script) {
		if !m.endless {
			time.Sleep(time.Millisecond)
			return iface.Frame{}, errRead
		}
	} else {
		err := m.script[m.next]
		m.next++
		if err != nil {
			return iface.Frame{}, err
		}
	}
	m.frames++
	return testFrame(m.frames % 200), nil
}

func (m *mockSource) Close() error {
	m.closed.Store(true)
	return nil
}

// testFrame builds a 4x2 BGR frame whose every byte and width encode n.
func testFrame(n int) iface.Frame {
	data := make([]byte, 4*2*3)
	for i := range data {
		data[i] = byte(n)
	}
	return iface.Frame{Data: data, Width: 4 + n, Height: 2, Channels: 3, Timestamp: time.Now()}
}

// mockDetector returns a fixed answer and records what it saw.
type mockDetector struct {
	mu        sync.Mutex
	landmarks *iface.LandmarkSet
	err       error
	panicMsg  string
	seen      []int
}

func (m *mockDetector) Detect(frame iface.Frame) (*iface.LandmarkSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, frame.Width)
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	return m.landmarks, m.err
}

func (m *mockDetector) calls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.seen...)
}

func (m *mockDetector) CheckConfig() iface.EngineConfig { return iface.EngineConfig{ModelPath: "mock"} }
func (m *mockDetector) Destroy()                        {}

func pose(hipY, kneeY float64) *iface.LandmarkSet {
	l := &iface.LandmarkSet{}
	l[posture.LeftHip].Y = hipY
	l[posture.RightHip].Y = hipY
	l[posture.LeftKnee].Y = kneeY
	l[posture.RightKnee].Y = kneeY
	return l
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) ObserveTask(task string, state iface.TaskState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, task+":"+state.String())
}

func (r *recordingObserver) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}
