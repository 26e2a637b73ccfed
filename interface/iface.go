package iface

// Detector turns a frame into body landmarks. Detect returns a nil set when no
// pose is found. Implementations are called from a single goroutine and must
// not modify the frame.
type Detector interface {
	Detect(frame Frame) (*LandmarkSet, error)
	CheckConfig() EngineConfig
	Destroy()
}

// FrameSource is a capture device.
type FrameSource interface {
	Open() error
	// Read returns the next frame. An error is a transient read failure.
	Read() (Frame, error)
	Close() error
}

// TaskObserver is notified of every task state transition.
type TaskObserver interface {
	ObserveTask(task string, state TaskState)
}
