package iface

import "time"

// NumLandmarks is the number of body landmarks in a LandmarkSet.
const NumLandmarks = 33

// Frame is one captured image. Data is row-major 8-bit pixels in the device
// format (BGR for 3 channels) and must not be modified once the frame has been
// handed to the pipeline.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Channels  int
	Timestamp time.Time
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return len(f.Data) == 0 || f.Width <= 0 || f.Height <= 0
}

// Landmark is a 2-D point in normalized image coordinates.
type Landmark struct {
	X, Y float64
}

// LandmarkSet is a detected body pose. A missing detection is a nil
// *LandmarkSet, never an empty set.
type LandmarkSet [NumLandmarks]Landmark

type EngineConfig struct {
	ModelPath   string
	LibraryPath string
	InputSize   int
	MinPresence float32
}

// TaskState is the lifecycle of a pipeline task.
type TaskState int

const (
	TaskStarting TaskState = iota
	TaskRunning
	TaskStopped
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskStarting:
		return "starting"
	case TaskRunning:
		return "running"
	case TaskStopped:
		return "stopped"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}
