package engine

import (
	iface "PostureServer/interface"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const UNREGISTERED = 0x0001
const IDLE = 0x0003
const BUSY = 0x0004

// landmarkStride is the number of values per landmark in the model output:
// x, y, z, visibility, presence.
const landmarkStride = 5

var ErrNotLoaded = errors.New("pose model not loaded")

type Config struct {
	ModelPath       string
	LibraryPath     string
	InputName       string
	LandmarksOutput string
	PresenceOutput  string
	InputSize       int
	LandmarkValues  int
	MinPresence     float32
}

// DefaultConfig matches the BlazePose full-body landmark model.
func DefaultConfig() Config {
	return Config{
		ModelPath:       "models/pose_landmark_full.onnx",
		InputName:       "input_1",
		LandmarksOutput: "Identity",
		PresenceOutput:  "Identity_1",
		InputSize:       256,
		LandmarkValues:  39 * landmarkStride,
		MinPresence:     0.5,
	}
}

var envMu sync.Mutex

// initEnvironment loads the onnxruntime shared library once per process.
func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	lib, err := LocateLibrary(libraryPath)
	if err != nil {
		return err
	}
	ort.SetSharedLibraryPath(lib)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// Shutdown releases the onnxruntime environment. Detectors must be destroyed
// first.
func Shutdown() error {
	envMu.Lock()
	defer envMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Detector runs a pose-landmark model on frames. It is not safe for
// concurrent Detect calls.
type Detector struct {
	cfg       Config
	State     int
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	landmarks *ort.Tensor[float32]
	presence  *ort.Tensor[float32]
}

// LoadModel creates the session and its tensors.
func (d *Detector) LoadModel(cfg Config) error {
	if cfg.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if cfg.InputSize <= 0 || cfg.LandmarkValues < iface.NumLandmarks*landmarkStride {
		return fmt.Errorf("invalid model geometry: input %d, landmark values %d", cfg.InputSize, cfg.LandmarkValues)
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return err
	}

	size := int64(cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, size, size, 3))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	landmarks, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.LandmarkValues)))
	if err != nil {
		input.Destroy()
		return fmt.Errorf("failed to create landmarks tensor: %w", err)
	}
	presence, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		landmarks.Destroy()
		return fmt.Errorf("failed to create presence tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.LandmarksOutput, cfg.PresenceOutput},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{landmarks, presence},
		nil)
	if err != nil {
		input.Destroy()
		landmarks.Destroy()
		presence.Destroy()
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}

	d.cfg = cfg
	d.input = input
	d.landmarks = landmarks
	d.presence = presence
	d.session = session
	d.State = IDLE
	return nil
}

// Detect returns the body landmarks of the frame, or nil when the model's
// pose presence score is below MinPresence.
func (d *Detector) Detect(frame iface.Frame) (*iface.LandmarkSet, error) {
	if d.State != IDLE || d.session == nil {
		return nil, ErrNotLoaded
	}
	img, err := FrameToImage(frame)
	if err != nil {
		return nil, err
	}
	d.State = BUSY
	defer func() { d.State = IDLE }()

	if err := FillInput(d.input.GetData(), img, d.cfg.InputSize); err != nil {
		return nil, err
	}
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if d.presence.GetData()[0] < d.cfg.MinPresence {
		return nil, nil
	}
	return DecodeLandmarks(d.landmarks.GetData(), d.cfg.InputSize)
}

func (d *Detector) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		ModelPath:   d.cfg.ModelPath,
		LibraryPath: d.cfg.LibraryPath,
		InputSize:   d.cfg.InputSize,
		MinPresence: d.cfg.MinPresence,
	}
}

func (d *Detector) Destroy() {
	if d.session != nil {
		_ = d.session.Destroy()
	}
	for _, t := range []*ort.Tensor[float32]{d.input, d.landmarks, d.presence} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	d.session = nil
	d.input, d.landmarks, d.presence = nil, nil, nil
	d.cfg = Config{}
	d.State = UNREGISTERED
}
