package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the contents of config.yaml.
type Config struct {
	LogLevel    string          `yaml:"logLevel"`
	Development bool            `yaml:"development"`
	Camera      CameraConfig    `yaml:"camera"`
	Engine      EngineConfig    `yaml:"engine"`
	Publisher   PublisherConfig `yaml:"publisher"`
	Health      HealthConfig    `yaml:"health"`
	API         APIConfig       `yaml:"api"`
	Registry    RegistryConfig  `yaml:"registry"`
}

type CameraConfig struct {
	Device  string `yaml:"device"`  // integer index or file path / URL
	YieldMs int    `yaml:"yieldMs"` // pause between captures
}

type EngineConfig struct {
	ModelPath       string  `yaml:"modelPath"`
	LibraryPath     string  `yaml:"libraryPath"` // searched when empty
	InputName       string  `yaml:"inputName"`
	LandmarksOutput string  `yaml:"landmarksOutput"`
	PresenceOutput  string  `yaml:"presenceOutput"`
	InputSize       int     `yaml:"inputSize"`
	MinPresence     float32 `yaml:"minPresence"`
}

type PublisherConfig struct {
	Addr       string `yaml:"addr"`
	IntervalMs int    `yaml:"intervalMs"`
}

type HealthConfig struct {
	RPCPort int `yaml:"RPCPort"` // 0 disables
}

type APIConfig struct {
	Port int `yaml:"port"` // 0 disables
}

type RegistryConfig struct {
	UseRegServer    bool   `yaml:"UseRegServer"`
	RegServerHost   string `yaml:"RegServerHost"`
	RegServerPort   int    `yaml:"RegServerPort"`
	InstanceClass   string `yaml:"instanceClass"`
	IntervalSeconds int    `yaml:"intervalSeconds"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Camera:   CameraConfig{Device: "0", YieldMs: 10},
		Engine: EngineConfig{
			ModelPath:       "models/pose_landmark_full.onnx",
			InputName:       "input_1",
			LandmarksOutput: "Identity",
			PresenceOutput:  "Identity_1",
			InputSize:       256,
			MinPresence:     0.5,
		},
		Publisher: PublisherConfig{Addr: ":5000", IntervalMs: 500},
		Health:    HealthConfig{RPCPort: 50051},
		API:       APIConfig{Port: 8080},
		Registry: RegistryConfig{
			RegServerHost:   "127.0.0.1",
			RegServerPort:   9000,
			InstanceClass:   "Cpu",
			IntervalSeconds: 5,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logLevel must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	if cfg.Camera.Device == "" {
		return fmt.Errorf("camera.device is required")
	}
	if cfg.Camera.YieldMs <= 0 {
		return fmt.Errorf("camera.yieldMs must be > 0")
	}
	if cfg.Engine.ModelPath == "" {
		return fmt.Errorf("engine.modelPath is required")
	}
	if cfg.Engine.InputSize <= 0 {
		return fmt.Errorf("engine.inputSize must be > 0")
	}
	if cfg.Engine.MinPresence <= 0 || cfg.Engine.MinPresence > 1 {
		return fmt.Errorf("engine.minPresence must be in (0, 1], got %v", cfg.Engine.MinPresence)
	}
	if cfg.Publisher.Addr == "" {
		return fmt.Errorf("publisher.addr is required")
	}
	if cfg.Publisher.IntervalMs <= 0 {
		return fmt.Errorf("publisher.intervalMs must be > 0")
	}
	if err := validPort("health.RPCPort", cfg.Health.RPCPort, true); err != nil {
		return err
	}
	if err := validPort("api.port", cfg.API.Port, true); err != nil {
		return err
	}
	if cfg.Registry.UseRegServer {
		if cfg.Registry.RegServerHost == "" {
			return fmt.Errorf("registry.RegServerHost is required when UseRegServer is set")
		}
		if err := validPort("registry.RegServerPort", cfg.Registry.RegServerPort, false); err != nil {
			return err
		}
		if cfg.Registry.IntervalSeconds <= 0 {
			return fmt.Errorf("registry.intervalSeconds must be > 0")
		}
	}
	return nil
}

func validPort(name string, port int, zeroOK bool) error {
	if port == 0 && zeroOK {
		return nil
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be in 1..65535, got %d", name, port)
	}
	return nil
}

func (c CameraConfig) Yield() time.Duration {
	return time.Duration(c.YieldMs) * time.Millisecond
}

func (p PublisherConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

func (r RegistryConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}
