package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultSignalingURL   = "ws://localhost:8080"
	DefaultPingInterval   = 25 * time.Second
	DefaultWidth          = 640
	DefaultHeight         = 480
	DefaultFPS            = 30
	DefaultFrequency      = 25.0
	DefaultQuality        = 70
	DefaultMaxBitrate     = 8_000_000
	DefaultConnectTimeout = 10 * time.Second

	SourcePattern = "pattern"
	SourceRemote  = "remote"
)

// DefaultICEServers is the default STUN configuration.
var DefaultICEServers = []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}

// Config holds all runtime configuration.
type Config struct {
	// Frequency is the initial pacing frequency in Hz.
	Frequency float64         `yaml:"frequency"`
	Log       LogConfig       `yaml:"log"`
	Signaling SignalingConfig `yaml:"signaling"`
	Camera    CameraConfig    `yaml:"camera"`
	Stream    StreamConfig    `yaml:"stream"`
	Viewer    ViewerConfig    `yaml:"viewer"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type SignalingConfig struct {
	URL          string        `yaml:"url"`
	ID           string        `yaml:"id"`
	PingInterval time.Duration `yaml:"ping_interval"`
	ICEServers   []string      `yaml:"ice_servers"`
}

// CameraConfig describes the pattern camera.
type CameraConfig struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
}

// StreamConfig controls how the camera host encodes frames for viewers.
type StreamConfig struct {
	Quality    int `yaml:"quality"`
	MaxBitrate int `yaml:"max_bitrate"`
}

type ViewerConfig struct {
	Source         string        `yaml:"source"`
	CameraID       string        `yaml:"camera_id"`
	Title          string        `yaml:"title"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Frequency: DefaultFrequency,
		Log:       LogConfig{Format: "text", Level: "info"},
		Signaling: SignalingConfig{
			URL:          DefaultSignalingURL,
			PingInterval: DefaultPingInterval,
			ICEServers:   append([]string(nil), DefaultICEServers...),
		},
		Camera: CameraConfig{
			Name:   "pattern",
			Width:  DefaultWidth,
			Height: DefaultHeight,
			FPS:    DefaultFPS,
		},
		Stream: StreamConfig{
			Quality:    DefaultQuality,
			MaxBitrate: DefaultMaxBitrate,
		},
		Viewer: ViewerConfig{
			Source:         SourcePattern,
			Title:          "campanel",
			ConnectTimeout: DefaultConnectTimeout,
		},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Load reads a YAML config file on top of the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg for values the programs cannot run with. Frequency is
// not range checked: the panel clamps it.
func Validate(cfg *Config) error {
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return ValidationError{Field: "log.format", Message: "must be text or json"}
	}
	if cfg.Signaling.URL == "" {
		return ValidationError{Field: "signaling.url", Message: "must not be empty"}
	}
	if cfg.Signaling.PingInterval <= 0 {
		return ValidationError{Field: "signaling.ping_interval", Message: "must be positive"}
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		return ValidationError{Field: "camera", Message: "width and height must be positive"}
	}
	if cfg.Camera.FPS < 1 || cfg.Camera.FPS > 60 {
		return ValidationError{Field: "camera.fps", Message: "must be 1-60"}
	}
	if cfg.Stream.Quality < 1 || cfg.Stream.Quality > 100 {
		return ValidationError{Field: "stream.quality", Message: "must be 1-100"}
	}
	if cfg.Stream.MaxBitrate < 0 {
		return ValidationError{Field: "stream.max_bitrate", Message: "must not be negative"}
	}
	switch cfg.Viewer.Source {
	case SourcePattern, SourceRemote:
	default:
		return ValidationError{Field: "viewer.source", Message: "must be pattern or remote"}
	}
	if cfg.Viewer.ConnectTimeout <= 0 {
		return ValidationError{Field: "viewer.connect_timeout", Message: "must be positive"}
	}
	return nil
}

// EnsureID fills Signaling.ID with "<prefix>-<random>" when empty.
func (c *Config) EnsureID(prefix string) string {
	if c.Signaling.ID == "" {
		c.Signaling.ID = fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
	}
	return c.Signaling.ID
}
