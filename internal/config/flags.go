package config

import (
	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user actually set
// replace values from the config file.
type Flags struct {
	fs   *pflag.FlagSet
	path string

	signalingURL string
	id           string
	frequency    float64
	logFormat    string
	logLevel     string

	width, height, fps int
	quality, bitrate   int

	source   string
	cameraID string
}

func registerCommon(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.path, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&f.signalingURL, "signaling", DefaultSignalingURL, "signaling server WebSocket URL")
	fs.StringVar(&f.id, "id", "", "signaling id (generated if empty)")
	fs.Float64Var(&f.frequency, "frequency", DefaultFrequency, "pacing frequency in Hz (clamped to 0.016-25)")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	return f
}

func (f *Flags) registerCamera() {
	f.fs.IntVar(&f.width, "width", DefaultWidth, "camera frame width")
	f.fs.IntVar(&f.height, "height", DefaultHeight, "camera frame height")
	f.fs.IntVar(&f.fps, "fps", DefaultFPS, "camera native frames per second (1-60)")
}

// RegisterCameraFlags adds the camera host's flags to fs.
func RegisterCameraFlags(fs *pflag.FlagSet) *Flags {
	f := registerCommon(fs)
	f.registerCamera()
	fs.IntVar(&f.quality, "quality", DefaultQuality, "JPEG quality (1-100)")
	fs.IntVar(&f.bitrate, "max-bitrate", DefaultMaxBitrate, "stream bitrate cap in bits per second, 0 disables")
	return f
}

// RegisterViewerFlags adds the viewer's flags to fs.
func RegisterViewerFlags(fs *pflag.FlagSet) *Flags {
	f := registerCommon(fs)
	f.registerCamera()
	fs.StringVar(&f.source, "source", SourcePattern, "frame source: pattern or remote")
	fs.StringVar(&f.cameraID, "camera-id", "", "camera id to connect to (remote source)")
	return f
}

// Load reads the config file named by --config and applies set flags.
func (f *Flags) Load() (*Config, error) {
	cfg, err := Load(f.path)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *Flags) apply(cfg *Config) {
	set := func(name string, fn func()) {
		if fl := f.fs.Lookup(name); fl != nil && fl.Changed {
			fn()
		}
	}
	set("signaling", func() { cfg.Signaling.URL = f.signalingURL })
	set("id", func() { cfg.Signaling.ID = f.id })
	set("frequency", func() { cfg.Frequency = f.frequency })
	set("log-format", func() { cfg.Log.Format = f.logFormat })
	set("log-level", func() { cfg.Log.Level = f.logLevel })
	set("width", func() { cfg.Camera.Width = f.width })
	set("height", func() { cfg.Camera.Height = f.height })
	set("fps", func() { cfg.Camera.FPS = f.fps })
	set("quality", func() { cfg.Stream.Quality = f.quality })
	set("max-bitrate", func() { cfg.Stream.MaxBitrate = f.bitrate })
	set("source", func() { cfg.Viewer.Source = f.source })
	set("camera-id", func() { cfg.Viewer.CameraID = f.cameraID })
}
