package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewerFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `frequency: 5
camera:
  fps: 12
viewer:
  camera_id: from-file
`)
	fs := pflag.NewFlagSet("viewer", pflag.ContinueOnError)
	flags := RegisterViewerFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--source", "remote", "--frequency", "2"}))

	cfg, err := flags.Load()
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, cfg.Viewer.Source)
	assert.Equal(t, 2.0, cfg.Frequency)
	assert.Equal(t, 12, cfg.Camera.FPS, "unset flag must not override the file")
	assert.Equal(t, "from-file", cfg.Viewer.CameraID)
}

func TestCameraFlagsValidate(t *testing.T) {
	t.Parallel()

	fs := pflag.NewFlagSet("camera", pflag.ContinueOnError)
	flags := RegisterCameraFlags(fs)
	require.NoError(t, fs.Parse([]string{"--quality", "0"}))

	_, err := flags.Load()
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "stream.quality", verr.Field)
}

func TestCameraFlagsHaveNoViewerOptions(t *testing.T) {
	t.Parallel()

	fs := pflag.NewFlagSet("camera", pflag.ContinueOnError)
	RegisterCameraFlags(fs)
	assert.Nil(t, fs.Lookup("source"))
	assert.NotNil(t, fs.Lookup("max-bitrate"))
}
