package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohaanymo/initfix/internal/platform"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{
			name:    "no input",
			modify:  func(c *Config) {},
			wantErr: ErrMissingInput,
		},
		{
			name: "files and url",
			modify: func(c *Config) {
				c.Inputs = []string{"a.mp4"}
				c.URL = "https://cdn.example/master.m3u8"
			},
			wantErr: ErrConflictingInput,
		},
		{
			name: "output with two inputs",
			modify: func(c *Config) {
				c.Inputs = []string{"a.mp4", "b.mp4"}
				c.Output = "out.mp4"
			},
			wantErr: ErrOutputAmbiguous,
		},
		{
			name: "bad mode",
			modify: func(c *Config) {
				c.Inputs = []string{"a.mp4"}
				c.Mode = "decrypt"
			},
			wantErr: ErrInvalidMode,
		},
		{
			name: "bad platform",
			modify: func(c *Config) {
				c.Inputs = []string{"a.mp4"}
				c.PlatformName = "playstation"
			},
			wantErr: ErrUnknownPlatform,
		},
		{
			name: "bad track filter",
			modify: func(c *Config) {
				c.URL = "https://cdn.example/manifest.mpd"
				c.Tracks = "subtitles"
			},
			wantErr: ErrInvalidTrackFilter,
		},
		{
			name: "valid",
			modify: func(c *Config) {
				c.Inputs = []string{"a.mp4"}
				c.Output = "out.mp4"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	c := New()
	c.URL = "https://cdn.example/master.m3u8"
	c.Mode = "EC3"
	c.PlatformName = "Tizen3"
	c.Tracks = ""
	c.Threads = 1000
	c.RetryAttempts = -2
	c.Headers = nil
	c.OutputDir = ""

	require.NoError(t, c.Validate())
	assert.Equal(t, ModeEC3, c.Mode)
	assert.Equal(t, platform.Platform{Tizen: true, Tizen3: true}, c.Platform)
	assert.Equal(t, TracksAll, c.Tracks)
	assert.Equal(t, MaxThreads, c.Threads)
	assert.Zero(t, c.RetryAttempts)
	assert.NotNil(t, c.Headers)
	assert.Equal(t, DefaultOutputDir, c.OutputDir)

	c.Threads = 0
	require.NoError(t, c.Validate())
	assert.Equal(t, MinThreads, c.Threads)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "initfix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url: https://cdn.example/manifest.mpd
mode: encrypt
platform: edge-windows
tracks: audio
retry_delay: 2s
headers:
  Referer: https://player.example/
`), 0o644))

	c := New()
	require.NoError(t, c.LoadFile(path))

	assert.Equal(t, "https://cdn.example/manifest.mpd", c.URL)
	assert.Equal(t, ModeEncrypt, c.Mode)
	assert.Equal(t, "edge-windows", c.PlatformName)
	assert.Equal(t, TracksAudio, c.Tracks)
	assert.Equal(t, 2*time.Second, c.RetryDelay)
	assert.Equal(t, "https://player.example/", c.Headers["Referer"])
	assert.Equal(t, DefaultThreads, c.Threads, "keys missing from the file keep their defaults")

	require.NoError(t, c.Validate())
	assert.True(t, c.Platform.DuplicateOutput())
}

func TestLoadFileErrors(t *testing.T) {
	c := New()
	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threads: [1, 2"), 0o644))
	assert.Error(t, c.LoadFile(path))
}
