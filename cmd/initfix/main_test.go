package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohaanymo/initfix/internal/config"
)

func TestParseFlags(t *testing.T) {
	cfg, opts, err := parseFlags([]string{
		"-p", "edge-windows",
		"-i", "video_init.mp4",
		"--mode", "encrypt",
		"-H", "Referer: https://player.example/",
		"--timeout", "5s",
		"--verify",
		"audio_init.mp4",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"video_init.mp4", "audio_init.mp4"}, cfg.Inputs)
	assert.Equal(t, "edge-windows", cfg.PlatformName)
	assert.Equal(t, config.ModeEncrypt, cfg.Mode)
	assert.Equal(t, "https://player.example/", cfg.Headers["Referer"])
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.Verify)
	assert.False(t, opts.pick)

	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Platform.Edge)
}

func TestParseFlagsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "initfix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url: https://cdn.example/manifest.mpd
platform: tizen3
threads: 8
`), 0o644))

	cfg, opts, err := parseFlags([]string{"-n", "2", "--config=" + path, "--pick"})
	require.NoError(t, err)

	assert.Equal(t, path, opts.configPath)
	assert.True(t, opts.pick)
	assert.Equal(t, "https://cdn.example/manifest.mpd", cfg.URL)
	assert.Equal(t, "tizen3", cfg.PlatformName)
	assert.Equal(t, 2, cfg.Threads, "flags override the file")

	_, _, err = parseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestParseFlagsVerbose(t *testing.T) {
	cfg, _, err := parseFlags([]string{"-v", "-u", "https://cdn.example/master.m3u8"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestFindConfigPath(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--config", "a.yaml"}, "a.yaml"},
		{[]string{"-config=b.yaml", "-v"}, "b.yaml"},
		{[]string{"-v", "--", "--config", "c.yaml"}, ""},
		{[]string{"config", "d.yaml"}, ""},
		{[]string{"--config"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, findConfigPath(tt.args), "%v", tt.args)
	}
}
