// Package config provides configuration types for the init segment fixer.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mohaanymo/initfix/internal/platform"
)

// Common errors.
var (
	ErrMissingInput       = errors.New("an input file or manifest URL is required")
	ErrConflictingInput   = errors.New("input files and manifest URL are mutually exclusive")
	ErrInvalidMode        = errors.New("invalid mode")
	ErrUnknownPlatform    = errors.New("unknown platform")
	ErrInvalidTrackFilter = errors.New("invalid track filter")
	ErrOutputAmbiguous    = errors.New("output path needs exactly one input")
)

// Modes select the transformation applied to each init segment.
const (
	ModeEncrypt = "encrypt" // add fake encryption signaling
	ModeEC3     = "ec3"     // present AC-3 as EC-3
	ModeAuto    = "auto"    // whatever the platform requires
	ModeInspect = "inspect" // report only, write nothing
)

// Modes lists the valid modes.
var Modes = []string{ModeEncrypt, ModeEC3, ModeAuto, ModeInspect}

// Track filters for manifest input.
const (
	TracksAll   = "all"
	TracksVideo = "video"
	TracksAudio = "audio"
)

// Config holds all application configuration.
type Config struct {
	// Input
	Inputs []string `yaml:"inputs"`
	URL    string   `yaml:"url"`

	// Output
	Output    string `yaml:"output"`
	OutputDir string `yaml:"output_dir"`

	// Transformation
	Mode         string `yaml:"mode"`
	PlatformName string `yaml:"platform"`
	Tracks       string `yaml:"tracks"`
	Verify       bool   `yaml:"verify"`

	// Fetch settings
	Threads       int           `yaml:"threads"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxBandwidth  int64         `yaml:"max_bandwidth"` // bytes per second, 0 = unlimited

	// HTTP settings
	Headers map[string]string `yaml:"headers"`
	Cookies string            `yaml:"cookies"`

	// UI/Logging
	NoProgress bool   `yaml:"no_progress"`
	Verbose    bool   `yaml:"verbose"`
	LogFormat  string `yaml:"log_format"`
	LogLevel   string `yaml:"log_level"`

	// Platform is resolved from PlatformName by Validate.
	Platform platform.Platform `yaml:"-"`
}

// Default configuration values.
const (
	DefaultThreads       = 4
	DefaultMode          = ModeAuto
	DefaultPlatform      = "default"
	DefaultTracks        = TracksAll
	DefaultOutputDir     = "."
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultTimeout       = 30 * time.Second
	DefaultLogFormat     = "text"
	DefaultLogLevel      = "info"

	MaxThreads = 64
	MinThreads = 1
)

// New returns a Config with sensible defaults.
func New() *Config {
	return &Config{
		OutputDir:     DefaultOutputDir,
		Mode:          DefaultMode,
		PlatformName:  DefaultPlatform,
		Tracks:        DefaultTracks,
		Threads:       DefaultThreads,
		RetryAttempts: DefaultRetryAttempts,
		RetryDelay:    DefaultRetryDelay,
		Timeout:       DefaultTimeout,
		LogFormat:     DefaultLogFormat,
		LogLevel:      DefaultLogLevel,
		Headers:       make(map[string]string),
	}
}

// LoadFile merges the YAML file at path into c. Keys missing from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration is valid and normalizes values.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 && c.URL == "" {
		return ErrMissingInput
	}
	if len(c.Inputs) > 0 && c.URL != "" {
		return ErrConflictingInput
	}
	if c.Output != "" && len(c.Inputs) != 1 {
		return ErrOutputAmbiguous
	}

	c.Mode = strings.ToLower(c.Mode)
	if c.Mode == "" {
		c.Mode = DefaultMode
	}
	if !slices.Contains(Modes, c.Mode) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidMode, c.Mode, strings.Join(Modes, ", "))
	}

	p, err := platform.Lookup(c.PlatformName)
	if err != nil {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownPlatform, c.PlatformName, strings.Join(platform.Names(), ", "))
	}
	c.Platform = p

	c.Tracks = strings.ToLower(c.Tracks)
	switch c.Tracks {
	case "":
		c.Tracks = DefaultTracks
	case TracksAll, TracksVideo, TracksAudio:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTrackFilter, c.Tracks)
	}

	// Clamp threads to valid range
	if c.Threads < MinThreads {
		c.Threads = MinThreads
	}
	if c.Threads > MaxThreads {
		c.Threads = MaxThreads
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}

	// Initialize headers map if nil
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}

	return nil
}
