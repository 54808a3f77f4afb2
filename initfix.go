// Package initfix rewrites fragmented MP4 init segments so that picky
// playback platforms accept them.
//
// Rewriting a single init segment in memory:
//
//	out, err := initfix.FakeEncryption(data, "video_init.mp4",
//		initfix.WithTarget("edge-windows"),
//	)
//
// Rewriting every init segment referenced by a manifest:
//
//	f, err := initfix.New(
//		initfix.WithURL("https://example.com/manifest.mpd"),
//		initfix.WithPlatform("tizen3"),
//		initfix.WithOutputDir("fixed"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer f.Close()
//
//	if err := f.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package initfix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mohaanymo/initfix/internal/config"
	"github.com/mohaanymo/initfix/internal/engine"
	"github.com/mohaanymo/initfix/internal/inspect"
	"github.com/mohaanymo/initfix/internal/logger"
	"github.com/mohaanymo/initfix/internal/models"
	"github.com/mohaanymo/initfix/internal/platform"
	"github.com/mohaanymo/initfix/internal/workaround"
)

// Errors returned by the rewrites. Use errors.Is to match them and
// errors.As with *Error for the details.
var (
	ErrContentTransformationFailed = workaround.ErrContentTransformationFailed
	ErrInternal                    = workaround.ErrInternal
	ErrUnknownPlatform             = platform.ErrUnknown
)

// Error is the structured error returned by the rewrites.
type Error = workaround.Error

// Report describes the sample entries of an init segment.
type Report = inspect.Report

// Modes accepted by WithMode.
const (
	ModeEncrypt = config.ModeEncrypt
	ModeEC3     = config.ModeEC3
	ModeAuto    = config.ModeAuto
	ModeInspect = config.ModeInspect
)

// Platforms returns the known platform names.
func Platforms() []string {
	return platform.Names()
}

// RewriteOption configures a single in-memory rewrite.
type RewriteOption func(*rewriteOptions)

type rewriteOptions struct {
	platform string
	logger   *slog.Logger
}

// WithTarget sets the platform for a single rewrite (default: "default").
func WithTarget(name string) RewriteOption {
	return func(o *rewriteOptions) {
		o.platform = name
	}
}

// WithRewriteLogger sets the logger for a single rewrite. Nothing is logged
// by default.
func WithRewriteLogger(l *slog.Logger) RewriteOption {
	return func(o *rewriteOptions) {
		o.logger = l
	}
}

func newRewriter(opts []RewriteOption) (*workaround.Rewriter, error) {
	o := rewriteOptions{platform: config.DefaultPlatform, logger: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	p, err := platform.Lookup(o.platform)
	if err != nil {
		return nil, err
	}
	return workaround.New(p, o.logger), nil
}

// FakeEncryption returns a new init segment in which every recognized clear
// audio or video sample entry, in every track, has an encrypted twin (encv or
// enca) carrying placeholder protection info. A segment that already signals
// encryption is returned as is, without copying. For edge-windows the
// original segment follows the rewritten one. uri only labels errors.
func FakeEncryption(initSegment []byte, uri string, opts ...RewriteOption) ([]byte, error) {
	r, err := newRewriter(opts)
	if err != nil {
		return nil, err
	}
	return r.FakeEncryption(initSegment, uri)
}

// FakeEC3 relabels AC-3 sample entries as EC-3. It modifies initSegment in
// place and returns it.
func FakeEC3(initSegment []byte, opts ...RewriteOption) ([]byte, error) {
	r, err := newRewriter(opts)
	if err != nil {
		return nil, err
	}
	return r.FakeEC3(initSegment)
}

// Inspect decodes initSegment and reports its sample entries.
func Inspect(initSegment []byte) (*Report, error) {
	return inspect.Init(initSegment)
}

// Fixer rewrites a batch of init segments from files or a manifest.
type Fixer struct {
	cfg    *config.Config
	eng    *engine.Engine
	tracks []*models.Track
}

// Option configures a Fixer.
type Option func(*config.Config)

// New creates a Fixer with the given options.
func New(opts ...Option) (*Fixer, error) {
	cfg := config.New()
	cfg.NoProgress = true
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{Format: cfg.LogFormat, Level: logger.ParseLevel(cfg.LogLevel)})
	if err != nil {
		return nil, err
	}
	if !cfg.Verbose {
		log = logger.Discard()
	}

	eng, err := engine.New(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Fixer{cfg: cfg, eng: eng}, nil
}

// WithFiles adds init segment files as input.
func WithFiles(paths ...string) Option {
	return func(c *config.Config) {
		c.Inputs = append(c.Inputs, paths...)
	}
}

// WithURL sets an HLS or DASH manifest URL as input.
func WithURL(url string) Option {
	return func(c *config.Config) {
		c.URL = url
	}
}

// WithOutput sets the output path. It requires exactly one input file.
func WithOutput(path string) Option {
	return func(c *config.Config) {
		c.Output = path
	}
}

// WithOutputDir sets the directory for generated output names.
func WithOutputDir(dir string) Option {
	return func(c *config.Config) {
		c.OutputDir = dir
	}
}

// WithMode sets the transformation (default: ModeAuto).
func WithMode(mode string) Option {
	return func(c *config.Config) {
		c.Mode = mode
	}
}

// WithPlatform sets the target platform (default: "default").
func WithPlatform(name string) Option {
	return func(c *config.Config) {
		c.PlatformName = name
	}
}

// WithTracks filters manifest tracks: "all", "video" or "audio".
func WithTracks(filter string) Option {
	return func(c *config.Config) {
		c.Tracks = filter
	}
}

// WithVerify decodes each rewritten segment and checks the signaling.
func WithVerify(verify bool) Option {
	return func(c *config.Config) {
		c.Verify = verify
	}
}

// WithThreads sets the number of concurrent jobs (default: 4, max: 64).
func WithThreads(n int) Option {
	return func(c *config.Config) {
		c.Threads = n
	}
}

// WithHeader adds a single HTTP header.
func WithHeader(key, value string) Option {
	return func(c *config.Config) {
		c.Headers[key] = value
	}
}

// WithCookies sets cookies for HTTP requests.
func WithCookies(cookies string) Option {
	return func(c *config.Config) {
		c.Cookies = cookies
	}
}

// WithMaxBandwidth sets maximum download speed in bytes per second.
// Set to 0 for unlimited (default).
func WithMaxBandwidth(bytesPerSec int64) Option {
	return func(c *config.Config) {
		c.MaxBandwidth = bytesPerSec
	}
}

// WithVerbose enables logging to stderr.
func WithVerbose(verbose bool) Option {
	return func(c *config.Config) {
		c.Verbose = verbose
	}
}

// Plan resolves the inputs into tracks. Run calls it when needed.
func (f *Fixer) Plan(ctx context.Context) ([]*Track, error) {
	tracks, err := f.eng.Plan(ctx)
	if err != nil {
		return nil, err
	}
	f.tracks = tracks
	return wrapTracks(tracks), nil
}

// Run rewrites every planned init segment. It returns an error if any
// segment failed, after all of them have been attempted.
func (f *Fixer) Run(ctx context.Context) error {
	if f.tracks == nil {
		if _, err := f.Plan(ctx); err != nil {
			return err
		}
	}
	go drain(f.eng.Progress())
	return f.eng.Run(ctx, f.tracks)
}

// Results returns one entry per init segment processed by Run.
func (f *Fixer) Results() []Result {
	results := f.eng.Results()
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{
			Track:      &Track{internal: r.Track},
			OutputPath: r.OutputPath,
			InputSize:  r.InputSize,
			OutputSize: r.OutputSize,
			Applied:    r.Applied,
			Report:     r.Report,
		}
	}
	return out
}

// Close releases all resources held by the Fixer.
func (f *Fixer) Close() error {
	return f.eng.Close()
}

// Process is a convenience function that plans and runs a batch.
func Process(ctx context.Context, opts ...Option) ([]Result, error) {
	f, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := f.Run(ctx); err != nil {
		return f.Results(), err
	}
	return f.Results(), nil
}

func drain(ch <-chan engine.ProgressUpdate) {
	for range ch {
	}
}

// IsInfeasible reports whether err means the init segment cannot carry the
// requested signaling, as opposed to an I/O or configuration failure.
func IsInfeasible(err error) bool {
	return errors.Is(err, ErrContentTransformationFailed)
}

func wrapTracks(tracks []*models.Track) []*Track {
	out := make([]*Track, len(tracks))
	for i, t := range tracks {
		out[i] = &Track{internal: t}
	}
	return out
}

// String implements fmt.Stringer.
func (r Result) String() string {
	if r.OutputPath == "" {
		return fmt.Sprintf("%s: inspected", r.Track.ID())
	}
	return fmt.Sprintf("%s: %v %d -> %d bytes, %s", r.Track.ID(), r.Applied, r.InputSize, r.OutputSize, r.OutputPath)
}
