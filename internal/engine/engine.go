// Package engine plans and runs batches of init segment rewrites.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/mohaanymo/initfix/internal/config"
	"github.com/mohaanymo/initfix/internal/httpclient"
	"github.com/mohaanymo/initfix/internal/inspect"
	"github.com/mohaanymo/initfix/internal/models"
	"github.com/mohaanymo/initfix/internal/parser"
	"github.com/mohaanymo/initfix/internal/workaround"
)

// ErrVerificationFailed is returned when a rewritten init segment does not
// show the expected signaling.
var ErrVerificationFailed = errors.New("verification failed")

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Result describes one processed init segment.
type Result struct {
	Track      *models.Track
	OutputPath string
	InputSize  int
	OutputSize int
	// Applied lists the workarounds applied, in order.
	Applied []string
	// Report is set in inspect mode and when verifying.
	Report *inspect.Report
}

// Engine is the main orchestrator.
type Engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	client     *http.Client
	registry   *parser.Registry
	rewriter   Rewriter
	progressCh chan ProgressUpdate

	manifest *models.Manifest
	pool     *WorkerPool

	mu      sync.Mutex
	results []Result
}

// New creates an Engine. cfg must have been validated.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxBandwidth: cfg.MaxBandwidth,
	})

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		registry:   parser.NewRegistry(client),
		rewriter:   workaround.New(cfg.Platform, logger),
		progressCh: make(chan ProgressUpdate, 100),
	}, nil
}

// SetRewriter replaces the workaround implementation.
func (e *Engine) SetRewriter(r Rewriter) {
	e.rewriter = r
}

// SetHTTPClient replaces the client used for manifests and init segments.
func (e *Engine) SetHTTPClient(c *http.Client) {
	e.client = c
	e.registry = parser.NewRegistry(c)
}

// Manifest returns the manifest parsed by Plan, or nil for file input.
func (e *Engine) Manifest() *models.Manifest {
	return e.manifest
}

// Progress returns the progress update channel. It must be drained while
// Run is in progress.
func (e *Engine) Progress() <-chan ProgressUpdate {
	return e.progressCh
}

// Close releases engine resources.
func (e *Engine) Close() error {
	close(e.progressCh)
	return nil
}

// Results returns the results of the last Run, in completion order.
func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Stats returns the statistics of the last Run.
func (e *Engine) Stats() (completed int64, totalBytes int64) {
	if e.pool == nil {
		return 0, 0
	}
	completed, totalBytes, _ = e.pool.Stats()
	return completed, totalBytes
}

func (e *Engine) headers() map[string]string {
	h := maps.Clone(e.cfg.Headers)
	if h == nil {
		h = make(map[string]string)
	}
	if e.cfg.Cookies != "" {
		h["Cookie"] = e.cfg.Cookies
	}
	return h
}

// Plan returns the tracks whose init segments Run will process. Tracks that
// share an init segment are reduced to the first one.
func (e *Engine) Plan(ctx context.Context) ([]*models.Track, error) {
	if len(e.cfg.Inputs) > 0 {
		return e.planFiles(), nil
	}

	manifest, err := e.registry.Parse(ctx, e.cfg.URL, e.headers())
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	e.manifest = manifest

	seen := make(map[string]bool)
	var tracks []*models.Track
	for _, track := range manifest.Tracks {
		if !wanted(track, e.cfg.Tracks) {
			continue
		}
		if track.InitSegment == nil {
			e.logger.Warn("track has no init segment", "track", track.ID)
			continue
		}
		key := track.InitSegment.Key()
		if seen[key] {
			e.logger.Debug("init segment shared with another track", "track", track.ID, "init", key)
			continue
		}
		seen[key] = true
		tracks = append(tracks, track)
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("no init segments found in %s", e.cfg.URL)
	}
	e.logger.Info("planned init segments", "manifest", manifest.Type.String(), "tracks", len(tracks))
	return tracks, nil
}

func (e *Engine) planFiles() []*models.Track {
	tracks := make([]*models.Track, 0, len(e.cfg.Inputs))
	for _, path := range e.cfg.Inputs {
		base := filepath.Base(path)
		tracks = append(tracks, &models.Track{
			ID:          strings.TrimSuffix(base, filepath.Ext(base)),
			Name:        base,
			InitSegment: &models.Segment{FilePath: path},
		})
	}
	return tracks
}

func wanted(track *models.Track, filter string) bool {
	if track.IsSubtitle() {
		return false
	}
	switch filter {
	case config.TracksVideo:
		return track.IsVideo()
	case config.TracksAudio:
		return track.IsAudio()
	default:
		return true
	}
}

// outputPaths assigns each track a distinct output file.
func (e *Engine) outputPaths(tracks []*models.Track) []string {
	paths := make([]string, len(tracks))
	if e.cfg.Mode == config.ModeInspect {
		return paths
	}
	if e.cfg.Output != "" && len(tracks) == 1 {
		paths[0] = e.cfg.Output
		return paths
	}

	used := make(map[string]int)
	for i, track := range tracks {
		name := unsafeNameChars.ReplaceAllString(track.ID, "_")
		if name == "" {
			name = "track"
		}
		used[name]++
		if n := used[name]; n > 1 {
			name += "_" + strconv.Itoa(n)
		}
		paths[i] = filepath.Join(e.cfg.OutputDir, name+"_init.mp4")
	}
	return paths
}

// Run processes tracks on the worker pool and returns the first failure,
// after every job has finished.
func (e *Engine) Run(ctx context.Context, tracks []*models.Track) error {
	e.mu.Lock()
	e.results = nil
	e.mu.Unlock()

	e.pool = NewWorkerPool(e.cfg.Threads, e.client, e.transform, e.progressCh, e.logger)
	e.pool.SetHeaders(e.headers())
	e.pool.SetRetry(e.cfg.RetryAttempts, e.cfg.RetryDelay)

	e.pool.Start(ctx)
	defer e.pool.Stop()

	for i, path := range e.outputPaths(tracks) {
		if err := e.pool.Submit(&InitTask{Track: tracks[i], OutputPath: path}); err != nil {
			break
		}
	}

	return e.pool.Wait()
}

// transform applies the configured mode to one init segment.
func (e *Engine) transform(_ context.Context, task *InitTask, data []byte) ([]byte, error) {
	result := Result{Track: task.Track, OutputPath: task.OutputPath, InputSize: len(data)}
	uri := initURI(task.Track.InitSegment)

	if e.cfg.Mode == config.ModeInspect {
		report, err := inspect.Init(data)
		if err != nil {
			return nil, fmt.Errorf("inspect: %w", err)
		}
		result.Report = report
		e.logger.Info("inspected init segment", "track", task.Track.ID, "entries", report.EntryTypes(), "protected", report.Protected())
		e.record(result)
		return nil, nil
	}

	encrypt, ec3 := e.workarounds()
	out := data

	if ec3 {
		var err error
		if out, err = e.rewriter.FakeEC3(out); err != nil {
			return nil, err
		}
		result.Applied = append(result.Applied, config.ModeEC3)
	}

	encInputLen := len(out)
	if encrypt {
		var err error
		if out, err = e.rewriter.FakeEncryption(out, uri); err != nil {
			return nil, err
		}
		result.Applied = append(result.Applied, config.ModeEncrypt)
	}

	if len(result.Applied) == 0 {
		e.logger.Info("platform needs no workaround, copying input", "track", task.Track.ID, "platform", e.cfg.Platform.String())
	}

	if e.cfg.Verify {
		report, err := e.verify(out, encInputLen, encrypt, ec3)
		if err != nil {
			return nil, err
		}
		result.Report = report
	}

	result.OutputSize = len(out)
	e.record(result)
	return out, nil
}

// workarounds decides which rewrites the mode selects.
func (e *Engine) workarounds() (encrypt, ec3 bool) {
	switch e.cfg.Mode {
	case config.ModeEncrypt:
		return true, false
	case config.ModeEC3:
		return false, true
	default:
		return e.cfg.Platform.RequiresEncryptionInfo(), e.cfg.Platform.RequiresEC3()
	}
}

// verify decodes the rewritten segment and checks the signaling. When the
// platform appends the original segment, only the patched copy in front is
// checked.
func (e *Engine) verify(out []byte, encInputLen int, encrypt, ec3 bool) (*inspect.Report, error) {
	patched := out
	if encrypt && e.cfg.Platform.DuplicateOutput() && len(out) > encInputLen {
		patched = out[:len(out)-encInputLen]
	}

	report, err := inspect.Init(patched)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if encrypt && !report.Protected() {
		return nil, fmt.Errorf("%w: no protected sample entry", ErrVerificationFailed)
	}
	if ec3 && report.HasEntryType("ac-3") {
		return nil, fmt.Errorf("%w: ac-3 sample entry left", ErrVerificationFailed)
	}
	return report, nil
}

func (e *Engine) record(r Result) {
	e.mu.Lock()
	e.results = append(e.results, r)
	e.mu.Unlock()
}

func initURI(seg *models.Segment) string {
	if seg.FilePath != "" {
		return seg.FilePath
	}
	return seg.URL
}
