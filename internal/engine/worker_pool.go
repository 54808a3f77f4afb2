package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohaanymo/initfix/internal/httpclient"
	"github.com/mohaanymo/initfix/internal/models"
)

// InitTask is one init segment to load, transform and write.
type InitTask struct {
	Track *models.Track
	// OutputPath is where the result goes. Empty means nothing is written.
	OutputPath string
}

// TransformFunc turns a loaded init segment into the bytes to write. A nil
// result with a nil error writes nothing.
type TransformFunc func(ctx context.Context, task *InitTask, data []byte) ([]byte, error)

// WorkerPool processes init segment tasks concurrently.
type WorkerPool struct {
	workers    int
	client     *http.Client
	headers    map[string]string
	transform  TransformFunc
	progressCh chan<- ProgressUpdate
	logger     *slog.Logger

	taskQueue chan *InitTask
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	// Stats
	completed  atomic.Int64
	totalBytes atomic.Int64
	failed     atomic.Int64
	startTime  time.Time
	errors     []error
	errorsMu   sync.Mutex

	// Config
	maxAttempts int
	retryDelay  time.Duration
}

// NewWorkerPool creates a new worker pool. progressCh may be nil.
func NewWorkerPool(workers int, client *http.Client, transform TransformFunc, progressCh chan<- ProgressUpdate, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		workers:     workers,
		client:      client,
		transform:   transform,
		progressCh:  progressCh,
		logger:      logger,
		taskQueue:   make(chan *InitTask, workers*4),
		maxAttempts: 4,
		retryDelay:  500 * time.Millisecond,
	}
}

// SetHeaders sets the headers sent with every fetch.
func (p *WorkerPool) SetHeaders(headers map[string]string) {
	p.headers = headers
}

// SetRetry configures fetch retries. Delays double after each attempt.
func (p *WorkerPool) SetRetry(retries int, delay time.Duration) {
	p.maxAttempts = max(retries, 0) + 1
	p.retryDelay = delay
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.startTime = time.Now()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			if err := p.process(task); err != nil {
				p.fail(task, err)
			}
		}
	}
}

func (p *WorkerPool) process(task *InitTask) error {
	data, err := p.load(task.Track.InitSegment)
	if err != nil {
		return err
	}
	p.totalBytes.Add(int64(len(data)))
	p.sendProgress(ProgressUpdate{TrackID: task.Track.ID, Stage: StageLoaded, BytesLoaded: int64(len(data))})

	out, err := p.transform(p.ctx, task, data)
	if err != nil {
		return err
	}
	p.sendProgress(ProgressUpdate{TrackID: task.Track.ID, Stage: StageTransformed})

	var written int64
	if out != nil && task.OutputPath != "" {
		if err := writeFile(task.OutputPath, out); err != nil {
			return err
		}
		written = int64(len(out))
		p.logger.Debug("wrote init segment", "track", task.Track.ID, "path", task.OutputPath, "bytes", written)
	}

	p.completed.Add(1)
	p.sendProgress(ProgressUpdate{TrackID: task.Track.ID, Stage: StageWritten, BytesWritten: written, Completed: true})
	return nil
}

func (p *WorkerPool) fail(task *InitTask, err error) {
	err = fmt.Errorf("track %s: %w", task.Track.ID, err)
	p.failed.Add(1)
	p.errorsMu.Lock()
	p.errors = append(p.errors, err)
	p.errorsMu.Unlock()

	p.logger.Error("init segment failed", "track", task.Track.ID, "error", err)
	p.sendProgress(ProgressUpdate{TrackID: task.Track.ID, Stage: StageFailed, Error: err})
}

// load reads a local init segment or fetches a remote one with retries.
func (p *WorkerPool) load(seg *models.Segment) ([]byte, error) {
	if seg == nil {
		return nil, errors.New("track has no init segment")
	}
	if seg.FilePath != "" {
		data, err := os.ReadFile(seg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("read init segment: %w", err)
		}
		return data, nil
	}
	if seg.Data != nil {
		return seg.Data, nil
	}

	var byteRange *httpclient.ByteRange
	if seg.ByteRange != nil {
		byteRange = &httpclient.ByteRange{Start: seg.ByteRange.Start, End: seg.ByteRange.End}
	}

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: delay, 2*delay, 4*delay...
			backoff := time.Duration(1<<uint(attempt-1)) * p.retryDelay
			select {
			case <-time.After(backoff):
			case <-p.ctx.Done():
				return nil, p.ctx.Err()
			}
		}

		data, err := httpclient.Fetch(p.ctx, p.client, seg.URL, byteRange, p.headers)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			break
		}
		if p.ctx.Err() != nil {
			break
		}
		p.logger.Debug("fetch attempt failed", "url", seg.URL, "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("fetch init segment: %w", lastErr)
}

// writeFile writes data next to path and renames it into place.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func (p *WorkerPool) sendProgress(u ProgressUpdate) {
	if p.progressCh == nil {
		return
	}
	select {
	case p.progressCh <- u:
	case <-p.ctx.Done():
	}
}

// Submit adds a task to the queue.
func (p *WorkerPool) Submit(task *InitTask) error {
	p.sendProgress(ProgressUpdate{TrackID: task.Track.ID, Stage: StageQueued})
	select {
	case p.taskQueue <- task:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Wait blocks until all tasks are complete and returns the first failure.
func (p *WorkerPool) Wait() error {
	close(p.taskQueue)
	p.wg.Wait()

	failed := p.failed.Load()
	if failed == 0 {
		return p.ctx.Err()
	}

	p.errorsMu.Lock()
	first := p.errors[0]
	p.errorsMu.Unlock()

	total := failed + p.completed.Load()
	return fmt.Errorf("%d/%d init segments failed: %w", failed, total, first)
}

// Stop gracefully shuts down the pool.
func (p *WorkerPool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Stats returns current statistics.
func (p *WorkerPool) Stats() (completed int64, totalBytes int64, elapsed time.Duration) {
	return p.completed.Load(), p.totalBytes.Load(), time.Since(p.startTime)
}
