package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/pipeline"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one PDF waiting to go through the runner.
type Job struct {
	Path          string
	TriggeredBy   string
	ModelOverride string
	CorrelationID string
	SubmittedAt   time.Time
}

// Processor is what a worker calls for each job. *pipeline.Runner satisfies it.
type Processor interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.Output, error)
}

// Result is reported to the optional callback after each job.
type Result struct {
	Job    Job
	Output pipeline.Output
	Err    error
}

type Queue struct {
	proc     Processor
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	onDone   func(Result)
	readFile func(string) ([]byte, error)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// stop releases enqueuers blocked on a full buffer; closed is set under
	// the write lock once they are gone.
	stop     chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResultHandler registers fn to be called from the worker goroutine after every job.
func WithResultHandler(fn func(Result)) Option {
	return func(q *Queue) { q.onDone = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewQueue starts the workers immediately.
func NewQueue(proc Processor, opts ...Option) *Queue {
	q := &Queue{
		proc:     proc,
		logger:   slog.Default(),
		workers:  4,
		timeout:  3 * time.Minute,
		ch:       make(chan Job, 64),
		stop:     make(chan struct{}),
		readFile: os.ReadFile,
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.process(workerID, job)
				}
				q.logger.Debug("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) process(workerID int, job Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	out, err := q.run(ctx, job)
	if err != nil {
		q.logger.Error("async.job.failed", "worker_id", workerID, "path", job.Path,
			"elapsed_ms", time.Since(start).Milliseconds(), "error", err)
	} else {
		q.logger.Info("async.job.ok", "worker_id", workerID, "path", job.Path,
			"document_id", out.DocumentID, "model", out.ModelID, "elapsed_ms", time.Since(start).Milliseconds())
	}
	if q.onDone != nil {
		q.onDone(Result{Job: job, Output: out, Err: err})
	}
}

func (q *Queue) run(ctx context.Context, job Job) (out pipeline.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = pipeline.Output{}, fmt.Errorf("panic processing %s: %v", job.Path, r)
		}
	}()
	data, err := q.readFile(job.Path)
	if err != nil {
		return pipeline.Output{}, fmt.Errorf("read %s: %w", job.Path, err)
	}
	name := filepath.Base(job.Path)
	corrID := job.CorrelationID
	if corrID == "" {
		corrID = uuid.NewString()
	}
	return q.proc.Run(ctx, pipeline.Input{
		InputType:     constants.InputPDF,
		Data:          data,
		SourceName:    &name,
		ModelOverride: job.ModelOverride,
		CorrelationID: corrID,
		TriggeredBy:   job.TriggeredBy,
	})
}

// Enqueue blocks while the buffer is full, until ctx is done or the queue
// shuts down.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("async.enqueue.rejected", "path", job.Path, "reason", "shutting down")
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.TriggeredBy == "" {
		job.TriggeredBy = constants.TriggeredByWatcher
	}
	select {
	case q.ch <- job:
		q.logger.Info("async.enqueue.ok", "path", job.Path, "triggered_by", job.TriggeredBy)
		return nil
	default:
	}
	q.logger.Warn("async.enqueue.backpressure", "path", job.Path, "queued", len(q.ch))
	select {
	case q.ch <- job:
		return nil
	case <-q.stop:
		q.logger.Warn("async.enqueue.rejected", "path", job.Path, "reason", "shutting down")
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for the workers to drain the buffer.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.stopOnce.Do(func() { close(q.stop) })
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
		return ctx.Err()
	case <-done:
		q.logger.Info("async.shutdown.ok")
		return nil
	}
}
