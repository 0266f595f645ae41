package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/pipeline"
)

type fakeProcessor struct {
	mu     sync.Mutex
	inputs []pipeline.Input
	err    error
	block  chan struct{}
	panic  bool
}

func (f *fakeProcessor) Run(ctx context.Context, in pipeline.Input) (pipeline.Output, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return pipeline.Output{}, ctx.Err()
		}
	}
	if f.panic {
		panic("index out of range")
	}
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	if f.err != nil {
		return pipeline.Output{}, f.err
	}
	return pipeline.Output{DocumentID: "doc-" + *in.SourceName}, nil
}

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4 fake"), 0o644))
	return p
}

func TestQueueProcessesJobs(t *testing.T) {
	dir := t.TempDir()
	proc := &fakeProcessor{}

	var mu sync.Mutex
	var results []Result
	q := NewQueue(proc, WithWorkers(2), WithQueueSize(4), WithResultHandler(func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}))

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{Path: writePDF(t, dir, "a.pdf")}))
	require.NoError(t, q.Enqueue(ctx, Job{Path: writePDF(t, dir, "b.pdf"), TriggeredBy: constants.TriggeredByBatch}))
	require.NoError(t, q.Shutdown(ctx))

	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, "doc-"+filepath.Base(r.Job.Path), r.Output.DocumentID)
	}
	require.Len(t, proc.inputs, 2)
	byName := map[string]pipeline.Input{}
	for _, in := range proc.inputs {
		byName[*in.SourceName] = in
	}
	assert.Equal(t, constants.InputPDF, byName["a.pdf"].InputType)
	assert.Equal(t, constants.TriggeredByWatcher, byName["a.pdf"].TriggeredBy)
	assert.Equal(t, constants.TriggeredByBatch, byName["b.pdf"].TriggeredBy)
	assert.NotEmpty(t, byName["a.pdf"].CorrelationID)
	assert.Equal(t, []byte("%PDF-1.4 fake"), byName["a.pdf"].Data)
}

func TestQueueReportsErrors(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("boom")}
	var got []Result
	q := NewQueue(proc, WithWorkers(1), WithResultHandler(func(r Result) { got = append(got, r) }))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: filepath.Join(t.TempDir(), "missing.pdf")}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writePDF(t, t.TempDir(), "x.pdf")}))
	require.NoError(t, q.Shutdown(context.Background()))

	require.Len(t, got, 2)
	assert.ErrorIs(t, got[0].Err, os.ErrNotExist)
	assert.EqualError(t, got[1].Err, "boom")
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	q := NewQueue(&fakeProcessor{}, WithWorkers(1))
	require.NoError(t, q.Shutdown(context.Background()))
	require.NoError(t, q.Shutdown(context.Background()))

	err := q.Enqueue(context.Background(), Job{Path: "a.pdf"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueShutdownHonoursContext(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	q := NewQueue(proc, WithWorkers(1), WithProcessTimeout(time.Minute))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writePDF(t, t.TempDir(), "slow.pdf")}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)

	close(proc.block)
}

func TestEnqueueBackpressureRespectsContext(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	defer close(proc.block)
	q := NewQueue(proc, WithWorkers(1), WithQueueSize(1))
	dir := t.TempDir()

	// one job held by the worker, one in the buffer
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writePDF(t, dir, "1.pdf")}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writePDF(t, dir, "2.pdf")}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{Path: writePDF(t, dir, "3.pdf")}), context.DeadlineExceeded)
}

func TestShutdownReleasesBlockedEnqueue(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	defer close(proc.block)
	q := NewQueue(proc, WithWorkers(1), WithQueueSize(1), WithProcessTimeout(time.Minute))
	dir := t.TempDir()

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writePDF(t, dir, "1.pdf")}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writePDF(t, dir, "2.pdf")}))

	third := writePDF(t, dir, "3.pdf")
	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Enqueue(context.Background(), Job{Path: third})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("enqueue still blocked after shutdown")
	}
}

func TestQueueRecoversFromPanickingJob(t *testing.T) {
	var got []Result
	q := NewQueue(&fakeProcessor{panic: true}, WithWorkers(1), WithResultHandler(func(r Result) { got = append(got, r) }))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writePDF(t, t.TempDir(), "p.pdf")}))
	require.NoError(t, q.Shutdown(context.Background()))

	require.Len(t, got, 1)
	require.Error(t, got[0].Err)
	assert.Contains(t, got[0].Err.Error(), "panic processing")
}
