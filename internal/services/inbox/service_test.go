package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/async"
	"github.com/joseph-ayodele/order-parser/internal/common"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func write(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
	return path
}

func TestIngestFile(t *testing.T) {
	dir := t.TempDir()
	q := &fakeQueue{}
	svc := NewService(q, nil)
	ctx := context.Background()

	pdf := write(t, filepath.Join(dir, "a.pdf"))
	require.NoError(t, svc.IngestFile(ctx, pdf, constants.TriggeredByAPI))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, pdf, q.jobs[0].Path)
	assert.Equal(t, constants.TriggeredByAPI, q.jobs[0].TriggeredBy)

	assert.ErrorIs(t, svc.IngestFile(ctx, "", ""), common.ErrInvalidInput)
	assert.ErrorIs(t, svc.IngestFile(ctx, write(t, filepath.Join(dir, "a.txt")), ""), common.ErrInvalidInput)
	assert.ErrorIs(t, svc.IngestFile(ctx, filepath.Join(dir, "missing.pdf"), ""), common.ErrInvalidInput)

	q.err = async.ErrQueueClosed
	assert.ErrorIs(t, svc.IngestFile(ctx, pdf, ""), async.ErrQueueClosed)
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.pdf"))
	write(t, filepath.Join(dir, "sub", "b.pdf"))
	write(t, filepath.Join(dir, "notes.txt"))

	q := &fakeQueue{}
	res, err := NewService(q, nil).IngestDirectory(context.Background(), dir, constants.TriggeredByWatcher)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 2, res.Enqueued)
	assert.Empty(t, res.Failed)
}

func TestConsume(t *testing.T) {
	dir := t.TempDir()
	q := &fakeQueue{}
	paths := make(chan string, 3)
	paths <- write(t, filepath.Join(dir, "a.pdf"))
	paths <- filepath.Join(dir, "gone.pdf")
	paths <- write(t, filepath.Join(dir, "b.pdf"))
	close(paths)

	NewService(q, nil).Consume(context.Background(), paths)
	require.Len(t, q.jobs, 2)
	for _, j := range q.jobs {
		assert.Equal(t, constants.TriggeredByWatcher, j.TriggeredBy)
	}
}

func TestConsumeStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		NewService(&fakeQueue{err: errors.New("unused")}, nil).Consume(ctx, make(chan string))
		close(done)
	}()
	<-done
}
