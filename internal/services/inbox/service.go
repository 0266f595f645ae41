package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/async"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/ingest"
)

// Enqueuer is the part of async.Queue the inbox needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// Service hands inbox files to the parse queue.
type Service struct {
	queue  Enqueuer
	logger *slog.Logger
}

func NewService(q Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{queue: q, logger: logger}
}

// DirectoryResult summarizes a directory ingest.
type DirectoryResult struct {
	Matched  int      `json:"matched"`
	Enqueued int      `json:"enqueued"`
	Failed   []string `json:"failed"`
}

// IngestFile enqueues a single PDF.
func (s *Service) IngestFile(ctx context.Context, path, triggeredBy string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return common.InvalidInput("path is required")
	}
	if !ingest.AllowedExt(filepath.Ext(path)) {
		return common.InvalidInput("Only PDF files are supported")
	}
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Error("inbox.file.stat_failed", "path", path, "error", err)
		return common.InvalidInput("file not found: " + path)
	}
	if info.IsDir() {
		return common.InvalidInput("path is a directory")
	}
	if err := s.queue.Enqueue(ctx, async.Job{Path: path, TriggeredBy: triggeredBy}); err != nil {
		s.logger.Error("inbox.enqueue_failed", "path", path, "error", err)
		return common.WrapError(err, "enqueue")
	}
	return nil
}

// IngestDirectory enqueues every PDF under root.
func (s *Service) IngestDirectory(ctx context.Context, root, triggeredBy string) (*DirectoryResult, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, common.InvalidInput("root is required")
	}
	files, err := ingest.ScanDirectory(root)
	if err != nil {
		s.logger.Error("inbox.scan_failed", "root", root, "error", err)
		return nil, common.WrapError(err, "scan directory")
	}

	res := &DirectoryResult{Matched: len(files), Failed: []string{}}
	for _, f := range files {
		if err := s.IngestFile(ctx, f, triggeredBy); err != nil {
			res.Failed = append(res.Failed, f)
			continue
		}
		res.Enqueued++
	}
	s.logger.Info("inbox.directory.ok", "root", root, "matched", res.Matched, "enqueued", res.Enqueued, "failed", len(res.Failed))
	return res, nil
}

// Consume enqueues every path from paths until the channel closes or ctx is done.
func (s *Service) Consume(ctx context.Context, paths <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-paths:
			if !ok {
				return
			}
			if err := s.IngestFile(ctx, p, constants.TriggeredByWatcher); err != nil {
				s.logger.Warn("inbox.skip", "path", p, "error", err)
			}
		}
	}
}
