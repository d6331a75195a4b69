package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/search"
	"github.com/sheriapal/sheriapal-api/pkg/jobs"
	"github.com/sheriapal/sheriapal-api/pkg/storage"
)

// maxIndexBytes caps how much of a file is read into the index.
const maxIndexBytes = 1 << 20

type indexerRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByStatus(ctx context.Context, status models.DocumentStatus) ([]models.Document, error)
}

// IndexerService feeds approved document text into the search index.
// It runs behind the background queue so reviews never block on file
// reads.
type IndexerService struct {
	repo    indexerRepository
	store   storage.Storage
	index   *search.KeywordIndex
	metrics *MetricsService
	logger  *zap.Logger
}

// NewIndexerService constructs the service.
func NewIndexerService(repo indexerRepository, store storage.Storage, index *search.KeywordIndex, metrics *MetricsService, logger *zap.Logger) *IndexerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexerService{repo: repo, store: store, index: index, metrics: metrics, logger: logger}
}

// HandleJob processes one index job. The payload is the document id.
func (s *IndexerService) HandleJob(ctx context.Context, job jobs.Job) error {
	docID, ok := job.Payload.(string)
	if !ok || docID == "" {
		return fmt.Errorf("index job %s has no document id", job.ID)
	}

	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Deleted before the job ran; nothing to index.
			s.index.Remove(docID)
			return nil
		}
		return fmt.Errorf("load document %s: %w", docID, err)
	}
	if doc.Status != models.StatusApproved {
		return nil
	}

	if err := s.indexDocument(ctx, doc); err != nil {
		return err
	}
	s.metrics.SetIndexedDocuments(s.index.Len())
	s.logger.Info("indexed document", zap.String("document_id", doc.ID))
	return nil
}

// Warm rebuilds the index from every approved document. Called once at
// startup; individual read failures are logged and skipped so one bad
// object cannot block boot.
func (s *IndexerService) Warm(ctx context.Context) error {
	docs, err := s.repo.ListByStatus(ctx, models.StatusApproved)
	if err != nil {
		return fmt.Errorf("list approved documents: %w", err)
	}
	for i := range docs {
		if err := s.indexDocument(ctx, &docs[i]); err != nil {
			s.logger.Warn("skipping document during index warmup",
				zap.String("document_id", docs[i].ID), zap.Error(err))
		}
	}
	s.metrics.SetIndexedDocuments(s.index.Len())
	s.logger.Info("search index warmed", zap.Int("documents", s.index.Len()))
	return nil
}

func (s *IndexerService) indexDocument(ctx context.Context, doc *models.Document) error {
	text, err := s.extractText(ctx, doc)
	if err != nil {
		return err
	}
	s.index.Add(doc.ID, doc.Filename, text)
	return nil
}

// extractText reads plain-text content from storage. Binary formats
// fall back to the filename so they stay findable by name.
func (s *IndexerService) extractText(ctx context.Context, doc *models.Document) (string, error) {
	if !strings.HasPrefix(doc.ContentType, "text/") {
		return doc.Filename, nil
	}

	rc, err := s.store.Open(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return doc.Filename, nil
		}
		return "", fmt.Errorf("open stored file %s: %w", doc.StoragePath, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxIndexBytes))
	if err != nil {
		return "", fmt.Errorf("read stored file %s: %w", doc.StoragePath, err)
	}
	return doc.Filename + "\n" + string(raw), nil
}
