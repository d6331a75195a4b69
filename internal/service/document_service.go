package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheriapal/sheriapal-api/internal/authz"
	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/repository"
	"github.com/sheriapal/sheriapal-api/internal/search"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
	"github.com/sheriapal/sheriapal-api/pkg/export"
	"github.com/sheriapal/sheriapal-api/pkg/jobs"
	"github.com/sheriapal/sheriapal-api/pkg/storage"
)

// JobTypeIndexDocument asks the indexer to (re)index an approved
// document.
const JobTypeIndexDocument = "index_document"

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int64, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[models.DocumentStatus]int64, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// DocumentConfig bounds uploads.
type DocumentConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentService drives the upload, review and retrieval lifecycle of
// documents.
type DocumentService struct {
	repo     documentRepository
	store    storage.Storage
	signer   *storage.SignedURLSigner
	index    *search.KeywordIndex
	queue    jobEnqueuer
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
	config   DocumentConfig
}

// NewDocumentService constructs the service. queue and signer may be
// nil when async indexing or signed URLs are disabled.
func NewDocumentService(
	repo documentRepository,
	store storage.Storage,
	signer *storage.SignedURLSigner,
	index *search.KeywordIndex,
	queue jobEnqueuer,
	logger *zap.Logger,
	config DocumentConfig,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:   repo,
		store:  store,
		signer: signer,
		index:  index,
		queue:  queue,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
		config: config,
	}
}

// UploadInput carries an incoming file.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Upload stores the file bytes and creates the metadata record in
// UPLOADED state. When the metadata insert fails the stored object is
// deleted so no orphaned handle survives.
func (s *DocumentService) Upload(ctx context.Context, actor authz.Actor, in UploadInput) (*models.Document, error) {
	if err := authz.Can(actor, authz.ActionUploadDocument, authz.Resource{}); err != nil {
		return nil, err
	}
	if in.Filename == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "filename is required")
	}
	if s.config.MaxFileSizeBytes > 0 && in.Size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}
	if len(s.config.AllowedMIMEs) > 0 && !contains(s.config.AllowedMIMEs, in.ContentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type")
	}

	docID := uuid.NewString()
	path, err := s.store.Save(ctx, docID, in.Filename, in.Reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.Document{
		ID:          docID,
		OwnerID:     actor.ID,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		SizeBytes:   in.Size,
		StoragePath: path,
		Status:      models.StatusUploaded,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		// Compensate: the record failed, so the stored bytes must not
		// survive as an orphan.
		if delErr := s.store.Delete(ctx, path); delErr != nil {
			s.logger.Error("failed to clean up stored file after metadata failure",
				zap.String("storage_path", path), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}

	s.audit(ctx, actor.ID, models.AuditDocumentUploaded, doc.ID, doc.Filename)
	return doc, nil
}

// Get returns a document the actor is allowed to see.
func (s *DocumentService) Get(ctx context.Context, actor authz.Actor, id string) (*models.Document, error) {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionViewDocument, authz.Resource{OwnerID: doc.OwnerID}); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns documents visible to the actor. Non-admin actors only
// ever see their own documents.
func (s *DocumentService) List(ctx context.Context, actor authz.Actor, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error) {
	filter.Normalize()
	if !actor.Role.AtLeastAdmin() {
		filter.OwnerID = actor.ID
	}
	docs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Submit moves an UPLOADED document to PENDING_REVIEW. Only the owner
// (or an admin) may submit.
func (s *DocumentService) Submit(ctx context.Context, actor authz.Actor, id string) (*models.Document, error) {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionSubmitDocument, authz.Resource{OwnerID: doc.OwnerID}); err != nil {
		return nil, err
	}
	if !doc.Status.CanTransitionTo(models.StatusPendingReview) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot submit a document in %s state", doc.Status))
	}

	err = s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:   doc.ID,
		From: models.StatusUploaded,
		To:   models.StatusPendingReview,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "document is no longer in UPLOADED state")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit document")
	}

	s.audit(ctx, actor.ID, models.AuditDocumentSubmitted, doc.ID, "")
	return s.fetch(ctx, id)
}

// Approve moves a PENDING_REVIEW document to APPROVED and records the
// reviewer. Concurrent reviews serialize on the conditional update so
// exactly one wins; the loser gets InvalidTransition.
func (s *DocumentService) Approve(ctx context.Context, actor authz.Actor, id string) (*models.Document, error) {
	return s.review(ctx, actor, id, models.StatusApproved, nil)
}

// Reject moves a PENDING_REVIEW document to REJECTED with a mandatory
// reason.
func (s *DocumentService) Reject(ctx context.Context, actor authz.Actor, id, reason string) (*models.Document, error) {
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	return s.review(ctx, actor, id, models.StatusRejected, &reason)
}

func (s *DocumentService) review(ctx context.Context, actor authz.Actor, id string, to models.DocumentStatus, reason *string) (*models.Document, error) {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(actor, authz.ActionReviewDocument, authz.Resource{OwnerID: doc.OwnerID}); err != nil {
		return nil, err
	}
	if !doc.Status.CanTransitionTo(to) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move a %s document to %s", doc.Status, to))
	}

	now := time.Now().UTC()
	err = s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:              doc.ID,
		From:            models.StatusPendingReview,
		To:              to,
		ReviewedBy:      &actor.ID,
		ReviewedAt:      &now,
		RejectionReason: reason,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "document is no longer pending review")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document status")
	}

	if to == models.StatusApproved {
		s.audit(ctx, actor.ID, models.AuditDocumentApproved, doc.ID, "")
		s.enqueueIndex(doc.ID)
	} else {
		s.audit(ctx, actor.ID, models.AuditDocumentRejected, doc.ID, *reason)
	}

	return s.fetch(ctx, id)
}

// Delete removes the record, releases the stored bytes and drops the
// document from the search index. A storage release failure after the
// record is gone is logged as a leaked object, not surfaced to the
// caller.
func (s *DocumentService) Delete(ctx context.Context, actor authz.Actor, id string) error {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Can(actor, authz.ActionDeleteDocument, authz.Resource{OwnerID: doc.OwnerID}); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}

	if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
		s.logger.Error("leaked storage object after document delete",
			zap.String("document_id", doc.ID),
			zap.String("storage_path", doc.StoragePath),
			zap.Error(err))
	}
	if s.index != nil {
		s.index.Remove(doc.ID)
	}

	s.audit(ctx, actor.ID, models.AuditDocumentDeleted, doc.ID, doc.Filename)
	return nil
}

// Download streams the stored bytes. A handle whose backing object was
// deleted mid-flight surfaces as NotFound.
func (s *DocumentService) Download(ctx context.Context, actor authz.Actor, id string) (*models.Document, io.ReadCloser, error) {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.Can(actor, authz.ActionDownloadFile, authz.Resource{OwnerID: doc.OwnerID}); err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Open(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "stored file no longer exists")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return doc, rc, nil
}

// SignedDownloadURL mints a time-limited token the caller can redeem
// without an Authorization header.
func (s *DocumentService) SignedDownloadURL(ctx context.Context, actor authz.Actor, id string) (string, time.Time, error) {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := authz.Can(actor, authz.ActionDownloadFile, authz.Resource{OwnerID: doc.OwnerID}); err != nil {
		return "", time.Time{}, err
	}
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "signed downloads are not configured")
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.StoragePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return token, expiresAt, nil
}

// DownloadSigned redeems a signed token and streams the file.
func (s *DocumentService) DownloadSigned(ctx context.Context, token string) (*models.Document, io.ReadCloser, error) {
	if s.signer == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrInternal, "signed downloads are not configured")
	}
	docID, _, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	doc, err := s.fetch(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "stored file no longer exists")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return doc, rc, nil
}

// ExportReport renders an admin-only report of all documents grouped by
// status. Format is "csv" or "pdf".
func (s *DocumentService) ExportReport(ctx context.Context, actor authz.Actor, format string) ([]byte, string, error) {
	if err := authz.Can(actor, authz.ActionExportDocuments, authz.Resource{}); err != nil {
		return nil, "", err
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count documents")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Owner", "Filename", "Status", "Uploaded At"},
	}
	filter := models.DocumentFilter{Page: 1, Limit: 100}
	for {
		docs, _, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
		}
		for _, d := range docs {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"ID":          d.ID,
				"Owner":       d.OwnerID,
				"Filename":    d.Filename,
				"Status":      string(d.Status),
				"Uploaded At": d.CreatedAt.Format(time.RFC3339),
			})
		}
		if len(docs) < filter.Limit {
			break
		}
		filter.Page++
	}

	title := fmt.Sprintf("Document Report (%d uploaded, %d pending, %d approved, %d rejected)",
		counts[models.StatusUploaded], counts[models.StatusPendingReview],
		counts[models.StatusApproved], counts[models.StatusRejected])

	switch format {
	case "pdf":
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return payload, "application/pdf", nil
	case "csv", "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *DocumentService) fetch(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) enqueueIndex(docID string) {
	if s.queue == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeIndexDocument,
		Payload: docID,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue index job", zap.String("document_id", docID), zap.Error(err))
	}
}

func (s *DocumentService) audit(ctx context.Context, actorID, action, targetID, detail string) {
	err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: "document",
		TargetID:   targetID,
		Detail:     detail,
	})
	if err != nil {
		s.logger.Warn("failed to record document audit log", zap.Error(err))
	}
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
