package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sheriapal/sheriapal-api/internal/models"
)

const documentColumns = `id, owner_id, filename, content_type, size_bytes, storage_path,
       status, reviewed_by, reviewed_at, rejection_reason, created_at, updated_at`

// DocumentRepository persists document metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.StatusUploaded
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	const query = `INSERT INTO documents
	(id, owner_id, filename, content_type, size_bytes, storage_path, status, created_at, updated_at)
	VALUES (:id, :owner_id, :filename, :content_type, :size_bytes, :storage_path, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID fetches a document by identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1 LIMIT 1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// List returns documents matching the filter with a total count, newest
// first.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int64, error) {
	filter.Normalize()

	baseQuery := `FROM documents WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)+1))
		args = append(args, filter.OwnerID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(filename) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		documentColumns, baseQuery, filter.Limit, filter.Offset())

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	return docs, total, nil
}

// ListByStatus returns every document in the given state. Used to warm
// the search index at startup.
func (r *DocumentRepository) ListByStatus(ctx context.Context, status models.DocumentStatus) ([]models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE status = $1 ORDER BY created_at ASC`, documentColumns)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, status); err != nil {
		return nil, fmt.Errorf("list documents by status: %w", err)
	}
	return docs, nil
}

// UpdateStatusParams groups the columns written by a status transition.
type UpdateStatusParams struct {
	ID              string
	From            models.DocumentStatus
	To              models.DocumentStatus
	ReviewedBy      *string
	ReviewedAt      *time.Time
	RejectionReason *string
}

// UpdateStatus performs a conditional transition: the row is updated
// only while it is still in the expected From state, so concurrent
// reviewers serialize and exactly one wins. Returns sql.ErrNoRows when
// the document has already left the From state (or does not exist).
func (r *DocumentRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	setParts := []string{
		"status = :status",
		"updated_at = :updated_at",
	}
	if params.ReviewedBy != nil {
		setParts = append(setParts, "reviewed_by = :reviewed_by")
	}
	if params.ReviewedAt != nil {
		setParts = append(setParts, "reviewed_at = :reviewed_at")
	}
	if params.RejectionReason != nil {
		setParts = append(setParts, "rejection_reason = :rejection_reason")
	}
	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = :id AND status = :from_status",
		strings.Join(setParts, ", "))

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"status":           params.To,
		"from_status":      params.From,
		"updated_at":       time.Now().UTC(),
		"reviewed_by":      params.ReviewedBy,
		"reviewed_at":      params.ReviewedAt,
		"rejection_reason": params.RejectionReason,
	})
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a document row. Returns sql.ErrNoRows when nothing was
// deleted.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus returns document totals grouped by status. Used by the
// admin export and metrics.
func (r *DocumentRepository) CountByStatus(ctx context.Context) (map[models.DocumentStatus]int64, error) {
	const query = `SELECT status, COUNT(*) AS total FROM documents GROUP BY status`
	rows := []struct {
		Status models.DocumentStatus `db:"status"`
		Total  int64                 `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count documents by status: %w", err)
	}
	counts := make(map[models.DocumentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// CreateAuditLog stores an audit log entry.
func (r *DocumentRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, action, target_type, target_id, detail, created_at)
	VALUES (:id, :actor_id, :action, :target_type, :target_id, :detail, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
