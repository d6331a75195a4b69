package models

import "time"

// DocumentStatus enumerates the review lifecycle states.
type DocumentStatus string

const (
	StatusUploaded      DocumentStatus = "UPLOADED"
	StatusPendingReview DocumentStatus = "PENDING_REVIEW"
	StatusApproved      DocumentStatus = "APPROVED"
	StatusRejected      DocumentStatus = "REJECTED"
)

// Valid reports whether the status is a known lifecycle state.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusPendingReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// transitions is the allowed state machine. APPROVED and REJECTED are
// terminal.
var transitions = map[DocumentStatus][]DocumentStatus{
	StatusUploaded:      {StatusPendingReview},
	StatusPendingReview: {StatusApproved, StatusRejected},
	StatusApproved:      {},
	StatusRejected:      {},
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s DocumentStatus) CanTransitionTo(target DocumentStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Document is an uploaded file plus its review metadata. The file bytes
// live in object storage at StoragePath.
type Document struct {
	ID              string         `db:"id" json:"id"`
	OwnerID         string         `db:"owner_id" json:"owner_id"`
	Filename        string         `db:"filename" json:"filename"`
	ContentType     string         `db:"content_type" json:"content_type"`
	SizeBytes       int64          `db:"size_bytes" json:"size_bytes"`
	StoragePath     string         `db:"storage_path" json:"-"`
	Status          DocumentStatus `db:"status" json:"status"`
	ReviewedBy      *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// DocumentFilter narrows document listing queries.
type DocumentFilter struct {
	OwnerID string
	Status  *DocumentStatus
	Search  string
	Page    int
	Limit   int
}

// Normalize applies listing defaults.
func (f *DocumentFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// Offset returns the SQL offset for the filter's page.
func (f *DocumentFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
