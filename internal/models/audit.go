package models

import "time"

// Audit actions recorded against users and documents.
const (
	AuditUserRegistered    = "user.registered"
	AuditUserRoleChanged   = "user.role_changed"
	AuditLawyerApproved    = "lawyer.approved"
	AuditLawyerDeclined    = "lawyer.declined"
	AuditDocumentUploaded  = "document.uploaded"
	AuditDocumentSubmitted = "document.submitted"
	AuditDocumentApproved  = "document.approved"
	AuditDocumentRejected  = "document.rejected"
	AuditDocumentDeleted   = "document.deleted"
)

// AuditLog records who did what to which resource.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	Action     string    `db:"action" json:"action"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   string    `db:"target_id" json:"target_id"`
	Detail     string    `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
