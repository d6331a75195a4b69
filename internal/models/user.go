package models

import "time"

// UserRole enumerates the access levels in the system.
type UserRole string

const (
	RoleUser       UserRole = "USER"
	RoleLawyer     UserRole = "LAWYER"
	RoleAdmin      UserRole = "ADMIN"
	RoleSuperAdmin UserRole = "SUPERADMIN"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleUser, RoleLawyer, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// AtLeastAdmin reports whether the role carries admin privileges.
func (r UserRole) AtLeastAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User is a registered account. Lawyers start unapproved and must be
// approved by an admin before they can act on documents.
type User struct {
	ID                  string     `db:"id" json:"id"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	FullName            string     `db:"full_name" json:"full_name"`
	Role                UserRole   `db:"role" json:"role"`
	IsApproved          bool       `db:"is_approved" json:"is_approved"`
	Active              bool       `db:"active" json:"active"`
	ApprovalRequestedAt *time.Time `db:"approval_requested_at" json:"approval_requested_at,omitempty"`
	ApprovedBy          *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt          *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	DeclinedAt          *time.Time `db:"declined_at" json:"declined_at,omitempty"`
	DeclineReason       *string    `db:"decline_reason" json:"decline_reason,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// CanActOnDocuments reports whether the account may mutate documents.
// Unapproved lawyers are read-only until an admin approves them.
func (u *User) CanActOnDocuments() bool {
	if u.Role == RoleLawyer && !u.IsApproved {
		return false
	}
	return u.Active
}

// UserFilter narrows user listing queries.
type UserFilter struct {
	Role   *UserRole
	Active *bool
	Search string
	Page   int
	Limit  int
}

// Normalize applies listing defaults.
func (f *UserFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// Offset returns the SQL offset for the filter's page.
func (f *UserFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes the page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// NewPagination computes page counts from a total.
func NewPagination(page, limit int, total int64) *Pagination {
	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}
	return &Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
