// Package authz holds the pure access policy for documents and AI
// features. Handlers and services call Can with the acting user and the
// target resource; the policy never touches the database.
package authz

import (
	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/pkg/errors"
)

// Action identifies an operation subject to policy.
type Action string

const (
	ActionViewDocument    Action = "document:view"
	ActionUploadDocument  Action = "document:upload"
	ActionSubmitDocument  Action = "document:submit"
	ActionReviewDocument  Action = "document:review"
	ActionDeleteDocument  Action = "document:delete"
	ActionDownloadFile    Action = "document:download"
	ActionQueryAI         Action = "ai:query"
	ActionDraftAI         Action = "ai:draft"
	ActionManageUsers     Action = "admin:users"
	ActionReviewLawyers   Action = "admin:lawyers"
	ActionExportDocuments Action = "admin:export"
)

// Actor is the authenticated principal evaluated by the policy.
type Actor struct {
	ID       string
	Role     models.UserRole
	Approved bool
	Active   bool
}

// Resource is the target of an ownership-scoped action. A zero OwnerID
// means the action has no per-resource owner (upload, AI query).
type Resource struct {
	OwnerID string
}

// Can evaluates whether the actor may perform the action on the
// resource. Returns nil on allow. Denials distinguish two cases: an
// actor with no relationship to the resource gets ErrNotFound so the
// resource's existence is not revealed, while a related actor gets
// ErrForbidden.
func Can(actor Actor, action Action, res Resource) error {
	if !actor.Active {
		return errors.ErrInactiveAccount
	}

	if actor.Role == models.RoleSuperAdmin {
		return nil
	}

	// Unapproved lawyers are locked out of mutating and AI actions
	// before any ownership check.
	if actor.Role == models.RoleLawyer && !actor.Approved {
		switch action {
		case ActionUploadDocument, ActionSubmitDocument, ActionReviewDocument,
			ActionDeleteDocument, ActionQueryAI, ActionDraftAI:
			return errors.ErrForbidden
		}
	}

	switch action {
	case ActionManageUsers, ActionExportDocuments, ActionReviewLawyers:
		if actor.Role.AtLeastAdmin() {
			return nil
		}
		return errors.ErrForbidden

	case ActionUploadDocument, ActionQueryAI, ActionDraftAI:
		return nil

	case ActionReviewDocument:
		if actor.Role.AtLeastAdmin() {
			return nil
		}
		// The owner learns why the call failed; anyone else learns
		// nothing about the document's existence.
		if res.OwnerID != "" && res.OwnerID == actor.ID {
			return errors.ErrForbidden
		}
		return errors.ErrNotFound

	case ActionViewDocument, ActionDownloadFile:
		if actor.Role.AtLeastAdmin() {
			return nil
		}
		if res.OwnerID == actor.ID {
			return nil
		}
		return errors.ErrNotFound

	case ActionSubmitDocument:
		// Submission is the owner's act alone; admins review, they do
		// not move other people's documents into the queue.
		if res.OwnerID == actor.ID {
			return nil
		}
		if actor.Role.AtLeastAdmin() {
			return errors.ErrForbidden
		}
		return errors.ErrNotFound

	case ActionDeleteDocument:
		if res.OwnerID == actor.ID {
			return nil
		}
		if actor.Role.AtLeastAdmin() {
			return nil
		}
		return errors.ErrNotFound
	}

	return errors.ErrForbidden
}

// ActorFromUser builds an Actor from a loaded account.
func ActorFromUser(u *models.User) Actor {
	return Actor{
		ID:       u.ID,
		Role:     u.Role,
		Approved: u.IsApproved,
		Active:   u.Active,
	}
}

// ActorFromClaims builds an Actor from JWT claims.
func ActorFromClaims(c *models.JWTClaims) Actor {
	return Actor{
		ID:       c.UserID,
		Role:     c.Role,
		Approved: c.IsApproved,
		Active:   true,
	}
}
