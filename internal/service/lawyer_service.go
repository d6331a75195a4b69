package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sheriapal/sheriapal-api/internal/authz"
	"github.com/sheriapal/sheriapal-api/internal/models"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
)

type lawyerRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListPendingLawyers(ctx context.Context) ([]models.User, error)
	ApproveLawyer(ctx context.Context, id, approverID string, approvedAt time.Time) error
	DeclineLawyer(ctx context.Context, id, reason string, declinedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// LawyerService handles the admin review queue for lawyer accounts.
type LawyerService struct {
	repo   lawyerRepository
	logger *zap.Logger
}

// NewLawyerService constructs the service.
func NewLawyerService(repo lawyerRepository, logger *zap.Logger) *LawyerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LawyerService{repo: repo, logger: logger}
}

// ListPending returns lawyer accounts awaiting review, oldest request
// first. Declined accounts never reappear in the queue.
func (s *LawyerService) ListPending(ctx context.Context, actor authz.Actor) ([]models.User, error) {
	if err := authz.Can(actor, authz.ActionReviewLawyers, authz.Resource{}); err != nil {
		return nil, err
	}
	lawyers, err := s.repo.ListPendingLawyers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending lawyers")
	}
	return lawyers, nil
}

// Approve marks a pending lawyer approved. Approving an already
// approved lawyer is a no-op success so retries are safe.
func (s *LawyerService) Approve(ctx context.Context, actor authz.Actor, lawyerID string) (*models.User, error) {
	if err := authz.Can(actor, authz.ActionReviewLawyers, authz.Resource{}); err != nil {
		return nil, err
	}

	lawyer, err := s.fetchLawyer(ctx, lawyerID)
	if err != nil {
		return nil, err
	}
	if lawyer.IsApproved {
		return lawyer, nil
	}
	if lawyer.DeclinedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lawyer account was declined")
	}

	err = s.repo.ApproveLawyer(ctx, lawyerID, actor.ID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race with another reviewer; re-read to tell an
			// approval apart from a decline.
			lawyer, err = s.fetchLawyer(ctx, lawyerID)
			if err != nil {
				return nil, err
			}
			if lawyer.IsApproved {
				return lawyer, nil
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "lawyer account was declined")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve lawyer")
	}

	s.audit(ctx, actor.ID, models.AuditLawyerApproved, lawyerID, "")
	return s.fetchLawyer(ctx, lawyerID)
}

// Decline records a decline marker with a mandatory reason. The account
// stays in the system but leaves the pending queue permanently.
func (s *LawyerService) Decline(ctx context.Context, actor authz.Actor, lawyerID, reason string) (*models.User, error) {
	if err := authz.Can(actor, authz.ActionReviewLawyers, authz.Resource{}); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decline reason is required")
	}

	lawyer, err := s.fetchLawyer(ctx, lawyerID)
	if err != nil {
		return nil, err
	}
	if lawyer.IsApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lawyer account is already approved")
	}
	if lawyer.DeclinedAt != nil {
		return lawyer, nil
	}

	err = s.repo.DeclineLawyer(ctx, lawyerID, reason, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "lawyer account is no longer pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decline lawyer")
	}

	s.audit(ctx, actor.ID, models.AuditLawyerDeclined, lawyerID, reason)
	return s.fetchLawyer(ctx, lawyerID)
}

func (s *LawyerService) fetchLawyer(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lawyer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lawyer")
	}
	if user.Role != models.RoleLawyer {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lawyer not found")
	}
	return user, nil
}

func (s *LawyerService) audit(ctx context.Context, actorID, action, targetID, detail string) {
	err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: "user",
		TargetID:   targetID,
		Detail:     detail,
	})
	if err != nil {
		s.logger.Warn("failed to record lawyer audit log", zap.Error(err))
	}
}
