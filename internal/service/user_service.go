package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sheriapal/sheriapal-api/internal/authz"
	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/repository"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int64, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService provides admin-facing account management.
type UserService struct {
	repo   userRepository
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(repo userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// List returns users matching the filter.
func (s *UserService) List(ctx context.Context, actor authz.Actor, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := authz.Can(actor, authz.ActionManageUsers, authz.Resource{}); err != nil {
		return nil, nil, err
	}
	filter.Normalize()
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Get returns a single account.
func (s *UserService) Get(ctx context.Context, actor authz.Actor, id string) (*models.User, error) {
	// Users may always read their own account.
	if actor.ID != id {
		if err := authz.Can(actor, authz.ActionManageUsers, authz.Resource{}); err != nil {
			return nil, err
		}
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// AssignRole changes an account's role. Restricted to SUPERADMIN;
// admins manage documents and lawyer approvals, never roles.
func (s *UserService) AssignRole(ctx context.Context, actor authz.Actor, id string, role models.UserRole) (*models.User, error) {
	if err := authz.Can(actor, authz.ActionManageUsers, authz.Resource{}); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a superadmin may assign roles")
	}
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    actor.ID,
		Action:     models.AuditUserRoleChanged,
		TargetType: "user",
		TargetID:   id,
		Detail:     string(role),
	}); err != nil {
		s.logger.Warn("failed to record role change audit log", zap.Error(err))
	}

	target.Role = role
	return target, nil
}

// CreateAdmin provisions an ADMIN account. Restricted to SUPERADMIN.
func (s *UserService) CreateAdmin(ctx context.Context, actor authz.Actor, email, password, fullName string) (*models.User, error) {
	if err := authz.Can(actor, authz.ActionManageUsers, authz.Resource{}); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a superadmin may create admins")
	}
	if len(password) < 8 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "password must be at least 8 characters")
	}

	email = normalizeEmail(email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         models.RoleAdmin,
		IsApproved:   true,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admin")
	}
	return user, nil
}
