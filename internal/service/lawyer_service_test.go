package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheriapal/sheriapal-api/internal/models"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
)

type stubLawyerRepo struct {
	mu        sync.Mutex
	users     map[string]*models.User
	auditLogs []*models.AuditLog
}

func newStubLawyerRepo(users ...*models.User) *stubLawyerRepo {
	repo := &stubLawyerRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *stubLawyerRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (r *stubLawyerRepo) ListPendingLawyers(ctx context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if u.Role == models.RoleLawyer && !u.IsApproved && u.DeclinedAt == nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *stubLawyerRepo) ApproveLawyer(ctx context.Context, id, approverID string, approvedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Role != models.RoleLawyer || u.IsApproved || u.DeclinedAt != nil {
		return sql.ErrNoRows
	}
	u.IsApproved = true
	u.ApprovedBy = &approverID
	u.ApprovedAt = &approvedAt
	return nil
}

func (r *stubLawyerRepo) DeclineLawyer(ctx context.Context, id, reason string, declinedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Role != models.RoleLawyer || u.IsApproved || u.DeclinedAt != nil {
		return sql.ErrNoRows
	}
	u.DeclinedAt = &declinedAt
	u.DeclineReason = &reason
	return nil
}

func (r *stubLawyerRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditLogs = append(r.auditLogs, log)
	return nil
}

func pendingLawyerAccount(id string) *models.User {
	requested := time.Now().Add(-time.Hour)
	return &models.User{
		ID: id, Email: id + "@example.com", Role: models.RoleLawyer,
		Active: true, ApprovalRequestedAt: &requested,
	}
}

func TestLawyerApproveHappyPath(t *testing.T) {
	repo := newStubLawyerRepo(pendingLawyerAccount("lawyer-1"))
	svc := NewLawyerService(repo, zap.NewNop())

	approved, err := svc.Approve(context.Background(), adminActor, "lawyer-1")
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "admin-1", *approved.ApprovedBy)
}

func TestLawyerApproveIsIdempotent(t *testing.T) {
	repo := newStubLawyerRepo(pendingLawyerAccount("lawyer-1"))
	svc := NewLawyerService(repo, zap.NewNop())

	_, err := svc.Approve(context.Background(), adminActor, "lawyer-1")
	require.NoError(t, err)

	again, err := svc.Approve(context.Background(), adminActor, "lawyer-1")
	require.NoError(t, err)
	assert.True(t, again.IsApproved)
}

func TestLawyerDeclineRecordsReason(t *testing.T) {
	repo := newStubLawyerRepo(pendingLawyerAccount("lawyer-1"))
	svc := NewLawyerService(repo, zap.NewNop())

	declined, err := svc.Decline(context.Background(), adminActor, "lawyer-1", "bar number not verified")
	require.NoError(t, err)
	require.NotNil(t, declined.DeclinedAt)
	require.NotNil(t, declined.DeclineReason)
	assert.Equal(t, "bar number not verified", *declined.DeclineReason)

	// Declined account leaves the queue and cannot be approved.
	pending, err := svc.ListPending(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = svc.Approve(context.Background(), adminActor, "lawyer-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestLawyerDeclineRequiresReason(t *testing.T) {
	repo := newStubLawyerRepo(pendingLawyerAccount("lawyer-1"))
	svc := NewLawyerService(repo, zap.NewNop())

	_, err := svc.Decline(context.Background(), adminActor, "lawyer-1", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLawyerDeclineAfterApproveConflicts(t *testing.T) {
	repo := newStubLawyerRepo(pendingLawyerAccount("lawyer-1"))
	svc := NewLawyerService(repo, zap.NewNop())

	_, err := svc.Approve(context.Background(), adminActor, "lawyer-1")
	require.NoError(t, err)

	_, err = svc.Decline(context.Background(), adminActor, "lawyer-1", "too late")
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestLawyerQueueRequiresAdmin(t *testing.T) {
	repo := newStubLawyerRepo(pendingLawyerAccount("lawyer-1"))
	svc := NewLawyerService(repo, zap.NewNop())

	_, err := svc.ListPending(context.Background(), ownerActor)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Approve(context.Background(), ownerActor, "lawyer-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestLawyerOperationsOnNonLawyer(t *testing.T) {
	repo := newStubLawyerRepo(&models.User{ID: "user-1", Role: models.RoleUser, Active: true})
	svc := NewLawyerService(repo, zap.NewNop())

	_, err := svc.Approve(context.Background(), adminActor, "user-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Approve(context.Background(), adminActor, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
