package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/service"
)

type fakeLawyerRepo struct {
	lawyers map[string]*models.User
}

func newFakeLawyerRepo() *fakeLawyerRepo {
	return &fakeLawyerRepo{lawyers: make(map[string]*models.User)}
}

func (r *fakeLawyerRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.lawyers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (r *fakeLawyerRepo) ListPendingLawyers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range r.lawyers {
		if !u.IsApproved && u.DeclinedAt == nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeLawyerRepo) ApproveLawyer(ctx context.Context, id, approverID string, approvedAt time.Time) error {
	u, ok := r.lawyers[id]
	if !ok || u.IsApproved || u.DeclinedAt != nil {
		return sql.ErrNoRows
	}
	u.IsApproved = true
	u.ApprovedBy = &approverID
	u.ApprovedAt = &approvedAt
	return nil
}

func (r *fakeLawyerRepo) DeclineLawyer(ctx context.Context, id, reason string, declinedAt time.Time) error {
	u, ok := r.lawyers[id]
	if !ok || u.IsApproved || u.DeclinedAt != nil {
		return sql.ErrNoRows
	}
	u.DeclinedAt = &declinedAt
	u.DeclineReason = &reason
	return nil
}

func (r *fakeLawyerRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

func newLawyerHandler(repo *fakeLawyerRepo) *LawyerHandler {
	return NewLawyerHandler(service.NewLawyerService(repo, zap.NewNop()))
}

func pendingLawyer(id string) *models.User {
	requested := time.Now().UTC()
	return &models.User{
		ID:                  id,
		Email:               id + "@example.com",
		FullName:            "Pending Lawyer",
		Role:                models.RoleLawyer,
		Active:              true,
		ApprovalRequestedAt: &requested,
	}
}

func TestLawyerHandlerListPending(t *testing.T) {
	repo := newFakeLawyerRepo()
	repo.lawyers["law-1"] = pendingLawyer("law-1")
	h := newLawyerHandler(repo)

	c, w := testContext(t, http.MethodGet, "/admin/lawyers/pending", nil, adminClaims())
	h.ListPending(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "law-1@example.com")
}

func TestLawyerHandlerListPendingForbiddenForUsers(t *testing.T) {
	h := newLawyerHandler(newFakeLawyerRepo())

	c, w := testContext(t, http.MethodGet, "/admin/lawyers/pending", nil, ownerClaims())
	h.ListPending(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestLawyerHandlerApprove(t *testing.T) {
	repo := newFakeLawyerRepo()
	repo.lawyers["law-1"] = pendingLawyer("law-1")
	h := newLawyerHandler(repo)

	c, w := testContext(t, http.MethodPost, "/admin/lawyers/law-1/approve", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "law-1"}}
	h.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, repo.lawyers["law-1"].IsApproved)
}

func TestLawyerHandlerApproveUnknownLawyer(t *testing.T) {
	h := newLawyerHandler(newFakeLawyerRepo())

	c, w := testContext(t, http.MethodPost, "/admin/lawyers/missing/approve", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Approve(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLawyerHandlerDeclineRequiresReason(t *testing.T) {
	repo := newFakeLawyerRepo()
	repo.lawyers["law-1"] = pendingLawyer("law-1")
	h := newLawyerHandler(repo)

	c, w := testContext(t, http.MethodPost, "/admin/lawyers/law-1/decline", strings.NewReader(`{"reason":""}`), adminClaims())
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "law-1"}}
	h.Decline(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, repo.lawyers["law-1"].DeclinedAt)
}

func TestLawyerHandlerDecline(t *testing.T) {
	repo := newFakeLawyerRepo()
	repo.lawyers["law-1"] = pendingLawyer("law-1")
	h := newLawyerHandler(repo)

	c, w := testContext(t, http.MethodPost, "/admin/lawyers/law-1/decline", strings.NewReader(`{"reason":"no bar certificate"}`), adminClaims())
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "law-1"}}
	h.Decline(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, repo.lawyers["law-1"].DeclinedAt)
}
