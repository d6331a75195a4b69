package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sheriapal/sheriapal-api/internal/authz"
	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/repository"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
)

type stubUserRepo struct {
	mu        sync.Mutex
	users     map[string]*models.User
	createErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*models.User)}
}

func (r *stubUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (r *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *stubUserRepo) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = role
	return nil
}

func (r *stubUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (r *stubUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

func seedAccount(repo *stubUserRepo, id string, role models.UserRole) *models.User {
	u := &models.User{
		ID:         id,
		Email:      id + "@example.com",
		FullName:   "Account " + id,
		Role:       role,
		IsApproved: true,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	repo.users[id] = u
	return u
}

var superActor = authz.Actor{ID: "super-1", Role: models.RoleSuperAdmin, Approved: true, Active: true}

func TestUserServiceListRequiresAdmin(t *testing.T) {
	repo := newStubUserRepo()
	seedAccount(repo, "u1", models.RoleUser)
	svc := NewUserService(repo, nil)

	_, _, err := svc.List(context.Background(), ownerActor, models.UserFilter{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	users, pagination, err := svc.List(context.Background(), adminActor, models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.EqualValues(t, 1, pagination.Total)
}

func TestUserServiceGetAllowsSelfRead(t *testing.T) {
	repo := newStubUserRepo()
	seedAccount(repo, ownerActor.ID, models.RoleUser)
	seedAccount(repo, "someone-else", models.RoleUser)
	svc := NewUserService(repo, nil)

	self, err := svc.Get(context.Background(), ownerActor, ownerActor.ID)
	require.NoError(t, err)
	assert.Equal(t, ownerActor.ID, self.ID)

	_, err = svc.Get(context.Background(), ownerActor, "someone-else")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestUserServiceAssignRoleSuperadminOnly(t *testing.T) {
	repo := newStubUserRepo()
	seedAccount(repo, "u1", models.RoleUser)
	svc := NewUserService(repo, nil)

	_, err := svc.AssignRole(context.Background(), adminActor, "u1", models.RoleLawyer)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Equal(t, models.RoleUser, repo.users["u1"].Role)

	updated, err := svc.AssignRole(context.Background(), superActor, "u1", models.RoleLawyer)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLawyer, updated.Role)
	assert.Equal(t, models.RoleLawyer, repo.users["u1"].Role)
}

func TestUserServiceAssignRoleValidation(t *testing.T) {
	repo := newStubUserRepo()
	seedAccount(repo, "u1", models.RoleUser)
	svc := NewUserService(repo, nil)

	_, err := svc.AssignRole(context.Background(), superActor, "u1", models.UserRole("OVERLORD"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.AssignRole(context.Background(), superActor, "missing", models.RoleAdmin)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceCreateAdmin(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewUserService(repo, nil)

	_, err := svc.CreateAdmin(context.Background(), adminActor, "new@example.com", "supersecret", "New Admin")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	admin, err := svc.CreateAdmin(context.Background(), superActor, "new@example.com", "supersecret", "New Admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.IsApproved)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("supersecret")))

	_, err = svc.CreateAdmin(context.Background(), superActor, "new@example.com", "supersecret", "Duplicate")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	// Recasing the address does not dodge the duplicate check.
	_, err = svc.CreateAdmin(context.Background(), superActor, "New@Example.COM", "supersecret", "Duplicate")
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestCreateAdminStoresLowercaseEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewUserService(repo, nil)

	admin, err := svc.CreateAdmin(context.Background(), superActor, "Ops@Example.COM", "supersecret", "Ops Admin")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", admin.Email)
}

func TestCreateAdminLostInsertRaceConflicts(t *testing.T) {
	repo := newStubUserRepo()
	repo.createErr = repository.ErrDuplicateEmail
	svc := NewUserService(repo, nil)

	_, err := svc.CreateAdmin(context.Background(), superActor, "race@example.com", "supersecret", "Race Admin")
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}
