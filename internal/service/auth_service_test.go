package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/repository"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	auditLogs     []*models.AuditLog
	createErr     error
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{
		users:         make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "generated-" + user.Email
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.TokenHash] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	if rt, ok := m.refreshTokens[tokenHash]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	now := time.Now()
	for _, rt := range m.refreshTokens {
		if rt.UserID == userID {
			rt.RevokedAt = &now
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "sheriapal",
	})
}

func TestRegisterUserIsImmediatelyApproved(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "jane@example.com",
		Password: "password123",
		FullName: "Jane Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, info.Role)
	assert.True(t, info.IsApproved)
}

func TestRegisterLawyerStartsPending(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "law@example.com",
		Password: "password123",
		FullName: "Law Yer",
		Role:     "LAWYER",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleLawyer, info.Role)
	assert.False(t, info.IsApproved)

	stored := repo.users[info.ID]
	require.NotNil(t, stored.ApprovalRequestedAt)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "jane@example.com"})
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "jane@example.com",
		Password: "password123",
		FullName: "Jane Doe",
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestRegisterStoresLowercaseEmail(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "  Jane@Example.COM ",
		Password: "password123",
		FullName: "Jane Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", repo.users[info.ID].Email)

	// A recased duplicate hits the same stored address.
	_, err = svc.Register(context.Background(), models.RegisterRequest{
		Email:    "JANE@example.com",
		Password: "password123",
		FullName: "Jane Again",
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestRegisterLostInsertRaceConflicts(t *testing.T) {
	// Simulates two registrations passing the pre-insert check at once:
	// the loser's INSERT hits the unique index.
	repo := newMockAuthRepo()
	repo.createErr = repository.ErrDuplicateEmail
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "jane@example.com",
		Password: "password123",
		FullName: "Jane Doe",
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestRegisterRejectsPrivilegedRoles(t *testing.T) {
	svc := newAuthService(newMockAuthRepo())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "boss@example.com",
		Password: "password123",
		FullName: "Boss",
		Role:     "ADMIN",
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLoginIssuesValidAccessToken(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Email: "jane@example.com", PasswordHash: string(hash),
		Role: models.RoleLawyer, IsApproved: true, Active: true,
	})
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "jane@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleLawyer, claims.Role)
	assert.True(t, claims.IsApproved)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Email: "jane@example.com", PasswordHash: string(hash), Active: true, Role: models.RoleUser,
	})
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "jane@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Email: "jane@example.com", PasswordHash: string(hash), Active: false, Role: models.RoleUser,
	})
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "jane@example.com", Password: "password123"})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestRefreshRotatesToken(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Email: "jane@example.com", PasswordHash: string(hash), Active: true, Role: models.RoleUser, IsApproved: true,
	})
	svc := newAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "jane@example.com", Password: "password123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked; a second exchange must fail.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestLogoutRevokesToken(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Email: "jane@example.com", PasswordHash: string(hash), Active: true, Role: models.RoleUser,
	})
	svc := newAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "jane@example.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), "u1", login.RefreshToken))

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestLogoutRejectsForeignToken(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Email: "jane@example.com", PasswordHash: string(hash), Active: true, Role: models.RoleUser,
	})
	svc := newAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "jane@example.com", Password: "password123"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), "someone-else", login.RefreshToken)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
