package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/service"
	"golang.org/x/crypto/bcrypt"
)

type fakeAuthRepo struct {
	mu     sync.Mutex
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (r *fakeAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (r *fakeAuthRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *token
	r.tokens[token.TokenHash] = &stored
	return nil
}

func (r *fakeAuthRepo) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *t
	return &copied, nil
}

func (r *fakeAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.ID == id {
			t.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (r *fakeAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

func newAuthHandler(repo *fakeAuthRepo) *AuthHandler {
	svc := service.NewAuthService(repo, nil, zap.NewNop(), service.AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "sheriapal-test",
	})
	return NewAuthHandler(svc)
}

func seedUser(t *testing.T, repo *fakeAuthRepo, email, password string, role models.UserRole) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         role,
		IsApproved:   true,
		Active:       true,
	}
	repo.users[user.ID] = user
	return user
}

func TestAuthHandlerRegister(t *testing.T) {
	h := newAuthHandler(newFakeAuthRepo())

	body := `{"email":"ana@example.com","password":"supersecret","full_name":"Ana","role":"USER"}`
	c, w := testContext(t, http.MethodPost, "/auth/register", strings.NewReader(body), nil)
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "ana@example.com")
}

func TestAuthHandlerRegisterRejectsBadPayload(t *testing.T) {
	h := newAuthHandler(newFakeAuthRepo())

	c, w := testContext(t, http.MethodPost, "/auth/register", strings.NewReader(`{"email":"not-an-email"}`), nil)
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeAuthRepo()
	seedUser(t, repo, "ana@example.com", "supersecret", models.RoleUser)
	h := newAuthHandler(repo)

	body := `{"email":"ana@example.com","password":"supersecret","full_name":"Ana"}`
	c, w := testContext(t, http.MethodPost, "/auth/register", strings.NewReader(body), nil)
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandlerLogin(t *testing.T) {
	repo := newFakeAuthRepo()
	seedUser(t, repo, "ana@example.com", "supersecret", models.RoleUser)
	h := newAuthHandler(repo)

	body := `{"email":"ana@example.com","password":"supersecret"}`
	c, w := testContext(t, http.MethodPost, "/auth/login", strings.NewReader(body), nil)
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "access_token")
	assert.Contains(t, w.Body.String(), "refresh_token")
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	repo := newFakeAuthRepo()
	seedUser(t, repo, "ana@example.com", "supersecret", models.RoleUser)
	h := newAuthHandler(repo)

	body := `{"email":"ana@example.com","password":"wrong-password"}`
	c, w := testContext(t, http.MethodPost, "/auth/login", strings.NewReader(body), nil)
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerRefreshUnknownToken(t *testing.T) {
	h := newAuthHandler(newFakeAuthRepo())

	c, w := testContext(t, http.MethodPost, "/auth/refresh", strings.NewReader(`{"refresh_token":"bogus"}`), nil)
	c.Request.Header.Set("Content-Type", "application/json")

	h.Refresh(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	h := newAuthHandler(newFakeAuthRepo())

	claims := &models.JWTClaims{UserID: "u-1", Email: "ana@example.com", Role: models.RoleUser, IsApproved: true}
	c, w := testContext(t, http.MethodGet, "/auth/me", nil, claims)

	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ana@example.com")
}

func TestAuthHandlerMeUnauthenticated(t *testing.T) {
	h := newAuthHandler(newFakeAuthRepo())

	c, w := testContext(t, http.MethodGet, "/auth/me", nil, nil)
	h.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
