package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/search"
	"github.com/sheriapal/sheriapal-api/internal/service"
)

type staticCompleter struct {
	answer string
}

func (c *staticCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.answer, nil
}

func (c *staticCompleter) Close() error { return nil }

func newAIHandler(answer string) *AIHandler {
	svc := service.NewAIService(&staticCompleter{answer: answer}, search.NewKeywordIndex(), nil, nil, zap.NewNop(), service.AIConfig{})
	return NewAIHandler(svc)
}

func TestAIHandlerQuery(t *testing.T) {
	h := newAIHandler("Consult the statute of limitations.")

	c, w := testContext(t, http.MethodPost, "/ai/query", strings.NewReader(`{"question":"How long can I wait to sue?"}`), ownerClaims())
	c.Request.Header.Set("Content-Type", "application/json")

	h.Query(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "statute of limitations")
}

func TestAIHandlerQueryRequiresQuestion(t *testing.T) {
	h := newAIHandler("answer")

	c, w := testContext(t, http.MethodPost, "/ai/query", strings.NewReader(`{"question":"   "}`), ownerClaims())
	c.Request.Header.Set("Content-Type", "application/json")

	h.Query(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAIHandlerQueryUnapprovedLawyer(t *testing.T) {
	h := newAIHandler("answer")

	claims := &models.JWTClaims{UserID: "lawyer-1", Role: models.RoleLawyer, IsApproved: false}
	c, w := testContext(t, http.MethodPost, "/ai/query", strings.NewReader(`{"question":"anything"}`), claims)
	c.Request.Header.Set("Content-Type", "application/json")

	h.Query(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAIHandlerDraft(t *testing.T) {
	h := newAIHandler("TENANCY AGREEMENT")

	body := `{"template_id":"tenancy_agreement","inputs":{"landlord":"Acme Properties","tenant":"Jane Doe","property":"Apt 4B, Riverside","rent":"KES 45,000"}}`
	c, w := testContext(t, http.MethodPost, "/ai/draft", strings.NewReader(body), ownerClaims())
	c.Request.Header.Set("Content-Type", "application/json")

	h.Draft(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TENANCY AGREEMENT")
}

func TestAIHandlerDraftMissingInput(t *testing.T) {
	h := newAIHandler("draft")

	body := `{"template_id":"tenancy_agreement","inputs":{"landlord":"Acme Properties"}}`
	c, w := testContext(t, http.MethodPost, "/ai/draft", strings.NewReader(body), ownerClaims())
	c.Request.Header.Set("Content-Type", "application/json")

	h.Draft(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAIHandlerTemplates(t *testing.T) {
	h := newAIHandler("unused")

	c, w := testContext(t, http.MethodGet, "/ai/templates", nil, ownerClaims())
	h.Templates(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "demand_letter")
}
