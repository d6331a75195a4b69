package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheriapal/sheriapal-api/internal/authz"
	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/search"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
)

type fakeCompleter struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeCompleter) Close() error { return nil }

type memCacheRepo struct {
	values map[string][]byte
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	m.values[key] = raw
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.values = make(map[string][]byte)
	return nil
}

func newAIService(completer *fakeCompleter, idx *search.KeywordIndex, withCache bool) *AIService {
	var cache *CacheService
	if withCache {
		cache = NewCacheService(&memCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	}
	if idx == nil {
		idx = search.NewKeywordIndex()
	}
	if completer == nil {
		return NewAIService(nil, idx, cache, nil, zap.NewNop(), AIConfig{})
	}
	return NewAIService(completer, idx, cache, nil, zap.NewNop(), AIConfig{})
}

func TestQueryGroundsPromptOnIndexedDocuments(t *testing.T) {
	idx := search.NewKeywordIndex()
	idx.Add("d1", "lease.txt", "the lease term is twelve months with renewal option")
	completer := &fakeCompleter{answer: "The lease runs twelve months."}
	svc := newAIService(completer, idx, false)

	resp, err := svc.Query(context.Background(), ownerActor, models.QueryRequest{Question: "how long is the lease term?"})
	require.NoError(t, err)
	assert.True(t, resp.Grounded)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "d1", resp.Sources[0].DocID)

	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "lease.txt")
	assert.Contains(t, completer.prompts[0], "how long is the lease term?")
}

func TestQueryWithoutMatchesIsUngrounded(t *testing.T) {
	completer := &fakeCompleter{answer: "General answer."}
	svc := newAIService(completer, nil, false)

	resp, err := svc.Query(context.Background(), ownerActor, models.QueryRequest{Question: "what is force majeure?"})
	require.NoError(t, err)
	assert.False(t, resp.Grounded)
	assert.Empty(t, resp.Sources)
	assert.Contains(t, completer.prompts[0], "No documents matched")
}

func TestQueryReturnsCitationsAndMetadata(t *testing.T) {
	idx := search.NewKeywordIndex()
	idx.Add("d1", "lease.txt", "the lease term is twelve months")
	svc := newAIService(&fakeCompleter{answer: "Twelve months [1]."}, idx, false)

	resp, err := svc.Query(context.Background(), ownerActor, models.QueryRequest{Question: "lease term?"})
	require.NoError(t, err)

	require.Len(t, resp.Citations, 1)
	assert.Equal(t, 1, resp.Citations[0].Ref)
	assert.Equal(t, "d1", resp.Citations[0].DocID)
	assert.Equal(t, "lease.txt", resp.Citations[0].Title)

	assert.Equal(t, ownerActor.ID, resp.Metadata.UserID)
	assert.NotEmpty(t, resp.Metadata.Model)
	assert.Equal(t, 1, resp.Metadata.DocumentsSearched)
	assert.False(t, resp.Metadata.GeneratedAt.IsZero())
}

func TestQuerySkipsGroundingWhenDocumentsDisabled(t *testing.T) {
	idx := search.NewKeywordIndex()
	idx.Add("d1", "lease.txt", "the lease term is twelve months")
	completer := &fakeCompleter{answer: "General answer."}
	svc := newAIService(completer, idx, false)

	noDocs := false
	resp, err := svc.Query(context.Background(), ownerActor, models.QueryRequest{
		Question:     "lease term?",
		UseDocuments: &noDocs,
	})
	require.NoError(t, err)
	assert.False(t, resp.Grounded)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, 0, resp.Metadata.DocumentsSearched)
	assert.Contains(t, completer.prompts[0], "No documents matched")
}

func TestQueryHonorsRequestTopK(t *testing.T) {
	idx := search.NewKeywordIndex()
	idx.Add("d1", "a.txt", "lease lease lease")
	idx.Add("d2", "b.txt", "lease lease clause")
	idx.Add("d3", "c.txt", "lease clause clause")
	svc := newAIService(&fakeCompleter{answer: "x"}, idx, false)

	resp, err := svc.Query(context.Background(), ownerActor, models.QueryRequest{Question: "lease", TopK: 1})
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "d1", resp.Sources[0].DocID)
}

func TestQueryServedFromCache(t *testing.T) {
	completer := &fakeCompleter{answer: "Cached answer."}
	svc := newAIService(completer, nil, true)

	first, err := svc.Query(context.Background(), ownerActor, models.QueryRequest{Question: "same question"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Query(context.Background(), ownerActor, models.QueryRequest{Question: "same question"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Len(t, completer.prompts, 1, "second call must not reach the model")
}

func TestQueryProviderFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("upstream 500")}
	svc := newAIService(completer, nil, false)

	_, err := svc.Query(context.Background(), ownerActor, models.QueryRequest{Question: "anything"})
	assert.ErrorIs(t, err, appErrors.ErrDependencyUnavailable)
}

func TestQueryDisabledWithoutCompleter(t *testing.T) {
	svc := newAIService(nil, nil, false)

	_, err := svc.Query(context.Background(), ownerActor, models.QueryRequest{Question: "anything"})
	assert.ErrorIs(t, err, appErrors.ErrDependencyUnavailable)
}

func TestQueryBlockedForUnapprovedLawyer(t *testing.T) {
	completer := &fakeCompleter{answer: "never reached"}
	svc := newAIService(completer, nil, false)
	pendingLawyer := authz.Actor{ID: "l1", Role: models.RoleLawyer, Approved: false, Active: true}

	_, err := svc.Query(context.Background(), pendingLawyer, models.QueryRequest{Question: "anything"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Empty(t, completer.prompts)
}

func TestQueryValidatesQuestion(t *testing.T) {
	svc := newAIService(&fakeCompleter{answer: "x"}, nil, false)

	_, err := svc.Query(context.Background(), ownerActor, models.QueryRequest{Question: "   "})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDraftRendersTemplate(t *testing.T) {
	completer := &fakeCompleter{answer: "CONTRACT OF EMPLOYMENT ..."}
	svc := newAIService(completer, nil, false)

	resp, err := svc.Draft(context.Background(), ownerActor, models.DraftRequest{
		TemplateID: "employment_contract",
		Inputs: map[string]string{
			"employer": "Acme Corp",
			"employee": "Jane Doe",
			"position": "Paralegal",
			"salary":   "KES 120,000 monthly",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "employment_contract", resp.TemplateID)
	assert.True(t, strings.Contains(completer.prompts[0], "Acme Corp"))
}

func TestDraftValidatesInputsAndTemplate(t *testing.T) {
	svc := newAIService(&fakeCompleter{answer: "x"}, nil, false)

	_, err := svc.Draft(context.Background(), ownerActor, models.DraftRequest{TemplateID: "unknown"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Draft(context.Background(), ownerActor, models.DraftRequest{
		TemplateID: "employment_contract",
		Inputs:     map[string]string{"employer": "Acme Corp"},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestTemplatesCatalogue(t *testing.T) {
	svc := newAIService(&fakeCompleter{}, nil, false)
	templates := svc.Templates()
	require.Len(t, templates, 6)
	assert.Equal(t, "employment_contract", templates[0].ID)
	assert.Equal(t, "demand_letter", templates[5].ID)
}
