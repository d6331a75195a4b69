package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sheriapal/sheriapal-api/internal/ai"
	"github.com/sheriapal/sheriapal-api/internal/authz"
	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/search"
	appErrors "github.com/sheriapal/sheriapal-api/pkg/errors"
)

const aiCacheKeyPrefix = "ai:answer:"

// draftTemplates is the built-in drafting catalogue.
var draftTemplates = []models.DraftTemplate{
	{
		ID:             "employment_contract",
		Name:           "Employment Contract",
		Description:    "Contract of employment between employer and employee",
		RequiredInputs: []string{"employer", "employee", "position", "salary"},
	},
	{
		ID:             "affidavit",
		Name:           "Affidavit",
		Description:    "Sworn written statement for use in legal proceedings",
		RequiredInputs: []string{"deponent", "statement", "location"},
	},
	{
		ID:             "power_of_attorney",
		Name:           "Power of Attorney",
		Description:    "Grant of authority to act on the principal's behalf",
		RequiredInputs: []string{"principal", "attorney_in_fact", "powers"},
	},
	{
		ID:             "tenancy_agreement",
		Name:           "Tenancy Agreement",
		Description:    "Residential or commercial lease terms",
		RequiredInputs: []string{"landlord", "tenant", "property", "rent"},
	},
	{
		ID:             "sales_agreement",
		Name:           "Sales Agreement",
		Description:    "Sale of goods or property between two parties",
		RequiredInputs: []string{"seller", "buyer", "item", "price"},
	},
	{
		ID:             "demand_letter",
		Name:           "Demand Letter",
		Description:    "Formal demand for payment or performance",
		RequiredInputs: []string{"recipient", "claim", "deadline"},
	},
}

// AIConfig bounds the completion calls.
type AIConfig struct {
	Model          string
	RequestTimeout time.Duration
	CacheTTL       time.Duration
	TopK           int
	MaxTopK        int
}

// AIService answers legal questions grounded on the approved-document
// index and renders drafting templates.
type AIService struct {
	completer ai.Completer
	index     *search.KeywordIndex
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	config    AIConfig
}

// NewAIService constructs the service. A nil completer disables the AI
// surface: every call fails with DependencyUnavailable.
func NewAIService(completer ai.Completer, index *search.KeywordIndex, cache *CacheService, metrics *MetricsService, logger *zap.Logger, config AIConfig) *AIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.TopK <= 0 {
		config.TopK = 4
	}
	if config.MaxTopK <= 0 {
		config.MaxTopK = 20
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}
	return &AIService{
		completer: completer,
		index:     index,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		config:    config,
	}
}

// Query answers a question. Matching document snippets ground the
// prompt; with no matches the model is still asked, but the response is
// flagged ungrounded. Identical questions are served from cache.
func (s *AIService) Query(ctx context.Context, actor authz.Actor, req models.QueryRequest) (*models.QueryResponse, error) {
	if err := authz.Can(actor, authz.ActionQueryAI, authz.Resource{}); err != nil {
		return nil, err
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "question is required")
	}
	if s.completer == nil {
		return nil, appErrors.Clone(appErrors.ErrDependencyUnavailable, "AI features are not configured")
	}

	useDocs := req.UseDocuments == nil || *req.UseDocuments
	topK := s.config.TopK
	if req.TopK > 0 {
		topK = req.TopK
	}
	if topK > s.config.MaxTopK {
		topK = s.config.MaxTopK
	}

	meta := models.QueryMetadata{
		UserID:      actor.ID,
		Model:       s.config.Model,
		GeneratedAt: time.Now().UTC(),
	}

	// Grounding options change the answer, so they are part of the key.
	// Metadata is per-caller and rebuilt on every hit.
	cacheKey := fmt.Sprintf("%s%s:%t:%d", aiCacheKeyPrefix, hashQuestion(question), useDocs, topK)
	var cached models.QueryResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		cached.Cached = true
		cached.Metadata = meta
		return &cached, nil
	}

	var matches []search.Match
	if useDocs {
		matches = s.index.Query(question, topK)
		meta.DocumentsSearched = s.index.Len()
	}
	prompt := buildQueryPrompt(question, matches)

	answer, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	citations := make([]models.Citation, 0, len(matches))
	for i, m := range matches {
		citations = append(citations, models.Citation{Ref: i + 1, DocID: m.DocID, Title: m.Title})
	}

	resp := &models.QueryResponse{
		Answer:    answer,
		Sources:   matches,
		Citations: citations,
		Grounded:  len(matches) > 0,
		Metadata:  meta,
	}
	if err := s.cache.Set(ctx, cacheKey, resp, s.config.CacheTTL); err != nil {
		s.logger.Warn("failed to cache AI answer", zap.Error(err))
	}
	return resp, nil
}

// Draft renders a template through the model.
func (s *AIService) Draft(ctx context.Context, actor authz.Actor, req models.DraftRequest) (*models.DraftResponse, error) {
	if err := authz.Can(actor, authz.ActionDraftAI, authz.Resource{}); err != nil {
		return nil, err
	}
	if s.completer == nil {
		return nil, appErrors.Clone(appErrors.ErrDependencyUnavailable, "AI features are not configured")
	}

	tmpl, ok := findTemplate(req.TemplateID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown draft template")
	}
	for _, input := range tmpl.RequiredInputs {
		if strings.TrimSpace(req.Inputs[input]) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("input %q is required for template %s", input, tmpl.ID))
		}
	}

	content, err := s.complete(ctx, buildDraftPrompt(tmpl, req.Inputs))
	if err != nil {
		return nil, err
	}
	return &models.DraftResponse{TemplateID: tmpl.ID, Content: content}, nil
}

// Templates lists the drafting catalogue.
func (s *AIService) Templates() []models.DraftTemplate {
	out := make([]models.DraftTemplate, len(draftTemplates))
	copy(out, draftTemplates)
	return out
}

func (s *AIService) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	answer, err := s.completer.Complete(ctx, prompt)
	s.metrics.ObserveAICompletion(time.Since(start))
	if err != nil {
		s.logger.Error("AI completion failed", zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrDependencyUnavailable.Code,
			appErrors.ErrDependencyUnavailable.Status, "AI provider is unavailable")
	}
	return answer, nil
}

func buildQueryPrompt(question string, matches []search.Match) string {
	var sb strings.Builder
	sb.WriteString("You are a legal assistant. Answer the question precisely and cite the supplied documents when they are relevant.\n")
	if len(matches) == 0 {
		sb.WriteString("No documents matched the question; answer from general legal knowledge and say so.\n")
	} else {
		sb.WriteString("Context documents:\n")
		for i, m := range matches {
			fmt.Fprintf(&sb, "[%d] %s: %s\n", i+1, m.Title, m.Snippet)
		}
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}

func buildDraftPrompt(tmpl models.DraftTemplate, inputs map[string]string) string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Draft a complete %s (%s).\nUse these details:\n", tmpl.Name, tmpl.Description)
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", k, inputs[k])
	}
	sb.WriteString("Return only the document text.")
	return sb.String()
}

func findTemplate(id string) (models.DraftTemplate, bool) {
	for _, t := range draftTemplates {
		if t.ID == id {
			return t, true
		}
	}
	return models.DraftTemplate{}, false
}

func hashQuestion(question string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(question)))
	return hex.EncodeToString(sum[:])
}
