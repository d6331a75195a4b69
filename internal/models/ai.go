package models

import (
	"time"

	"github.com/sheriapal/sheriapal-api/internal/search"
)

// QueryRequest asks a legal question grounded on approved documents.
// UseDocuments defaults to true; TopK overrides the configured match
// count when positive.
type QueryRequest struct {
	Question     string `json:"question" binding:"required"`
	UseDocuments *bool  `json:"use_documents"`
	TopK         int    `json:"top_k" binding:"omitempty,min=1,max=20"`
}

// Citation ties a numbered context reference in the answer back to the
// indexed document it came from.
type Citation struct {
	Ref   int    `json:"ref"`
	DocID string `json:"doc_id"`
	Title string `json:"title"`
}

// QueryMetadata records how an answer was produced.
type QueryMetadata struct {
	UserID            string    `json:"user_id"`
	Model             string    `json:"model"`
	DocumentsSearched int       `json:"documents_searched"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// QueryResponse carries the answer with its supporting sources.
// Grounded is false when no indexed document matched the question and
// the answer was produced without document context.
type QueryResponse struct {
	Answer    string         `json:"answer"`
	Sources   []search.Match `json:"sources"`
	Citations []Citation     `json:"citations"`
	Grounded  bool           `json:"grounded"`
	Cached    bool           `json:"cached"`
	Metadata  QueryMetadata  `json:"metadata"`
}

// DraftRequest renders a drafting template through the model.
type DraftRequest struct {
	TemplateID string            `json:"template_id" binding:"required"`
	Inputs     map[string]string `json:"inputs"`
}

// DraftResponse carries the generated draft.
type DraftResponse struct {
	TemplateID string `json:"template_id"`
	Content    string `json:"content"`
}

// DraftTemplate describes a drafting template available to clients.
type DraftTemplate struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	RequiredInputs []string `json:"required_inputs"`
}
