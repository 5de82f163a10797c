package ports

import (
	"context"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

// DocumentStore abstracts the backing index holding documents with embedded
// vectors and full-text content. Both query primitives must apply the tenant
// filter server-side; the core only re-checks defensively.
type DocumentStore interface {
	// LexicalQuery runs a full-text match over the given query terms. Terms
	// are pre-tokenized by the caller; any matching term contributes to the
	// native score.
	LexicalQuery(ctx context.Context, terms []string, tenantID, category string, limit int) ([]domain.RankedHit, error)
	// VectorQuery returns the documents closest to the embedding by cosine
	// similarity, scored as 1 - distance.
	VectorQuery(ctx context.Context, embedding []float32, tenantID, category string, limit int) ([]domain.RankedHit, error)

	UpsertDocument(ctx context.Context, doc domain.Document, embedding []float32) error
	DeleteDocument(ctx context.Context, tenantID, documentID string) error
	// PruneItemDocuments removes every document indexed for the item except
	// keepDocumentID, so a re-analysis leaves exactly one live version.
	PruneItemDocuments(ctx context.Context, tenantID, itemID, keepDocumentID string) error
}

// Embedder turns text into a fixed-length vector via the external embedding
// service.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Planner is the external reasoning step of the agent loop.
type Planner interface {
	// PlanStep returns a raw JSON planner decision for the given prompt.
	PlanStep(ctx context.Context, prompt string) (string, error)
	// Synthesize produces the final prose answer from a prompt.
	Synthesize(ctx context.Context, prompt string) (string, error)
}

// AnalysisRepository persists item analysis state.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *domain.ItemAnalysis) error
	GetByID(ctx context.Context, id string) (*domain.ItemAnalysis, error)
	UpdateStatus(ctx context.Context, id string, status domain.AnalysisStatus, errMessage string) error
	Delete(ctx context.Context, tenantID, id string) error
}

// MessageQueue publishes/consumes analysis indexing events.
type MessageQueue interface {
	PublishAnalysisFinalized(ctx context.Context, analysisID string) error
	SubscribeAnalysisFinalized(ctx context.Context, handler func(context.Context, string) error) error
}
