package ports

import (
	"context"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

// Searcher is the inbound contract for hybrid retrieval.
type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.FusedResult, error)
}

// AgentAnswerer is the inbound contract for the iterative search-and-answer loop.
type AgentAnswerer interface {
	Answer(ctx context.Context, req domain.SearchRequest) (*domain.AgentAnswer, error)
}

// AnalysisIngestor accepts a finalized item analysis and schedules indexing.
type AnalysisIngestor interface {
	Ingest(ctx context.Context, analysis domain.ItemAnalysis) (*domain.ItemAnalysis, error)
	Delete(ctx context.Context, tenantID, analysisID string) error
}

// AnalysisIndexer is the inbound contract for the asynchronous indexing worker.
type AnalysisIndexer interface {
	IndexByID(ctx context.Context, analysisID string) error
}
