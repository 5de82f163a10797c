package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
	"github.com/kirillkom/gallery-curator/internal/core/ports"
)

// SemanticRetriever embeds the query text and ranks documents by cosine
// similarity. Tenant and category filters are applied by the store itself so
// the isolation holds even under the store's internal top-k cutoff.
type SemanticRetriever struct {
	embedder ports.Embedder
	store    ports.DocumentStore
}

func NewSemanticRetriever(embedder ports.Embedder, store ports.DocumentStore) *SemanticRetriever {
	return &SemanticRetriever{embedder: embedder, store: store}
}

func (r *SemanticRetriever) Name() string { return "semantic" }

func (r *SemanticRetriever) Retrieve(ctx context.Context, req domain.SearchRequest) ([]domain.RankedHit, error) {
	embedding, err := r.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
			err = domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", err)
		}
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", fmt.Errorf("empty embedding result"))
	}

	hits, err := r.store.VectorQuery(ctx, embedding, req.TenantID, req.Category, req.VectorTopK)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	return assignRanks(hits), nil
}
