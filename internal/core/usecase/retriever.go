package usecase

import (
	"context"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

// Retriever is one retrieval strategy over the document store. The fusion
// stage only consumes ranks, so strategies with incomparable native scores
// can be combined freely.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, req domain.SearchRequest) ([]domain.RankedHit, error)
}

// retrievalOutcome is one retriever call's explicit result. The facade
// pattern-matches over the pair of outcomes instead of nesting error checks.
type retrievalOutcome struct {
	hits []domain.RankedHit
	err  error
}

func assignRanks(hits []domain.RankedHit) []domain.RankedHit {
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits
}
