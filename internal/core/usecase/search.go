package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

const (
	SearchModeFused        = "fused"
	SearchModeLexicalOnly  = "lexical_only"
	SearchModeSemanticOnly = "semantic_only"
)

// SearchObserver receives one observation per completed search, for metrics.
type SearchObserver interface {
	ObserveSearch(mode string, candidates int, duration time.Duration)
}

// HybridSearchUseCase runs both retrievers concurrently, fuses their output,
// and degrades to a single-source list when one path fails. Only the
// both-failed case surfaces an error to the caller.
type HybridSearchUseCase struct {
	lexical          Retriever
	semantic         Retriever
	retrieverTimeout time.Duration
	observer         SearchObserver
}

func NewHybridSearchUseCase(lexical, semantic Retriever, retrieverTimeout time.Duration) *HybridSearchUseCase {
	if retrieverTimeout <= 0 {
		retrieverTimeout = 10 * time.Second
	}
	return &HybridSearchUseCase{
		lexical:          lexical,
		semantic:         semantic,
		retrieverTimeout: retrieverTimeout,
	}
}

func (uc *HybridSearchUseCase) WithObserver(observer SearchObserver) *HybridSearchUseCase {
	uc.observer = observer
	return uc
}

func (uc *HybridSearchUseCase) Search(ctx context.Context, req domain.SearchRequest) ([]domain.FusedResult, error) {
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	// Both retrievers run concurrently; total latency is bounded by the
	// slower path, not the sum. Each gets its own deadline so a hung
	// backend degrades instead of stalling the request.
	lexicalCh := uc.retrieve(ctx, uc.lexical, req)
	semanticCh := uc.retrieve(ctx, uc.semantic, req)
	lexical := <-lexicalCh
	semantic := <-semanticCh

	var fused []domain.FusedResult
	var mode string
	switch {
	case lexical.err == nil && semantic.err == nil:
		fused = fuseWeightedRRF(lexical.hits, semantic.hits, req.LexicalWeight, req.SemanticWeight, req.RRFConstant)
		mode = SearchModeFused
	case lexical.err != nil && semantic.err == nil:
		slog.Warn("search_degraded",
			"failed_retriever", uc.lexical.Name(),
			"tenant_id", req.TenantID,
			"error", lexical.err,
		)
		fused = fuseWeightedRRF(nil, semantic.hits, req.LexicalWeight, req.SemanticWeight, req.RRFConstant)
		mode = SearchModeSemanticOnly
	case lexical.err == nil && semantic.err != nil:
		slog.Warn("search_degraded",
			"failed_retriever", uc.semantic.Name(),
			"tenant_id", req.TenantID,
			"error", semantic.err,
		)
		fused = fuseWeightedRRF(lexical.hits, nil, req.LexicalWeight, req.SemanticWeight, req.RRFConstant)
		mode = SearchModeLexicalOnly
	default:
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "hybrid search",
			errors.Join(lexical.err, semantic.err))
	}

	fused = uc.assertTenant(fused, req.TenantID)
	fused = filterMinScore(fused, req.MinScore)
	if len(fused) > req.TopK {
		fused = fused[:req.TopK]
	}

	if uc.observer != nil {
		uc.observer.ObserveSearch(mode, len(fused), time.Since(start))
	}
	return fused, nil
}

func (uc *HybridSearchUseCase) retrieve(ctx context.Context, retriever Retriever, req domain.SearchRequest) <-chan retrievalOutcome {
	out := make(chan retrievalOutcome, 1)
	go func() {
		retrieveCtx, cancel := context.WithTimeout(ctx, uc.retrieverTimeout)
		defer cancel()
		hits, err := retriever.Retrieve(retrieveCtx, req)
		out <- retrievalOutcome{hits: hits, err: err}
	}()
	return out
}

// assertTenant is the defensive backstop behind the store-side tenant filter.
// A mismatch means the store adapter is broken; the hit is dropped and logged,
// never returned.
func (uc *HybridSearchUseCase) assertTenant(results []domain.FusedResult, tenantID string) []domain.FusedResult {
	out := results[:0]
	for _, result := range results {
		if result.Document.TenantID != "" && result.Document.TenantID != tenantID {
			slog.Error("tenant_isolation_violation_dropped",
				"document_id", result.DocumentID,
				"document_tenant_id", result.Document.TenantID,
				"request_tenant_id", tenantID,
			)
			continue
		}
		out = append(out, result)
	}
	return out
}

func filterMinScore(results []domain.FusedResult, minScore float64) []domain.FusedResult {
	if minScore <= 0 {
		return results
	}
	out := results[:0]
	for _, result := range results {
		if result.Score >= minScore {
			out = append(out, result)
		}
	}
	return out
}
