package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

type retrieverFake struct {
	name string
	hits []domain.RankedHit
	err  error
}

func (f *retrieverFake) Name() string { return f.name }

func (f *retrieverFake) Retrieve(context.Context, domain.SearchRequest) ([]domain.RankedHit, error) {
	return f.hits, f.err
}

func hitsFor(ids ...string) []domain.RankedHit {
	out := make([]domain.RankedHit, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.RankedHit{
			DocumentID: id,
			Rank:       i + 1,
			Document:   domain.Document{ID: id, TenantID: "tenant-a"},
		})
	}
	return out
}

func searchRequest() domain.SearchRequest {
	return domain.SearchRequest{Query: "harbor sunset", TenantID: "tenant-a"}
}

func TestHybridSearchFusesBothPaths(t *testing.T) {
	lexical := &retrieverFake{name: "lexical", hits: hitsFor("doc-1", "doc-2")}
	semantic := &retrieverFake{name: "semantic", hits: hitsFor("doc-2", "doc-3")}
	uc := NewHybridSearchUseCase(lexical, semantic, time.Second)

	results, err := uc.Search(context.Background(), searchRequest())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].DocumentID != "doc-2" {
		t.Fatalf("expected doc-2 first, got %s", results[0].DocumentID)
	}
	if results[0].Sources.String() != "both" {
		t.Fatalf("expected both sources for doc-2, got %s", results[0].Sources)
	}
}

func TestHybridSearchLexicalFailureReturnsSemanticList(t *testing.T) {
	lexical := &retrieverFake{name: "lexical", err: domain.WrapError(domain.ErrBackendUnavailable, "lexical query", errors.New("down"))}
	semantic := &retrieverFake{name: "semantic", hits: hitsFor("doc-1", "doc-2", "doc-3")}
	uc := NewHybridSearchUseCase(lexical, semantic, time.Second)

	results, err := uc.Search(context.Background(), searchRequest())
	if err != nil {
		t.Fatalf("expected degraded success, got error %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"doc-1", "doc-2", "doc-3"} {
		if results[i].DocumentID != want {
			t.Fatalf("position %d: got %s, want %s", i, results[i].DocumentID, want)
		}
		if results[i].Sources != domain.SourceSemantic {
			t.Fatalf("expected semantic source mask, got %s", results[i].Sources)
		}
	}
}

func TestHybridSearchSemanticFailureReturnsLexicalList(t *testing.T) {
	lexical := &retrieverFake{name: "lexical", hits: hitsFor("doc-9")}
	semantic := &retrieverFake{name: "semantic", err: domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", errors.New("down"))}
	uc := NewHybridSearchUseCase(lexical, semantic, time.Second)

	results, err := uc.Search(context.Background(), searchRequest())
	if err != nil {
		t.Fatalf("expected degraded success, got error %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "doc-9" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Sources != domain.SourceLexical {
		t.Fatalf("expected lexical source mask, got %s", results[0].Sources)
	}
}

func TestHybridSearchBothFailuresSignalUnavailable(t *testing.T) {
	lexical := &retrieverFake{name: "lexical", err: errors.New("lexical down")}
	semantic := &retrieverFake{name: "semantic", err: errors.New("semantic down")}
	uc := NewHybridSearchUseCase(lexical, semantic, time.Second)

	results, err := uc.Search(context.Background(), searchRequest())
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable kind, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result list, got %d", len(results))
	}
}

func TestHybridSearchEmptyLexicalIsNotFailure(t *testing.T) {
	// Punctuation-only queries yield zero lexical hits without error; semantic
	// hits still come through and nothing degrades.
	lexical := &retrieverFake{name: "lexical"}
	semantic := &retrieverFake{name: "semantic", hits: hitsFor("doc-1")}
	uc := NewHybridSearchUseCase(lexical, semantic, time.Second)

	req := searchRequest()
	req.Query = "???"
	results, err := uc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Sources != domain.SourceSemantic {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestHybridSearchTopKTruncation(t *testing.T) {
	many := make([]domain.RankedHit, 0, 50)
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("doc-%02d", i)
		many = append(many, domain.RankedHit{DocumentID: id, Rank: i + 1, Document: domain.Document{ID: id, TenantID: "tenant-a"}})
	}
	uc := NewHybridSearchUseCase(&retrieverFake{name: "lexical", hits: many}, &retrieverFake{name: "semantic"}, time.Second)

	req := searchRequest()
	req.TopK = 10
	results, err := uc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected exactly 10 results, got %d", len(results))
	}
	// Highest fused scores come from the lowest ranks.
	if results[0].DocumentID != "doc-00" || results[9].DocumentID != "doc-09" {
		t.Fatalf("expected top-ranked documents kept, got first=%s last=%s", results[0].DocumentID, results[9].DocumentID)
	}
}

func TestHybridSearchMinScoreFilter(t *testing.T) {
	lexical := &retrieverFake{name: "lexical", hits: hitsFor("doc-1", "doc-2", "doc-3")}
	uc := NewHybridSearchUseCase(lexical, &retrieverFake{name: "semantic"}, time.Second)

	req := searchRequest()
	// Rank 1 scores 0.3/16 = 0.01875; rank 2 scores 0.3/17 ≈ 0.01765.
	req.MinScore = 0.018
	results, err := uc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "doc-1" {
		t.Fatalf("expected only doc-1 above threshold, got %+v", results)
	}
}

func TestHybridSearchDropsForeignTenantHits(t *testing.T) {
	lexical := &retrieverFake{name: "lexical", hits: []domain.RankedHit{
		{DocumentID: "doc-ok", Rank: 1, Document: domain.Document{ID: "doc-ok", TenantID: "tenant-a"}},
		{DocumentID: "doc-leak", Rank: 2, Document: domain.Document{ID: "doc-leak", TenantID: "tenant-b"}},
	}}
	uc := NewHybridSearchUseCase(lexical, &retrieverFake{name: "semantic"}, time.Second)

	results, err := uc.Search(context.Background(), searchRequest())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "doc-ok" {
		t.Fatalf("expected foreign-tenant hit dropped, got %+v", results)
	}
}

func TestHybridSearchInvalidRequests(t *testing.T) {
	uc := NewHybridSearchUseCase(&retrieverFake{name: "lexical"}, &retrieverFake{name: "semantic"}, time.Second)

	cases := []domain.SearchRequest{
		{Query: "q"},                                  // missing tenant
		{TenantID: "t"},                               // missing query
		{Query: "q", TenantID: "t", TopK: -3},         // negative top_k
		{Query: "   ", TenantID: "t"},                 // blank query
		{Query: "q", TenantID: "   ", TopK: 5},        // blank tenant
	}
	for i, req := range cases {
		if _, err := uc.Search(context.Background(), req); !domain.IsKind(err, domain.ErrInvalidRequest) {
			t.Fatalf("case %d: expected invalid request kind, got %v", i, err)
		}
	}
}

func TestHybridSearchIdempotent(t *testing.T) {
	lexical := &retrieverFake{name: "lexical", hits: hitsFor("doc-b", "doc-a")}
	semantic := &retrieverFake{name: "semantic", hits: hitsFor("doc-a", "doc-c")}
	uc := NewHybridSearchUseCase(lexical, semantic, time.Second)

	first, err := uc.Search(context.Background(), searchRequest())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for run := 0; run < 10; run++ {
		again, err := uc.Search(context.Background(), searchRequest())
		if err != nil {
			t.Fatalf("run %d: Search() error = %v", run, err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: result count changed", run)
		}
		for i := range first {
			if again[i].DocumentID != first[i].DocumentID || again[i].Score != first[i].Score {
				t.Fatalf("run %d: output changed at %d", run, i)
			}
		}
	}
}

type observerFake struct {
	mode       string
	candidates int
}

func (o *observerFake) ObserveSearch(mode string, candidates int, _ time.Duration) {
	o.mode = mode
	o.candidates = candidates
}

func TestHybridSearchObserverSeesDegradedMode(t *testing.T) {
	observer := &observerFake{}
	lexical := &retrieverFake{name: "lexical", err: errors.New("down")}
	semantic := &retrieverFake{name: "semantic", hits: hitsFor("doc-1")}
	uc := NewHybridSearchUseCase(lexical, semantic, time.Second).WithObserver(observer)

	if _, err := uc.Search(context.Background(), searchRequest()); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if observer.mode != SearchModeSemanticOnly || observer.candidates != 1 {
		t.Fatalf("unexpected observation: mode=%s candidates=%d", observer.mode, observer.candidates)
	}
}
