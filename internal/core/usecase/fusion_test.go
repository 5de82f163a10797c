package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

func TestFuseWeightedRRFFormula(t *testing.T) {
	lexical := []domain.RankedHit{
		{DocumentID: "doc-other", Rank: 1},
		{DocumentID: "doc-1", Rank: 2},
	}
	semantic := []domain.RankedHit{
		{DocumentID: "doc-1", Rank: 1},
	}

	fused := fuseWeightedRRF(lexical, semantic, 0.3, 0.7, 15)

	var got float64
	found := false
	for _, result := range fused {
		if result.DocumentID == "doc-1" {
			got = result.Score
			found = true
			if result.Sources != domain.SourceLexical|domain.SourceSemantic {
				t.Fatalf("expected both sources, got %s", result.Sources)
			}
		}
	}
	if !found {
		t.Fatalf("doc-1 missing from fused output")
	}

	want := 0.3/17.0 + 0.7/16.0
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("fused score = %.8f, want %.8f", got, want)
	}
}

func TestFuseWeightedRRFSingleSourceContribution(t *testing.T) {
	semantic := []domain.RankedHit{
		{DocumentID: "doc-a", Rank: 1},
		{DocumentID: "doc-b", Rank: 2},
		{DocumentID: "doc-c", Rank: 3},
	}

	fused := fuseWeightedRRF(nil, semantic, 0.3, 0.7, 15)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(fused))
	}

	for _, result := range fused {
		if result.DocumentID != "doc-c" {
			continue
		}
		want := 0.7 / 18.0
		if math.Abs(result.Score-want) > 1e-9 {
			t.Fatalf("doc-c score = %.8f, want exactly %.8f", result.Score, want)
		}
		if result.Sources != domain.SourceSemantic {
			t.Fatalf("expected semantic-only source, got %s", result.Sources)
		}
		return
	}
	t.Fatalf("doc-c missing from fused output")
}

func TestFuseWeightedRRFDeduplicates(t *testing.T) {
	lexical := []domain.RankedHit{
		{DocumentID: "doc-2", Rank: 1, Document: domain.Document{ID: "doc-2", Headline: "from lexical"}},
		{DocumentID: "doc-3", Rank: 2},
	}
	semantic := []domain.RankedHit{
		{DocumentID: "doc-1", Rank: 1},
		{DocumentID: "doc-2", Rank: 2, Document: domain.Document{ID: "doc-2", Content: "from semantic"}},
	}

	fused := fuseWeightedRRF(lexical, semantic, 0.3, 0.7, 15)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused results after dedup, got %d", len(fused))
	}
	if fused[0].DocumentID != "doc-2" {
		t.Fatalf("expected doc-2 first, got %s", fused[0].DocumentID)
	}
	if fused[0].Document.Headline != "from lexical" || fused[0].Document.Content != "from semantic" {
		t.Fatalf("expected merged payload, got %+v", fused[0].Document)
	}
}

func TestFuseWeightedRRFTieBreakByDocumentID(t *testing.T) {
	lexical := []domain.RankedHit{{DocumentID: "doc-z", Rank: 1}}
	semantic := []domain.RankedHit{{DocumentID: "doc-a", Rank: 1}}

	// Equal weights and the same rank produce identical scores.
	fused := fuseWeightedRRF(lexical, semantic, 0.5, 0.5, 15)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused results, got %d", len(fused))
	}
	if fused[0].DocumentID != "doc-a" || fused[1].DocumentID != "doc-z" {
		t.Fatalf("expected ascending document id on tie, got [%s %s]", fused[0].DocumentID, fused[1].DocumentID)
	}
}

func TestFuseWeightedRRFDeterministic(t *testing.T) {
	lexical := []domain.RankedHit{
		{DocumentID: "doc-b", Rank: 1},
		{DocumentID: "doc-a", Rank: 2},
		{DocumentID: "doc-d", Rank: 3},
	}
	semantic := []domain.RankedHit{
		{DocumentID: "doc-c", Rank: 1},
		{DocumentID: "doc-a", Rank: 2},
	}

	first := fuseWeightedRRF(lexical, semantic, 0.3, 0.7, 15)
	for run := 0; run < 20; run++ {
		again := fuseWeightedRRF(lexical, semantic, 0.3, 0.7, 15)
		if len(again) != len(first) {
			t.Fatalf("run %d: length changed: %d vs %d", run, len(again), len(first))
		}
		for i := range first {
			if again[i].DocumentID != first[i].DocumentID {
				t.Fatalf("run %d: order changed at %d: %s vs %s", run, i, again[i].DocumentID, first[i].DocumentID)
			}
		}
	}
}
