package usecase

import (
	"sort"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

type fusedCandidate struct {
	doc     domain.Document
	score   float64
	sources domain.SourceMask
}

// fuseWeightedRRF merges both ranked lists with weighted Reciprocal Rank
// Fusion: each hit at 1-based rank r contributes weight/(rrfConstant+r).
// A document seen by both retrievers accumulates both contributions and is
// emitted once. Ordering is score descending, ties broken by ascending
// document id so repeated calls return identical output.
func fuseWeightedRRF(
	lexical, semantic []domain.RankedHit,
	lexicalWeight, semanticWeight float64,
	rrfConstant int,
) []domain.FusedResult {
	if rrfConstant <= 0 {
		rrfConstant = domain.DefaultRRFConstant
	}

	acc := make(map[string]fusedCandidate, len(lexical)+len(semantic))
	addList := func(hits []domain.RankedHit, weight float64, source domain.SourceMask) {
		for i, hit := range hits {
			rank := hit.Rank
			if rank <= 0 {
				rank = i + 1
			}
			candidate := acc[hit.DocumentID]
			candidate.doc = preferRicherDocument(candidate.doc, hit.Document)
			candidate.score += weight / float64(rrfConstant+rank)
			candidate.sources |= source
			acc[hit.DocumentID] = candidate
		}
	}

	addList(lexical, lexicalWeight, domain.SourceLexical)
	addList(semantic, semanticWeight, domain.SourceSemantic)

	out := make([]domain.FusedResult, 0, len(acc))
	for id, candidate := range acc {
		out = append(out, domain.FusedResult{
			DocumentID: id,
			Score:      candidate.score,
			Sources:    candidate.sources,
			Document:   candidate.doc,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})

	return out
}

// preferRicherDocument keeps whichever payload carries more fields; the two
// retrievers may return different projections of the same document.
func preferRicherDocument(current, candidate domain.Document) domain.Document {
	if current.ID == "" {
		return candidate
	}
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if current.Headline == "" && candidate.Headline != "" {
		current.Headline = candidate.Headline
	}
	if current.Category == "" && candidate.Category != "" {
		current.Category = candidate.Category
	}
	if current.ItemID == "" && candidate.ItemID != "" {
		current.ItemID = candidate.ItemID
	}
	if current.TenantID == "" && candidate.TenantID != "" {
		current.TenantID = candidate.TenantID
	}
	return current
}
