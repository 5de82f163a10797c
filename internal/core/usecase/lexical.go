package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
	"github.com/kirillkom/gallery-curator/internal/core/ports"
)

// LexicalRetriever matches raw query terms against document content. Terms
// are OR-joined at the store: recall over precision, since fusion blends the
// result with the semantic ranking downstream.
type LexicalRetriever struct {
	store ports.DocumentStore
}

func NewLexicalRetriever(store ports.DocumentStore) *LexicalRetriever {
	return &LexicalRetriever{store: store}
}

func (r *LexicalRetriever) Name() string { return "lexical" }

func (r *LexicalRetriever) Retrieve(ctx context.Context, req domain.SearchRequest) ([]domain.RankedHit, error) {
	terms := tokenizeQuery(req.Query)
	if len(terms) == 0 {
		// Punctuation-only query: matching nothing beats matching everything.
		return nil, nil
	}

	hits, err := r.store.LexicalQuery(ctx, terms, req.TenantID, req.Category, req.LexicalTopK)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	return assignRanks(hits), nil
}

// tokenizeQuery splits on whitespace, strips non-alphanumeric runes, and
// drops single-rune tokens as noise.
func tokenizeQuery(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, field)
		if len([]rune(token)) <= 1 {
			continue
		}
		out = append(out, token)
	}
	return out
}
