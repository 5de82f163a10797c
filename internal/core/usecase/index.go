package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
	"github.com/kirillkom/gallery-curator/internal/core/ports"
)

// IndexAnalysisUseCase turns a stored analysis into an indexed document:
// flatten to text, embed, upsert dense and sparse representations, then
// retire any superseded documents the item had.
type IndexAnalysisUseCase struct {
	repo     ports.AnalysisRepository
	embedder ports.Embedder
	store    ports.DocumentStore
}

func NewIndexAnalysisUseCase(
	repo ports.AnalysisRepository,
	embedder ports.Embedder,
	store ports.DocumentStore,
) *IndexAnalysisUseCase {
	return &IndexAnalysisUseCase{
		repo:     repo,
		embedder: embedder,
		store:    store,
	}
}

func (uc *IndexAnalysisUseCase) IndexByID(ctx context.Context, analysisID string) error {
	analysis, err := uc.repo.GetByID(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("fetch analysis by id: %w", err)
	}

	if err := uc.indexAnalysis(ctx, analysis); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, analysisID, domain.AnalysisFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, analysisID, domain.AnalysisIndexed, ""); err != nil {
		return fmt.Errorf("set status=indexed: %w", err)
	}
	return nil
}

func (uc *IndexAnalysisUseCase) indexAnalysis(ctx context.Context, analysis *domain.ItemAnalysis) error {
	content := analysis.FlattenContent()
	if content == "" {
		return domain.WrapError(domain.ErrInvalidRequest, "flatten analysis", errors.New("empty analysis content"))
	}

	embedding, err := uc.embedder.EmbedQuery(ctx, content)
	if err != nil {
		return fmt.Errorf("embed analysis: %w", err)
	}

	doc := domain.Document{
		ID:        analysis.ID,
		TenantID:  analysis.TenantID,
		ItemID:    analysis.ItemID,
		Category:  analysis.Category,
		Headline:  analysis.Headline,
		Content:   content,
		CreatedAt: analysis.CreatedAt,
	}
	if err := uc.store.UpsertDocument(ctx, doc, embedding); err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	// A re-analysis indexes under a fresh id; drop the superseded versions so
	// one item never holds two result slots.
	if err := uc.store.PruneItemDocuments(ctx, analysis.TenantID, analysis.ItemID, analysis.ID); err != nil {
		return fmt.Errorf("replace previous item documents: %w", err)
	}
	return nil
}
