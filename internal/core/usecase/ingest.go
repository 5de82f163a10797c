package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
	"github.com/kirillkom/gallery-curator/internal/core/ports"
)

// IngestAnalysisUseCase records a finalized item analysis and schedules its
// indexing. Deletion cascades to the indexed document.
type IngestAnalysisUseCase struct {
	repo  ports.AnalysisRepository
	store ports.DocumentStore
	queue ports.MessageQueue
}

func NewIngestAnalysisUseCase(
	repo ports.AnalysisRepository,
	store ports.DocumentStore,
	queue ports.MessageQueue,
) *IngestAnalysisUseCase {
	return &IngestAnalysisUseCase{
		repo:  repo,
		store: store,
		queue: queue,
	}
}

func (uc *IngestAnalysisUseCase) Ingest(ctx context.Context, analysis domain.ItemAnalysis) (*domain.ItemAnalysis, error) {
	analysis.TenantID = strings.TrimSpace(analysis.TenantID)
	analysis.ItemID = strings.TrimSpace(analysis.ItemID)
	if analysis.TenantID == "" {
		return nil, domain.WrapError(domain.ErrInvalidRequest, "ingest analysis", fmt.Errorf("tenant_id is required"))
	}
	if analysis.ItemID == "" {
		return nil, domain.WrapError(domain.ErrInvalidRequest, "ingest analysis", fmt.Errorf("item_id is required"))
	}
	if analysis.FlattenContent() == "" {
		return nil, domain.WrapError(domain.ErrInvalidRequest, "ingest analysis", fmt.Errorf("analysis has no text content"))
	}

	now := time.Now().UTC()
	analysis.ID = uuid.NewString()
	analysis.Status = domain.AnalysisPending
	analysis.Error = ""
	analysis.CreatedAt = now
	analysis.UpdatedAt = now

	if err := uc.repo.Create(ctx, &analysis); err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}
	if err := uc.queue.PublishAnalysisFinalized(ctx, analysis.ID); err != nil {
		return nil, fmt.Errorf("publish analysis event: %w", err)
	}
	return &analysis, nil
}

func (uc *IngestAnalysisUseCase) Delete(ctx context.Context, tenantID, analysisID string) error {
	tenantID = strings.TrimSpace(tenantID)
	analysisID = strings.TrimSpace(analysisID)
	if tenantID == "" || analysisID == "" {
		return domain.WrapError(domain.ErrInvalidRequest, "delete analysis", fmt.Errorf("tenant_id and analysis id are required"))
	}

	if err := uc.repo.Delete(ctx, tenantID, analysisID); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if err := uc.store.DeleteDocument(ctx, tenantID, analysisID); err != nil {
		return fmt.Errorf("delete indexed document: %w", err)
	}
	return nil
}
