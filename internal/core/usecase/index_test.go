package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

type analysisRepoFake struct {
	created  *domain.ItemAnalysis
	analysis *domain.ItemAnalysis
	getErr   error
	statuses []domain.AnalysisStatus
	lastErr  string
	deleted  []string
}

func (f *analysisRepoFake) Create(_ context.Context, analysis *domain.ItemAnalysis) error {
	f.created = analysis
	return nil
}

func (f *analysisRepoFake) GetByID(context.Context, string) (*domain.ItemAnalysis, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.analysis, nil
}

func (f *analysisRepoFake) UpdateStatus(_ context.Context, _ string, status domain.AnalysisStatus, errMessage string) error {
	f.statuses = append(f.statuses, status)
	f.lastErr = errMessage
	return nil
}

func (f *analysisRepoFake) Delete(_ context.Context, _ string, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type indexStoreFake struct {
	doc       domain.Document
	embedding []float32
	upsertErr error
	deleted   []string
	live      map[string]domain.Document
	keptIDs   []string
}

func (f *indexStoreFake) LexicalQuery(context.Context, []string, string, string, int) ([]domain.RankedHit, error) {
	return nil, nil
}

func (f *indexStoreFake) VectorQuery(context.Context, []float32, string, string, int) ([]domain.RankedHit, error) {
	return nil, nil
}

func (f *indexStoreFake) UpsertDocument(_ context.Context, doc domain.Document, embedding []float32) error {
	f.doc = doc
	f.embedding = embedding
	if f.upsertErr == nil && f.live != nil {
		f.live[doc.ID] = doc
	}
	return f.upsertErr
}

func (f *indexStoreFake) PruneItemDocuments(_ context.Context, tenantID, itemID, keepDocumentID string) error {
	f.keptIDs = append(f.keptIDs, keepDocumentID)
	for id, doc := range f.live {
		if doc.TenantID == tenantID && doc.ItemID == itemID && id != keepDocumentID {
			delete(f.live, id)
		}
	}
	return nil
}

func (f *indexStoreFake) DeleteDocument(_ context.Context, _ string, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishAnalysisFinalized(_ context.Context, analysisID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, analysisID)
	return nil
}

func (f *queueFake) SubscribeAnalysisFinalized(context.Context, func(context.Context, string) error) error {
	return nil
}

func sampleAnalysis() domain.ItemAnalysis {
	return domain.ItemAnalysis{
		TenantID: "tenant-a",
		ItemID:   "item-7",
		Category: "paintings",
		Headline: "Harbor at dusk",
		Summary:  "Oil on canvas, calm water, orange sky.",
		Labels:   []string{"harbor", "sunset"},
	}
}

func TestIngestAnalysisAssignsIDAndPublishes(t *testing.T) {
	repo := &analysisRepoFake{}
	queue := &queueFake{}
	uc := NewIngestAnalysisUseCase(repo, &indexStoreFake{}, queue)

	out, err := uc.Ingest(context.Background(), sampleAnalysis())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if out.ID == "" {
		t.Fatalf("expected generated id")
	}
	if out.Status != domain.AnalysisPending {
		t.Fatalf("expected pending status, got %s", out.Status)
	}
	if len(queue.published) != 1 || queue.published[0] != out.ID {
		t.Fatalf("expected publish for %s, got %v", out.ID, queue.published)
	}
}

func TestIngestAnalysisRequiresTenant(t *testing.T) {
	uc := NewIngestAnalysisUseCase(&analysisRepoFake{}, &indexStoreFake{}, &queueFake{})

	analysis := sampleAnalysis()
	analysis.TenantID = " "
	if _, err := uc.Ingest(context.Background(), analysis); !domain.IsKind(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request kind, got %v", err)
	}
}

func TestDeleteAnalysisCascadesToStore(t *testing.T) {
	repo := &analysisRepoFake{}
	store := &indexStoreFake{}
	uc := NewIngestAnalysisUseCase(repo, store, &queueFake{})

	if err := uc.Delete(context.Background(), "tenant-a", "analysis-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "analysis-1" {
		t.Fatalf("expected repo delete, got %v", repo.deleted)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "analysis-1" {
		t.Fatalf("expected store delete, got %v", store.deleted)
	}
}

func TestIndexAnalysisHappyPath(t *testing.T) {
	analysis := sampleAnalysis()
	analysis.ID = "analysis-1"
	repo := &analysisRepoFake{analysis: &analysis}
	store := &indexStoreFake{}
	embedder := &embedderFake{vector: []float32{0.1, 0.2, 0.3}}
	uc := NewIndexAnalysisUseCase(repo, embedder, store)

	if err := uc.IndexByID(context.Background(), "analysis-1"); err != nil {
		t.Fatalf("IndexByID() error = %v", err)
	}
	if store.doc.ID != "analysis-1" || store.doc.TenantID != "tenant-a" {
		t.Fatalf("unexpected indexed document: %+v", store.doc)
	}
	if store.doc.Content == "" {
		t.Fatalf("expected flattened content")
	}
	if len(repo.statuses) != 1 || repo.statuses[0] != domain.AnalysisIndexed {
		t.Fatalf("expected indexed status, got %v", repo.statuses)
	}
}

func TestIndexAnalysisReplacesPreviousItemDocument(t *testing.T) {
	store := &indexStoreFake{live: map[string]domain.Document{}}
	embedder := &embedderFake{vector: []float32{0.1, 0.2}}

	first := sampleAnalysis()
	first.ID = "analysis-1"
	repo := &analysisRepoFake{analysis: &first}
	uc := NewIndexAnalysisUseCase(repo, embedder, store)
	if err := uc.IndexByID(context.Background(), "analysis-1"); err != nil {
		t.Fatalf("IndexByID(analysis-1) error = %v", err)
	}

	second := sampleAnalysis()
	second.ID = "analysis-2"
	repo.analysis = &second
	if err := uc.IndexByID(context.Background(), "analysis-2"); err != nil {
		t.Fatalf("IndexByID(analysis-2) error = %v", err)
	}

	if len(store.live) != 1 {
		t.Fatalf("item has %d live documents after re-analysis, want 1", len(store.live))
	}
	if _, ok := store.live["analysis-2"]; !ok {
		t.Fatalf("expected replacement document to survive, live = %v", store.live)
	}
	if len(store.keptIDs) != 2 || store.keptIDs[1] != "analysis-2" {
		t.Fatalf("expected prune keyed to the new document id, got %v", store.keptIDs)
	}
}

func TestIndexAnalysisMarksFailedOnEmbedError(t *testing.T) {
	analysis := sampleAnalysis()
	analysis.ID = "analysis-1"
	repo := &analysisRepoFake{analysis: &analysis}
	embedder := &embedderFake{err: errors.New("embed down")}
	uc := NewIndexAnalysisUseCase(repo, embedder, &indexStoreFake{})

	if err := uc.IndexByID(context.Background(), "analysis-1"); err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statuses) != 1 || repo.statuses[0] != domain.AnalysisFailed {
		t.Fatalf("expected failed status, got %v", repo.statuses)
	}
	if repo.lastErr == "" {
		t.Fatalf("expected error message persisted")
	}
}
