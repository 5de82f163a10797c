package domain

import (
	"strings"
	"time"
)

// Payload keys shared between the indexer and the document store adapter.
const (
	MetaTenantID = "tenant_id"
	MetaItemID   = "item_id"
	MetaCategory = "category"
	MetaHeadline = "headline"
)

// Document is one indexed analysis. The embedding vector is owned by the
// document store and never travels through the core.
type Document struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ItemID    string    `json:"item_id"`
	Category  string    `json:"category,omitempty"`
	Headline  string    `json:"headline,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AnalysisStatus string

const (
	AnalysisPending AnalysisStatus = "pending"
	AnalysisIndexed AnalysisStatus = "indexed"
	AnalysisFailed  AnalysisStatus = "failed"
)

// ItemAnalysis is the finalized AI analysis of one collection item. Indexing
// never mutates a document in place: re-analyzing an item produces a new
// analysis row and a replacement document under a fresh version id.
type ItemAnalysis struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	ItemID        string         `json:"item_id"`
	Category      string         `json:"category,omitempty"`
	Headline      string         `json:"headline"`
	Summary       string         `json:"summary,omitempty"`
	Labels        []string       `json:"labels,omitempty"`
	ExtractedText string         `json:"extracted_text,omitempty"`
	Status        AnalysisStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// FlattenContent builds the single text block used for lexical matching and
// embedding input.
func (a ItemAnalysis) FlattenContent() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Headline, a.Summary, strings.Join(a.Labels, " "), a.ExtractedText} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
