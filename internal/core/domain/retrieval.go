package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DefaultTopK           = 10
	DefaultLexicalTopK    = 20
	DefaultVectorTopK     = 20
	DefaultLexicalWeight  = 0.3
	DefaultSemanticWeight = 0.7
	DefaultRRFConstant    = 15
)

// SearchRequest carries one hybrid retrieval call. Zero-valued knobs mean
// "use the deployment default"; Normalized fills them in.
type SearchRequest struct {
	Query          string  `json:"query"`
	TenantID       string  `json:"tenant_id"`
	TopK           int     `json:"top_k,omitempty"`
	Category       string  `json:"category,omitempty"`
	MinScore       float64 `json:"min_score,omitempty"`
	LexicalTopK    int     `json:"lexical_top_k,omitempty"`
	VectorTopK     int     `json:"vector_top_k,omitempty"`
	LexicalWeight  float64 `json:"lexical_weight,omitempty"`
	SemanticWeight float64 `json:"semantic_weight,omitempty"`
	RRFConstant    int     `json:"rrf_constant,omitempty"`
}

func (r SearchRequest) Normalized() SearchRequest {
	out := r
	out.Query = strings.TrimSpace(out.Query)
	out.TenantID = strings.TrimSpace(out.TenantID)
	if out.TopK == 0 {
		out.TopK = DefaultTopK
	}
	if out.LexicalTopK <= 0 {
		out.LexicalTopK = DefaultLexicalTopK
	}
	if out.VectorTopK <= 0 {
		out.VectorTopK = DefaultVectorTopK
	}
	if out.LexicalWeight <= 0 {
		out.LexicalWeight = DefaultLexicalWeight
	}
	if out.SemanticWeight <= 0 {
		out.SemanticWeight = DefaultSemanticWeight
	}
	if out.RRFConstant <= 0 {
		out.RRFConstant = DefaultRRFConstant
	}
	return out
}

func (r SearchRequest) Validate() error {
	if r.TenantID == "" {
		return WrapError(ErrInvalidRequest, "validate search request", fmt.Errorf("tenant_id is required"))
	}
	if r.Query == "" {
		return WrapError(ErrInvalidRequest, "validate search request", fmt.Errorf("query is required"))
	}
	if r.TopK <= 0 {
		return WrapError(ErrInvalidRequest, "validate search request", fmt.Errorf("top_k must be positive, got %d", r.TopK))
	}
	return nil
}

// RankedHit is one retriever's view of a document. Score is the retriever's
// native relevance value and is not comparable across retrievers; fusion uses
// Rank only.
type RankedHit struct {
	DocumentID string   `json:"document_id"`
	Rank       int      `json:"rank"`
	Score      float64  `json:"score"`
	Document   Document `json:"document"`
}

type SourceMask uint8

const (
	SourceLexical SourceMask = 1 << iota
	SourceSemantic
)

func (m SourceMask) String() string {
	switch {
	case m&SourceLexical != 0 && m&SourceSemantic != 0:
		return "both"
	case m&SourceLexical != 0:
		return "lexical"
	case m&SourceSemantic != 0:
		return "semantic"
	default:
		return "none"
	}
}

func (m SourceMask) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *SourceMask) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "both":
		*m = SourceLexical | SourceSemantic
	case "lexical":
		*m = SourceLexical
	case "semantic":
		*m = SourceSemantic
	case "none":
		*m = 0
	default:
		return fmt.Errorf("unknown source mask %q", s)
	}
	return nil
}

// FusedResult is one document after rank fusion, with provenance.
type FusedResult struct {
	DocumentID string     `json:"document_id"`
	Score      float64    `json:"score"`
	Sources    SourceMask `json:"sources"`
	Document   Document   `json:"document"`
}
