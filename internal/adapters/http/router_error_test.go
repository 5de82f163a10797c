package httpadapter

import (
	"errors"
	"net/http"
	"testing"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

func TestSearchMapsRetrievalUnavailableTo503(t *testing.T) {
	searcher := &searcherFake{err: domain.WrapError(domain.ErrRetrievalUnavailable, "hybrid search", errors.New("both retrievers failed"))}
	handler := NewRouter(searcher, &agentFake{}, &ingestorFake{}).Handler()

	res := doJSONRequest(t, handler, http.MethodPost, "/v1/search", searchBody(t, "etching"), "tenant-a")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 503 response")
	}
}

func TestSearchMapsInvalidRequestTo400(t *testing.T) {
	searcher := &searcherFake{err: domain.WrapError(domain.ErrInvalidRequest, "validate search request", errors.New("top_k must be positive"))}
	handler := NewRouter(searcher, &agentFake{}, &ingestorFake{}).Handler()

	res := doJSONRequest(t, handler, http.MethodPost, "/v1/search", searchBody(t, "etching"), "tenant-a")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchMapsUnknownErrorTo500(t *testing.T) {
	searcher := &searcherFake{err: errors.New("boom")}
	handler := NewRouter(searcher, &agentFake{}, &ingestorFake{}).Handler()

	res := doJSONRequest(t, handler, http.MethodPost, "/v1/search", searchBody(t, "etching"), "tenant-a")
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestMethodNotAllowedOnSearch(t *testing.T) {
	handler := NewRouter(&searcherFake{}, &agentFake{}, &ingestorFake{}).Handler()

	res := doJSONRequest(t, handler, http.MethodGet, "/v1/search", nil, "tenant-a")
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
