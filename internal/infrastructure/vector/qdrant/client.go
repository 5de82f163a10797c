package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
	"github.com/kirillkom/gallery-curator/internal/infrastructure/resilience"
)

const (
	denseVectorName  = "analysis"
	sparseVectorName = "lexical"
)

// Client implements the document store over Qdrant. One collection holds a
// named dense vector for the semantic path and a named sparse vector for the
// lexical path; both query primitives apply the tenant filter inside Qdrant
// so the store's top-k cutoff can never surface a foreign tenant.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithResilience wraps store calls in the retry/breaker executor.
func (c *Client) WithResilience(executor *resilience.Executor) *Client {
	c.executor = executor
	return c
}

func (c *Client) UpsertDocument(ctx context.Context, doc domain.Document, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding for document %s", doc.ID)
	}
	if err := c.ensureCollection(ctx, len(embedding)); err != nil {
		return err
	}

	point := map[string]any{
		"id": doc.ID,
		"vector": map[string]any{
			denseVectorName:  embedding,
			sparseVectorName: encodeSparseDocument(doc.Content, doc.Headline),
		},
		"payload": map[string]any{
			domain.MetaTenantID: doc.TenantID,
			domain.MetaItemID:   doc.ItemID,
			domain.MetaCategory: doc.Category,
			domain.MetaHeadline: doc.Headline,
			"text":              doc.Content,
			"created_at":        doc.CreatedAt.Format(time.RFC3339),
		},
	}

	body, err := json.Marshal(map[string]any{"points": []any{point}})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.do(ctx, http.MethodPut, url, body, nil, "upsert")
}

func (c *Client) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	// Tenant match in the delete filter keeps the cascade tenant-safe even
	// with a mistaken id.
	body, err := json.Marshal(map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"has_id": []string{documentID}},
				{"key": domain.MetaTenantID, "match": map[string]any{"value": tenantID}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal delete body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	return c.do(ctx, http.MethodPost, url, body, nil, "delete")
}

func (c *Client) PruneItemDocuments(ctx context.Context, tenantID, itemID, keepDocumentID string) error {
	body, err := json.Marshal(map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": domain.MetaTenantID, "match": map[string]any{"value": tenantID}},
				{"key": domain.MetaItemID, "match": map[string]any{"value": itemID}},
			},
			"must_not": []map[string]any{
				{"has_id": []string{keepDocumentID}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal prune body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	return c.do(ctx, http.MethodPost, url, body, nil, "prune")
}

func (c *Client) VectorQuery(
	ctx context.Context,
	embedding []float32,
	tenantID, category string,
	limit int,
) ([]domain.RankedHit, error) {
	return c.query(ctx, map[string]any{
		"query":        embedding,
		"using":        denseVectorName,
		"limit":        limit,
		"with_payload": true,
		"filter":       buildFilter(tenantID, category),
	}, "vector query")
}

func (c *Client) LexicalQuery(
	ctx context.Context,
	terms []string,
	tenantID, category string,
	limit int,
) ([]domain.RankedHit, error) {
	sparse := encodeSparseQuery(terms)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}
	return c.query(ctx, map[string]any{
		"query":        sparse,
		"using":        sparseVectorName,
		"limit":        limit,
		"with_payload": true,
		"filter":       buildFilter(tenantID, category),
	}, "lexical query")
}

func (c *Client) query(ctx context.Context, reqBody map[string]any, operation string) ([]domain.RankedHit, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	var queryResp struct {
		Result struct {
			Points []struct {
				ID      string         `json:"id"`
				Score   float64        `json:"score"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, body, &queryResp, operation); err != nil {
		return nil, err
	}

	out := make([]domain.RankedHit, 0, len(queryResp.Result.Points))
	for _, point := range queryResp.Result.Points {
		out = append(out, domain.RankedHit{
			DocumentID: point.ID,
			Score:      point.Score,
			Document: domain.Document{
				ID:       point.ID,
				TenantID: getStringPayload(point.Payload, domain.MetaTenantID),
				ItemID:   getStringPayload(point.Payload, domain.MetaItemID),
				Category: getStringPayload(point.Payload, domain.MetaCategory),
				Headline: getStringPayload(point.Payload, domain.MetaHeadline),
				Content:  getStringPayload(point.Payload, "text"),
			},
		})
	}
	return out, nil
}

func buildFilter(tenantID, category string) map[string]any {
	must := []map[string]any{
		{"key": domain.MetaTenantID, "match": map[string]any{"value": tenantID}},
	}
	if category != "" {
		must = append(must, map[string]any{
			"key": domain.MetaCategory, "match": map[string]any{"value": category},
		})
	}
	return map[string]any{"must": must}
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any, operation string) error {
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, method, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.WrapError(domain.ErrBackendUnavailable, "qdrant "+operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			statusErr := fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
			return domain.WrapError(domain.ErrBackendUnavailable, "qdrant "+operation, statusErr)
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return domain.WrapError(domain.ErrBackendUnavailable, "qdrant "+operation, fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	}

	if c.executor != nil {
		return c.executor.Execute(ctx, "qdrant_"+operation, call, classifyQdrantError)
	}
	return call(ctx)
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrBackendUnavailable, "qdrant ensure collection", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
		return domain.WrapError(domain.ErrBackendUnavailable, "qdrant ensure collection", statusErr)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
