package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
	"github.com/kirillkom/gallery-curator/internal/core/ports"
)

// Server exposes hybrid search to MCP clients over stdio.
type Server struct {
	searcher ports.Searcher
	mcp      *server.MCPServer
}

func NewServer(searcher ports.Searcher, version string) *Server {
	s := &Server{searcher: searcher}

	s.mcp = server.NewMCPServer(
		"gallery-curator",
		version,
		server.WithToolCapabilities(false),
	)

	tool := mcp.NewTool("collection_search",
		mcp.WithDescription("Search a curator's collection of AI-analyzed items. Returns fused lexical and semantic matches ranked by relevance."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text search query."),
		),
		mcp.WithString("tenant_id",
			mcp.Required(),
			mcp.Description("Collection owner whose documents may be searched."),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of results to return."),
		),
		mcp.WithString("category",
			mcp.Description("Optional category filter."),
		),
	)
	s.mcp.AddTool(tool, s.handleCollectionSearch)

	return s
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

type collectionSearchResult struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Sources    string  `json:"sources"`
	ItemID     string  `json:"item_id,omitempty"`
	Category   string  `json:"category,omitempty"`
	Headline   string  `json:"headline,omitempty"`
}

func (s *Server) handleCollectionSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tenantID, err := request.RequireString("tenant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := domain.SearchRequest{
		Query:    query,
		TenantID: tenantID,
		TopK:     request.GetInt("top_k", 0),
		Category: request.GetString("category", ""),
	}

	results, err := s.searcher.Search(ctx, req)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidRequest) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	out := make([]collectionSearchResult, 0, len(results))
	for _, result := range results {
		out = append(out, collectionSearchResult{
			DocumentID: result.DocumentID,
			Score:      result.Score,
			Sources:    result.Sources.String(),
			ItemID:     result.Document.ItemID,
			Category:   result.Document.Category,
			Headline:   result.Document.Headline,
		})
	}

	payload, err := json.Marshal(map[string]any{
		"results": out,
		"count":   len(out),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search results: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
