package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
	"github.com/kirillkom/gallery-curator/internal/core/ports"
	"github.com/kirillkom/gallery-curator/internal/observability/metrics"
)

const tenantIDHeader = "X-Tenant-Id"

type Router struct {
	searcher ports.Searcher
	agent    ports.AgentAnswerer
	ingestor ports.AnalysisIngestor
	metrics  *metrics.HTTPServerMetrics

	authToken   string
	tenantRPS   float64
	tenantBurst int
}

type RouterOption func(*Router)

func WithAuthToken(token string) RouterOption {
	return func(rt *Router) { rt.authToken = strings.TrimSpace(token) }
}

func WithTenantRateLimit(rps float64, burst int) RouterOption {
	return func(rt *Router) {
		rt.tenantRPS = rps
		rt.tenantBurst = burst
	}
}

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

func NewRouter(
	searcher ports.Searcher,
	agent ports.AgentAnswerer,
	ingestor ports.AnalysisIngestor,
	options ...RouterOption,
) *Router {
	rt := &Router{
		searcher: searcher,
		agent:    agent,
		ingestor: ingestor,
	}
	for _, option := range options {
		option(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/search/export", rt.exportSearch)
	mux.HandleFunc("/v1/agent/answer", rt.agentAnswer)
	mux.HandleFunc("/v1/analyses", rt.createAnalysis)
	mux.HandleFunc("/v1/analyses/", rt.deleteAnalysis)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rt.validationMiddleware(handler)
	handler = rt.authMiddleware(handler)
	if rt.tenantRPS > 0 {
		handler = rt.rateLimitMiddleware(handler)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = withAccessLog(handler)
	handler = withRequestID(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequestBody struct {
	Query          string  `json:"query"`
	TopK           int     `json:"top_k"`
	Category       string  `json:"category"`
	MinScore       float64 `json:"min_score"`
	LexicalTopK    int     `json:"lexical_top_k"`
	VectorTopK     int     `json:"vector_top_k"`
	LexicalWeight  float64 `json:"lexical_weight"`
	SemanticWeight float64 `json:"semantic_weight"`
	RRFConstant    int     `json:"rrf_constant"`
}

func (b searchRequestBody) toDomain(tenantID string) domain.SearchRequest {
	return domain.SearchRequest{
		Query:          b.Query,
		TenantID:       tenantID,
		TopK:           b.TopK,
		Category:       b.Category,
		MinScore:       b.MinScore,
		LexicalTopK:    b.LexicalTopK,
		VectorTopK:     b.VectorTopK,
		LexicalWeight:  b.LexicalWeight,
		SemanticWeight: b.SemanticWeight,
		RRFConstant:    b.RRFConstant,
	}
}

type searchResponseBody struct {
	Results []domain.FusedResult `json:"results"`
	Count   int                  `json:"count"`
}

func (rt *Router) decodeSearchRequest(w http.ResponseWriter, r *http.Request) (domain.SearchRequest, bool) {
	tenantID := strings.TrimSpace(r.Header.Get(tenantIDHeader))
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-Tenant-Id header is required"})
		return domain.SearchRequest{}, false
	}

	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return domain.SearchRequest{}, false
	}
	return body.toDomain(tenantID), true
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := rt.decodeSearchRequest(w, r)
	if !ok {
		return
	}

	results, err := rt.searcher.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponseBody{Results: results, Count: len(results)})
}

func (rt *Router) exportSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := rt.decodeSearchRequest(w, r)
	if !ok {
		return
	}

	results, err := rt.searcher.Search(r.Context(), req)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordExport("error")
		}
		writeError(w, err)
		return
	}

	if err := writeResultsWorkbook(w, req.Query, results); err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordExport("error")
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordExport("success")
	}
}

func (rt *Router) agentAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := rt.decodeSearchRequest(w, r)
	if !ok {
		return
	}

	answer, err := rt.agent.Answer(r.Context(), req)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordAgentRun("error", 0)
		}
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		status := "success"
		if answer.Degraded {
			status = "degraded"
		}
		rt.metrics.RecordAgentRun(status, answer.Iterations)
	}
	writeJSON(w, http.StatusOK, answer)
}

type createAnalysisBody struct {
	ItemID        string   `json:"item_id"`
	Category      string   `json:"category"`
	Headline      string   `json:"headline"`
	Summary       string   `json:"summary"`
	Labels        []string `json:"labels"`
	ExtractedText string   `json:"extracted_text"`
}

func (rt *Router) createAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	tenantID := strings.TrimSpace(r.Header.Get(tenantIDHeader))
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-Tenant-Id header is required"})
		return
	}

	var body createAnalysisBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	analysis, err := rt.ingestor.Ingest(r.Context(), domain.ItemAnalysis{
		TenantID:      tenantID,
		ItemID:        body.ItemID,
		Category:      body.Category,
		Headline:      body.Headline,
		Summary:       body.Summary,
		Labels:        body.Labels,
		ExtractedText: body.ExtractedText,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, analysis)
}

func (rt *Router) deleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	tenantID := strings.TrimSpace(r.Header.Get(tenantIDHeader))
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-Tenant-Id header is required"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/analyses/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "analysis id is required"})
		return
	}

	if err := rt.ingestor.Delete(r.Context(), tenantID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (rt *Router) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.authToken == "" || !isProtectedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if isAuthorizedBearerHeader(r.Header.Get("Authorization"), rt.authToken) {
			next.ServeHTTP(w, r)
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})
}

func isProtectedPath(path string) bool {
	return strings.HasPrefix(path, "/v1/")
}

func isAuthorizedBearerHeader(headerValue, expectedToken string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" || expectedToken == "" {
		return false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return token == expectedToken
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterValue(5*time.Second))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
