package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
	"github.com/kirillkom/gallery-curator/internal/core/ports"
)

const maxAnswerCitations = 5

// AgentSearchUseCase is a bounded search-and-refine loop on top of the hybrid
// facade. Each iteration searches, then asks the external planner whether the
// hits suffice or the query should be rewritten. Retrieval being unavailable
// ends the loop with an explicit limitation report instead of retrying.
type AgentSearchUseCase struct {
	searcher ports.Searcher
	planner  ports.Planner
	limits   domain.AgentLimits
}

func NewAgentSearchUseCase(searcher ports.Searcher, planner ports.Planner, limits domain.AgentLimits) *AgentSearchUseCase {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = 4
	}
	if limits.Timeout <= 0 {
		limits.Timeout = 60 * time.Second
	}
	if limits.PlannerTimeout <= 0 {
		limits.PlannerTimeout = 20 * time.Second
	}
	if limits.SearchTimeout <= 0 {
		limits.SearchTimeout = 15 * time.Second
	}
	return &AgentSearchUseCase{
		searcher: searcher,
		planner:  planner,
		limits:   limits,
	}
}

func (uc *AgentSearchUseCase) Answer(ctx context.Context, req domain.SearchRequest) (*domain.AgentAnswer, error) {
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithTimeout(ctx, uc.limits.Timeout)
	defer cancel()

	query := req.Query
	queries := make([]string, 0, uc.limits.MaxIterations)
	var lastResults []domain.FusedResult
	iterations := 0

loop:
	for i := 1; i <= uc.limits.MaxIterations; i++ {
		if loopCtx.Err() != nil {
			break
		}
		iterations = i

		searchReq := req
		searchReq.Query = query
		searchCtx, searchCancel := context.WithTimeout(loopCtx, uc.limits.SearchTimeout)
		results, err := uc.searcher.Search(searchCtx, searchReq)
		searchCancel()
		if err != nil {
			if domain.IsKind(err, domain.ErrRetrievalUnavailable) {
				return &domain.AgentAnswer{
					Answer:     "Search is currently unavailable, so I cannot look anything up right now. Please try again shortly.",
					Iterations: iterations,
					Queries:    queries,
					Degraded:   true,
				}, nil
			}
			return nil, fmt.Errorf("agent search: %w", err)
		}
		queries = append(queries, query)
		lastResults = results

		if i == uc.limits.MaxIterations {
			break
		}

		plannerCtx, plannerCancel := context.WithTimeout(loopCtx, uc.limits.PlannerTimeout)
		raw, err := uc.planner.PlanStep(plannerCtx, buildAgentPlannerPrompt(req.Query, query, results, i, uc.limits.MaxIterations))
		plannerCancel()
		if err != nil {
			break
		}

		step, err := parseAgentStep(raw)
		if err != nil {
			break
		}

		switch step.Type {
		case "final":
			answer := strings.TrimSpace(step.Answer)
			if answer == "" {
				break loop
			}
			return &domain.AgentAnswer{
				Answer:     answer,
				Citations:  normalizeCitations(step.Citations, lastResults),
				Iterations: iterations,
				Queries:    queries,
			}, nil
		case "refine":
			next := strings.TrimSpace(step.Query)
			if next == "" || strings.EqualFold(next, query) {
				break loop
			}
			query = next
		default:
			break loop
		}
	}

	return uc.synthesize(ctx, req.Query, lastResults, iterations, queries)
}

func (uc *AgentSearchUseCase) synthesize(
	ctx context.Context,
	question string,
	results []domain.FusedResult,
	iterations int,
	queries []string,
) (*domain.AgentAnswer, error) {
	citations := normalizeCitations(nil, results)

	if len(results) == 0 {
		return &domain.AgentAnswer{
			Answer:     "I could not find any matching items in the collection for this request.",
			Iterations: iterations,
			Queries:    queries,
		}, nil
	}

	synthCtx, cancel := context.WithTimeout(ctx, uc.limits.PlannerTimeout)
	defer cancel()

	answer, err := uc.planner.Synthesize(synthCtx, buildAgentAnswerPrompt(question, results))
	if err != nil || strings.TrimSpace(answer) == "" {
		// Planner outage still yields a usable citation list.
		return &domain.AgentAnswer{
			Answer:     fmt.Sprintf("I found %d matching items; see the cited documents.", len(results)),
			Citations:  citations,
			Iterations: iterations,
			Queries:    queries,
			Degraded:   true,
		}, nil
	}

	return &domain.AgentAnswer{
		Answer:     strings.TrimSpace(answer),
		Citations:  citations,
		Iterations: iterations,
		Queries:    queries,
	}, nil
}

func parseAgentStep(raw string) (domain.AgentPlanStep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.AgentPlanStep{}, fmt.Errorf("empty planner response")
	}
	var step domain.AgentPlanStep
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		return domain.AgentPlanStep{}, fmt.Errorf("unmarshal planner json: %w", err)
	}
	step.Type = strings.ToLower(strings.TrimSpace(step.Type))
	return step, nil
}

// normalizeCitations keeps planner-provided document ids that actually exist
// in the result set; with none provided, the top results are cited instead.
func normalizeCitations(candidates []string, results []domain.FusedResult) []string {
	known := make(map[string]struct{}, len(results))
	for _, result := range results {
		known[result.DocumentID] = struct{}{}
	}

	out := make([]string, 0, maxAnswerCitations)
	seen := make(map[string]struct{}, maxAnswerCitations)
	appendCitation := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || len(out) >= maxAnswerCitations {
			return
		}
		if _, ok := known[id]; !ok {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range candidates {
		appendCitation(id)
	}
	if len(out) == 0 {
		for _, result := range results {
			appendCitation(result.DocumentID)
		}
	}
	return out
}

func buildAgentPlannerPrompt(question, currentQuery string, results []domain.FusedResult, iteration, maxIterations int) string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		lines = append(lines, fmt.Sprintf("- [%s] (%s, score=%.4f) %s",
			result.DocumentID, result.Sources, result.Score, snippet(result.Document)))
	}
	if len(lines) == 0 {
		lines = append(lines, "(no results)")
	}

	return fmt.Sprintf(`You decide the next step of a collection search loop.
Return ONLY a valid JSON object, one of:
{"type":"refine","query":"rewritten search query"}
{"type":"final","answer":"...","citations":["document-id", "..."]}

User question:
%s

Current search query (iteration %d of %d):
%s

Results for the current query:
%s

Refine only if the results do not answer the question and a better query exists.
`, question, iteration, maxIterations, currentQuery, strings.Join(lines, "\n"))
}

func buildAgentAnswerPrompt(question string, results []domain.FusedResult) string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		lines = append(lines, fmt.Sprintf("[%s] %s", result.DocumentID, snippet(result.Document)))
	}

	return fmt.Sprintf(`Answer the question using only the retrieved collection items below.
Reference items by their id in square brackets. If the items do not answer the
question, say so.

Question:
%s

Items:
%s`, question, strings.Join(lines, "\n"))
}

func snippet(doc domain.Document) string {
	const maxSnippet = 240
	text := strings.TrimSpace(doc.Headline)
	if content := strings.TrimSpace(doc.Content); content != "" {
		if text != "" {
			text += ": "
		}
		text += content
	}
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > maxSnippet {
		return string(runes[:maxSnippet]) + "…"
	}
	return text
}
