package domain

import "time"

type AgentLimits struct {
	MaxIterations  int           `json:"max_iterations"`
	Timeout        time.Duration `json:"timeout"`
	PlannerTimeout time.Duration `json:"planner_timeout"`
	SearchTimeout  time.Duration `json:"search_timeout"`
}

// AgentPlanStep is one planner decision: refine the query and search again,
// or emit the final answer.
type AgentPlanStep struct {
	Type      string   `json:"type"`
	Query     string   `json:"query,omitempty"`
	Answer    string   `json:"answer,omitempty"`
	Citations []string `json:"citations,omitempty"`
}

type AgentAnswer struct {
	Answer     string   `json:"answer"`
	Citations  []string `json:"citations,omitempty"`
	Iterations int      `json:"iterations"`
	Queries    []string `json:"queries,omitempty"`
	Degraded   bool     `json:"degraded,omitempty"`
}
