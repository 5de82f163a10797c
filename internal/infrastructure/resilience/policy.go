package resilience

import "time"

// Policy bounds the retry chain and breaker tripping for outbound calls.
// Backoff doubles per attempt up to MaxBackoff; the breaker admits a single
// probe call once the cooldown expires.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	BreakerEnabled      bool
	BreakerMinCalls     uint32
	BreakerFailureRatio float64
	BreakerCooldown     time.Duration
}

// DefaultPolicy keeps the whole retry chain well inside the per-retriever
// search timeout: three attempts with 150ms of backoff between them. The
// cooldown is short because the Qdrant and Ollama deployments this fronts
// recover in seconds, not minutes.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,

		BreakerEnabled:      true,
		BreakerMinCalls:     8,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     20 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()

	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}

	if p.BreakerMinCalls == 0 {
		p.BreakerMinCalls = def.BreakerMinCalls
	}
	if p.BreakerFailureRatio <= 0 || p.BreakerFailureRatio > 1 {
		p.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if p.BreakerCooldown <= 0 {
		p.BreakerCooldown = def.BreakerCooldown
	}

	return p
}
