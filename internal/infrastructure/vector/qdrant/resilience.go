package qdrant

import (
	"context"
	"errors"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
	"github.com/kirillkom/gallery-curator/internal/infrastructure/resilience"
)

// Every store call is idempotent: upserts and deletes carry their own point
// ids and queries are read-only, so a backend failure is always safe to retry.
func classifyQdrantError(err error) resilience.Verdict {
	switch {
	case err == nil:
		return resilience.Verdict{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The caller gave up, not Qdrant.
		return resilience.Verdict{}
	case resilience.IsCircuitOpen(err),
		domain.IsKind(err, domain.ErrBackendUnavailable):
		return resilience.Verdict{Retry: true, Record: true}
	default:
		return resilience.Verdict{Record: true}
	}
}
