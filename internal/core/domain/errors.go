package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAnalysisNotFound     = errors.New("analysis not found")
	ErrBackendUnavailable   = errors.New("document store unavailable")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrTemporary            = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
