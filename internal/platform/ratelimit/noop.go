package ratelimit

import (
	"context"

	"github.com/cineswipe/cineswipe/internal/domain"
)

// Noop is the disabled admission strategy.
type Noop struct{}

func NewNoop() Noop {
	return Noop{}
}

func (Noop) Admit(ctx context.Context, identity, bucket string) error {
	return nil
}

var _ domain.Admission = Noop{}
