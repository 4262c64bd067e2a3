// Package cards implements next-card selection: the highest-priority item
// the session has not judged yet, with a refresh-and-retry fallback when
// the cache runs dry.
package cards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cineswipe/cineswipe/internal/domain"
	"github.com/cineswipe/cineswipe/internal/platform/metrics"
)

var ErrMissingSession = errors.New("session id is required")

// CatalogRefresher triggers a synchronous catalog refresh. Selection only
// needs this one behaviour from the catalog service.
type CatalogRefresher interface {
	Refresh(ctx context.Context) error
}

type Service struct {
	content   domain.ContentRepository
	votes     domain.VoteRepository
	refresher CatalogRefresher
	logger    *slog.Logger
}

func NewService(content domain.ContentRepository, votes domain.VoteRepository, refresher CatalogRefresher, logger *slog.Logger) *Service {
	return &Service{
		content:   content,
		votes:     votes,
		refresher: refresher,
		logger:    logger,
	}
}

// Next returns the next unseen item for the session, or domain.ErrNotFound
// when the catalog is exhausted for this session and filter. The exclusion
// set is recomputed from the ledger on every call, so an item accepted a
// moment ago is already excluded. On an empty result exactly one refresh
// runs before the query is retried; refresh failures are logged and
// absorbed because an empty hand is a valid outcome, not an error.
func (s *Service) Next(ctx context.Context, session domain.SessionID, filter domain.ContentFilter) (domain.Content, error) {
	if session == "" {
		return domain.Content{}, ErrMissingSession
	}

	voted, err := s.votes.VotedContentIDs(ctx, session)
	if err != nil {
		return domain.Content{}, fmt.Errorf("cards: exclusion set: %w", err)
	}

	item, err := s.content.NextCard(ctx, filter, voted)
	if err == nil {
		metrics.ObserveCardRequest("hit")
		return item, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Content{}, fmt.Errorf("cards: select: %w", err)
	}

	if refreshErr := s.refresher.Refresh(ctx); refreshErr != nil {
		s.logger.Warn("catalog refresh during selection failed", "session", session, "err", refreshErr)
	}

	item, err = s.content.NextCard(ctx, filter, voted)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.ObserveCardRequest("exhausted")
			return domain.Content{}, domain.ErrNotFound
		}
		return domain.Content{}, fmt.Errorf("cards: select after refresh: %w", err)
	}

	metrics.ObserveCardRequest("hit_after_refresh")
	return item, nil
}
