// Package catalog owns the cached copy of the external catalog: refreshing
// it from the provider, answering detail lookups and listing genres.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cineswipe/cineswipe/internal/domain"
	"github.com/cineswipe/cineswipe/internal/platform/metrics"
)

const defaultOverviewMaxLen = 500

// Service orchestrates refreshes and lookups. Refresh is idempotent and
// safe to call concurrently: every write is an upsert, so overlapping runs
// converge instead of corrupting state.
type Service struct {
	content        domain.ContentRepository
	genres         domain.GenreRepository
	provider       domain.CatalogProvider
	details        domain.DetailCache
	clock          domain.Clock
	logger         *slog.Logger
	overviewMaxLen int
}

func NewService(
	content domain.ContentRepository,
	genres domain.GenreRepository,
	provider domain.CatalogProvider,
	details domain.DetailCache,
	clock domain.Clock,
	logger *slog.Logger,
	overviewMaxLen int,
) *Service {
	if overviewMaxLen <= 0 {
		overviewMaxLen = defaultOverviewMaxLen
	}
	return &Service{
		content:        content,
		genres:         genres,
		provider:       provider,
		details:        details,
		clock:          clock,
		logger:         logger,
		overviewMaxLen: overviewMaxLen,
	}
}

// Refresh pulls the popular movie and show lists plus both genre
// taxonomies and upserts them. Partial provider failures upsert whatever
// arrived; the cache is never cleared, so the worst case is stale data.
func (s *Service) Refresh(ctx context.Context) error {
	start := time.Now()
	var errs []error

	var batch []domain.Content
	movies, err := s.provider.PopularMovies(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("catalog: popular movies: %w", err))
	} else {
		batch = append(batch, movies...)
	}

	shows, err := s.provider.PopularShows(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("catalog: popular shows: %w", err))
	} else {
		batch = append(batch, shows...)
	}

	if len(batch) > 0 {
		now := s.clock.Now()
		for i := range batch {
			batch[i] = s.normalize(batch[i], now)
		}
		if err := s.content.Upsert(ctx, batch); err != nil {
			errs = append(errs, fmt.Errorf("catalog: upsert items: %w", err))
		}
	}

	if err := s.refreshGenres(ctx); err != nil {
		errs = append(errs, err)
	}

	err = errors.Join(errs...)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveCatalogRefresh(outcome, time.Since(start).Seconds())
	return err
}

func (s *Service) refreshGenres(ctx context.Context) error {
	var all []domain.Genre

	movieGenres, err := s.provider.MovieGenres(ctx)
	if err != nil {
		return fmt.Errorf("catalog: movie genres: %w", err)
	}
	all = append(all, movieGenres...)

	showGenres, err := s.provider.ShowGenres(ctx)
	if err != nil {
		return fmt.Errorf("catalog: show genres: %w", err)
	}
	all = append(all, showGenres...)

	if err := s.genres.Upsert(ctx, all); err != nil {
		return fmt.Errorf("catalog: upsert genres: %w", err)
	}
	return nil
}

// Detail serves an item by id, falling back to the detail cache and then
// the provider when the catalog copy is missing. Provider failures degrade
// to not-found: stale-or-nothing beats failing the request.
func (s *Service) Detail(ctx context.Context, id domain.ContentID, t domain.ContentType) (domain.Content, error) {
	item, err := s.content.FindByID(ctx, id)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Content{}, fmt.Errorf("catalog: detail lookup: %w", err)
	}

	if t == "" || t == domain.TypeAll {
		t = domain.TypeMovie
	}

	if s.details != nil {
		cached, ok, cacheErr := s.details.Get(ctx, id, t)
		if cacheErr != nil {
			s.logger.Warn("detail cache read failed", "content", id, "err", cacheErr)
		} else if ok {
			return cached, nil
		}
	}

	fetched, err := s.provider.Details(ctx, id, t)
	if err != nil {
		s.logger.Warn("provider detail fetch failed", "content", id, "type", t, "err", err)
		return domain.Content{}, domain.ErrNotFound
	}

	fetched = s.normalize(fetched, s.clock.Now())
	if err := s.content.Upsert(ctx, []domain.Content{fetched}); err != nil {
		s.logger.Warn("detail upsert failed", "content", id, "err", err)
	}
	if s.details != nil {
		if err := s.details.Set(ctx, fetched); err != nil {
			s.logger.Warn("detail cache write failed", "content", id, "err", err)
		}
	}

	return fetched, nil
}

func (s *Service) Genres(ctx context.Context, t domain.ContentType) ([]domain.Genre, error) {
	genres, err := s.genres.List(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("catalog: list genres: %w", err)
	}
	return genres, nil
}

// normalize bounds free-text fields and stamps cache timestamps before an
// item enters the store.
func (s *Service) normalize(item domain.Content, now time.Time) domain.Content {
	item.Overview = truncate(item.Overview, s.overviewMaxLen)
	item.CachedAt = now
	item.UpdatedAt = now
	return item
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
