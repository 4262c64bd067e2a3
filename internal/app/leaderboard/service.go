// Package leaderboard reduces the vote ledger into the ranked top-ten view.
package leaderboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cineswipe/cineswipe/internal/domain"
	"github.com/cineswipe/cineswipe/internal/platform/metrics"
)

// TopN is the fixed page size of the primary view.
const TopN = 10

// TrendingWindow is the lookback applied when the trending flag is set: an
// item qualifies if its most recent vote falls inside it.
const TrendingWindow = 30 * 24 * time.Hour

// Query names the filter combination for one leaderboard read.
type Query struct {
	Type     domain.ContentType `json:"type"`
	GenreID  domain.GenreID     `json:"genre_id,omitempty"`
	Trending bool               `json:"trending"`
}

// Result is a derived snapshot: recomputed on every call, never stored.
type Result struct {
	Entries     []domain.LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Filters     Query                     `json:"filters"`
}

type Service struct {
	content domain.ContentRepository
	clock   domain.Clock
}

func NewService(content domain.ContentRepository, clock domain.Clock) *Service {
	return &Service{
		content: content,
		clock:   clock,
	}
}

// Top ranks the filtered items by total score. Ordering is deterministic:
// score descending, then content id ascending, with dense 1-based ranks.
// An empty candidate set yields an empty (non-nil) entry list.
func (s *Service) Top(ctx context.Context, q Query) (Result, error) {
	now := s.clock.Now()

	var votedSince time.Time
	if q.Trending {
		votedSince = now.Add(-TrendingWindow)
	}

	filter := domain.ContentFilter{Type: q.Type, GenreID: q.GenreID}
	rows, err := s.content.Scores(ctx, filter, votedSince, TopN)
	if err != nil {
		return Result{}, fmt.Errorf("leaderboard: aggregate: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(rows))
	for i, row := range rows {
		lastVoted := row.LastVoted
		entries[i] = domain.LeaderboardEntry{
			Rank:          i + 1,
			ContentID:     row.Content.ID,
			Title:         row.Content.Title,
			Type:          row.Content.Type,
			PosterPath:    row.Content.PosterPath,
			GenreIDs:      row.Content.GenreIDs,
			ReleaseDate:   row.Content.ReleaseDate,
			Rating:        row.Content.Rating,
			TotalScore:    row.TotalScore,
			TotalVotes:    row.TotalVotes,
			PositiveVotes: row.PositiveVotes,
			NegativeVotes: row.NegativeVotes,
			NeutralVotes:  row.NeutralVotes,
			Percentages:   percentages(row),
			LastVoted:     &lastVoted,
		}
	}

	metrics.IncLeaderboardQuery()
	return Result{
		Entries:     entries,
		GeneratedAt: now,
		Filters:     q,
	}, nil
}

// percentages splits the vote partition into integer shares rounded
// half-up. Rounding drift below 100 is left alone; zero votes means all
// zeroes rather than a division by zero.
func percentages(row domain.ScoredContent) domain.Percentages {
	if row.TotalVotes == 0 {
		return domain.Percentages{}
	}
	return domain.Percentages{
		Positive: percent(row.PositiveVotes, row.TotalVotes),
		Negative: percent(row.NegativeVotes, row.TotalVotes),
		Neutral:  percent(row.NeutralVotes, row.TotalVotes),
	}
}

func percent(count, total int64) int {
	return int(math.Round(float64(count) / float64(total) * 100))
}
