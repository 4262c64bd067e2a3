package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cineswipe/cineswipe/internal/domain"
	"github.com/cineswipe/cineswipe/internal/platform/ids"
)

func setupPostgres(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// In-memory SQLite scopes the database to the connection; the pool must
	// stay at one connection so every query sees the migrated schema.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&domain.Content{}, &domain.ContentGenre{}, &domain.Genre{}, &domain.Vote{})
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return db
}

func seedContent(t *testing.T, db *gorm.DB, items ...domain.Content) {
	t.Helper()
	repo := NewContentRepository(db)
	require.NoError(t, repo.Upsert(context.Background(), items))
}

func movie(id int64, title string, popularity float64, genreIDs ...domain.GenreID) domain.Content {
	return domain.Content{
		ID:         domain.ContentID(id),
		Type:       domain.TypeMovie,
		Title:      title,
		GenreIDs:   genreIDs,
		Popularity: popularity,
		CachedAt:   time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestVoteRepository_Record_ValidVote_Persists(t *testing.T) {
	db := setupPostgres(t)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	vote := domain.Vote{
		ID:        domain.VoteID(gen.New()),
		SessionID: "session-a",
		ContentID: 550,
		Value:     domain.VoteUp,
		IPHash:    "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		CreatedAt: time.Now().UTC(),
	}

	err := repo.Record(ctx, vote)
	require.NoError(t, err)

	voted, err := repo.VotedContentIDs(ctx, "session-a")
	assert.NoError(t, err)
	assert.Equal(t, []domain.ContentID{550}, voted)
}

func TestVoteRepository_Record_SamePairTwice_ReturnsDuplicate(t *testing.T) {
	db := setupPostgres(t)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	first := domain.Vote{
		ID:        domain.VoteID(gen.New()),
		SessionID: "session-a",
		ContentID: 550,
		Value:     domain.VoteUp,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Record(ctx, first))

	// Same pair, fresh id and a different value: the ledger must keep the
	// first vote untouched.
	second := first
	second.ID = domain.VoteID(gen.New())
	second.Value = domain.VoteDown

	err := repo.Record(ctx, second)
	assert.ErrorIs(t, err, domain.ErrDuplicateVote)

	stats, err := repo.StatsByContent(ctx, 550)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalVotes)
	assert.Equal(t, int64(1), stats.PositiveVotes)
}

func TestVoteRepository_Record_SameSessionDifferentContent_BothAccepted(t *testing.T) {
	db := setupPostgres(t)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	for _, contentID := range []domain.ContentID{100, 200} {
		err := repo.Record(ctx, domain.Vote{
			ID:        domain.VoteID(gen.New()),
			SessionID: "session-a",
			ContentID: contentID,
			Value:     domain.VoteUp,
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	voted, err := repo.VotedContentIDs(ctx, "session-a")
	require.NoError(t, err)
	assert.Len(t, voted, 2)
}

func TestVoteRepository_Record_ConcurrentSamePair_ExactlyOneWins(t *testing.T) {
	db := setupPostgres(t)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	const attempts = 10
	errs := make([]error, attempts)
	votes := make([]domain.Vote, attempts)
	for i := range votes {
		votes[i] = domain.Vote{
			ID:        domain.VoteID(gen.New()),
			SessionID: "session-race",
			ContentID: 550,
			Value:     domain.VoteUp,
			CreatedAt: time.Now().UTC(),
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Record(ctx, votes[i])
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, domain.ErrDuplicateVote)
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestVoteRepository_VotedContentIDs_UnknownSession_ReturnsEmpty(t *testing.T) {
	db := setupPostgres(t)
	repo := NewVoteRepository(db)

	voted, err := repo.VotedContentIDs(context.Background(), "never-voted")
	require.NoError(t, err)
	assert.Empty(t, voted)
}

func TestVoteRepository_StatsByContent_MixedVotes_PartitionsAndAverage(t *testing.T) {
	db := setupPostgres(t)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	values := []domain.VoteValue{domain.VoteUp, domain.VoteUp, domain.VoteDown, domain.VoteNeutral}
	for i, v := range values {
		err := repo.Record(ctx, domain.Vote{
			ID:        domain.VoteID(gen.New()),
			SessionID: domain.SessionID([]string{"s1", "s2", "s3", "s4"}[i]),
			ContentID: 550,
			Value:     v,
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	stats, err := repo.StatsByContent(ctx, 550)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalVotes)
	assert.Equal(t, int64(2), stats.PositiveVotes)
	assert.Equal(t, int64(1), stats.NegativeVotes)
	assert.Equal(t, int64(1), stats.NeutralVotes)
	assert.InDelta(t, 0.25, stats.AverageScore, 0.0001)
}

func TestVoteRepository_StatsByContent_NoVotes_ReturnsZeroes(t *testing.T) {
	db := setupPostgres(t)
	repo := NewVoteRepository(db)

	stats, err := repo.StatsByContent(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteStats{}, stats)
}
