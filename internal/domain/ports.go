package domain

import (
	"context"
	"time"
)

// ContentRepository owns the catalog cache tables. Upserts are convergent:
// re-applying the same batch leaves the cache unchanged.
type ContentRepository interface {
	Upsert(ctx context.Context, items []Content) error
	FindByID(ctx context.Context, id ContentID) (Content, error)
	// NextCard returns the highest-popularity item matching the filter that
	// is not in exclude. Ties break by ascending id.
	NextCard(ctx context.Context, filter ContentFilter, exclude []ContentID) (Content, error)
	// Scores aggregates the vote ledger per item, filtered and ordered by
	// total score descending then id ascending, truncated to limit.
	Scores(ctx context.Context, filter ContentFilter, votedSince time.Time, limit int) ([]ScoredContent, error)
}

type GenreRepository interface {
	Upsert(ctx context.Context, genres []Genre) error
	List(ctx context.Context, t ContentType) ([]Genre, error)
}

// VoteRepository is the append-only ledger. Record is the single atomic
// conditional-insert primitive: it either persists the vote or reports
// ErrDuplicateVote, even when the same (session, content) pair arrives
// concurrently on different instances.
type VoteRepository interface {
	Record(ctx context.Context, vote Vote) error
	VotedContentIDs(ctx context.Context, session SessionID) ([]ContentID, error)
	StatsByContent(ctx context.Context, id ContentID) (VoteStats, error)
}

// CatalogProvider is the boundary to the external catalog API. Payloads
// are normalized into domain records before they cross it.
type CatalogProvider interface {
	PopularMovies(ctx context.Context) ([]Content, error)
	PopularShows(ctx context.Context) ([]Content, error)
	MovieGenres(ctx context.Context) ([]Genre, error)
	ShowGenres(ctx context.Context) ([]Genre, error)
	Details(ctx context.Context, id ContentID, t ContentType) (Content, error)
}

// DetailCache keeps provider detail payloads warm between refreshes.
type DetailCache interface {
	Get(ctx context.Context, id ContentID, t ContentType) (Content, bool, error)
	Set(ctx context.Context, item Content) error
}

// Admission decides whether a caller may proceed within a named bucket.
// Rejections carry a retry-after hint via ratelimit.LimitError.
type Admission interface {
	Admit(ctx context.Context, identity, bucket string) error
}

type Clock interface {
	Now() time.Time
}
