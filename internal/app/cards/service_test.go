package cards

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cineswipe/cineswipe/internal/domain"
)

type inMemoryContentRepo struct {
	mu    sync.Mutex
	items []domain.Content
}

func (r *inMemoryContentRepo) add(items ...domain.Content) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, items...)
}

func (r *inMemoryContentRepo) Upsert(_ context.Context, items []domain.Content) error {
	r.add(items...)
	return nil
}

func (r *inMemoryContentRepo) FindByID(_ context.Context, id domain.ContentID) (domain.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ID == id {
			return item, nil
		}
	}
	return domain.Content{}, domain.ErrNotFound
}

func (r *inMemoryContentRepo) NextCard(_ context.Context, filter domain.ContentFilter, exclude []domain.ContentID) (domain.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	excluded := make(map[domain.ContentID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	candidates := make([]domain.Content, 0, len(r.items))
	for _, item := range r.items {
		if excluded[item.ID] {
			continue
		}
		if filter.Type != "" && filter.Type != domain.TypeAll && item.Type != filter.Type {
			continue
		}
		candidates = append(candidates, item)
	}
	if len(candidates) == 0 {
		return domain.Content{}, domain.ErrNotFound
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Popularity != candidates[j].Popularity {
			return candidates[i].Popularity > candidates[j].Popularity
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], nil
}

func (r *inMemoryContentRepo) Scores(_ context.Context, _ domain.ContentFilter, _ time.Time, _ int) ([]domain.ScoredContent, error) {
	return nil, nil
}

type stubVoteRepo struct {
	voted map[domain.SessionID][]domain.ContentID
	err   error
}

func (r *stubVoteRepo) Record(context.Context, domain.Vote) error { return nil }

func (r *stubVoteRepo) VotedContentIDs(_ context.Context, session domain.SessionID) ([]domain.ContentID, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.voted[session], nil
}

func (r *stubVoteRepo) StatsByContent(context.Context, domain.ContentID) (domain.VoteStats, error) {
	return domain.VoteStats{}, nil
}

type recordingRefresher struct {
	calls  int
	onCall func()
	err    error
}

func (r *recordingRefresher) Refresh(context.Context) error {
	r.calls++
	if r.onCall != nil {
		r.onCall()
	}
	return r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func card(id int64, popularity float64) domain.Content {
	return domain.Content{ID: domain.ContentID(id), Type: domain.TypeMovie, Title: "Item", Popularity: popularity}
}

func TestServiceNextReturnsMostPopularUnseen(t *testing.T) {
	content := &inMemoryContentRepo{}
	content.add(card(100, 50.0), card(200, 90.0), card(300, 70.0))
	votes := &stubVoteRepo{voted: map[domain.SessionID][]domain.ContentID{}}
	refresher := &recordingRefresher{}

	service := NewService(content, votes, refresher, discardLogger())

	got, err := service.Next(context.Background(), "session-a", domain.ContentFilter{})
	if err != nil {
		t.Fatalf("expected a card, got: %v", err)
	}
	if got.ID != 200 {
		t.Fatalf("expected most popular item 200, got %d", got.ID)
	}
	if refresher.calls != 0 {
		t.Fatalf("refresh must not run when the cache has a candidate, ran %d times", refresher.calls)
	}
}

func TestServiceNextExcludesVotedItems(t *testing.T) {
	content := &inMemoryContentRepo{}
	content.add(card(100, 50.0), card(200, 90.0))
	votes := &stubVoteRepo{voted: map[domain.SessionID][]domain.ContentID{
		"session-a": {200},
	}}

	service := NewService(content, votes, &recordingRefresher{}, discardLogger())

	got, err := service.Next(context.Background(), "session-a", domain.ContentFilter{})
	if err != nil {
		t.Fatalf("expected a card, got: %v", err)
	}
	if got.ID != 100 {
		t.Fatalf("voted item must be skipped, got %d", got.ID)
	}
}

func TestServiceNextEmptySessionRejected(t *testing.T) {
	service := NewService(&inMemoryContentRepo{}, &stubVoteRepo{}, &recordingRefresher{}, discardLogger())

	_, err := service.Next(context.Background(), "", domain.ContentFilter{})
	if !errors.Is(err, ErrMissingSession) {
		t.Fatalf("expected ErrMissingSession, got: %v", err)
	}
}

func TestServiceNextRefreshesOnceWhenExhausted(t *testing.T) {
	content := &inMemoryContentRepo{}
	votes := &stubVoteRepo{voted: map[domain.SessionID][]domain.ContentID{}}

	// The refresh lands a fresh item, so the retry finds it.
	refresher := &recordingRefresher{}
	refresher.onCall = func() {
		content.add(card(500, 10.0))
	}

	service := NewService(content, votes, refresher, discardLogger())

	got, err := service.Next(context.Background(), "session-a", domain.ContentFilter{})
	if err != nil {
		t.Fatalf("expected a card after refresh, got: %v", err)
	}
	if got.ID != 500 {
		t.Fatalf("expected freshly landed item, got %d", got.ID)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected exactly one refresh, got %d", refresher.calls)
	}
}

func TestServiceNextExhaustedAfterRefreshReturnsNotFound(t *testing.T) {
	content := &inMemoryContentRepo{}
	content.add(card(100, 50.0))
	votes := &stubVoteRepo{voted: map[domain.SessionID][]domain.ContentID{
		"session-a": {100},
	}}
	refresher := &recordingRefresher{}

	service := NewService(content, votes, refresher, discardLogger())

	_, err := service.Next(context.Background(), "session-a", domain.ContentFilter{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected exactly one refresh attempt, got %d", refresher.calls)
	}
}

func TestServiceNextRefreshFailureStillRetriesOnce(t *testing.T) {
	content := &inMemoryContentRepo{}
	votes := &stubVoteRepo{voted: map[domain.SessionID][]domain.ContentID{}}
	refresher := &recordingRefresher{err: errors.New("provider down")}

	service := NewService(content, votes, refresher, discardLogger())

	_, err := service.Next(context.Background(), "session-a", domain.ContentFilter{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("refresh failure must surface as exhaustion, got: %v", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected exactly one refresh attempt, got %d", refresher.calls)
	}
}

func TestServiceNextExclusionQueryFailurePropagates(t *testing.T) {
	votes := &stubVoteRepo{err: errors.New("ledger offline")}
	refresher := &recordingRefresher{}

	service := NewService(&inMemoryContentRepo{}, votes, refresher, discardLogger())

	_, err := service.Next(context.Background(), "session-a", domain.ContentFilter{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if refresher.calls != 0 {
		t.Fatalf("refresh must not run when the exclusion query fails, ran %d times", refresher.calls)
	}
}

func TestServiceNextFilterPassedThrough(t *testing.T) {
	content := &inMemoryContentRepo{}
	content.add(
		card(100, 90.0),
		domain.Content{ID: 1399, Type: domain.TypeShow, Title: "Show", Popularity: 300.0},
	)
	votes := &stubVoteRepo{voted: map[domain.SessionID][]domain.ContentID{}}

	service := NewService(content, votes, &recordingRefresher{}, discardLogger())

	got, err := service.Next(context.Background(), "session-a", domain.ContentFilter{Type: domain.TypeMovie})
	if err != nil {
		t.Fatalf("expected a card, got: %v", err)
	}
	if got.ID != 100 {
		t.Fatalf("type filter must hold, got %d", got.ID)
	}
}
