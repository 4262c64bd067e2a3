// Package voting implements the vote ledger rules: validation, fingerprint
// hashing and exactly-once recording per (session, item).
package voting

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cineswipe/cineswipe/internal/domain"
	"github.com/cineswipe/cineswipe/internal/platform/ids"
)

var (
	ErrInvalidValue   = errors.New("vote value must be -1, 0 or 1")
	ErrInvalidSession = errors.New("session id is required")
	ErrInvalidContent = errors.New("content id must be positive")
	ErrDuplicateVote  = domain.ErrDuplicateVote
)

// Submission carries one vote attempt into the ledger.
type Submission struct {
	SessionID domain.SessionID
	ContentID domain.ContentID
	Value     domain.VoteValue
	ClientIP  string
	UserAgent string
}

// Receipt is returned on acceptance.
type Receipt struct {
	VoteID domain.VoteID
}

// Service guards the ledger invariants and delegates the atomic insert to
// the repository.
type Service struct {
	votes domain.VoteRepository
	clock domain.Clock
	ids   *ids.Generator
}

func NewService(votes domain.VoteRepository, clock domain.Clock, idsGen *ids.Generator) *Service {
	if idsGen == nil {
		idsGen = ids.DefaultGenerator()
	}
	return &Service{
		votes: votes,
		clock: clock,
		ids:   idsGen,
	}
}

// Submit validates and records a vote. Duplicate submissions surface as
// ErrDuplicateVote, even when two arrive at the same instant; exactly one
// caller ever receives a receipt for a given (session, item) pair.
func (s *Service) Submit(ctx context.Context, sub Submission) (Receipt, error) {
	// The HTTP layer validates first, but the ledger still defends itself:
	// it is the last line before an invalid value reaches storage.
	if sub.SessionID == "" {
		return Receipt{}, ErrInvalidSession
	}
	if sub.ContentID <= 0 {
		return Receipt{}, ErrInvalidContent
	}
	if !sub.Value.Valid() {
		return Receipt{}, ErrInvalidValue
	}

	vote := domain.Vote{
		ID:        domain.VoteID(s.ids.New()),
		SessionID: sub.SessionID,
		ContentID: sub.ContentID,
		Value:     sub.Value,
		IPHash:    hashFingerprint(sub.ClientIP),
		UserAgent: sub.UserAgent,
		CreatedAt: s.clock.Now(),
	}

	if err := s.votes.Record(ctx, vote); err != nil {
		if errors.Is(err, domain.ErrDuplicateVote) {
			return Receipt{}, ErrDuplicateVote
		}
		return Receipt{}, fmt.Errorf("voting: record: %w", err)
	}

	return Receipt{VoteID: vote.ID}, nil
}

// Stats exposes the per-item aggregate used by the detail endpoint.
func (s *Service) Stats(ctx context.Context, id domain.ContentID) (domain.VoteStats, error) {
	stats, err := s.votes.StatsByContent(ctx, id)
	if err != nil {
		return domain.VoteStats{}, fmt.Errorf("voting: stats: %w", err)
	}
	return stats, nil
}

func hashFingerprint(ip string) string {
	if ip == "" {
		return ""
	}
	// SHA-1 keeps the raw address out of the ledger while still grouping
	// submissions from the same origin.
	hash := sha1.Sum([]byte(ip))
	return hex.EncodeToString(hash[:])
}
