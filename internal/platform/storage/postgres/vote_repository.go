package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cineswipe/cineswipe/internal/domain"
)

// VoteRepository is the append-only ledger. Uniqueness per (session,
// content) is enforced by the table's unique constraint together with a
// conditional insert, so two racing submissions resolve in the database
// rather than in application code.
type VoteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

type voteModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	SessionID string    `gorm:"column:session_id"`
	ContentID int64     `gorm:"column:content_id"`
	Value     int16     `gorm:"column:value"`
	IPHash    string    `gorm:"column:ip_hash"`
	UserAgent string    `gorm:"column:user_agent"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func fromDomainVote(v domain.Vote) voteModel {
	return voteModel{
		ID:        string(v.ID),
		SessionID: string(v.SessionID),
		ContentID: int64(v.ContentID),
		Value:     int16(v.Value),
		IPHash:    v.IPHash,
		UserAgent: v.UserAgent,
		CreatedAt: v.CreatedAt,
	}
}

// Record inserts the vote unless the (session_id, content_id) pair already
// exists. ON CONFLICT DO NOTHING plus the rows-affected count is the typed
// conflict signal: zero rows means another submission won the race.
func (r *VoteRepository) Record(ctx context.Context, vote domain.Vote) error {
	model := fromDomainVote(vote)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "content_id"}},
		DoNothing: true,
	}).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("gorm votes: insert: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrDuplicateVote
	}
	return nil
}

func (r *VoteRepository) VotedContentIDs(ctx context.Context, session domain.SessionID) ([]domain.ContentID, error) {
	var raw []int64
	if err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("session_id = ?", string(session)).
		Pluck("content_id", &raw).Error; err != nil {
		return nil, fmt.Errorf("gorm votes: voted ids: %w", err)
	}

	ids := make([]domain.ContentID, len(raw))
	for i, id := range raw {
		ids[i] = domain.ContentID(id)
	}
	return ids, nil
}

func (r *VoteRepository) StatsByContent(ctx context.Context, id domain.ContentID) (domain.VoteStats, error) {
	type statsRow struct {
		TotalVotes    int64
		PositiveVotes int64
		NegativeVotes int64
		NeutralVotes  int64
		AverageScore  float64
	}

	var row statsRow
	if err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Select(`COUNT(*) AS total_votes,
			COALESCE(SUM(CASE WHEN value = 1 THEN 1 ELSE 0 END), 0) AS positive_votes,
			COALESCE(SUM(CASE WHEN value = -1 THEN 1 ELSE 0 END), 0) AS negative_votes,
			COALESCE(SUM(CASE WHEN value = 0 THEN 1 ELSE 0 END), 0) AS neutral_votes,
			COALESCE(AVG(CAST(value AS REAL)), 0) AS average_score`).
		Where("content_id = ?", int64(id)).
		Scan(&row).Error; err != nil {
		return domain.VoteStats{}, fmt.Errorf("gorm votes: stats: %w", err)
	}

	return domain.VoteStats{
		TotalVotes:    row.TotalVotes,
		PositiveVotes: row.PositiveVotes,
		NegativeVotes: row.NegativeVotes,
		NeutralVotes:  row.NeutralVotes,
		AverageScore:  row.AverageScore,
	}, nil
}

var _ domain.VoteRepository = (*VoteRepository)(nil)
