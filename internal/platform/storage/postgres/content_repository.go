package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cineswipe/cineswipe/internal/domain"
)

// ContentRepository maps catalog items and their genre memberships to GORM
// tables. Writes are upserts so repeated refreshes converge.
type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

type contentModel struct {
	ID           int64      `gorm:"column:id;primaryKey"`
	Type         string     `gorm:"column:type"`
	Title        string     `gorm:"column:title"`
	PosterPath   string     `gorm:"column:poster_path"`
	BackdropPath string     `gorm:"column:backdrop_path"`
	Overview     string     `gorm:"column:overview"`
	ReleaseDate  *time.Time `gorm:"column:release_date"`
	Rating       *float64   `gorm:"column:rating"`
	VoteCount    int64      `gorm:"column:vote_count"`
	Popularity   float64    `gorm:"column:popularity"`
	CachedAt     time.Time  `gorm:"column:cached_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (contentModel) TableName() string {
	return "content"
}

type contentGenreModel struct {
	ContentID int64 `gorm:"column:content_id;primaryKey"`
	GenreID   int64 `gorm:"column:genre_id;primaryKey"`
}

func (contentGenreModel) TableName() string {
	return "content_genres"
}

func (m contentModel) toDomain(genreIDs []domain.GenreID) domain.Content {
	return domain.Content{
		ID:           domain.ContentID(m.ID),
		Type:         domain.ContentType(m.Type),
		Title:        m.Title,
		PosterPath:   m.PosterPath,
		BackdropPath: m.BackdropPath,
		Overview:     m.Overview,
		GenreIDs:     genreIDs,
		ReleaseDate:  m.ReleaseDate,
		Rating:       m.Rating,
		VoteCount:    m.VoteCount,
		Popularity:   m.Popularity,
		CachedAt:     m.CachedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromDomainContent(c domain.Content) contentModel {
	return contentModel{
		ID:           int64(c.ID),
		Type:         string(c.Type),
		Title:        c.Title,
		PosterPath:   c.PosterPath,
		BackdropPath: c.BackdropPath,
		Overview:     c.Overview,
		ReleaseDate:  c.ReleaseDate,
		Rating:       c.Rating,
		VoteCount:    c.VoteCount,
		Popularity:   c.Popularity,
		CachedAt:     c.CachedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// Upsert writes a refresh batch: item rows are upserted by id and each
// item's genre membership is replaced wholesale, all in one transaction.
func (r *ContentRepository) Upsert(ctx context.Context, items []domain.Content) error {
	if len(items) == 0 {
		return nil
	}

	models := make([]contentModel, len(items))
	ids := make([]int64, len(items))
	for i, item := range items {
		models[i] = fromDomainContent(item)
		ids[i] = int64(item.ID)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&models).Error; err != nil {
			return fmt.Errorf("gorm content: upsert: %w", err)
		}

		if err := tx.Where("content_id IN ?", ids).Delete(&contentGenreModel{}).Error; err != nil {
			return fmt.Errorf("gorm content: clear genres: %w", err)
		}

		var joins []contentGenreModel
		for _, item := range items {
			for _, gid := range item.GenreIDs {
				joins = append(joins, contentGenreModel{ContentID: int64(item.ID), GenreID: int64(gid)})
			}
		}
		if len(joins) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&joins).Error; err != nil {
			return fmt.Errorf("gorm content: insert genres: %w", err)
		}
		return nil
	})
}

func (r *ContentRepository) FindByID(ctx context.Context, id domain.ContentID) (domain.Content, error) {
	var model contentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", int64(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Content{}, domain.ErrNotFound
		}
		return domain.Content{}, fmt.Errorf("gorm content: find by id: %w", err)
	}

	genreIDs, err := r.genreIDs(ctx, model.ID)
	if err != nil {
		return domain.Content{}, err
	}
	return model.toDomain(genreIDs), nil
}

// NextCard picks the most popular item matching the filter that the caller
// has not excluded. Popularity ties break by ascending id so selection is
// deterministic.
func (r *ContentRepository) NextCard(ctx context.Context, filter domain.ContentFilter, exclude []domain.ContentID) (domain.Content, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&contentModel{}), filter)

	if len(exclude) > 0 {
		excluded := make([]int64, len(exclude))
		for i, id := range exclude {
			excluded[i] = int64(id)
		}
		query = query.Where("id NOT IN ?", excluded)
	}

	var model contentModel
	if err := query.Order("popularity DESC, id ASC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Content{}, domain.ErrNotFound
		}
		return domain.Content{}, fmt.Errorf("gorm content: next card: %w", err)
	}

	genreIDs, err := r.genreIDs(ctx, model.ID)
	if err != nil {
		return domain.Content{}, err
	}
	return model.toDomain(genreIDs), nil
}

// Scores reduces the vote ledger to one aggregate row per voted item. The
// vote partition is computed in SQL; ranks and percentages stay with the
// aggregator service.
func (r *ContentRepository) Scores(ctx context.Context, filter domain.ContentFilter, votedSince time.Time, limit int) ([]domain.ScoredContent, error) {
	// The embedded snapshot must be an exported field so GORM can set it
	// through reflection when scanning the aggregate rows.
	type scoreRow struct {
		Item          contentModel `gorm:"embedded"`
		TotalScore    int64        `gorm:"column:total_score"`
		TotalVotes    int64        `gorm:"column:total_votes"`
		PositiveVotes int64        `gorm:"column:positive_votes"`
		NegativeVotes int64        `gorm:"column:negative_votes"`
		NeutralVotes  int64        `gorm:"column:neutral_votes"`
	}

	query := r.db.WithContext(ctx).
		Model(&contentModel{}).
		Select(`content.*,
			SUM(votes.value) AS total_score,
			COUNT(votes.id) AS total_votes,
			SUM(CASE WHEN votes.value = 1 THEN 1 ELSE 0 END) AS positive_votes,
			SUM(CASE WHEN votes.value = -1 THEN 1 ELSE 0 END) AS negative_votes,
			SUM(CASE WHEN votes.value = 0 THEN 1 ELSE 0 END) AS neutral_votes`).
		Joins("JOIN votes ON votes.content_id = content.id").
		Group("content.id")

	query = r.applyFilter(query, filter)

	if !votedSince.IsZero() {
		query = query.Having("MAX(votes.created_at) >= ?", votedSince)
	}

	var rows []scoreRow
	if err := query.
		Order("total_score DESC, content.id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("gorm content: scores: %w", err)
	}

	if len(rows) == 0 {
		return []domain.ScoredContent{}, nil
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.Item.ID
	}
	genresByItem, err := r.genreIDsByContent(ctx, ids)
	if err != nil {
		return nil, err
	}
	lastByItem, err := r.lastVotedByContent(ctx, ids)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredContent, len(rows))
	for i, row := range rows {
		scored[i] = domain.ScoredContent{
			Content:       row.Item.toDomain(genresByItem[row.Item.ID]),
			TotalScore:    row.TotalScore,
			TotalVotes:    row.TotalVotes,
			PositiveVotes: row.PositiveVotes,
			NegativeVotes: row.NegativeVotes,
			NeutralVotes:  row.NeutralVotes,
			LastVoted:     lastByItem[row.Item.ID],
		}
	}
	return scored, nil
}

func (r *ContentRepository) applyFilter(query *gorm.DB, filter domain.ContentFilter) *gorm.DB {
	if filter.Type != "" && filter.Type != domain.TypeAll {
		query = query.Where("content.type = ?", string(filter.Type))
	}
	if filter.GenreID != 0 {
		query = query.Where(
			"EXISTS (SELECT 1 FROM content_genres cg WHERE cg.content_id = content.id AND cg.genre_id = ?)",
			int64(filter.GenreID),
		)
	}
	return query
}

func (r *ContentRepository) genreIDs(ctx context.Context, contentID int64) ([]domain.GenreID, error) {
	var raw []int64
	if err := r.db.WithContext(ctx).
		Model(&contentGenreModel{}).
		Where("content_id = ?", contentID).
		Order("genre_id ASC").
		Pluck("genre_id", &raw).Error; err != nil {
		return nil, fmt.Errorf("gorm content: genre ids: %w", err)
	}

	ids := make([]domain.GenreID, len(raw))
	for i, id := range raw {
		ids[i] = domain.GenreID(id)
	}
	return ids, nil
}

func (r *ContentRepository) genreIDsByContent(ctx context.Context, contentIDs []int64) (map[int64][]domain.GenreID, error) {
	var links []contentGenreModel
	if err := r.db.WithContext(ctx).
		Where("content_id IN ?", contentIDs).
		Order("content_id ASC, genre_id ASC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("gorm content: genre ids: %w", err)
	}

	byItem := make(map[int64][]domain.GenreID, len(contentIDs))
	for _, link := range links {
		byItem[link.ContentID] = append(byItem[link.ContentID], domain.GenreID(link.GenreID))
	}
	return byItem, nil
}

// lastVotedByContent resolves the newest vote timestamp for each item in one
// query. The MAX stays inside the subquery and the outer select reads the
// plain column, which keeps the driver's time decoding intact on both
// Postgres and SQLite.
func (r *ContentRepository) lastVotedByContent(ctx context.Context, contentIDs []int64) (map[int64]time.Time, error) {
	type voteStamp struct {
		ContentID int64     `gorm:"column:content_id"`
		CreatedAt time.Time `gorm:"column:created_at"`
	}

	newest := r.db.Model(&voteModel{}).
		Select("content_id, MAX(created_at) AS last_created").
		Where("content_id IN ?", contentIDs).
		Group("content_id")

	var stamps []voteStamp
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Select("votes.content_id, votes.created_at").
		Joins("JOIN (?) newest ON newest.content_id = votes.content_id AND newest.last_created = votes.created_at", newest).
		Scan(&stamps).Error
	if err != nil {
		return nil, fmt.Errorf("gorm content: last voted: %w", err)
	}

	byItem := make(map[int64]time.Time, len(stamps))
	for _, stamp := range stamps {
		if stamp.CreatedAt.After(byItem[stamp.ContentID]) {
			byItem[stamp.ContentID] = stamp.CreatedAt
		}
	}
	return byItem, nil
}

var _ domain.ContentRepository = (*ContentRepository)(nil)
