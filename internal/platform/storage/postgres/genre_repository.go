package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cineswipe/cineswipe/internal/domain"
)

// GenreRepository keeps the provider's genre taxonomy, keyed by (id, type).
type GenreRepository struct {
	db *gorm.DB
}

func NewGenreRepository(db *gorm.DB) *GenreRepository {
	return &GenreRepository{db: db}
}

type genreModel struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Type string `gorm:"column:type;primaryKey"`
	Name string `gorm:"column:name"`
}

func (genreModel) TableName() string {
	return "genres"
}

func (r *GenreRepository) Upsert(ctx context.Context, genres []domain.Genre) error {
	if len(genres) == 0 {
		return nil
	}

	models := make([]genreModel, len(genres))
	for i, g := range genres {
		models[i] = genreModel{ID: int64(g.ID), Type: string(g.Type), Name: g.Name}
	}

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}, {Name: "type"}},
		UpdateAll: true,
	}).Create(&models).Error; err != nil {
		return fmt.Errorf("gorm genres: upsert: %w", err)
	}
	return nil
}

func (r *GenreRepository) List(ctx context.Context, t domain.ContentType) ([]domain.Genre, error) {
	query := r.db.WithContext(ctx).Model(&genreModel{})
	if t != "" && t != domain.TypeAll {
		query = query.Where("type = ?", string(t))
	}

	var models []genreModel
	// Name ordering keeps the filter UI stable between requests.
	if err := query.Order("name ASC, type ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("gorm genres: list: %w", err)
	}

	genres := make([]domain.Genre, len(models))
	for i, m := range models {
		genres[i] = domain.Genre{ID: domain.GenreID(m.ID), Type: domain.ContentType(m.Type), Name: m.Name}
	}
	return genres, nil
}

var _ domain.GenreRepository = (*GenreRepository)(nil)
