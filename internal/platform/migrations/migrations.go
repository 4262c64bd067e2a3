// Package migrations centralizes the gormigrate versions applied at startup.
package migrations

import (
	"fmt"

	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cineswipe/cineswipe/internal/domain"
)

func Run(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("migrations: nil db")
	}

	// gormigrate versions the schema instead of relying on bare AutoMigrate
	// in production.
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202608250001_init_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&domain.Content{}, &domain.ContentGenre{}, &domain.Genre{}, &domain.Vote{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("votes", "content_genres", "genres", "content")
			},
		},
		{
			ID: "202608250002_seed_genres",
			Migrate: func(tx *gorm.DB) error {
				// Seeding the taxonomy lets genre filters work before the
				// first provider refresh; refreshes upsert over these rows.
				return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seedGenres()).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return nil
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrations: apply failed: %w", err)
	}

	return nil
}

func seedGenres() []domain.Genre {
	movie := map[domain.GenreID]string{
		28: "Action", 12: "Adventure", 16: "Animation", 35: "Comedy",
		80: "Crime", 99: "Documentary", 18: "Drama", 10751: "Family",
		14: "Fantasy", 36: "History", 27: "Horror", 10402: "Music",
		9648: "Mystery", 10749: "Romance", 878: "Science Fiction",
		10770: "TV Movie", 53: "Thriller", 10752: "War", 37: "Western",
	}
	show := map[domain.GenreID]string{
		10759: "Action & Adventure", 16: "Animation", 35: "Comedy",
		80: "Crime", 99: "Documentary", 18: "Drama", 10751: "Family",
		10762: "Kids", 9648: "Mystery", 10763: "News", 10764: "Reality",
		10765: "Sci-Fi & Fantasy", 10766: "Soap", 10767: "Talk",
		10768: "War & Politics", 37: "Western",
	}

	genres := make([]domain.Genre, 0, len(movie)+len(show))
	for id, name := range movie {
		genres = append(genres, domain.Genre{ID: id, Type: domain.TypeMovie, Name: name})
	}
	for id, name := range show {
		genres = append(genres, domain.Genre{ID: id, Type: domain.TypeShow, Name: name})
	}
	return genres
}
