package tmdb

import (
	"time"

	"github.com/cineswipe/cineswipe/internal/domain"
)

// Provider payloads are loosely shaped; the DTOs below pin down the fields
// this service consumes and drop everything else. Movies and shows use
// different field names for title and release date, so both are declared
// and resolved during normalization.

type itemDTO struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	Overview     string  `json:"overview"`
	GenreIDs     []int64 `json:"genre_ids"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
}

type pagedResults struct {
	Page    int       `json:"page"`
	Results []itemDTO `json:"results"`
}

type detailDTO struct {
	itemDTO
	Genres []genreDTO `json:"genres"`
}

type genreDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type genreList struct {
	Genres []genreDTO `json:"genres"`
}

func (p pagedResults) toContent(t domain.ContentType) []domain.Content {
	items := make([]domain.Content, 0, len(p.Results))
	for _, dto := range p.Results {
		if dto.ID == 0 {
			continue
		}
		items = append(items, dto.normalize(t))
	}
	return items
}

func (d detailDTO) toContent(t domain.ContentType) domain.Content {
	item := d.itemDTO.normalize(t)
	if len(d.Genres) > 0 {
		ids := make([]domain.GenreID, len(d.Genres))
		for i, g := range d.Genres {
			ids[i] = domain.GenreID(g.ID)
		}
		item.GenreIDs = ids
	}
	return item
}

func (dto itemDTO) normalize(t domain.ContentType) domain.Content {
	item := domain.Content{
		ID:           domain.ContentID(dto.ID),
		Type:         t,
		Title:        dto.Title,
		PosterPath:   dto.PosterPath,
		BackdropPath: dto.BackdropPath,
		Overview:     dto.Overview,
		VoteCount:    dto.VoteCount,
		Popularity:   dto.Popularity,
	}

	if item.Title == "" {
		item.Title = dto.Name
	}

	if ids := dto.GenreIDs; len(ids) > 0 {
		item.GenreIDs = make([]domain.GenreID, len(ids))
		for i, id := range ids {
			item.GenreIDs[i] = domain.GenreID(id)
		}
	}

	rawDate := dto.ReleaseDate
	if t == domain.TypeShow && dto.FirstAirDate != "" {
		rawDate = dto.FirstAirDate
	}
	if rawDate != "" {
		if parsed, err := time.Parse("2006-01-02", rawDate); err == nil {
			item.ReleaseDate = &parsed
		}
	}

	if dto.VoteCount > 0 {
		rating := dto.VoteAverage
		item.Rating = &rating
	}

	return item
}
