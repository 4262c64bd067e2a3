package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateVote = errors.New("duplicate vote")
)

type (
	VoteID    string
	SessionID string
	ContentID int64
	GenreID   int64
)

// ContentType distinguishes movies from shows; genre ids are only unique
// within one type.
type ContentType string

const (
	TypeMovie ContentType = "movie"
	TypeShow  ContentType = "show"
	TypeAll   ContentType = "all"
)

func ParseContentType(s string) (ContentType, bool) {
	switch ContentType(s) {
	case TypeMovie, TypeShow, TypeAll:
		return ContentType(s), true
	case "":
		return TypeAll, true
	default:
		return "", false
	}
}

type VoteValue int16

const (
	VoteDown    VoteValue = -1
	VoteNeutral VoteValue = 0
	VoteUp      VoteValue = 1
)

func (v VoteValue) Valid() bool {
	return v >= VoteDown && v <= VoteUp
}

// Content is a catalog item mirrored from the external provider. Rows are
// upserted by provider id and never deleted, only superseded.
type Content struct {
	ID           ContentID   `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Type         ContentType `gorm:"column:type;type:text;not null;index" json:"type"`
	Title        string      `gorm:"column:title;type:text;not null" json:"title"`
	PosterPath   string      `gorm:"column:poster_path;type:text" json:"poster_path"`
	BackdropPath string      `gorm:"column:backdrop_path;type:text" json:"backdrop_path"`
	Overview     string      `gorm:"column:overview;type:text" json:"overview"`
	GenreIDs     []GenreID   `gorm:"-" json:"genre_ids"`
	ReleaseDate  *time.Time  `gorm:"column:release_date" json:"release_date"`
	Rating       *float64    `gorm:"column:rating" json:"rating"`
	VoteCount    int64       `gorm:"column:vote_count;not null;default:0" json:"vote_count"`
	Popularity   float64     `gorm:"column:popularity;not null;default:0;index" json:"popularity"`
	CachedAt     time.Time   `gorm:"column:cached_at;not null" json:"cached_at"`
	UpdatedAt    time.Time   `gorm:"column:updated_at;not null" json:"updated_at"`
}

// ContentGenre is the membership row behind Content.GenreIDs. Replaced
// wholesale whenever the owning item is upserted.
type ContentGenre struct {
	ContentID ContentID `gorm:"column:content_id;primaryKey;autoIncrement:false"`
	GenreID   GenreID   `gorm:"column:genre_id;primaryKey;autoIncrement:false"`
}

// Genre is keyed by (id, type): the provider reuses numeric ids across
// movie and show taxonomies.
type Genre struct {
	ID   GenreID     `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Type ContentType `gorm:"column:type;type:text;primaryKey" json:"type"`
	Name string      `gorm:"column:name;type:text;not null" json:"name"`
}

// Vote is one session's judgment of one item. At most one vote exists per
// (session_id, content_id); the pair carries a unique constraint so the
// store, not the application, is the arbiter under concurrent submissions.
type Vote struct {
	ID        VoteID    `gorm:"column:id;type:char(26);primaryKey"`
	SessionID SessionID `gorm:"column:session_id;type:text;not null;uniqueIndex:uq_votes_session_content,priority:1"`
	ContentID ContentID `gorm:"column:content_id;not null;uniqueIndex:uq_votes_session_content,priority:2;index:idx_votes_content"`
	Value     VoteValue `gorm:"column:value;type:smallint;not null"`
	IPHash    string    `gorm:"column:ip_hash;type:text"`
	UserAgent string    `gorm:"column:user_agent;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

// VoteStats is the per-item aggregate view of the ledger.
type VoteStats struct {
	TotalVotes    int64   `json:"total_votes"`
	PositiveVotes int64   `json:"positive_votes"`
	NegativeVotes int64   `json:"negative_votes"`
	NeutralVotes  int64   `json:"neutral_votes"`
	AverageScore  float64 `json:"average_score"`
}

// ScoredContent is one aggregation row: the item snapshot plus its vote
// partition, before ranks and percentages are assigned.
type ScoredContent struct {
	Content       Content
	TotalScore    int64
	TotalVotes    int64
	PositiveVotes int64
	NegativeVotes int64
	NeutralVotes  int64
	LastVoted     time.Time
}

// Percentages holds the integer share of each vote partition, rounded
// half-up. All zero when the item has no votes; rounding drift below 100
// is expected and not normalized away.
type Percentages struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// LeaderboardEntry is derived on every query; the vote ledger stays the
// single source of truth.
type LeaderboardEntry struct {
	Rank          int         `json:"rank"`
	ContentID     ContentID   `json:"content_id"`
	Title         string      `json:"title"`
	Type          ContentType `json:"type"`
	PosterPath    string      `json:"poster_path"`
	GenreIDs      []GenreID   `json:"genre_ids"`
	ReleaseDate   *time.Time  `json:"release_date"`
	Rating        *float64    `json:"rating"`
	TotalScore    int64       `json:"total_score"`
	TotalVotes    int64       `json:"total_votes"`
	PositiveVotes int64       `json:"positive_votes"`
	NegativeVotes int64       `json:"negative_votes"`
	NeutralVotes  int64       `json:"neutral_votes"`
	Percentages   Percentages `json:"vote_percentage"`
	LastVoted     *time.Time  `json:"last_voted"`
}

// ContentFilter narrows catalog and leaderboard queries. Type TypeAll and
// GenreID 0 are pass-through.
type ContentFilter struct {
	Type    ContentType
	GenreID GenreID
}

func (Content) TableName() string { return "content" }

func (ContentGenre) TableName() string { return "content_genres" }

func (Genre) TableName() string { return "genres" }

func (Vote) TableName() string { return "votes" }
