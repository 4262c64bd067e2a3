// Package httpapi exposes the REST handlers and translates HTTP requests
// into the voting, card and leaderboard services.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cineswipe/cineswipe/internal/app/cards"
	"github.com/cineswipe/cineswipe/internal/app/catalog"
	"github.com/cineswipe/cineswipe/internal/app/leaderboard"
	"github.com/cineswipe/cineswipe/internal/app/voting"
	"github.com/cineswipe/cineswipe/internal/domain"
	"github.com/cineswipe/cineswipe/internal/platform/metrics"
	"github.com/cineswipe/cineswipe/internal/platform/ratelimit"
)

// Bucket names used for admission control at the edge.
const (
	bucketVote = "vote"
	bucketRead = "read"
)

// API bundles the HTTP handlers with the services and the edge limiter.
type API struct {
	votes       *voting.Service
	cards       *cards.Service
	leaderboard *leaderboard.Service
	catalog     *catalog.Service
	admission   domain.Admission
	logger      *slog.Logger
}

func New(
	votes *voting.Service,
	cardSvc *cards.Service,
	board *leaderboard.Service,
	cat *catalog.Service,
	admission domain.Admission,
	logger *slog.Logger,
) *API {
	return &API{
		votes:       votes,
		cards:       cardSvc,
		leaderboard: board,
		catalog:     cat,
		admission:   admission,
		logger:      logger,
	}
}

func (a *API) Register(mux *http.ServeMux) {
	// Routes stay centralized so tests and alternative servers can reuse them.
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/votes", a.handleVotes)
	mux.HandleFunc("/cards/next", a.handleNextCard)
	mux.HandleFunc("/leaderboard", a.handleLeaderboard)
	mux.HandleFunc("/genres", a.handleGenres)
	mux.HandleFunc("/content/", a.handleContentDetail)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type voteRequest struct {
	ContentID int64  `json:"content_id"`
	Value     *int16 `json:"value"`
	SessionID string `json:"session_id"`
}

type voteResponse struct {
	Success bool   `json:"success"`
	VoteID  string `json:"vote_id,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

func (a *API) handleVotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !a.admit(w, r, bucketVote) {
		metrics.ObserveVoteRequest("rate_limited")
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveVoteRequest("invalid_payload")
		respondJSON(w, http.StatusBadRequest, voteResponse{
			Success: false,
			Error:   "validation_error",
			Message: "invalid request payload",
		})
		return
	}
	if req.Value == nil {
		metrics.ObserveVoteRequest("invalid_payload")
		respondJSON(w, http.StatusBadRequest, voteResponse{
			Success: false,
			Error:   "validation_error",
			Message: "value is required",
		})
		return
	}

	receipt, err := a.votes.Submit(r.Context(), voting.Submission{
		SessionID: domain.SessionID(req.SessionID),
		ContentID: domain.ContentID(req.ContentID),
		Value:     domain.VoteValue(*req.Value),
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		a.respondVoteError(w, r, req, err)
		return
	}

	metrics.ObserveVoteRequest("accepted")
	respondJSON(w, http.StatusCreated, voteResponse{
		Success: true,
		VoteID:  string(receipt.VoteID),
		Message: "vote recorded",
	})
}

func (a *API) respondVoteError(w http.ResponseWriter, r *http.Request, req voteRequest, err error) {
	switch {
	case errors.Is(err, voting.ErrDuplicateVote):
		// A duplicate is an expected outcome, distinguishable from any
		// transient failure so clients can render "already voted".
		metrics.ObserveVoteRequest("duplicate")
		respondJSON(w, http.StatusConflict, voteResponse{
			Success: false,
			Error:   "duplicate_vote",
			Message: "you have already voted on this content",
		})
	case errors.Is(err, voting.ErrInvalidValue),
		errors.Is(err, voting.ErrInvalidSession),
		errors.Is(err, voting.ErrInvalidContent):
		metrics.ObserveVoteRequest("invalid")
		respondJSON(w, http.StatusBadRequest, voteResponse{
			Success: false,
			Error:   "validation_error",
			Message: err.Error(),
		})
	default:
		metrics.ObserveVoteRequest("error")
		a.logger.Error("vote submission failed", "err", err, "content", req.ContentID)
		respondJSON(w, http.StatusInternalServerError, voteResponse{
			Success: false,
			Error:   "server_error",
			Message: "failed to submit vote",
		})
	}
}

func (a *API) handleNextCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.admit(w, r, bucketRead) {
		return
	}

	query := r.URL.Query()
	filter, ok := parseFilter(query.Get("type"), query.Get("genre_id"))
	if !ok {
		respondValidationError(w, "invalid type or genre_id")
		return
	}

	session := domain.SessionID(query.Get("session_id"))
	item, err := a.cards.Next(r.Context(), session, filter)
	if err != nil {
		switch {
		case errors.Is(err, cards.ErrMissingSession):
			respondValidationError(w, "session_id is required")
		case errors.Is(err, domain.ErrNotFound):
			// An exhausted catalog is a valid empty hand, not a failure.
			w.WriteHeader(http.StatusNoContent)
		default:
			a.logger.Error("next card selection failed", "err", err, "session", session)
			respondServerError(w)
		}
		return
	}

	respondJSON(w, http.StatusOK, item)
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.admit(w, r, bucketRead) {
		return
	}

	query := r.URL.Query()
	filter, ok := parseFilter(query.Get("type"), query.Get("genre_id"))
	if !ok {
		respondValidationError(w, "invalid type or genre_id")
		return
	}

	result, err := a.leaderboard.Top(r.Context(), leaderboard.Query{
		Type:     filter.Type,
		GenreID:  filter.GenreID,
		Trending: query.Get("trending") == "true",
	})
	if err != nil {
		a.logger.Error("leaderboard query failed", "err", err)
		respondServerError(w)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (a *API) handleGenres(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.admit(w, r, bucketRead) {
		return
	}

	t, ok := domain.ParseContentType(r.URL.Query().Get("type"))
	if !ok {
		respondValidationError(w, "invalid type")
		return
	}

	genres, err := a.catalog.Genres(r.Context(), t)
	if err != nil {
		a.logger.Error("genre listing failed", "err", err)
		respondServerError(w)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

type contentDetailResponse struct {
	domain.Content
	VoteStats domain.VoteStats `json:"vote_stats"`
}

func (a *API) handleContentDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.admit(w, r, bucketRead) {
		return
	}

	rawID := strings.TrimPrefix(r.URL.Path, "/content/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		respondValidationError(w, "content id must be a positive integer")
		return
	}

	t, ok := domain.ParseContentType(r.URL.Query().Get("type"))
	if !ok {
		respondValidationError(w, "invalid type")
		return
	}

	item, err := a.catalog.Detail(r.Context(), domain.ContentID(id), t)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		a.logger.Error("content detail failed", "err", err, "content", id)
		respondServerError(w)
		return
	}

	stats, err := a.votes.Stats(r.Context(), item.ID)
	if err != nil {
		a.logger.Error("vote stats failed", "err", err, "content", id)
		respondServerError(w)
		return
	}

	respondJSON(w, http.StatusOK, contentDetailResponse{Content: item, VoteStats: stats})
}

// admit runs admission control for the request. On rejection it writes the
// 429 with a Retry-After header and reports false.
func (a *API) admit(w http.ResponseWriter, r *http.Request, bucket string) bool {
	if a.admission == nil {
		return true
	}

	err := a.admission.Admit(r.Context(), clientIP(r), bucket)
	if err == nil {
		return true
	}

	var limitErr *ratelimit.LimitError
	if errors.As(err, &limitErr) {
		w.Header().Set("Retry-After", strconv.Itoa(limitErr.RetryAfter))
		respondJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":       "rate_limited",
			"message":     limitErr.Error(),
			"retry_after": limitErr.RetryAfter,
		})
		return false
	}

	// Limiter backend failures degrade to permissive rather than blocking
	// all traffic on an infrastructure error.
	a.logger.Warn("admission check failed", "bucket", bucket, "err", err)
	return true
}

func parseFilter(rawType, rawGenre string) (domain.ContentFilter, bool) {
	t, ok := domain.ParseContentType(rawType)
	if !ok {
		return domain.ContentFilter{}, false
	}

	filter := domain.ContentFilter{Type: t}
	if rawGenre != "" {
		genreID, err := strconv.ParseInt(rawGenre, 10, 64)
		if err != nil || genreID <= 0 {
			return domain.ContentFilter{}, false
		}
		filter.GenreID = domain.GenreID(genreID)
	}
	return filter, true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondValidationError(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, map[string]string{
		"error":   "validation_error",
		"message": message,
	})
}

func respondServerError(w http.ResponseWriter) {
	respondJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "server_error",
		"message": "an unexpected error occurred",
	})
}
