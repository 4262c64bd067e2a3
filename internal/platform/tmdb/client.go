// Package tmdb talks to the external catalog provider and normalizes its
// payloads into domain records. All calls go through a self-imposed token
// bucket and a bounded retry loop, independent of the provider's own limits.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/cineswipe/cineswipe/internal/domain"
	"github.com/cineswipe/cineswipe/internal/platform/metrics"
)

const defaultMaxAttempts = 3

// Client is the rate-limited, retrying HTTP client for the catalog API.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoffUnit time.Duration
}

func NewClient(baseURL, token string, maxRPS int, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if maxRPS <= 0 {
		maxRPS = 40
	}
	return &Client{
		baseURL:     baseURL,
		token:       token,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(maxRPS), maxRPS),
		maxAttempts: defaultMaxAttempts,
		backoffUnit: time.Second,
	}
}

func (c *Client) PopularMovies(ctx context.Context) ([]domain.Content, error) {
	var page pagedResults
	if err := c.get(ctx, "popular_movies", "/movie/popular?page=1&language=en-US", &page); err != nil {
		return nil, err
	}
	return page.toContent(domain.TypeMovie), nil
}

func (c *Client) PopularShows(ctx context.Context) ([]domain.Content, error) {
	var page pagedResults
	if err := c.get(ctx, "popular_shows", "/tv/popular?page=1&language=en-US", &page); err != nil {
		return nil, err
	}
	return page.toContent(domain.TypeShow), nil
}

func (c *Client) MovieGenres(ctx context.Context) ([]domain.Genre, error) {
	return c.genres(ctx, "movie_genres", "/genre/movie/list?language=en-US", domain.TypeMovie)
}

func (c *Client) ShowGenres(ctx context.Context) ([]domain.Genre, error) {
	return c.genres(ctx, "show_genres", "/genre/tv/list?language=en-US", domain.TypeShow)
}

func (c *Client) Details(ctx context.Context, id domain.ContentID, t domain.ContentType) (domain.Content, error) {
	path := fmt.Sprintf("/movie/%d?language=en-US", id)
	if t == domain.TypeShow {
		path = fmt.Sprintf("/tv/%d?language=en-US", id)
	}
	var dto detailDTO
	if err := c.get(ctx, "details", path, &dto); err != nil {
		return domain.Content{}, err
	}
	return dto.toContent(t), nil
}

func (c *Client) genres(ctx context.Context, endpoint, path string, t domain.ContentType) ([]domain.Genre, error) {
	var list genreList
	if err := c.get(ctx, endpoint, path, &list); err != nil {
		return nil, err
	}
	genres := make([]domain.Genre, len(list.Genres))
	for i, g := range list.Genres {
		genres[i] = domain.Genre{ID: domain.GenreID(g.ID), Type: t, Name: g.Name}
	}
	return genres, nil
}

// get performs one throttled, retried request and decodes the body into out.
// A 429 waits out the provider's Retry-After hint before the next attempt.
func (c *Client) get(ctx context.Context, endpoint, path string, out any) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("tmdb: throttle wait: %w", err)
		}

		status, retryAfter, err := c.doOnce(ctx, endpoint, path, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("tmdb: %s: %w", endpoint, ctx.Err())
		}
		if attempt == c.maxAttempts {
			break
		}

		wait := c.backoffUnit * time.Duration(attempt)
		if status == http.StatusTooManyRequests {
			wait = retryAfter
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return fmt.Errorf("tmdb: %s: %w", endpoint, err)
		}
	}

	return fmt.Errorf("tmdb: %s failed after %d attempts: %w", endpoint, c.maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, endpoint, path string, out any) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("tmdb: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveProviderRequest(endpoint, "error", time.Since(start).Seconds())
		return 0, 0, fmt.Errorf("tmdb: request: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveProviderRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode == http.StatusTooManyRequests {
		hint := parseRetryAfter(resp.Header.Get("Retry-After"))
		return resp.StatusCode, hint, fmt.Errorf("tmdb: throttled by provider")
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, 0, fmt.Errorf("tmdb: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, 0, fmt.Errorf("tmdb: decode response: %w", err)
	}
	return resp.StatusCode, 0, nil
}

// parseRetryAfter reads the header's integer-seconds form, then its
// HTTP-date form. Anything unparsable or already elapsed falls back to one
// second.
func parseRetryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 1 {
			secs = 1
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > time.Second {
			return wait
		}
	}
	return time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.CatalogProvider = (*Client)(nil)
