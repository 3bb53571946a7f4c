package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/stitts-dev/multi-builder/internal/models"
	"github.com/stitts-dev/multi-builder/pkg/logger"
)

// maxFeedBody caps how much of a feed response is read
const maxFeedBody = 8 << 20

// FeedConfig configures the remote odds feed.
type FeedConfig struct {
	URL              string
	Timeout          time.Duration
	RequestsPerMin   int
	FailureThreshold int
	OpenTimeout      time.Duration
}

// FeedSource fetches the round as JSON from a remote feed. The payload is
// either a bare array of games or an object with a "games" field, using the
// same game/bet layout as the JSON fixture.
type FeedSource struct {
	url         string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *logrus.Entry
}

func NewFeedSource(cfg FeedConfig) *FeedSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 30
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}

	log := logger.WithCatalogContext("feed")
	threshold := uint32(cfg.FailureThreshold)

	settings := gobreaker.Settings{
		Name:        "catalog-feed",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	return &FeedSource{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMin)), 1),
		breaker:     gobreaker.NewCircuitBreaker(settings),
		logger:      log,
	}
}

func (s *FeedSource) Name() string {
	return "feed"
}

// State exposes the breaker state for health reporting.
func (s *FeedSource) State() gobreaker.State {
	return s.breaker.State()
}

func (s *FeedSource) Load(ctx context.Context) (*models.Catalog, error) {
	if s.url == "" {
		return nil, fmt.Errorf("feed url not configured: %w", ErrCatalogUnavailable)
	}

	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}

	cat, err := newCatalog(s.Name(), out.([]models.Game))
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"games":      len(cat.Games),
		"selections": cat.SelectionCount(),
	}).Info("Loaded catalog from feed")

	return cat, nil
}

func (s *FeedSource) fetch(ctx context.Context) ([]models.Game, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return decodeGames(body)
}

func decodeGames(body []byte) ([]models.Game, error) {
	var games []models.Game
	if err := json.Unmarshal(body, &games); err == nil {
		return games, nil
	}

	var wrapped struct {
		Games []models.Game `json:"games"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return wrapped.Games, nil
}
