package backend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"finanzapp-core/internal/config"
	"finanzapp-core/internal/models"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound is returned when the backend answers 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the backend rejects the credentials or token.
	ErrUnauthorized = errors.New("unauthorized")
)

// Client is the subset of the FinanzApp REST backend the core consumes.
type Client interface {
	Login(ctx context.Context, username, password string) (string, error)
	SetToken(token string)
	// Authenticated reports whether requests currently carry a token.
	Authenticated() bool
	GetAsset(ctx context.Context, id int64) (*models.Asset, error)
	ListAssets(ctx context.Context) ([]models.Asset, error)
	GetAssetsByIDs(ctx context.Context, ids []int64) ([]models.Asset, error)
	GetRecommendation(ctx context.Context, id int64) (*models.Recommendation, error)
	ListRecommendations(ctx context.Context) ([]models.Recommendation, error)
	GetValuation(ctx context.Context, portfolioID int64) (*models.Valuation, error)
}

// RestClient talks to the backend over HTTP with rate limiting and retries.
type RestClient struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration

	mu    sync.RWMutex
	token string
}

// ensure RestClient implements the interface
var _ Client = (*RestClient)(nil)

// NewRestClient creates a client for cfg.BaseURL.
func NewRestClient(cfg *config.Backend, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &RestClient{
		client:     client,
		logger:     logger.Named("backend"),
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: maxRetries,
		backoff:    time.Second,
		token:      cfg.Token,
	}
}

// SetToken replaces the bearer token; an empty token drops authentication.
func (c *RestClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *RestClient) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

func (c *RestClient) newRequest(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	c.mu.RLock()
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	c.mu.RUnlock()
	return req
}

// doRequest executes req with rate limiting. 429 and 5xx responses and
// transport errors are retried with exponential backoff, honouring Retry-After.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusNotFound:
				return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
			case statusCode == http.StatusUnauthorized:
				return nil, fmt.Errorf("%w: %s", ErrUnauthorized, url)
			case statusCode == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= 500:
				shouldRetry = true
			}
			if !shouldRetry {
				return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
			}
			err = fmt.Errorf("server responded %s", resp.Status())
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			shouldRetry = true
		}

		if i == c.maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, err)
}

// Login exchanges credentials for a token and keeps it for later requests.
func (c *RestClient) Login(ctx context.Context, username, password string) (string, error) {
	var result struct {
		Token string `json:"token"`
	}
	req := c.client.R().SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&result)

	if _, err := c.doRequest(ctx, http.MethodPost, "/auth/login", req); err != nil {
		return "", fmt.Errorf("failed to log in: %w", err)
	}
	if result.Token == "" {
		return "", errors.New("failed to log in: empty token in response")
	}
	c.SetToken(result.Token)
	return result.Token, nil
}

// GetAsset fetches one asset of the catalog.
func (c *RestClient) GetAsset(ctx context.Context, id int64) (*models.Asset, error) {
	var asset models.Asset
	req := c.newRequest(ctx).SetResult(&asset)

	if _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/assets/%d", id), req); err != nil {
		return nil, fmt.Errorf("failed to get asset %d: %w", id, err)
	}
	return &asset, nil
}

// ListAssets fetches the whole catalog.
func (c *RestClient) ListAssets(ctx context.Context) ([]models.Asset, error) {
	var assets []models.Asset
	req := c.newRequest(ctx).SetResult(&assets)

	if _, err := c.doRequest(ctx, http.MethodGet, "/assets", req); err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

// GetAssetsByIDs fetches a batch of assets in one call.
func (c *RestClient) GetAssetsByIDs(ctx context.Context, ids []int64) ([]models.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	var assets []models.Asset
	req := c.newRequest(ctx).
		SetQueryParam("ids", strings.Join(parts, ",")).
		SetResult(&assets)

	if _, err := c.doRequest(ctx, http.MethodGet, "/assets", req); err != nil {
		return nil, fmt.Errorf("failed to get assets by ids: %w", err)
	}
	return assets, nil
}

// GetRecommendation fetches one recommendation.
func (c *RestClient) GetRecommendation(ctx context.Context, id int64) (*models.Recommendation, error) {
	var rec models.Recommendation
	req := c.newRequest(ctx).SetResult(&rec)

	if _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/recommendations/%d", id), req); err != nil {
		return nil, fmt.Errorf("failed to get recommendation %d: %w", id, err)
	}
	return &rec, nil
}

// ListRecommendations fetches every recommendation.
func (c *RestClient) ListRecommendations(ctx context.Context) ([]models.Recommendation, error) {
	var recs []models.Recommendation
	req := c.newRequest(ctx).SetResult(&recs)

	if _, err := c.doRequest(ctx, http.MethodGet, "/recommendations", req); err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	return recs, nil
}

// GetValuation fetches a portfolio's positions and totals.
func (c *RestClient) GetValuation(ctx context.Context, portfolioID int64) (*models.Valuation, error) {
	var v models.Valuation
	req := c.newRequest(ctx).SetResult(&v)

	if _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/portfolios/%d/valuation", portfolioID), req); err != nil {
		return nil, fmt.Errorf("failed to get valuation for portfolio %d: %w", portfolioID, err)
	}
	return &v, nil
}
