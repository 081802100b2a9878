// Package session owns the per-login state of a FinanzApp user: the backend
// credentials and the catalog caches that are only valid until logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"finanzapp-core/internal/backend"
	"finanzapp-core/internal/cache"
	"finanzapp-core/internal/metrics"
	"finanzapp-core/internal/models"
	"go.uber.org/zap"
)

const (
	assetCacheName          = "assets"
	recommendationCacheName = "recommendations"
)

// Session serves catalog lookups from memory when it can and from the
// backend when it must, caching every successful fetch.
type Session struct {
	logger          *zap.Logger
	client          backend.Client
	assets          *cache.Cache[int64, models.Asset]
	recommendations *cache.Cache[int64, models.Recommendation]
}

func New(client backend.Client, logger *zap.Logger) *Session {
	return &Session{
		logger:          logger.Named("session"),
		client:          client,
		assets:          cache.New(models.AssetID),
		recommendations: cache.New(models.RecommendationID),
	}
}

// Login authenticates against the backend. Caches from a previous login are dropped.
func (s *Session) Login(ctx context.Context, username, password string) error {
	s.clear()
	if _, err := s.client.Login(ctx, username, password); err != nil {
		return err
	}
	s.logger.Info("Logged in", zap.String("username", username))
	return nil
}

// Logout forgets the credentials and everything cached under them.
func (s *Session) Logout() {
	s.client.SetToken("")
	s.clear()
	s.logger.Info("Logged out, session caches cleared")
}

// Authenticated reports whether the backend client holds a token.
func (s *Session) Authenticated() bool {
	return s.client.Authenticated()
}

func (s *Session) clear() {
	s.assets.Clear()
	s.recommendations.Clear()
	metrics.CacheClears.Inc()
}

func recordLookup(cacheName string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(cacheName, result).Inc()
}

// Asset returns one asset, fetching it only when it is not cached.
func (s *Session) Asset(ctx context.Context, id int64) (models.Asset, error) {
	if a, ok := s.assets.Get(id); ok {
		recordLookup(assetCacheName, true)
		return a, nil
	}
	recordLookup(assetCacheName, false)

	a, err := s.client.GetAsset(ctx, id)
	if err != nil {
		return models.Asset{}, err
	}
	s.assets.Put([]models.Asset{*a}, false)
	return *a, nil
}

// Assets returns the whole catalog, fetching it unless a full listing is cached.
func (s *Session) Assets(ctx context.Context) ([]models.Asset, error) {
	if all, ok := s.assets.GetAllIfComplete(); ok {
		recordLookup(assetCacheName, true)
		return all, nil
	}
	recordLookup(assetCacheName, false)

	all, err := s.client.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	s.assets.Put(all, true)
	return all, nil
}

// AssetsByIDs returns the requested assets in order, fetching only the
// ones not already cached in a single batch call.
func (s *Session) AssetsByIDs(ctx context.Context, ids []int64) ([]models.Asset, error) {
	missing := s.assets.Missing(ids)
	recordLookup(assetCacheName, len(missing) == 0)

	if len(missing) > 0 {
		fetched, err := s.client.GetAssetsByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		s.assets.Put(fetched, false)
	}

	out := make([]models.Asset, 0, len(ids))
	for _, id := range ids {
		a, ok := s.assets.Get(id)
		if !ok {
			return nil, fmt.Errorf("asset %d: %w", id, backend.ErrNotFound)
		}
		out = append(out, a)
	}
	return out, nil
}

// Recommendation returns one recommendation, fetching it only when it is not cached.
func (s *Session) Recommendation(ctx context.Context, id int64) (models.Recommendation, error) {
	if r, ok := s.recommendations.Get(id); ok {
		recordLookup(recommendationCacheName, true)
		return r, nil
	}
	recordLookup(recommendationCacheName, false)

	r, err := s.client.GetRecommendation(ctx, id)
	if err != nil {
		return models.Recommendation{}, err
	}
	s.recommendations.Put([]models.Recommendation{*r}, false)
	return *r, nil
}

// Recommendations returns every recommendation, fetching unless a full listing is cached.
func (s *Session) Recommendations(ctx context.Context) ([]models.Recommendation, error) {
	if all, ok := s.recommendations.GetAllIfComplete(); ok {
		recordLookup(recommendationCacheName, true)
		return all, nil
	}
	recordLookup(recommendationCacheName, false)

	all, err := s.client.ListRecommendations(ctx)
	if err != nil {
		return nil, err
	}
	s.recommendations.Put(all, true)
	return all, nil
}

// Refresh reloads both full listings regardless of what is cached. The two
// listings load concurrently and independently: one failing does not keep
// the other from being cached.
func (s *Session) Refresh(ctx context.Context) error {
	var (
		wg       sync.WaitGroup
		assets   []models.Asset
		recs     []models.Recommendation
		errAsset error
		errRec   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		assets, errAsset = s.client.ListAssets(ctx)
		if errAsset != nil {
			errAsset = fmt.Errorf("could not refresh assets: %w", errAsset)
			return
		}
		s.assets.Put(assets, true)
	}()
	go func() {
		defer wg.Done()
		recs, errRec = s.client.ListRecommendations(ctx)
		if errRec != nil {
			errRec = fmt.Errorf("could not refresh recommendations: %w", errRec)
			return
		}
		s.recommendations.Put(recs, true)
	}()
	wg.Wait()

	if err := errors.Join(errAsset, errRec); err != nil {
		return err
	}
	s.logger.Debug("Catalog refreshed",
		zap.Int("assets", len(assets)),
		zap.Int("recommendations", len(recs)),
	)
	return nil
}

// Valuation fetches a portfolio valuation. Valuations change with the market
// and are never cached.
func (s *Session) Valuation(ctx context.Context, portfolioID int64) (*models.Valuation, error) {
	return s.client.GetValuation(ctx, portfolioID)
}
