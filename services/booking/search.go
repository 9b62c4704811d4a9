package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flexify/models"
	"flexify/services/api"
	"flexify/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SearchQuery is a nearby provider search.
type SearchQuery struct {
	Category      string             `json:"category"`
	Origin        models.Coordinates `json:"origin"`
	MaxDistanceKm float64            `json:"maxDistanceKm"`
	VerifiedOnly  bool               `json:"verifiedOnly"`
}

// APISearcher queries GET /providers/search/nearby.
type APISearcher struct {
	Client api.Doer
}

func (s *APISearcher) Search(ctx context.Context, q SearchQuery) ([]models.ProviderCandidate, error) {
	params := url.Values{}
	params.Set("category", q.Category)
	params.Set("latitude", strconv.FormatFloat(q.Origin.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Origin.Lng, 'f', -1, 64))
	params.Set("maxDistance", strconv.FormatFloat(q.MaxDistanceKm, 'f', -1, 64))
	params.Set("verified", strconv.FormatBool(q.VerifiedOnly))
	params.Set("available", "true")

	var raw json.RawMessage
	err := s.Client.Send(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/providers/search/nearby",
		Query:  params,
	}, &raw)
	if err != nil {
		return nil, err
	}
	var providers []models.ProviderCandidate
	if err := api.DecodeList(raw, "providers", &providers); err != nil {
		return nil, fmt.Errorf("decoding nearby providers: %w", err)
	}
	return providers, nil
}

// DefaultSearchCacheTTL is used when CachedSearcher.TTL is zero.
const DefaultSearchCacheTTL = 5 * time.Minute

// CachedSearcher caches search results in Redis. Cache failures are logged
// and the underlying searcher is used.
type CachedSearcher struct {
	Next   Searcher
	Cache  *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func searchCacheKey(q SearchQuery) (string, error) {
	// Round the origin so nearby repeats share an entry (~11 m).
	q.Origin.Lat = roundTo(q.Origin.Lat, 4)
	q.Origin.Lng = roundTo(q.Origin.Lng, 4)
	b, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("search:nearby:%x", b), nil
}

func (s *CachedSearcher) Search(ctx context.Context, q SearchQuery) ([]models.ProviderCandidate, error) {
	logger := utils.OrNop(s.Logger)
	key, err := searchCacheKey(q)
	if err != nil || s.Cache == nil {
		return s.Next.Search(ctx, q)
	}

	cached, err := s.Cache.Get(ctx, key).Result()
	switch {
	case err == nil && cached != "":
		var providers []models.ProviderCandidate
		if err := json.Unmarshal([]byte(cached), &providers); err == nil {
			logger.Debug("Nearby search served from cache", zap.String("category", q.Category))
			return providers, nil
		}
		logger.Warn("Discarding unreadable cached search result", zap.String("key", key))
	case err != nil && !errors.Is(err, redis.Nil):
		logger.Warn("Search cache read failed", zap.Error(err))
	}

	providers, err := s.Next.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultSearchCacheTTL
	}
	if b, err := json.Marshal(providers); err == nil {
		if err := s.Cache.Set(ctx, key, b, ttl).Err(); err != nil {
			logger.Warn("Search cache write failed", zap.Error(err))
		}
	}
	return providers, nil
}
