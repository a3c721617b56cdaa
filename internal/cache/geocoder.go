package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/geocoder"
	"Atlas/pkg/logger"
)

const geocodePrefix = "geocode"

// PlaceCache 地理编码结果缓存，ProtectedCache 满足该接口
type PlaceCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// CachedGeocoder 在外部地理编码前加一层缓存和熔断
type CachedGeocoder struct {
	inner   geocoder.Client
	cache   PlaceCache
	breaker *CircuitBreaker
}

func NewCachedGeocoder(inner geocoder.Client, cache PlaceCache, breaker *CircuitBreaker) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, cache: cache, breaker: breaker}
}

func (g *CachedGeocoder) Provider() string {
	return g.inner.Provider()
}

// Resolve 缓存命中直接返回（包括"查无结果"）；上游失败统一包装成 UpstreamUnavailable
func (g *CachedGeocoder) Resolve(ctx context.Context, name, city string) (*geocoder.Place, error) {
	key := geocodeKey(g.inner.Provider(), name, city)

	if g.cache != nil {
		var cached *geocoder.Place
		hit, err := g.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.Logger.Warn("Failed to read geocode cache",
				zap.String("key", key),
				zap.Error(err),
			)
		} else if hit {
			return cached, nil
		}
	}

	var place *geocoder.Place
	call := func(ctx context.Context) error {
		var err error
		place, err = g.inner.Resolve(ctx, name, city)
		return err
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Call(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, ErrBreakerOpen) {
			return nil, fmt.Errorf("%w: geocoder circuit open", pkgerrors.UpstreamUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", pkgerrors.UpstreamUnavailable, err)
	}

	if g.cache != nil {
		var value interface{}
		if place != nil {
			value = place
		}
		if err := g.cache.Set(ctx, key, value); err != nil {
			logger.Logger.Warn("Failed to write geocode cache",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	return place, nil
}

func geocodeKey(provider, name, city string) string {
	return provider + ":" + strings.ToLower(strings.TrimSpace(city)) + ":" + strings.ToLower(strings.TrimSpace(name))
}
