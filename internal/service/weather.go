package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/farm-records-service/internal/cache"
	"github.com/kjstillabower/farm-records-service/internal/mapper"
	"github.com/kjstillabower/farm-records-service/internal/models"
	"github.com/kjstillabower/farm-records-service/internal/observability"
	"github.com/kjstillabower/farm-records-service/internal/records"
)

// WeatherService serves the forecast from weather_c through a single-slot
// cache. Reads never return errors to callers of GetForecast and
// GetCurrentWeather.
type WeatherService struct {
	core
	forecast  *cache.ForecastCache
	refreshes *refreshTracker
	coalescer *forecastCoalescer // nil when coalescing is disabled
}

// NewWeatherService creates a WeatherService backed by forecast. A nil
// forecast gets a fresh cache with the default window. coalesceEnabled and
// coalesceTimeout configure single-flight refreshes (disabled if timeout 0).
func NewWeatherService(deps Deps, forecast *cache.ForecastCache, coalesceEnabled bool, coalesceTimeout time.Duration) *WeatherService {
	if forecast == nil {
		forecast = cache.NewForecastCache(cache.DefaultForecastTTL, nil)
	}
	var coalescer *forecastCoalescer
	if coalesceEnabled && coalesceTimeout > 0 {
		coalescer = newForecastCoalescer(coalesceTimeout)
	}
	return &WeatherService{
		core:      newCore(mapper.TableWeather, mapper.WeatherFields, deps),
		forecast:  forecast,
		refreshes: newRefreshTracker(),
		coalescer: coalescer,
	}
}

// GetForecast returns the forecast ordered by date ascending. Failures are
// logged and yield an empty slice; the cached snapshot is left untouched.
func (s *WeatherService) GetForecast(ctx context.Context) []models.ForecastEntry {
	entries, err := s.LoadForecast(ctx)
	if err != nil {
		s.readFailed(ctx, "forecast unavailable", zap.Error(err))
		return []models.ForecastEntry{}
	}
	return entries
}

// GetCurrentWeather returns the first forecast entry, or false when the
// forecast is empty or unavailable.
func (s *WeatherService) GetCurrentWeather(ctx context.Context) (models.ForecastEntry, bool) {
	entries := s.GetForecast(ctx)
	if len(entries) == 0 {
		return models.ForecastEntry{}, false
	}
	return entries[0], true
}

// LoadForecast is GetForecast with the failure reported. Each call returns a
// slice owned by the caller.
func (s *WeatherService) LoadForecast(ctx context.Context) ([]models.ForecastEntry, error) {
	logger := s.logger(ctx)
	if entries, ok := s.forecast.Lookup(); ok {
		observability.ForecastCacheLookupsTotal.WithLabelValues("hit").Inc()
		logger.Debug("forecast cache hit", zap.Int("entries", len(entries)))
		return entries, nil
	}
	observability.ForecastCacheLookupsTotal.WithLabelValues("miss").Inc()
	logger.Debug("forecast cache miss, fetching backend")

	if s.coalescer == nil {
		return s.refresh(ctx)
	}
	start := time.Now()
	entries, coalesced, err := s.coalescer.Do(ctx, s.refresh)
	if err != nil {
		return nil, err
	}
	if coalesced {
		observability.ForecastCoalescedTotal.Inc()
		logger.Debug("forecast refresh coalesced", zap.Duration("wait", time.Since(start)))
	}
	out := make([]models.ForecastEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// refresh fetches weather_c and replaces the cache slot on success.
func (s *WeatherService) refresh(ctx context.Context) ([]models.ForecastEntry, error) {
	if n := s.refreshes.Start(); n > 1 {
		observability.ForecastConcurrentRefreshes.Observe(float64(n))
	}
	defer s.refreshes.Done()

	entries, err := s.fetchForecast(ctx)
	if err != nil {
		observability.ForecastRefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	observability.ForecastRefreshTotal.WithLabelValues("success").Inc()
	return s.forecast.Store(entries), nil
}

func (s *WeatherService) fetchForecast(ctx context.Context) ([]models.ForecastEntry, error) {
	client, err := s.deps.Records()
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	params := s.params()
	params.OrderBy = []records.Order{{FieldName: mapper.FieldWeatherDate, SortType: records.SortAsc}}
	resp, err := client.FetchRecords(ctx, s.table, params)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("fetch forecast: %w", &BackendError{Op: records.OpFetch, Table: s.table, Message: resp.Message})
	}
	entries := make([]models.ForecastEntry, 0, len(resp.Data))
	for _, raw := range resp.Data {
		entries = append(entries, mapper.ForecastEntryFromRecord(raw))
	}
	return entries, nil
}
