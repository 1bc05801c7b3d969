package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/farm-records-service/internal/models"
)

// ForecastLoader is implemented by the weather service. LoadForecast serves
// from the cache when fresh and otherwise refreshes it, reporting failures.
// Declared here to avoid a dependency on the service package.
type ForecastLoader interface {
	LoadForecast(ctx context.Context) ([]models.ForecastEntry, error)
}

// ForecastWarmer keeps the forecast slot populated ahead of requests.
type ForecastWarmer struct {
	loader  ForecastLoader
	logger  *zap.Logger
	timeout time.Duration

	scheduler *gocron.Scheduler
}

// NewForecastWarmer creates a warmer. timeout bounds each load; zero means
// no bound beyond the loader's own.
func NewForecastWarmer(loader ForecastLoader, logger *zap.Logger, timeout time.Duration) *ForecastWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ForecastWarmer{loader: loader, logger: logger, timeout: timeout}
}

// Warm loads the forecast once.
func (w *ForecastWarmer) Warm(ctx context.Context) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	start := time.Now()
	entries, err := w.loader.LoadForecast(ctx)
	duration := time.Since(start).Seconds()
	if err != nil {
		w.logger.Warn("forecast warm failed", zap.Error(err), zap.Float64("duration_seconds", duration))
		return fmt.Errorf("warm forecast: %w", err)
	}
	w.logger.Debug("forecast warm complete", zap.Int("entries", len(entries)), zap.Float64("duration_seconds", duration))
	return nil
}

// Start schedules Warm every interval, with the first run immediately.
// Overlapping runs are skipped.
func (w *ForecastWarmer) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("forecast refresh interval must be positive, got %s", interval)
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(interval).Do(func() {
		_ = w.Warm(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule forecast refresh: %w", err)
	}
	s.StartAsync()
	w.scheduler = s
	w.logger.Info("forecast refresh scheduled", zap.Duration("interval", interval))
	return nil
}

// Stop halts the scheduled refresh. Safe to call when Start was never called.
func (w *ForecastWarmer) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}
