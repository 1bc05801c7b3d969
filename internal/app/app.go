// Package app wires configuration into the record client and domain services
// shared by the HTTP server and the CLI.
package app

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/farm-records-service/internal/cache"
	"github.com/kjstillabower/farm-records-service/internal/config"
	"github.com/kjstillabower/farm-records-service/internal/lifecycle"
	"github.com/kjstillabower/farm-records-service/internal/notify"
	"github.com/kjstillabower/farm-records-service/internal/observability"
	"github.com/kjstillabower/farm-records-service/internal/records"
	"github.com/kjstillabower/farm-records-service/internal/service"
)

// breakerComponent labels the record backend breaker in metrics.
const breakerComponent = "records_api"

// App holds the record client and the services built on it.
type App struct {
	Client   *records.HTTPClient
	Forecast *cache.ForecastCache

	Crops    *service.CropService
	Expenses *service.ExpenseService
	Farms    *service.FarmService
	Tasks    *service.TaskService
	Weather  *service.WeatherService
}

// New builds the record client from cfg and every service on top of it. A nil
// notifier means notify.Standard(logger).
func New(cfg *config.Config, logger *zap.Logger, notifier notify.Notifier) (*App, error) {
	if notifier == nil {
		notifier = notify.Standard(logger)
	}

	client, err := records.NewHTTPClientWithRetry(
		cfg.RecordsAPIURL,
		cfg.RecordsAPIKey,
		cfg.RecordsProjectID,
		cfg.RecordsAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		return nil, fmt.Errorf("records client: %w", err)
	}

	if cfg.CircuitBreakerEnabled {
		cb := records.NewBreaker(breakerComponent, uint32(cfg.CircuitBreakerFailureThreshold), cfg.CircuitBreakerTimeout,
			func(from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
				observability.SetCircuitBreakerState(breakerComponent, to.String())
			})
		client.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerState(breakerComponent, cb.State().String())
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	deps := service.Deps{
		Records:  records.Guarded(records.Static(client), lifecycle.IsShuttingDown),
		Notifier: notifier,
		Logger:   logger,
		Now:      time.Now,
	}
	forecast := cache.NewForecastCache(cfg.ForecastTTL, nil)
	return &App{
		Client:   client,
		Forecast: forecast,
		Crops:    service.NewCropService(deps),
		Expenses: service.NewExpenseService(deps),
		Farms:    service.NewFarmService(deps),
		Tasks:    service.NewTaskService(deps),
		Weather:  service.NewWeatherService(deps, forecast, cfg.ForecastCoalesceEnabled, cfg.ForecastCoalesceTimeout),
	}, nil
}
