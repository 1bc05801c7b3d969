package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/farm-records-service/internal/app"
	"github.com/kjstillabower/farm-records-service/internal/cache"
	"github.com/kjstillabower/farm-records-service/internal/config"
	httphandler "github.com/kjstillabower/farm-records-service/internal/http"
	"github.com/kjstillabower/farm-records-service/internal/lifecycle"
	"github.com/kjstillabower/farm-records-service/internal/notify"
	"github.com/kjstillabower/farm-records-service/internal/observability"
)

const (
	warmTimeout            = 30 * time.Second
	inFlightCheckInterval  = 50 * time.Millisecond
	serverReadWriteTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = observability.Flush(logger) }()

	// Requests carry a collector; every notification is logged as well.
	a, err := app.New(cfg, logger, notify.Standard(logger))
	if err != nil {
		logger.Fatal("app", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
	}
	if cfg.CircuitBreakerEnabled {
		healthConfig.BreakerState = a.Client.BreakerState
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(httphandler.Services{
		Crops:    a.Crops,
		Expenses: a.Expenses,
		Farms:    a.Farms,
		Tasks:    a.Tasks,
		Weather:  a.Weather,
	}, healthConfig, logger)

	warmer := cache.NewForecastWarmer(a.Weather, logger, warmTimeout)
	if cfg.ForecastWarmOnStart {
		if err := warmer.Warm(context.Background()); err != nil {
			logger.Warn("forecast warm-up failed", zap.Error(err))
		}
	}
	if cfg.ForecastRefreshInterval > 0 {
		if err := warmer.Start(cfg.ForecastRefreshInterval); err != nil {
			logger.Fatal("forecast refresh", zap.Error(err))
		}
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	api := router.PathPrefix("/").Subrouter()
	api.Use(httphandler.RateLimitMiddleware(limiter))
	api.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	handler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  serverReadWriteTimeout,
		WriteTimeout: serverReadWriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	lifecycle.SetReady(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	warmer.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}
	logger.Info("shutdown complete")
}
