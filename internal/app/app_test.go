package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/farm-records-service/internal/config"
	"github.com/kjstillabower/farm-records-service/internal/lifecycle"
	"github.com/kjstillabower/farm-records-service/internal/notify"
)

func testConfig(url string) *config.Config {
	return &config.Config{
		RecordsAPIKey:                  "test-key",
		RecordsAPIURL:                  url,
		RecordsAPITimeout:              time.Second,
		RetryAttempts:                  1,
		RetryBaseDelay:                 time.Millisecond,
		RetryMaxDelay:                  time.Millisecond,
		CircuitBreakerEnabled:          true,
		CircuitBreakerFailureThreshold: 5,
		CircuitBreakerTimeout:          time.Second,
		ForecastTTL:                    time.Minute,
	}
}

// TestNew_ServicesShareClient verifies that the built services reach the
// configured backend and the breaker starts closed.
func TestNew_ServicesShareClient(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    []map[string]interface{}{{"Id": 1, "name_c": "Home"}},
		})
	}))
	defer srv.Close()

	a, err := New(testConfig(srv.URL), zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := a.Client.BreakerState(); got != "closed" {
		t.Errorf("BreakerState() = %q, want closed", got)
	}

	farms := a.Farms.GetAll(context.Background())
	if len(farms) != 1 || farms[0].Name != "Home" {
		t.Errorf("GetAll() = %+v", farms)
	}
	if len(paths) != 1 || paths[0] != "/tables/farm_c/records/query" {
		t.Errorf("paths = %v", paths)
	}
}

func TestNew_MissingKey(t *testing.T) {
	cfg := testConfig("http://localhost:9000/api")
	cfg.RecordsAPIKey = ""
	if _, err := New(cfg, zap.NewNop(), nil); err == nil {
		t.Error("New() expected error for missing API key")
	}
}

// TestNew_ShuttingDownReportsUnavailable verifies that mutations fail fast
// with the unavailable notification once shutdown has begun.
func TestNew_ShuttingDownReportsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected backend call %s", r.URL.Path)
	}))
	defer srv.Close()

	collector := &notify.Collector{}
	a, err := New(testConfig(srv.URL), zap.NewNop(), collector)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	lifecycle.SetShuttingDown(true)
	defer lifecycle.SetShuttingDown(false)

	if _, err := a.Tasks.Delete(context.Background(), 3); err == nil {
		t.Error("Delete() expected error while shutting down")
	}
	if msgs := collector.Messages(); len(msgs) != 1 || msgs[0] != "Service unavailable" {
		t.Errorf("notifications = %q", msgs)
	}
}
