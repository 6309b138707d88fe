package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HealthStatus is the health-check view of the store. A degraded store
// is still healthy (synchronization keeps working on the fallback); it
// is only reported unhealthy when even a fallback ping fails.
type HealthStatus struct {
	Healthy      bool     `json:"healthy"`
	Connected    bool     `json:"connected"`
	Backend      string   `json:"backend"`
	FallbackKeys int      `json:"fallback_keys"`
	Errors       []string `json:"errors"`
}

// HealthChecker reports store health for an external collector.
type HealthChecker struct {
	store   Store
	timeout time.Duration
}

// NewHealthChecker wraps a store for health reporting.
func NewHealthChecker(s Store, timeout time.Duration) *HealthChecker {
	return &HealthChecker{store: s, timeout: timeout}
}

// Check queries the store status and pings the active backend.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := h.store.Status()
	result := HealthStatus{
		Healthy:      true,
		Connected:    status.Connected,
		Backend:      status.Backend,
		FallbackKeys: status.FallbackKeys,
		Errors:       []string{},
	}

	if err := h.store.Ping(ctx); err != nil {
		result.Healthy = false
		result.Errors = append(result.Errors, fmt.Sprintf("store ping failed: %v", err))
	}
	if !status.Connected {
		result.Errors = append(result.Errors, "durable backend unreachable, using in-memory fallback")
	}
	return result
}

// ServeHTTP renders the health status as JSON. Degraded mode answers
// 200 with indicators set; only a dead fallback answers 503.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		http.Error(w, "encode health status", http.StatusInternalServerError)
	}
}

// MetricsHandler exports the same indicators in Prometheus text format.
func (h *HealthChecker) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)

	healthy, connected := 0, 0
	if status.Healthy {
		healthy = 1
	}
	if status.Connected {
		connected = 1
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, `# HELP store_healthy Whether the store is serving operations
# TYPE store_healthy gauge
store_healthy %d

# HELP store_connected Whether the durable backend is connected
# TYPE store_connected gauge
store_connected %d

# HELP store_fallback_keys Number of keys held by the in-memory fallback
# TYPE store_fallback_keys gauge
store_fallback_keys %d
`, healthy, connected, status.FallbackKeys)
}
