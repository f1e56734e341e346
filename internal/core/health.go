package core

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout bounds the total time spent probing dependencies.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is implemented by infrastructure dependencies (database, cache)
// that the health endpoint should verify.
type HealthProbe interface {
	// Name identifies the probe in the health response.
	Name() string
	// Check returns nil when the dependency is reachable and healthy.
	Check(ctx context.Context) error
}

// HealthStatus is the response body of GET /health.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleHealth reports service liveness and dependency health. All probes run
// concurrently under a shared timeout; any failing probe degrades the overall
// status to 503 so load balancers rotate the instance out.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.HealthProbes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	healthy := true

	for _, probe := range s.HealthProbes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()
			err := p.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[p.Name()] = "unhealthy"
				healthy = false
				s.Logger.Warn("health probe failed", "probe", p.Name(), "error", err)
				return
			}
			checks[p.Name()] = "ok"
		}(probe)
	}
	wg.Wait()

	status := HealthStatus{Status: "ok", Checks: checks}
	code := http.StatusOK
	if !healthy {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	JSON(w, r, code, status)
}
