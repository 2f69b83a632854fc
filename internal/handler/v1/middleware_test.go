package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestCORSEchoesMatchingOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://portal.clinic.test", "https://admin.clinic.test"}
	env := newTestEnvWithConfig(t, &MockDiagnosticAPI{}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://admin.clinic.test")
	rec := env.serve(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://admin.clinic.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSOmitsHeaderForUnknownOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://portal.clinic.test"}
	env := newTestEnvWithConfig(t, &MockDiagnosticAPI{}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := env.serve(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardAllowsAnyOrigin(t *testing.T) {
	env := newTestEnv(t, &MockDiagnosticAPI{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := env.serve(req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	env := newTestEnv(t, &MockDiagnosticAPI{})

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := env.serve(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestRateLimitRejectsWhenBurstExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerSecond = 0.001
	cfg.RateLimit.BurstSize = 1
	env := newTestEnvWithConfig(t, &MockDiagnosticAPI{}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, env.serve(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, env.serve(req).Code)
}

func TestPruneIdleClientsEvictsStaleEntries(t *testing.T) {
	now := time.Now()
	clients := map[string]*rateLimitClient{
		"10.0.0.1": {lim: rate.NewLimiter(1, 1), lastSeen: now.Add(-2 * rateLimitIdleTTL)},
		"10.0.0.2": {lim: rate.NewLimiter(1, 1), lastSeen: now.Add(-time.Second)},
	}

	pruneIdleClients(clients, now)

	assert.NotContains(t, clients, "10.0.0.1")
	assert.Contains(t, clients, "10.0.0.2")
}
