package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// resetForTest clears the package-level registry so tests don't collide
// over the shared process-wide state InitRegistry protects.
func resetForTest() {
	mu.Lock()
	registry = nil
	current = metricsSet{}
	mu.Unlock()
}

func TestDisabledByDefault(t *testing.T) {
	resetForTest()
	assert.False(t, IsEnabled())
	assert.Nil(t, Handler())

	// Recording functions must be safe no-ops when disabled.
	ObserveRequest("READ", "Success", time.Millisecond)
	SetActiveSessions(3)
	ObserveSearchCache(true)
}

func TestInitRegistryIsIdempotent(t *testing.T) {
	resetForTest()
	defer resetForTest()

	r1 := InitRegistry("dfsns")
	r2 := InitRegistry("dfsns")
	assert.Same(t, r1, r2)
	assert.True(t, IsEnabled())
}

func TestMountServesMetrics(t *testing.T) {
	resetForTest()
	defer resetForTest()

	InitRegistry("dfsns")
	ObserveRequest("READ", "Success", 2*time.Millisecond)

	r := chi.NewRouter()
	Mount(r, "/metrics")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "dfsns_requests_total")
}
