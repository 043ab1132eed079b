package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRegistryExposesHandler(t *testing.T) {
	size := 0.0
	reg := NewRegistry(func() float64 { return size })

	reg.RecordRequest("udp", "NoError", "A", "IN", false, 2*time.Millisecond)
	reg.RecordCounters("udp", "NoError", "A", "IN", false, &Counters{AuthoritativeHits: 1, OverrideHits: 1, CacheOverflows: 2})
	reg.RecordCacheExpired(3)
	reg.RecordCachePruned(1)
	size = 42

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	reg.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200 from metrics handler, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"homedns_requests_total", "homedns_cache_size", "homedns_cache_expired_total",
		"homedns_override_hits_total", "homedns_cache_overflow_total 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}
