package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScan("steam", "installed", "success", 120*time.Millisecond)
	c.RecordScan("steam", "installed", "success", 80*time.Millisecond)
	c.RecordScan("epic", "owned", "failure", time.Second)
	c.RecordCycle("partial", 2*time.Second)
	c.RecordAuth("xbox", "timeout")
	c.SetGames(42)
	c.SetAuthenticated(3)

	if got := testutil.ToFloat64(c.scans.WithLabelValues("steam", "installed", "success")); got != 2 {
		t.Errorf("steam scans = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.scans.WithLabelValues("epic", "owned", "failure")); got != 1 {
		t.Errorf("epic failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cycles.WithLabelValues("partial")); got != 1 {
		t.Errorf("partial cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.auth.WithLabelValues("xbox", "timeout")); got != 1 {
		t.Errorf("xbox timeouts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.games); got != 42 {
		t.Errorf("games = %v, want 42", got)
	}
	if got := testutil.ToFloat64(c.authenticated); got != 3 {
		t.Errorf("authenticated = %v, want 3", got)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.SetGames(7)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gamedeck_games 7") {
		t.Errorf("scrape output missing gauge:\n%s", rec.Body.String())
	}
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordScan("steam", "installed", "success", time.Second)
	r.SetGames(1)
}
