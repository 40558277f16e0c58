package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/a2ahost/a2ahost/protocol/a2a"
)

func cardServer(t *testing.T, name string, keywords ...string) *httptest.Server {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"description":"%s agent","keywords":[`, name, name)
	for i, kw := range keywords {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf("%q", kw)
	}
	body += `]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/card" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFetcher(t *testing.T, reg *Registry) *Fetcher {
	t.Helper()
	cfg := DefaultFetcherConfig()
	cfg.EndpointTimeout = 2 * time.Second
	cfg.Budget = 5 * time.Second
	return NewFetcher(a2a.NewHTTPClient(5*time.Second), reg, cfg, zap.NewNop())
}

func TestDiscover_PartialRegistry(t *testing.T) {
	doc := cardServer(t, "DocAgent", "document", "pdf")
	math := cardServer(t, "MathAgent", "calculate", "sum")
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{{{not json`))
	}))
	t.Cleanup(bad.Close)

	reg := NewRegistry(zap.NewNop())
	report := newFetcher(t, reg).Discover(context.Background(),
		[]string{doc.URL, math.URL, bad.URL, "http://127.0.0.1:1"})

	if len(report.Discovered) != 2 {
		t.Fatalf("discovered = %v, want 2 agents", report.Discovered)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("failed = %v, want 2 endpoints", report.Failed)
	}
	if reg.Len() != 2 {
		t.Fatalf("registry holds %d entries, want 2", reg.Len())
	}

	snap := reg.Snapshot()
	if _, ok := snap.Get("docagent"); !ok {
		t.Error("expected docagent in registry")
	}
	if _, ok := snap.Get("mathagent"); !ok {
		t.Error("expected mathagent in registry")
	}

	// Failed endpoints get no entry, only a re-probe note.
	failed := reg.FailedEndpoints()
	if len(failed) != 2 {
		t.Errorf("failed endpoints = %v, want 2", failed)
	}
}

func TestDiscover_Idempotent(t *testing.T) {
	doc := cardServer(t, "DocAgent", "document")
	math := cardServer(t, "MathAgent", "sum")
	endpoints := []string{doc.URL, math.URL}

	reg := NewRegistry(zap.NewNop())
	f := newFetcher(t, reg)
	f.Discover(context.Background(), endpoints)
	first := reg.Snapshot()

	f.Discover(context.Background(), endpoints)
	second := reg.Snapshot()

	if first.Len() != second.Len() {
		t.Fatalf("registry size changed: %d -> %d", first.Len(), second.Len())
	}
	for i := range first.Entries() {
		a, b := first.Entries()[i], second.Entries()[i]
		if a.Card.AgentID != b.Card.AgentID || a.Order != b.Order {
			t.Errorf("entry %d changed across re-discovery: %+v vs %+v", i, a, b)
		}
		if !reflect.DeepEqual(a.Card.Keywords, b.Card.Keywords) {
			t.Errorf("keywords changed across re-discovery")
		}
	}
}

func TestDiscover_UpsertReplacesCardWholesale(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Upsert(a2a.CapabilityCard{AgentID: "doc", Name: "Doc", Endpoint: "http://a", Keywords: []string{"old"}})
	reg.Upsert(a2a.CapabilityCard{AgentID: "doc", Name: "Doc", Endpoint: "http://a", Keywords: []string{"new"}})

	snap := reg.Snapshot()
	if snap.Len() != 1 {
		t.Fatalf("registry holds %d entries, want 1", snap.Len())
	}
	e, _ := snap.Get("doc")
	if len(e.Card.Keywords) != 1 || e.Card.Keywords[0] != "new" {
		t.Errorf("re-fetch did not replace card: %v", e.Card.Keywords)
	}
	if e.Order != 0 {
		t.Errorf("order changed on upsert: %d", e.Order)
	}
}

func TestDiscover_BudgetBoundsSlowEndpoint(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	t.Cleanup(slow.Close)
	fast := cardServer(t, "FastAgent", "quick")

	reg := NewRegistry(zap.NewNop())
	cfg := FetcherConfig{EndpointTimeout: 200 * time.Millisecond, Budget: time.Second, MaxConcurrency: 4}
	f := NewFetcher(a2a.NewHTTPClient(5*time.Second), reg, cfg, zap.NewNop())

	start := time.Now()
	report := f.Discover(context.Background(), []string{slow.URL, fast.URL})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("discovery took %v, budget not enforced", elapsed)
	}
	if len(report.Discovered) != 1 || report.Discovered[0] != "fastagent" {
		t.Errorf("slow endpoint delayed or displaced the healthy one: %v", report.Discovered)
	}
	if _, ok := report.Failed[slow.URL]; !ok {
		t.Error("slow endpoint not recorded as failed")
	}
}

func TestReprobe_RecoversFailedEndpoint(t *testing.T) {
	healthy := false
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			http.Error(w, "starting up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"name":"LateAgent","description":"slow starter","keywords":["late"]}`))
	}))
	t.Cleanup(flaky.Close)

	reg := NewRegistry(zap.NewNop())
	f := newFetcher(t, reg)
	f.Discover(context.Background(), []string{flaky.URL})
	if reg.Len() != 0 {
		t.Fatal("expected empty registry after failed discovery")
	}

	healthy = true
	report := f.Reprobe(context.Background())
	if len(report.Discovered) != 1 {
		t.Fatalf("reprobe did not recover endpoint: %+v", report)
	}
	if reg.Len() != 1 {
		t.Fatal("expected entry after successful reprobe")
	}
	if len(reg.FailedEndpoints()) != 0 {
		t.Error("recovered endpoint still listed as failed")
	}
}

func TestSnapshot_IsolatedFromRefresh(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Upsert(a2a.CapabilityCard{AgentID: "a", Name: "A", Endpoint: "http://a", Keywords: []string{"one"}})

	snap := reg.Snapshot()
	reg.Upsert(a2a.CapabilityCard{AgentID: "a", Name: "A", Endpoint: "http://a", Keywords: []string{"two"}})
	reg.Upsert(a2a.CapabilityCard{AgentID: "b", Name: "B", Endpoint: "http://b"})

	if snap.Len() != 1 {
		t.Fatalf("snapshot grew after refresh: %d", snap.Len())
	}
	e, _ := snap.Get("a")
	if e.Card.Keywords[0] != "one" {
		t.Error("snapshot saw a half-updated card")
	}
}

func TestSetHealth(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Upsert(a2a.CapabilityCard{AgentID: "a", Name: "A", Endpoint: "http://a"})

	if err := reg.SetHealth("a", HealthUnreachable); err != nil {
		t.Fatalf("SetHealth: %v", err)
	}
	e, _ := reg.Snapshot().Get("a")
	if e.Health != HealthUnreachable {
		t.Errorf("health = %s, want unreachable", e.Health)
	}

	if err := reg.SetHealth("missing", HealthHealthy); err != ErrAgentNotFound {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}
