package probe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lookout-monitor/lookout/internal/adapter/store"
	"github.com/lookout-monitor/lookout/internal/adapter/store/memory"
	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
	"github.com/lookout-monitor/lookout/internal/logger"
)

func newTestLogger() logger.StyledLogger {
	loggerCfg := &logger.Config{Level: "error", Theme: "default"}
	log, _, _ := logger.New(loggerCfg)
	return logger.NewPlainStyledLogger(log)
}

func newTestDriver(kv ports.KeyValueStore, region string) *Driver {
	return NewDriver(DriverConfig{Region: region, Concurrency: 4}, kv, ports.SystemClock{}, newTestLogger(), nil)
}

type panickingProber struct{}

func (panickingProber) Probe(context.Context, *domain.Monitor, string) domain.CheckResult {
	panic("prober exploded")
}

type failingStore struct {
	ports.KeyValueStore
}

func (failingStore) Put(context.Context, ports.Record) error {
	return errors.New("disk full")
}

func TestDriverRunsOnlyRegionalMonitors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	monitors := []domain.Monitor{
		{ID: "here", Method: domain.MethodGet, Target: server.URL, Regions: []string{"syd"}, PrimaryRegion: "syd"},
		{ID: "elsewhere", Method: domain.MethodGet, Target: server.URL, Regions: []string{"fra"}, PrimaryRegion: "fra"},
	}
	for i := range monitors {
		monitors[i].Normalise()
	}

	kv := memory.New()
	driver := newTestDriver(kv, "syd")
	summary := driver.Run(context.Background(), monitors)

	if summary.Region != "syd" || summary.Checked != 1 || summary.Up != 1 || summary.Down != 0 {
		t.Fatalf("Unexpected summary: %+v", summary)
	}

	// Only the regional monitor left records behind.
	records, err := kv.Query(context.Background(), store.CheckPK("here"), ports.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected one check record, got %d", len(records))
	}
	if !strings.HasSuffix(records[0].SK, "#syd") {
		t.Errorf("Check sort key must end in the region, got %q", records[0].SK)
	}

	records, err = kv.Query(context.Background(), store.CheckPK("elsewhere"), ports.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("Foreign-region monitor must not be probed, found %d records", len(records))
	}
}

func TestDriverPersistsCheckAndLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	monitor := domain.Monitor{ID: "api", Method: domain.MethodGet, Target: server.URL,
		Regions: []string{"syd"}, PrimaryRegion: "syd"}
	monitor.Normalise()

	kv := memory.New()
	driver := newTestDriver(kv, "syd")
	summary := driver.Run(context.Background(), []domain.Monitor{monitor})
	if summary.WriteErrors != 0 {
		t.Fatalf("Expected clean writes, got %d errors", summary.WriteErrors)
	}

	checks, err := kv.Query(context.Background(), store.CheckPK("api"), ports.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(checks) != 1 {
		t.Fatalf("Expected one check record, got %d", len(checks))
	}
	var check domain.CheckResult
	if err := json.Unmarshal(checks[0].Value, &check); err != nil {
		t.Fatal(err)
	}
	if check.MonitorID != "api" || check.Region != "syd" || !check.IsUp() {
		t.Errorf("Unexpected check record: %+v", check)
	}

	points, err := kv.Query(context.Background(), store.LatencyPK("api", "syd"), ports.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Fatalf("Expected one latency point, got %d", len(points))
	}
	var point domain.LatencyPoint
	if err := json.Unmarshal(points[0].Value, &point); err != nil {
		t.Fatal(err)
	}
	if point.TimestampMs != check.TimestampMs || point.LatencyMs != check.LatencyMs {
		t.Errorf("Latency point %+v disagrees with check %+v", point, check)
	}
	if points[0].SK != store.PadMs(point.TimestampMs) {
		t.Errorf("Latency sort key %q is not the padded timestamp", points[0].SK)
	}
}

func TestDriverIsolatesPanickingProber(t *testing.T) {
	monitor := domain.Monitor{ID: "shaky", Method: domain.MethodGet, Target: "http://example.com",
		Regions: []string{"syd"}, PrimaryRegion: "syd"}
	monitor.Normalise()

	kv := memory.New()
	driver := newTestDriver(kv, "syd")
	driver.http = panickingProber{}

	summary := driver.Run(context.Background(), []domain.Monitor{monitor})
	if summary.Down != 1 || summary.Up != 0 {
		t.Fatalf("Panic must count as a down check, got %+v", summary)
	}

	records, err := kv.Query(context.Background(), store.CheckPK("shaky"), ports.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected the panic to still produce a record, got %d", len(records))
	}
	var check domain.CheckResult
	if err := json.Unmarshal(records[0].Value, &check); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(check.Error, "Connection failed: internal error:") {
		t.Errorf("Unexpected panic error category: %q", check.Error)
	}
}

func TestDriverCountsWriteErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	monitor := domain.Monitor{ID: "api", Method: domain.MethodGet, Target: server.URL,
		Regions: []string{"syd"}, PrimaryRegion: "syd"}
	monitor.Normalise()

	driver := newTestDriver(failingStore{memory.New()}, "syd")
	summary := driver.Run(context.Background(), []domain.Monitor{monitor})

	// Check and latency writes fail independently.
	if summary.WriteErrors != 2 {
		t.Fatalf("Expected 2 write errors, got %d", summary.WriteErrors)
	}
	if summary.Up != 1 {
		t.Errorf("Write failures must not flip the probe outcome, got %+v", summary)
	}
}

func TestDriverMixedOutcomes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	monitors := []domain.Monitor{
		{ID: "good", Method: domain.MethodGet, Target: server.URL + "/up", Regions: []string{"syd"}, PrimaryRegion: "syd"},
		{ID: "bad", Method: domain.MethodGet, Target: server.URL + "/down", Regions: []string{"syd"}, PrimaryRegion: "syd"},
	}
	for i := range monitors {
		monitors[i].Normalise()
	}

	driver := newTestDriver(memory.New(), "syd")
	summary := driver.Run(context.Background(), monitors)

	if summary.Checked != 2 || summary.Up != 1 || summary.Down != 1 {
		t.Fatalf("Unexpected summary: %+v", summary)
	}
}
