package pulsewatch

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/pulsewatch/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSite(t *testing.T, url string, opts ...EndpointOption) Site {
	t.Helper()
	ep, err := NewEndpoint("Health", url, opts...)
	if err != nil {
		t.Fatalf("NewEndpoint() error = %v", err)
	}
	site, err := NewSite("Indexer", WithEndpoints(ep))
	if err != nil {
		t.Fatalf("NewSite() error = %v", err)
	}
	return site
}

const testYAML = `
title: From File
server:
  port: 0
sites:
  - name: Indexer
    endpoints:
      - name: Health
        url: https://api.example.com/health
`

func TestNew_RequiresConfiguration(t *testing.T) {
	_, err := New(WithLogger(testLogger()))
	if err == nil {
		t.Fatal("New() expected error without configuration")
	}
}

func TestNew_ProgrammaticDefaults(t *testing.T) {
	pw, err := New(WithSites(testSite(t, "https://api.example.com/health")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cfg := pw.Config()
	if cfg.Title != "Pulsewatch" {
		t.Errorf("Title = %q, want Pulsewatch", cfg.Title)
	}
	if cfg.Server.Port != defaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, defaultPort)
	}
	if cfg.Interval != nil {
		t.Errorf("Interval = %v, want unset", cfg.Interval)
	}
}

func TestNew_ProgrammaticGlobals(t *testing.T) {
	pw, err := New(
		WithSites(testSite(t, "https://api.example.com/health")),
		WithTitle("Status"),
		WithHost("https://status.example.com"),
		WithPort(9090),
		WithPollingInterval(time.Minute),
		WithConcurrency(4),
		WithWebhookURL("https://hooks.example.com/alerts"),
		WithStateDir("/var/lib/pulsewatch"),
		WithBucketURL("mem://"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cfg := pw.Config()
	if cfg.Title != "Status" || cfg.Host != "https://status.example.com" {
		t.Errorf("Title, Host = %q, %q", cfg.Title, cfg.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Interval.Duration() != time.Minute || *cfg.Concurrency != 4 {
		t.Errorf("Interval, Concurrency = %v, %d", cfg.Interval.Duration(), *cfg.Concurrency)
	}
	if *cfg.WebhookURL != "https://hooks.example.com/alerts" {
		t.Errorf("WebhookURL = %q", *cfg.WebhookURL)
	}
	if cfg.State.Dir != "/var/lib/pulsewatch" || cfg.State.BucketURL != "mem://" {
		t.Errorf("State = %+v", cfg.State)
	}
}

func TestNew_SourceAndSitesAreExclusive(t *testing.T) {
	cfg, err := config.Parse([]byte(testYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	_, err = New(
		WithConfig(cfg),
		WithPort(9090),
	)
	if err == nil || !strings.Contains(err.Error(), "only one of") {
		t.Fatalf("New() error = %v, want exclusivity error", err)
	}
}

func TestWithConfig_Validates(t *testing.T) {
	_, err := New(WithConfig(&config.Config{}))
	if err == nil {
		t.Fatal("New() expected error for config without sites")
	}
}

func TestWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulsewatch.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	pw, err := New(WithConfigFile(path), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := pw.Config().Title; got != "From File" {
		t.Errorf("Title = %q, want From File", got)
	}
}

func TestWithConfigFile_Missing(t *testing.T) {
	_, err := New(WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml")))
	if err == nil {
		t.Fatal("New() expected error for missing file")
	}
}

func TestNew_DuplicateCheckName(t *testing.T) {
	check := MustJQCheck(".ok")
	ep, err := NewEndpoint("A", "", WithCustomCheck("ok", check))
	if err != nil {
		t.Fatalf("NewEndpoint() error = %v", err)
	}
	site, err := NewSite("Site", WithEndpoints(ep))
	if err != nil {
		t.Fatalf("NewSite() error = %v", err)
	}

	_, err = New(
		WithSites(site),
		WithNamedCheck("ok", check),
	)
	if err == nil || !strings.Contains(err.Error(), `duplicate check name: "ok"`) {
		t.Fatalf("New() error = %v, want duplicate check name", err)
	}
}

func TestOptions_Errors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"port out of range", WithPort(70000)},
		{"negative port", WithPort(-1)},
		{"short interval", WithPollingInterval(time.Millisecond)},
		{"zero concurrency", WithConcurrency(0)},
		{"nil logger", WithLogger(nil)},
		{"nil config", WithConfig(nil)},
		{"nil source", WithSource(nil)},
		{"empty config file", WithConfigFile("")},
		{"nil sender", WithSender(nil)},
		{"nil registry", WithMetricsRegistry(nil)},
		{"unnamed check", WithNamedCheck("", MustJQCheck(".ok"))},
		{"nil predicate", WithNamedPredicate("p", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opt(&pwConfig{}); err == nil {
				t.Fatal("option expected error")
			}
		})
	}
}

func TestWithStatusCallback_NilIgnored(t *testing.T) {
	cfg := &pwConfig{}
	if err := WithStatusCallback(nil)(cfg); err != nil {
		t.Fatalf("WithStatusCallback(nil) error = %v", err)
	}
	if len(cfg.statusCallbacks) != 0 {
		t.Errorf("statusCallbacks = %d, want 0", len(cfg.statusCallbacks))
	}
}

func TestWithMetricsRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	pw, err := New(
		WithSites(testSite(t, "https://api.example.com/health")),
		WithMetricsRegistry(reg),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if pw.metricsReg != reg {
		t.Error("metrics registry not used")
	}
}

func TestNewSite_Validation(t *testing.T) {
	ep, err := NewEndpoint("Health", "https://api.example.com/health")
	if err != nil {
		t.Fatalf("NewEndpoint() error = %v", err)
	}

	if _, err := NewSite("Empty"); err == nil {
		t.Error("NewSite() expected error without endpoints")
	}
	if _, err := NewSite("", WithEndpoints(ep)); err == nil {
		t.Error("NewSite() expected error without name")
	}
	if _, err := NewSite("API", WithEndpoints(ep), WithSiteConcurrency(0)); err == nil {
		t.Error("NewSite() expected error for zero concurrency")
	}

	site, err := NewSite("", WithSiteID("api"), WithEndpoints(ep), WithSiteConcurrency(2), WithSiteInterval(time.Minute))
	if err != nil {
		t.Fatalf("NewSite() error = %v", err)
	}
	if site.ID() != "api" || site.Endpoints() != 1 {
		t.Errorf("ID(), Endpoints() = %q, %d", site.ID(), site.Endpoints())
	}
	if *site.cfg.Concurrency != 2 || site.cfg.Interval.Duration() != time.Minute {
		t.Errorf("Settings = %+v", site.cfg.Settings)
	}
}
