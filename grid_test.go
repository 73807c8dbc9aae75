package pulsewatch

import (
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/pulsewatch/config"
)

func TestNewGrid_Validation(t *testing.T) {
	dims := WithDimensions(map[string][]string{"region": {"us", "eu"}})

	tests := []struct {
		name     string
		baseName string
		opts     []GridOption
		wantErr  string
	}{
		{name: "empty base name", baseName: "  ", opts: []GridOption{dims}, wantErr: "base name"},
		{name: "missing template", baseName: "API", opts: []GridOption{dims}, wantErr: "URL template required"},
		{name: "empty template", baseName: "API", opts: []GridOption{WithURLTemplate(""), dims}, wantErr: "URL template required"},
		{name: "missing dimensions", baseName: "API", opts: []GridOption{WithURLTemplate("https://api.com")}, wantErr: "dimension"},
		{
			name:     "empty dimension",
			baseName: "API",
			opts: []GridOption{
				WithURLTemplate("https://{{.region}}.api.com"),
				WithDimensions(map[string][]string{"region": {}}),
			},
			wantErr: "has no values",
		},
		{
			name:     "duplicate value",
			baseName: "API",
			opts: []GridOption{
				WithURLTemplate("https://{{.region}}.api.com"),
				WithDimensions(map[string][]string{"region": {"us", "us"}}),
			},
			wantErr: "duplicate value",
		},
		{
			name:     "invalid template",
			baseName: "API",
			opts:     []GridOption{WithURLTemplate("https://{{.region"), dims},
			wantErr:  "invalid URL template",
		},
		{
			name:     "missing key",
			baseName: "API",
			opts:     []GridOption{WithURLTemplate("https://{{.zone}}.api.com"), dims},
			wantErr:  "template execution failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrid(tt.baseName, tt.opts...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("NewGrid() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGrid_Size(t *testing.T) {
	grid, err := NewGrid("API",
		WithURLTemplate("https://{{.region}}.api.com/{{.env}}"),
		WithDimensions(map[string][]string{
			"region": {"us", "eu", "ap"},
			"env":    {"prod", "staging"},
		}),
	)
	if err != nil {
		t.Fatalf("NewGrid() error = %v", err)
	}
	if got := grid.Size(); got != 6 {
		t.Errorf("Size() = %d, want 6", got)
	}
}

// TestGrid_ExpandsWithinSite verifies grid endpoints follow the explicit
// endpoints and inherit the grid's request settings.
func TestGrid_ExpandsWithinSite(t *testing.T) {
	grid, err := NewGrid("Chain",
		WithURLTemplate("https://rpc.example.com/{{.chain}}"),
		WithDimensions(map[string][]string{"chain": {"eth", "bsc"}}),
		WithGridHeaders("X-Key", "secret"),
		WithGridMethod("POST"),
		WithGridTimeout(3*time.Second),
		WithGridInterval(time.Hour),
		WithGridMustFind("result"),
		WithGridValidStatus(200),
	)
	if err != nil {
		t.Fatalf("NewGrid() error = %v", err)
	}
	health, err := NewEndpoint("Health", "https://rpc.example.com/health")
	if err != nil {
		t.Fatalf("NewEndpoint() error = %v", err)
	}
	site, err := NewSite("RPC", WithEndpoints(health), WithGrids(grid))
	if err != nil {
		t.Fatalf("NewSite() error = %v", err)
	}

	pw, err := New(WithSites(site), WithPort(0), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sites, err := config.BuildSites(pw.Config())
	if err != nil {
		t.Fatalf("BuildSites() error = %v", err)
	}

	endpoints := sites[0].Endpoints
	var names []string
	for _, ep := range endpoints {
		names = append(names, ep.Name)
	}
	want := []string{"Health", "Chain eth", "Chain bsc"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("endpoint names = %v, want %v", names, want)
	}

	bsc := endpoints[2]
	if bsc.URL != "https://rpc.example.com/bsc" {
		t.Errorf("URL = %q", bsc.URL)
	}
	if bsc.Request.Method != "POST" || bsc.Request.Headers["X-Key"] != "secret" {
		t.Errorf("Request = %+v", bsc.Request)
	}
	if bsc.Timeout.Duration() != 3*time.Second || bsc.Interval.Duration() != time.Hour {
		t.Errorf("Timeout, Interval = %v, %v", bsc.Timeout.Duration(), bsc.Interval.Duration())
	}
}

func TestGrid_ConfigIsCopy(t *testing.T) {
	dims := map[string][]string{"region": {"us"}}
	grid, err := NewGrid("API",
		WithURLTemplate("https://{{.region}}.api.com"),
		WithDimensions(dims),
	)
	if err != nil {
		t.Fatalf("NewGrid() error = %v", err)
	}

	dims["region"][0] = "tampered"
	cfg := grid.Config()
	cfg.Dimensions["region"][0] = "tampered"

	if got := grid.Config().Dimensions["region"][0]; got != "us" {
		t.Errorf("Dimensions[region][0] = %q, want us", got)
	}
}
