package pulsewatch

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"text/template"

	"github.com/jpalmerr/pulsewatch/config"
)

// Grid generates a family of endpoints from a URL template and dimensions
// using cartesian product expansion.
//
// Grids are expanded when the site is planned: every combination of
// dimension values becomes one endpoint named "Base Name val1 val2", with
// values ordered by sorted dimension key.
type Grid struct {
	cfg    config.GridConfig
	checks []namedCheck
}

// Name returns the grid's base name.
func (g Grid) Name() string {
	return g.cfg.Name
}

// Size returns the number of endpoints the grid expands to.
func (g Grid) Size() int {
	n := 1
	for _, values := range g.cfg.Dimensions {
		n *= len(values)
	}
	return n
}

// Config returns the configuration the grid compiles to.
func (g Grid) Config() config.GridConfig {
	cfg := g.cfg
	cfg.Dimensions = make(map[string][]string, len(g.cfg.Dimensions))
	for k, v := range g.cfg.Dimensions {
		cfg.Dimensions[k] = append([]string(nil), v...)
	}
	cfg.Request.Headers = maps.Clone(g.cfg.Request.Headers)
	return cfg
}

// NewGrid creates a [Grid] with the given base name and options.
//
// The URL template uses Go's text/template syntax. Missing template keys
// cause an error (fail-fast).
//
// Example:
//
//	grid, err := pulsewatch.NewGrid("API Health",
//	    pulsewatch.WithURLTemplate("https://{{.region}}.api.com/health"),
//	    pulsewatch.WithDimensions(map[string][]string{
//	        "region": {"us-east", "eu-west"},
//	    }),
//	)
//	// expands to "API Health us-east" and "API Health eu-west"
func NewGrid(baseName string, opts ...GridOption) (Grid, error) {
	if strings.TrimSpace(baseName) == "" {
		return Grid{}, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{grid: config.GridConfig{Name: baseName}}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Grid{}, err
		}
	}

	if cfg.grid.URLTemplate == "" {
		return Grid{}, errors.New("URL template required")
	}
	if len(cfg.grid.Dimensions) == 0 {
		return Grid{}, errors.New("at least one dimension required")
	}

	// parse template with missingkey=error for fail-fast behaviour
	tmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.grid.URLTemplate)
	if err != nil {
		return Grid{}, fmt.Errorf("invalid URL template: %w", err)
	}
	sample := make(map[string]string, len(cfg.grid.Dimensions))
	for k, values := range cfg.grid.Dimensions {
		sample[k] = values[0]
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, sample); err != nil {
		return Grid{}, fmt.Errorf("template execution failed: %w", err)
	}

	return Grid{cfg: cfg.grid, checks: cfg.checks}, nil
}
