package pulsewatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/jpalmerr/pulsewatch/config"
)

// gridConfig holds configuration during grid construction.
type gridConfig struct {
	grid   config.GridConfig
	checks []namedCheck
}

// GridOption configures a [Grid] during construction.
type GridOption func(*gridConfig) error

// WithURLTemplate sets the URL template for endpoint generation.
// The template uses Go's text/template syntax with dimension keys as variables.
//
// Example:
//
//	WithURLTemplate("https://api.example.com/health?env={{.env}}&region={{.region}}")
//
// Returns an error if the template string is empty.
func WithURLTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("URL template required")
		}
		cfg.grid.URLTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the dimension values to expand. Each key is a
// template variable; the grid has one endpoint per combination of values.
//
// Returns an error if a dimension has no values or a duplicate value.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		copied := make(map[string][]string, len(dims))
		for k, values := range dims {
			if len(values) == 0 {
				return fmt.Errorf("dimension %q has no values", k)
			}
			seen := make(map[string]struct{}, len(values))
			for _, v := range values {
				if _, dup := seen[v]; dup {
					return fmt.Errorf("dimension %q has duplicate value %q", k, v)
				}
				seen[v] = struct{}{}
			}
			copied[k] = append([]string(nil), values...)
		}
		cfg.grid.Dimensions = copied
		return nil
	}
}

// WithGridHeaders adds HTTP headers to requests for every generated
// endpoint.
//
// Returns an error if an odd number of arguments is provided.
func WithGridHeaders(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		headers, err := pairs("WithGridHeaders", cfg.grid.Request.Headers, keyValues)
		if err != nil {
			return err
		}
		cfg.grid.Request.Headers = headers
		return nil
	}
}

// WithGridMethod sets the HTTP method for every generated endpoint.
func WithGridMethod(method string) GridOption {
	return func(cfg *gridConfig) error {
		if err := validateMethod(method); err != nil {
			return err
		}
		cfg.grid.Request.Method = method
		return nil
	}
}

// WithGridTimeout sets the request timeout for every generated endpoint.
func WithGridTimeout(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.grid.Timeout = config.Dur(d)
		return nil
	}
}

// WithGridInterval sets the probe interval for every generated endpoint.
func WithGridInterval(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		cfg.grid.Interval = config.Dur(d)
		return nil
	}
}

// WithGridMustFind fails checks whose content contains none of values.
func WithGridMustFind(values ...string) GridOption {
	return func(cfg *gridConfig) error {
		m, err := substringMatcher("WithGridMustFind", values)
		if err != nil {
			return err
		}
		cfg.grid.MustFind = m
		return nil
	}
}

// WithGridValidStatus sets the accepted HTTP status codes for every
// generated endpoint.
func WithGridValidStatus(codes ...int) GridOption {
	return func(cfg *gridConfig) error {
		for _, code := range codes {
			if code < 100 || code > 599 {
				return fmt.Errorf("invalid HTTP status %d", code)
			}
		}
		cfg.grid.ValidStatus = append(config.StatusSet(nil), codes...)
		return nil
	}
}

// WithGridCheck sets a Go [CustomCheck] for every generated endpoint,
// registered under name.
func WithGridCheck(name string, check CustomCheck) GridOption {
	return func(cfg *gridConfig) error {
		if name == "" || check == nil {
			return errors.New("WithGridCheck requires a name and a check")
		}
		cfg.grid.Check = config.CheckConfig{Type: config.CheckFunc, Name: name}
		cfg.checks = append(cfg.checks, namedCheck{name: name, check: check})
		return nil
	}
}

// WithGridJQ sets a jq expression as the custom check of every generated
// endpoint.
func WithGridJQ(expr string) GridOption {
	return func(cfg *gridConfig) error {
		if _, err := JQCheck(expr); err != nil {
			return fmt.Errorf("invalid jq expression: %w", err)
		}
		cfg.grid.Check = config.CheckConfig{Type: config.CheckJQ, Expr: expr}
		return nil
	}
}

// WithGridSettings overrides settings for every generated endpoint. Only
// the non-nil fields of s apply.
func WithGridSettings(s config.Settings) GridOption {
	return func(cfg *gridConfig) error {
		overlaySettings(&cfg.grid.Settings, s)
		return nil
	}
}
