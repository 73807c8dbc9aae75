package pulsewatch

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"dario.cat/mergo"

	"github.com/jpalmerr/pulsewatch/config"
)

// endpointConfig holds mutable state during endpoint construction.
type endpointConfig struct {
	ep     config.EndpointConfig
	checks []namedCheck
}

// EndpointOption is a function that configures an [Endpoint] during
// construction. Options return an error if validation fails.
type EndpointOption func(*endpointConfig) error

// WithID sets the endpoint id instead of deriving it from the name.
//
// Ids key the endpoint's history in the status document and its alert
// debounce, so changing an id starts a fresh history.
func WithID(id string) EndpointOption {
	return func(cfg *endpointConfig) error {
		if id == "" {
			return errors.New("endpoint id cannot be empty")
		}
		cfg.ep.ID = id
		return nil
	}
}

// WithHeaders adds custom HTTP headers to requests for this endpoint.
//
// Accepts variadic key-value pairs. Values may reference environment
// variables as ${VAR} or ${VAR:-default}.
//
// Example:
//
//	ep, err := pulsewatch.NewEndpoint("API", url,
//	    pulsewatch.WithHeaders("Authorization", "Bearer ${API_TOKEN}"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) EndpointOption {
	return func(cfg *endpointConfig) error {
		headers, err := pairs("WithHeaders", cfg.ep.Request.Headers, keyValues)
		if err != nil {
			return err
		}
		cfg.ep.Request.Headers = headers
		return nil
	}
}

// WithBody sets the request body.
func WithBody(body string) EndpointOption {
	return func(cfg *endpointConfig) error {
		cfg.ep.Request.Body = body
		return nil
	}
}

// WithMethod sets the HTTP method for requests to this endpoint.
//
// If not specified, GET is used.
//
// Returns an error if the method is not a standard HTTP method.
func WithMethod(method string) EndpointOption {
	return func(cfg *endpointConfig) error {
		if err := validateMethod(method); err != nil {
			return err
		}
		cfg.ep.Request.Method = method
		return nil
	}
}

// WithTimeout sets the request timeout for this endpoint.
//
// A request that does not complete within the timeout fails the check.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) EndpointOption {
	return func(cfg *endpointConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.ep.Timeout = config.Dur(d)
		return nil
	}
}

// WithInterval sets how often this endpoint is probed.
//
// Every cycle visits every endpoint, but an endpoint whose last reading is
// younger than its interval (minus two minutes of slack) is skipped. Use
// long intervals for expensive checks.
//
// Returns an error if the interval is shorter than 1 second.
func WithInterval(d time.Duration) EndpointOption {
	return func(cfg *endpointConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		cfg.ep.Interval = config.Dur(d)
		return nil
	}
}

// WithSettings overrides any of the site and global settings for this
// endpoint. Only the non-nil fields of s apply.
//
// Example:
//
//	ep, err := pulsewatch.NewEndpoint("API", url,
//	    pulsewatch.WithSettings(config.Settings{
//	        ConsecutiveErrorsNotify: config.Ptr(3),
//	        WebhookURL:              config.Ptr("https://hooks.example.com/oncall"),
//	    }),
//	)
func WithSettings(s config.Settings) EndpointOption {
	return func(cfg *endpointConfig) error {
		overlaySettings(&cfg.ep.Settings, s)
		return nil
	}
}

// WithMustFind fails the check unless the content contains one of values.
//
// Returns an error if no values are provided.
func WithMustFind(values ...string) EndpointOption {
	return func(cfg *endpointConfig) error {
		m, err := substringMatcher("WithMustFind", values)
		if err != nil {
			return err
		}
		cfg.ep.MustFind = m
		return nil
	}
}

// WithMustNotFind fails the check if the content contains any of values.
//
// Returns an error if no values are provided.
func WithMustNotFind(values ...string) EndpointOption {
	return func(cfg *endpointConfig) error {
		m, err := substringMatcher("WithMustNotFind", values)
		if err != nil {
			return err
		}
		cfg.ep.MustNotFind = m
		return nil
	}
}

// WithMustMatch fails the check unless the content matches pattern.
//
// Returns an error if the pattern is invalid.
func WithMustMatch(pattern string) EndpointOption {
	return func(cfg *endpointConfig) error {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		cfg.ep.MustFind = config.Matcher{Regex: pattern}
		return nil
	}
}

// WithMustFindPredicate fails the check unless p matches the content. The
// predicate is registered under name, which must be unique among the
// checks and predicates of a [Pulsewatch].
func WithMustFindPredicate(name string, p Predicate) EndpointOption {
	return func(cfg *endpointConfig) error {
		if name == "" || p == nil {
			return errors.New("WithMustFindPredicate requires a name and a predicate")
		}
		cfg.ep.MustFind = config.Matcher{Predicate: name}
		cfg.checks = append(cfg.checks, namedCheck{name: name, predicate: p})
		return nil
	}
}

// WithValidStatus sets the accepted HTTP status codes. By default any 2xx
// status is accepted.
//
// Returns an error if a code is not a valid HTTP status.
func WithValidStatus(codes ...int) EndpointOption {
	return func(cfg *endpointConfig) error {
		for _, code := range codes {
			if code < 100 || code > 599 {
				return fmt.Errorf("invalid HTTP status %d", code)
			}
		}
		cfg.ep.ValidStatus = append(config.StatusSet(nil), codes...)
		return nil
	}
}

// WithCustomCheck sets a Go [CustomCheck] for this endpoint. The check is
// registered under name, which must be unique among the checks and
// predicates of a [Pulsewatch].
//
// Example:
//
//	ep, err := pulsewatch.NewEndpoint("Coins", "https://api.example.com/coins",
//	    pulsewatch.WithCustomCheck("coins-nonempty", pulsewatch.CheckFunc(
//	        func(ctx context.Context, in *pulsewatch.CheckInput) (bool, error) {
//	            coins, _ := in.JSON.([]any)
//	            return len(coins) > 0, nil
//	        })),
//	)
func WithCustomCheck(name string, check CustomCheck) EndpointOption {
	return func(cfg *endpointConfig) error {
		if name == "" || check == nil {
			return errors.New("WithCustomCheck requires a name and a check")
		}
		cfg.ep.Check = config.CheckConfig{Type: config.CheckFunc, Name: name}
		cfg.checks = append(cfg.checks, namedCheck{name: name, check: check})
		return nil
	}
}

// WithJQ sets a jq expression as the endpoint's custom check. The check
// passes when the first result is neither null nor false.
//
// Returns an error if the expression does not compile.
func WithJQ(expr string) EndpointOption {
	return func(cfg *endpointConfig) error {
		if _, err := JQCheck(expr); err != nil {
			return fmt.Errorf("invalid jq expression: %w", err)
		}
		cfg.ep.Check = config.CheckConfig{Type: config.CheckJQ, Expr: expr}
		return nil
	}
}

// WithJSONField sets a [JSONFieldCheck] as the endpoint's custom check.
func WithJSONField(path string, equals ...string) EndpointOption {
	return func(cfg *endpointConfig) error {
		if path == "" {
			return errors.New("WithJSONField requires a path")
		}
		cfg.ep.Check = config.CheckConfig{Type: config.CheckJSON, Path: path, Equals: append([]string(nil), equals...)}
		return nil
	}
}

// WithLink sets the dashboard link of the endpoint. By default the probed
// URL is linked.
func WithLink(link string) EndpointOption {
	return func(cfg *endpointConfig) error {
		cfg.ep.Link = &config.Link{URL: link}
		return nil
	}
}

// WithoutLink disables the dashboard link of the endpoint, for example
// when the URL carries credentials.
func WithoutLink() EndpointOption {
	return func(cfg *endpointConfig) error {
		cfg.ep.Link = &config.Link{Disabled: true}
		return nil
	}
}

// WithStaleAfter fails the check when the content has not changed for d.
// Zero disables stale detection for this endpoint.
func WithStaleAfter(d time.Duration) EndpointOption {
	return func(cfg *endpointConfig) error {
		if d < 0 {
			return errors.New("stale interval cannot be negative")
		}
		cfg.ep.StaleCheckInterval = config.Dur(d)
		return nil
	}
}

func validateMethod(method string) error {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return nil
	}
	return fmt.Errorf("unsupported HTTP method %q", method)
}

// pairs adds key-value pairs to m, allocating it if needed.
func pairs(option string, m map[string]string, keyValues []string) (map[string]string, error) {
	if len(keyValues)%2 != 0 {
		return nil, fmt.Errorf("%s requires an even number of arguments (key-value pairs)", option)
	}
	if m == nil {
		m = make(map[string]string, len(keyValues)/2)
	}
	for i := 0; i < len(keyValues); i += 2 {
		m[keyValues[i]] = keyValues[i+1]
	}
	return m, nil
}

func substringMatcher(option string, values []string) (config.Matcher, error) {
	switch len(values) {
	case 0:
		return config.Matcher{}, fmt.Errorf("%s requires at least one value", option)
	case 1:
		return config.Matcher{Contains: values[0]}, nil
	}
	return config.Matcher{AnyOf: append([]string(nil), values...)}, nil
}

// overlaySettings copies the non-nil fields of src onto dst.
func overlaySettings(dst *config.Settings, src config.Settings) {
	// pointers are replaced, never written through, so layers stay independent
	_ = mergo.Merge(dst, src, mergo.WithOverride, mergo.WithoutDereference)
}
