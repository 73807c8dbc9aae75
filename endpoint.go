package pulsewatch

import (
	"errors"
	"maps"
	"net/url"
	"time"

	"github.com/jpalmerr/pulsewatch/config"
)

// Endpoint is a probe definition: a URL to request, a custom check, or
// both.
//
// Endpoint is immutable after creation via [NewEndpoint]. Getters return
// copies of mutable data, so an endpoint cannot be modified after
// construction.
type Endpoint struct {
	cfg    config.EndpointConfig
	checks []namedCheck
}

// namedCheck is a Go check or predicate that an endpoint or grid refers to
// by name and that must be registered before the first cycle.
type namedCheck struct {
	name      string
	check     CustomCheck
	predicate Predicate
}

// ID returns the explicit endpoint id, or "" when the id is derived from
// the name.
func (e Endpoint) ID() string {
	return e.cfg.ID
}

// Name returns the endpoint's display name.
func (e Endpoint) Name() string {
	return e.cfg.Name
}

// URL returns the probed URL, or "" for check-only endpoints.
func (e Endpoint) URL() string {
	return e.cfg.URL
}

// Headers returns a copy of the request headers. Returns nil if none are set.
func (e Endpoint) Headers() map[string]string {
	return maps.Clone(e.cfg.Request.Headers)
}

// Method returns the request method. Returns "" when GET is used.
func (e Endpoint) Method() string {
	return e.cfg.Request.Method
}

// Timeout returns the endpoint's request timeout, or 0 when the site or
// global timeout applies.
func (e Endpoint) Timeout() time.Duration {
	if e.cfg.Timeout == nil {
		return 0
	}
	return e.cfg.Timeout.Duration()
}

// Interval returns the endpoint's probe interval, or 0 when the site or
// global interval applies.
func (e Endpoint) Interval() time.Duration {
	if e.cfg.Interval == nil {
		return 0
	}
	return e.cfg.Interval.Duration()
}

// Config returns the configuration the endpoint compiles to.
func (e Endpoint) Config() config.EndpointConfig {
	return cloneEndpointConfig(e.cfg)
}

// NewEndpoint creates an [Endpoint] with the given name, URL, and options.
//
// The name is displayed on the dashboard; the endpoint id is derived from
// it unless [WithID] is given. rawURL must have an http or https scheme. It
// may be empty when a custom check is configured with [WithCustomCheck],
// [WithJQ] or [WithJSONField], in which case only the check runs.
//
// Returns an error if both name and id are empty, the URL is invalid, or an
// option fails.
//
// Example:
//
//	ep, err := pulsewatch.NewEndpoint("API Health", "https://api.example.com/health",
//	    pulsewatch.WithMustFind("ok"),
//	    pulsewatch.WithTimeout(5 * time.Second),
//	)
func NewEndpoint(name, rawURL string, opts ...EndpointOption) (Endpoint, error) {
	cfg := &endpointConfig{
		ep: config.EndpointConfig{Name: name, URL: rawURL},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Endpoint{}, err
		}
	}

	if cfg.ep.Name == "" && cfg.ep.ID == "" {
		return Endpoint{}, errors.New("endpoint name cannot be empty")
	}

	if rawURL == "" {
		if cfg.ep.Check.IsZero() {
			return Endpoint{}, errors.New("endpoint requires a URL or a custom check")
		}
	} else if err := validateURL(rawURL); err != nil {
		return Endpoint{}, err
	}

	return Endpoint{cfg: cfg.ep, checks: cfg.checks}, nil
}

func validateURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("URL must have a scheme (http:// or https://)")
	}
	return nil
}

// cloneEndpointConfig copies the maps and slices of ec.
func cloneEndpointConfig(ec config.EndpointConfig) config.EndpointConfig {
	ec.Request.Headers = maps.Clone(ec.Request.Headers)
	ec.ValidStatus = append(config.StatusSet(nil), ec.ValidStatus...)
	ec.MustFind.AnyOf = append([]string(nil), ec.MustFind.AnyOf...)
	ec.MustNotFind.AnyOf = append([]string(nil), ec.MustNotFind.AnyOf...)
	ec.Check.Equals = append([]string(nil), ec.Check.Equals...)
	if ec.Link != nil {
		link := *ec.Link
		ec.Link = &link
	}
	return ec
}
