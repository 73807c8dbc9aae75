package pulsewatch

import (
	"errors"
	"time"

	"github.com/jpalmerr/pulsewatch/config"
)

// Site groups endpoints that share settings and a concurrency limit.
// Each site is processed concurrently with the others.
type Site struct {
	cfg    config.SiteConfig
	checks []namedCheck
}

// ID returns the explicit site id, or "" when it is derived from the name.
func (s Site) ID() string {
	return s.cfg.ID
}

// Name returns the site's display name.
func (s Site) Name() string {
	return s.cfg.Name
}

// Endpoints returns the number of explicit endpoints, excluding grids.
func (s Site) Endpoints() int {
	return len(s.cfg.Endpoints)
}

// siteConfig holds mutable state during site construction.
type siteConfig struct {
	site   config.SiteConfig
	checks []namedCheck
}

// SiteOption configures a [Site] during construction.
type SiteOption func(*siteConfig) error

// NewSite creates a [Site] with the given name and options.
//
// Returns an error if both name and id are empty or no endpoint or grid is
// added.
//
// Example:
//
//	site, err := pulsewatch.NewSite("Indexer",
//	    pulsewatch.WithEndpoints(health, blocks),
//	    pulsewatch.WithSiteConcurrency(2),
//	)
func NewSite(name string, opts ...SiteOption) (Site, error) {
	cfg := &siteConfig{site: config.SiteConfig{Name: name}}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Site{}, err
		}
	}

	if cfg.site.Name == "" && cfg.site.ID == "" {
		return Site{}, errors.New("site name cannot be empty")
	}
	if len(cfg.site.Endpoints) == 0 && len(cfg.site.Grids) == 0 {
		return Site{}, errors.New("at least one endpoint or grid is required")
	}

	return Site{cfg: cfg.site, checks: cfg.checks}, nil
}

// WithSiteID sets the site id instead of deriving it from the name.
func WithSiteID(id string) SiteOption {
	return func(cfg *siteConfig) error {
		if id == "" {
			return errors.New("site id cannot be empty")
		}
		cfg.site.ID = id
		return nil
	}
}

// WithEndpoints adds endpoints to the site in order.
func WithEndpoints(endpoints ...Endpoint) SiteOption {
	return func(cfg *siteConfig) error {
		for _, ep := range endpoints {
			cfg.site.Endpoints = append(cfg.site.Endpoints, cloneEndpointConfig(ep.cfg))
			cfg.checks = append(cfg.checks, ep.checks...)
		}
		return nil
	}
}

// WithGrids adds grids to the site. Grid endpoints follow the explicit
// endpoints.
func WithGrids(grids ...Grid) SiteOption {
	return func(cfg *siteConfig) error {
		for _, g := range grids {
			cfg.site.Grids = append(cfg.site.Grids, g.Config())
			cfg.checks = append(cfg.checks, g.checks...)
		}
		return nil
	}
}

// WithSiteConcurrency limits how many of the site's endpoints are checked
// at once.
//
// Returns an error if n is zero or negative.
func WithSiteConcurrency(n int) SiteOption {
	return func(cfg *siteConfig) error {
		if n <= 0 {
			return errors.New("concurrency must be positive")
		}
		cfg.site.Concurrency = &n
		return nil
	}
}

// WithSiteInterval sets the probe interval of every endpoint in the site
// that does not set its own.
func WithSiteInterval(d time.Duration) SiteOption {
	return func(cfg *siteConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		cfg.site.Interval = config.Dur(d)
		return nil
	}
}

// WithSiteSettings overrides global settings for the site. Only the non-nil
// fields of s apply.
func WithSiteSettings(s config.Settings) SiteOption {
	return func(cfg *siteConfig) error {
		overlaySettings(&cfg.site.Settings, s)
		return nil
	}
}
