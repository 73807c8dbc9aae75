// Package config provides YAML configuration parsing for pulsewatch.
//
// A configuration describes global defaults, a list of sites and, per site, the
// endpoints to probe. Every resolvable setting may be overridden at the site or
// endpoint level; see [Settings].
//
// Example configuration:
//
//	title: Status
//	host: https://status.example.com
//	interval: 5m
//	webhook_url: ${DISCORD_WEBHOOK_URL:-}
//
//	sites:
//	  - name: Indexer API
//	    concurrency: 2
//	    endpoints:
//	      - name: Health
//	        url: https://indexer.example.com/health
//	        must_find: ok
//	      - name: Protocols
//	        url: https://indexer.example.com/protocols
//	        check: 'jq:length > 10'
//	        stale_check_interval: 2h
//	    grids:
//	      - name: Chain
//	        url_template: "https://indexer.example.com/{{.chain}}/head"
//	        dimensions:
//	          chain: [ethereum, polygon]
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// minInterval is the smallest accepted pulse interval.
const minInterval = 1 * time.Second

// ErrNoSites is returned when a configuration defines nothing to probe.
var ErrNoSites = errors.New("at least one site must be defined")

// Config is the root configuration structure for pulsewatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Pulsewatch" if not set.
	Title string `yaml:"title"`

	// Host is the public status page URL. When set, it is appended to every alert.
	Host string `yaml:"host"`

	// Verbose logs every check result at info level instead of debug.
	Verbose bool `yaml:"verbose"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// Shuffle randomises endpoint order within a site on every cycle.
	// Defaults to true; set to false to probe endpoints in configuration order.
	Shuffle *bool `yaml:"shuffle"`

	// NDataPoints is the number of datapoints the dashboard renders. Display only.
	NDataPoints int `yaml:"n_data_points"`

	// Settings are the global defaults for every resolvable key.
	Settings `yaml:",inline"`

	State    StateConfig    `yaml:"state"`
	Server   ServerConfig   `yaml:"server"`
	Alerting AlertingConfig `yaml:"alerting"`
	Sentry   SentryConfig   `yaml:"sentry"`

	// Sites lists the monitored sites.
	Sites []SiteConfig `yaml:"sites"`
}

// Settings holds every key that resolves endpoint > site > global > default.
//
// Fields are pointers so that an explicit zero is distinguishable from an
// absent value; nil means "not set at this level".
type Settings struct {
	Interval                     *Duration `yaml:"interval,omitempty"`
	ResponseTimeGood             *Duration `yaml:"response_time_good,omitempty"`
	ResponseTimeWarning          *Duration `yaml:"response_time_warning,omitempty"`
	Timeout                      *Duration `yaml:"timeout,omitempty"`
	ConsecutiveErrorsNotify      *int      `yaml:"consecutive_errors_notify,omitempty"`
	ConsecutiveHighLatencyNotify *int      `yaml:"consecutive_high_latency_notify,omitempty"`
	LogsMaxDatapoints            *int      `yaml:"logs_max_datapoints,omitempty"`
	StaleCheckInterval           *Duration `yaml:"stale_check_interval,omitempty"`
	Concurrency                  *int      `yaml:"concurrency,omitempty"`
	WebhookURL                   *string   `yaml:"webhook_url,omitempty"`
	NotifyEvery                  *Duration `yaml:"notify_every,omitempty"`
}

// StateConfig selects where the status document is persisted.
type StateConfig struct {
	// Dir is a local directory used through a file bucket. Defaults to "./data".
	Dir string `yaml:"dir"`

	// BucketURL, when set, takes precedence over Dir (e.g. "mem://", "file:///var/lib/pulsewatch").
	BucketURL string `yaml:"bucket_url"`

	// Key is the object name of the document. Defaults to "status.json".
	Key string `yaml:"key"`

	// ReadableStatus pretty prints the document.
	ReadableStatus bool `yaml:"readable_status"`
}

// ServerConfig configures the optional HTTP surface.
type ServerConfig struct {
	// Port is the HTTP server port. Zero disables the server.
	Port int `yaml:"port"`

	// AllowedOrigins lists CORS origins for the status API. Empty allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AlertingConfig configures extra alert delivery beyond the per-endpoint webhook.
type AlertingConfig struct {
	// TopicURL publishes every alert to a pub/sub topic ("mem://alerts", "nats://alerts", ...).
	TopicURL string `yaml:"topic_url"`

	// WebhookSecret signs webhook bodies with HMAC-SHA256 in the X-Signature header.
	WebhookSecret string `yaml:"webhook_secret"`

	// WebhookHeaders are sent with every webhook request.
	WebhookHeaders map[string]string `yaml:"webhook_headers"`
}

// SentryConfig enables error reporting.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// SiteConfig describes one monitored site.
type SiteConfig struct {
	// ID is derived from Name when empty.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	Settings `yaml:",inline"`

	Endpoints []EndpointConfig `yaml:"endpoints"`

	// Grids expand into additional endpoints via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// EndpointConfig defines a single probe.
type EndpointConfig struct {
	// ID is derived from Name when empty.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// URL is the probed address. Optional when Check is set.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Link overrides the dashboard link. Defaults to URL; false disables it.
	Link *Link `yaml:"link"`

	Request RequestConfig `yaml:"request"`

	MustFind    Matcher   `yaml:"must_find"`
	MustNotFind Matcher   `yaml:"must_not_find"`
	ValidStatus StatusSet `yaml:"valid_status"`

	// Check is an optional custom check evaluated after the content predicates.
	Check CheckConfig `yaml:"check"`

	Settings `yaml:",inline"`
}

// RequestConfig describes the outbound request.
type RequestConfig struct {
	// Method defaults to GET.
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
}

// GridConfig defines an endpoint grid that expands via cartesian product.
//
// For example, with dimensions {env: [prod, staging], svc: [api, web]},
// the grid expands to 4 endpoints: prod/api, prod/web, staging/api, staging/web.
type GridConfig struct {
	// Name is the base name for generated endpoints.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating endpoint URLs.
	// Dimension keys are available as template variables: {{.env}}, {{.svc}}
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	Request     RequestConfig `yaml:"request"`
	MustFind    Matcher       `yaml:"must_find"`
	MustNotFind Matcher       `yaml:"must_not_find"`
	ValidStatus StatusSet     `yaml:"valid_status"`
	Check       CheckConfig   `yaml:"check"`

	Settings `yaml:",inline"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Ptr returns a pointer to v. It keeps Go-built [Settings] literals short.
func Ptr[T any](v T) *T {
	return &v
}

// Dur returns a [Settings] duration value.
func Dur(d time.Duration) *Duration {
	return Ptr(Duration(d))
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, URL templates, header values,
// request bodies, webhook URLs and the host. The result is validated.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate applies defaults, expands environment variables and validates c.
// [Parse] calls it; configurations built in code must call it themselves.
func (c *Config) Validate() error {
	if c.Title == "" {
		c.Title = "Pulsewatch"
	}
	return c.expandAndValidate()
}

// ShuffleEnabled reports whether endpoint order is randomised per cycle.
func (c *Config) ShuffleEnabled() bool {
	return c.Shuffle == nil || *c.Shuffle
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if len(c.Sites) == 0 {
		return ErrNoSites
	}

	host, err := expandEnvVars(c.Host)
	if err != nil {
		return fmt.Errorf("host: %w", err)
	}
	c.Host = host

	if err := c.Settings.expandAndValidate("global"); err != nil {
		return err
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}

	if c.NDataPoints < 0 {
		return fmt.Errorf("n_data_points cannot be negative, got %d", c.NDataPoints)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}

	for i := range c.Sites {
		site := &c.Sites[i]
		where := fmt.Sprintf("sites[%d] (%s)", i, site.label())

		if len(site.Endpoints) == 0 && len(site.Grids) == 0 {
			return fmt.Errorf("%s: at least one endpoint or grid must be defined", where)
		}
		if err := site.Settings.expandAndValidate(where); err != nil {
			return err
		}

		for j := range site.Endpoints {
			ep := &site.Endpoints[j]
			epWhere := fmt.Sprintf("%s endpoints[%d] (%s)", where, j, ep.label())
			if err := ep.expandAndValidate(epWhere); err != nil {
				return err
			}
		}

		for j := range site.Grids {
			g := &site.Grids[j]
			gWhere := fmt.Sprintf("%s grids[%d] (%s)", where, j, g.Name)
			if err := g.expandAndValidate(gWhere); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *SiteConfig) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

func (e *EndpointConfig) label() string {
	if e.Name != "" {
		return e.Name
	}
	if e.ID != "" {
		return e.ID
	}
	return e.URL
}

func (e *EndpointConfig) expandAndValidate(where string) error {
	if e.URL != "" {
		expanded, err := expandEnvVars(e.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", where, err)
		}
		e.URL = expanded
		if err := validateURL(e.URL); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}

	if e.Link != nil && e.Link.URL != "" {
		expanded, err := expandEnvVars(e.Link.URL)
		if err != nil {
			return fmt.Errorf("%s: link: %w", where, err)
		}
		e.Link.URL = expanded
	}

	if err := e.Request.expandAndValidate(where); err != nil {
		return err
	}
	if err := validateMatchers(where, e.MustFind, e.MustNotFind); err != nil {
		return err
	}
	if err := e.ValidStatus.validate(where); err != nil {
		return err
	}
	if err := e.Check.validate(where); err != nil {
		return err
	}
	return e.Settings.expandAndValidate(where)
}

func (g *GridConfig) expandAndValidate(where string) error {
	if g.Name == "" {
		return fmt.Errorf("%s: name is required", where)
	}
	if g.URLTemplate == "" {
		return fmt.Errorf("%s: url_template is required", where)
	}
	expanded, err := expandEnvVars(g.URLTemplate)
	if err != nil {
		return fmt.Errorf("%s: url_template: %w", where, err)
	}
	g.URLTemplate = expanded

	if err := validateGridTemplate(where, g.URLTemplate, g.Dimensions); err != nil {
		return err
	}

	if err := g.Request.expandAndValidate(where); err != nil {
		return err
	}
	if err := validateMatchers(where, g.MustFind, g.MustNotFind); err != nil {
		return err
	}
	if err := g.ValidStatus.validate(where); err != nil {
		return err
	}
	if err := g.Check.validate(where); err != nil {
		return err
	}
	return g.Settings.expandAndValidate(where)
}

func (r *RequestConfig) expandAndValidate(where string) error {
	switch r.Method {
	case "", "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS":
	default:
		return fmt.Errorf("%s: unsupported request method %q", where, r.Method)
	}

	for k, v := range r.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s: headers[%s]: %w", where, k, err)
		}
		r.Headers[k] = expanded
	}

	body, err := expandEnvVars(r.Body)
	if err != nil {
		return fmt.Errorf("%s: body: %w", where, err)
	}
	r.Body = body
	return nil
}

func (s *Settings) expandAndValidate(where string) error {
	if s.Interval != nil && s.Interval.Duration() < minInterval {
		return fmt.Errorf("%s: interval must be at least %s, got %s", where, minInterval, s.Interval.Duration())
	}

	for _, d := range []struct {
		name  string
		value *Duration
	}{
		{"response_time_good", s.ResponseTimeGood},
		{"response_time_warning", s.ResponseTimeWarning},
		{"stale_check_interval", s.StaleCheckInterval},
		{"notify_every", s.NotifyEvery},
	} {
		if d.value != nil && d.value.Duration() < 0 {
			return fmt.Errorf("%s: %s cannot be negative, got %s", where, d.name, d.value.Duration())
		}
	}

	if s.Timeout != nil && s.Timeout.Duration() <= 0 {
		return fmt.Errorf("%s: timeout must be positive, got %s", where, s.Timeout.Duration())
	}

	for _, n := range []struct {
		name  string
		value *int
	}{
		{"consecutive_errors_notify", s.ConsecutiveErrorsNotify},
		{"consecutive_high_latency_notify", s.ConsecutiveHighLatencyNotify},
		{"logs_max_datapoints", s.LogsMaxDatapoints},
		{"concurrency", s.Concurrency},
	} {
		if n.value != nil && *n.value < 1 {
			return fmt.Errorf("%s: %s must be at least 1, got %d", where, n.name, *n.value)
		}
	}

	if s.WebhookURL != nil {
		expanded, err := expandEnvVars(*s.WebhookURL)
		if err != nil {
			return fmt.Errorf("%s: webhook_url: %w", where, err)
		}
		s.WebhookURL = &expanded
		if expanded != "" {
			if err := validateURL(expanded); err != nil {
				return fmt.Errorf("%s: webhook_url: %w", where, err)
			}
		}
	}

	return nil
}
