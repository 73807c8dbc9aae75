package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// Link is the dashboard link of an endpoint.
//
// In YAML it is either a URL string or the boolean false, which disables linking:
//
//	link: https://example.com/docs
//	link: false
type Link struct {
	URL      string
	Disabled bool
}

// UnmarshalYAML implements yaml.Unmarshaler for Link.
func (l *Link) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("link must be a string or false, got %v", node.Kind)
	}
	if node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		if b {
			return fmt.Errorf("link must be a string or false, got true")
		}
		l.Disabled = true
		return nil
	}
	return node.Decode(&l.URL)
}

// Matcher is a content predicate used by must_find and must_not_find.
//
// It supports three YAML forms:
//
//	must_find: ok                      # substring
//	must_find: [ok, healthy]           # any of the substrings
//	must_find: {regex: '"status":\s*"up"'}
//	must_find: {predicate: has-blocks} # Go predicate registered through the SDK
type Matcher struct {
	Contains  string
	AnyOf     []string
	Regex     string
	Predicate string
}

// IsZero reports whether no predicate is configured.
func (m Matcher) IsZero() bool {
	return m.Contains == "" && len(m.AnyOf) == 0 && m.Regex == "" && m.Predicate == ""
}

// UnmarshalYAML implements yaml.Unmarshaler for Matcher.
func (m *Matcher) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&m.Contains)
	case yaml.SequenceNode:
		return node.Decode(&m.AnyOf)
	case yaml.MappingNode:
		// temporary struct to avoid infinite recursion
		var raw struct {
			Contains  string   `yaml:"contains"`
			AnyOf     []string `yaml:"any_of"`
			Regex     string   `yaml:"regex"`
			Predicate string   `yaml:"predicate"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		m.Contains, m.AnyOf, m.Regex, m.Predicate = raw.Contains, raw.AnyOf, raw.Regex, raw.Predicate
		return nil
	}
	return fmt.Errorf("matcher must be a string, list or object, got %v", node.Kind)
}

func (m Matcher) validate(where, field string) error {
	set := 0
	if m.Contains != "" {
		set++
	}
	if len(m.AnyOf) > 0 {
		set++
	}
	if m.Regex != "" {
		set++
		if _, err := regexp.Compile(m.Regex); err != nil {
			return fmt.Errorf("%s: %s: invalid regex: %w", where, field, err)
		}
	}
	if m.Predicate != "" {
		set++
	}
	if set > 1 {
		return fmt.Errorf("%s: %s: only one of contains, any_of, regex or predicate may be set", where, field)
	}
	return nil
}

func validateMatchers(where string, mustFind, mustNotFind Matcher) error {
	if err := mustFind.validate(where, "must_find"); err != nil {
		return err
	}
	return mustNotFind.validate(where, "must_not_find")
}

// StatusSet lists the accepted HTTP status codes. Empty means any 2xx.
//
//	valid_status: 204
//	valid_status: [200, 301]
type StatusSet []int

// UnmarshalYAML implements yaml.Unmarshaler for StatusSet.
func (s *StatusSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var code int
		if err := node.Decode(&code); err != nil {
			return err
		}
		*s = StatusSet{code}
		return nil
	case yaml.SequenceNode:
		var codes []int
		if err := node.Decode(&codes); err != nil {
			return err
		}
		*s = codes
		return nil
	}
	return fmt.Errorf("valid_status must be a status code or a list, got %v", node.Kind)
}

func (s StatusSet) validate(where string) error {
	for _, code := range s {
		if code < 100 || code > 599 {
			return fmt.Errorf("%s: valid_status: invalid HTTP status %d", where, code)
		}
	}
	return nil
}

// Check types accepted by [CheckConfig].
const (
	CheckJQ   = "jq"
	CheckJSON = "json"
	CheckFunc = "func"
)

// CheckConfig selects a custom check.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	check: 'jq:.blocks | length > 0'
//	check: json:result
//	check: coins-match      # Go check registered through the SDK
//
// Structured object:
//
//	check:
//	  type: json
//	  path: data.status
//	  equals: [ok, healthy]
type CheckConfig struct {
	// Type is "jq", "json" or "func".
	Type string

	// Expr is the jq expression (type jq). The check passes when it yields a truthy value.
	Expr string

	// Path is the dot-separated JSON path (type json).
	Path string

	// Equals lists accepted values for Path. Empty means any non-null, non-false value.
	Equals []string

	// Name is the registered check name (type func).
	Name string
}

// IsZero reports whether no custom check is configured.
func (c CheckConfig) IsZero() bool {
	return c.Type == ""
}

// UnmarshalYAML implements yaml.Unmarshaler for CheckConfig.
func (c *CheckConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return c.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type   string   `yaml:"type"`
			Expr   string   `yaml:"expr"`
			Path   string   `yaml:"path"`
			Equals []string `yaml:"equals"`
			Name   string   `yaml:"name"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		c.Type, c.Expr, c.Path, c.Equals, c.Name = raw.Type, raw.Expr, raw.Path, raw.Equals, raw.Name
		if c.Type == "" && c.Name != "" {
			c.Type = CheckFunc
		}
		return nil
	}

	return fmt.Errorf("check must be a string or object, got %v", node.Kind)
}

// parseShorthand parses check shorthand syntax.
//
// Supported formats:
//   - "jq:expr" → jq expression must yield a truthy value
//   - "json:path" → JSON field must be present and truthy
//   - "name" → registered Go check
func (c *CheckConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if kind, value, ok := strings.Cut(s, ":"); ok {
		switch kind {
		case CheckJQ:
			c.Type, c.Expr = CheckJQ, value
		case CheckJSON:
			c.Type, c.Path = CheckJSON, value
		default:
			return fmt.Errorf("unknown check type %q", kind)
		}
		return nil
	}

	c.Type, c.Name = CheckFunc, s
	return nil
}

func (c CheckConfig) validate(where string) error {
	switch c.Type {
	case "":
	case CheckJQ:
		if c.Expr == "" {
			return fmt.Errorf("%s: check type 'jq' requires an expression", where)
		}
		if _, err := gojq.Parse(c.Expr); err != nil {
			return fmt.Errorf("%s: check: invalid jq expression: %w", where, err)
		}
	case CheckJSON:
		if c.Path == "" {
			return fmt.Errorf("%s: check type 'json' requires a path", where)
		}
	case CheckFunc:
		if c.Name == "" {
			return fmt.Errorf("%s: check type 'func' requires a name", where)
		}
	default:
		return fmt.Errorf("%s: unknown check type %q", where, c.Type)
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("url must have a scheme (http:// or https://)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	return nil
}
