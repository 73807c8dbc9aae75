package checker

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/jpalmerr/pulsewatch/config"
)

// Registry holds the Go checks and predicates that configuration refers to
// by name. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	checks     map[string]CustomCheck
	predicates map[string]Predicate
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		checks:     make(map[string]CustomCheck),
		predicates: make(map[string]Predicate),
	}
}

// RegisterCheck makes check available as `check: name`.
func (r *Registry) RegisterCheck(name string, check CustomCheck) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// RegisterPredicate makes p available as `must_find: {predicate: name}`.
func (r *Registry) RegisterPredicate(name string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = p
}

// Endpoint is a compiled probe definition.
type Endpoint struct {
	// URL is empty for check-only endpoints.
	URL     string
	Request config.RequestConfig

	// MustFind and MustNotFind are nil when unset.
	MustFind    Predicate
	MustNotFind Predicate

	// ValidStatus lists accepted status codes; empty accepts any 2xx.
	ValidStatus []int

	// Check is nil when no custom check is configured.
	Check CustomCheck

	// ConfigErr is a configuration problem found while compiling. It is
	// reported as the endpoint's check failure.
	ConfigErr error
}

// Compile turns an endpoint's configuration into an [Endpoint]. Problems
// are recorded in ConfigErr rather than returned, so that a single broken
// endpoint is reported on the dashboard instead of halting the cycle.
func (r *Registry) Compile(ec config.EndpointConfig) Endpoint {
	ep := Endpoint{
		URL:         ec.URL,
		Request:     ec.Request,
		ValidStatus: ec.ValidStatus,
	}

	var err error
	if ep.MustFind, err = r.CompileMatcher(ec.MustFind); err != nil {
		ep.ConfigErr = fmt.Errorf("must_find: %w", err)
		return ep
	}
	if ep.MustNotFind, err = r.CompileMatcher(ec.MustNotFind); err != nil {
		ep.ConfigErr = fmt.Errorf("must_not_find: %w", err)
		return ep
	}
	if ep.Check, err = r.CompileCheck(ec.Check); err != nil {
		ep.ConfigErr = fmt.Errorf("check: %w", err)
		return ep
	}
	return ep
}

// CompileMatcher returns the predicate for m, or nil when m is empty.
func (r *Registry) CompileMatcher(m config.Matcher) (Predicate, error) {
	switch {
	case m.Contains != "":
		return Contains(m.Contains), nil
	case len(m.AnyOf) > 0:
		return AnyOf(m.AnyOf...), nil
	case m.Regex != "":
		re, err := regexp.Compile(m.Regex)
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
		return Regex(re), nil
	case m.Predicate != "":
		r.mu.RLock()
		p, ok := r.predicates[m.Predicate]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("predicate %q is not registered", m.Predicate)
		}
		return p, nil
	}
	return nil, nil
}

// CompileCheck returns the custom check for c, or nil when c is empty.
func (r *Registry) CompileCheck(c config.CheckConfig) (CustomCheck, error) {
	switch c.Type {
	case "":
		return nil, nil
	case config.CheckJQ:
		check, err := NewJQCheck(c.Expr)
		if err != nil {
			return nil, err
		}
		return check, nil
	case config.CheckJSON:
		return JSONFieldCheck{Path: c.Path, Equals: c.Equals}, nil
	case config.CheckFunc:
		r.mu.RLock()
		check, ok := r.checks[c.Name]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("check %q is not registered", c.Name)
		}
		return check, nil
	}
	return nil, fmt.Errorf("unknown check type %q", c.Type)
}
