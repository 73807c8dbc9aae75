package checker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/jpalmerr/pulsewatch/internal/state"
)

// Input is what a [CustomCheck] sees.
type Input struct {
	// Content is the raw response body, empty when the endpoint has no URL.
	Content string

	// JSON is Content decoded as JSON, or nil when it is not valid JSON.
	JSON any

	// Response is nil when the endpoint has no URL.
	Response *Response

	// Ref identifies the site and endpoint being checked.
	Ref state.Ref

	// URL is the probed URL, empty for check-only endpoints.
	URL string

	// Entry is the in-progress log entry. Checks may set Entry.ContentHash,
	// for example with [HashContent], to enable stale detection on
	// endpoints without a URL.
	Entry *state.Entry

	// Logs is the endpoint's prior history, oldest first.
	Logs []state.Entry
}

// CustomCheck is a pluggable success criterion evaluated after the status
// and content predicates.
//
// A check passes by returning true. Returning false fails the check with a
// generic message; returning an error fails it with the error's text.
type CustomCheck interface {
	Check(ctx context.Context, in *Input) (bool, error)
}

// Func is a [CustomCheck] implemented by a Go callback.
type Func func(ctx context.Context, in *Input) (bool, error)

// Check calls f.
func (f Func) Check(ctx context.Context, in *Input) (bool, error) {
	return f(ctx, in)
}

// errNotJSON is returned by JSON based checks when the content does not parse.
var errNotJSON = errors.New("response is not valid JSON")

// JQCheck passes when a jq expression, run against the parsed JSON content,
// yields a value other than null or false.
type JQCheck struct {
	expr string
	code *gojq.Code
}

// NewJQCheck compiles expr.
func NewJQCheck(expr string) (*JQCheck, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	return &JQCheck{expr: expr, code: code}, nil
}

// Check implements [CustomCheck].
func (c *JQCheck) Check(ctx context.Context, in *Input) (bool, error) {
	if in.JSON == nil {
		return false, errNotJSON
	}

	iter := c.code.RunWithContext(ctx, in.JSON)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, fmt.Errorf("jq %q: %w", c.expr, err)
	}
	return truthy(v), nil
}

// JSONFieldCheck passes when the value at a dot-separated path is one of
// Equals, or, with no Equals, is present and neither null nor false.
//
// For response {"data": {"status": "ok"}}, JSONFieldCheck{Path: "data.status",
// Equals: []string{"ok"}} passes.
type JSONFieldCheck struct {
	Path   string
	Equals []string
}

// Check implements [CustomCheck].
func (c JSONFieldCheck) Check(_ context.Context, in *Input) (bool, error) {
	if in.JSON == nil {
		return false, errNotJSON
	}

	value, found := extractJSONPath(in.JSON, strings.Split(c.Path, "."))
	if !found {
		return false, fmt.Errorf("field %q not found", c.Path)
	}
	if len(c.Equals) == 0 {
		return truthy(value), nil
	}
	if slices.Contains(c.Equals, stringify(value)) {
		return true, nil
	}
	return false, fmt.Errorf("field %q is %q, want one of %v", c.Path, stringify(value), c.Equals)
}

// extractJSONPath walks a JSON structure using dot notation parts. Numeric
// parts index into arrays.
func extractJSONPath(data any, parts []string) (any, bool) {
	current := data

	for _, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}

	return current, true
}

func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return "null"
	default:
		return fmt.Sprint(v)
	}
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		return true
	}
}
