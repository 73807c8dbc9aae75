package pulsewatch

import (
	"context"
	"regexp"
	"strings"

	"github.com/jpalmerr/pulsewatch/internal/checker"
)

// CheckInput is what a [CustomCheck] receives: the raw content, the content
// decoded as JSON (nil when it is not JSON), response metadata, the endpoint
// being checked, the in-progress log entry and the prior history.
type CheckInput = checker.Input

// CustomCheck is a success criterion evaluated after the status code and
// content predicates. A check passes by returning true; false fails it with
// a generic message and an error fails it with the error's text.
//
// Checks are called within a panic recovery boundary. A panicking check
// fails the endpoint with an error carrying a correlation id; the stack
// trace is logged server-side.
type CustomCheck = checker.CustomCheck

// CheckFunc adapts a function to [CustomCheck].
//
// Example:
//
//	positive := pulsewatch.CheckFunc(func(ctx context.Context, in *pulsewatch.CheckInput) (bool, error) {
//	    n, ok := in.JSON.(map[string]any)["result"].(float64)
//	    return ok && n > 0, nil
//	})
type CheckFunc = checker.Func

// Predicate matches response content for must_find and must_not_find.
type Predicate = checker.Predicate

// PredicateFunc adapts a function to [Predicate].
type PredicateFunc = checker.PredicateFunc

// JSONFieldCheck returns a [CustomCheck] that passes when the value at a
// dot-separated path is one of equals. With no equals, any value other than
// null or false passes. Numeric parts index into arrays.
//
// Example:
//
//	// For response: {"data": {"status": "healthy"}}
//	check := pulsewatch.JSONFieldCheck("data.status", "ok", "healthy")
func JSONFieldCheck(path string, equals ...string) CustomCheck {
	return checker.JSONFieldCheck{Path: path, Equals: equals}
}

// JQCheck returns a [CustomCheck] that runs a jq expression against the
// JSON content and passes when the first result is neither null nor false.
//
// Returns an error if the expression does not compile.
//
// Example:
//
//	check, err := pulsewatch.JQCheck(`.protocols | length > 10`)
func JQCheck(expr string) (CustomCheck, error) {
	check, err := checker.NewJQCheck(expr)
	if err != nil {
		return nil, err
	}
	return check, nil
}

// MustJQCheck is like [JQCheck] but panics if the expression is invalid.
func MustJQCheck(expr string) CustomCheck {
	check, err := JQCheck(expr)
	if err != nil {
		panic("pulsewatch: " + err.Error())
	}
	return check
}

// AllOf returns a [CustomCheck] that runs checks in order and fails with
// the first failure. It passes when every check passes.
//
// Example:
//
//	check := pulsewatch.AllOf(
//	    pulsewatch.JSONFieldCheck("status", "ok"),
//	    pulsewatch.MustJQCheck(`.lag < 100`),
//	)
func AllOf(checks ...CustomCheck) CustomCheck {
	return CheckFunc(func(ctx context.Context, in *CheckInput) (bool, error) {
		for _, c := range checks {
			ok, err := c.Check(ctx, in)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	})
}

// Contains returns a [Predicate] matching content that contains s.
func Contains(s string) Predicate {
	return checker.Contains(s)
}

// AnyOf returns a [Predicate] matching content that contains any of values.
func AnyOf(values ...string) Predicate {
	return checker.AnyOf(values...)
}

// ContainsFold is like [Contains] but case-insensitive.
func ContainsFold(s string) Predicate {
	lower := strings.ToLower(s)
	return PredicateFunc(func(content string) bool {
		return strings.Contains(strings.ToLower(content), lower)
	})
}

// Regex returns a [Predicate] matching content against pattern.
//
// Returns an error if the pattern is invalid.
func Regex(pattern string) (Predicate, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return checker.Regex(re), nil
}

// MustRegex is like [Regex] but panics if the pattern is invalid.
//
// Use this for compile-time constant patterns where you want to fail fast.
func MustRegex(pattern string) Predicate {
	p, err := Regex(pattern)
	if err != nil {
		panic("pulsewatch: invalid regex pattern: " + err.Error())
	}
	return p
}
