package checker

import (
	"regexp"
	"strings"
)

// Predicate tests response content for must_find and must_not_find.
type Predicate interface {
	Match(content string) bool
}

// PredicateFunc adapts a function to [Predicate].
type PredicateFunc func(content string) bool

// Match calls f(content).
func (f PredicateFunc) Match(content string) bool { return f(content) }

// Contains matches content containing s.
func Contains(s string) Predicate {
	return PredicateFunc(func(content string) bool {
		return strings.Contains(content, s)
	})
}

// AnyOf matches content containing at least one of values.
func AnyOf(values ...string) Predicate {
	return PredicateFunc(func(content string) bool {
		for _, v := range values {
			if strings.Contains(content, v) {
				return true
			}
		}
		return false
	})
}

// Regex matches content the expression finds a match in.
func Regex(re *regexp.Regexp) Predicate {
	return PredicateFunc(re.MatchString)
}
