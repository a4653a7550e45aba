// Package matcher matches strings against glob or regular expression
// patterns. The server uses it for CORS origin allow lists such as
// "https://*.example.org".
package matcher

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// PatternType selects how a pattern is interpreted.
type PatternType int

const (
	// Glob uses shell-style patterns (*, ?, []). A * does not cross "/".
	Glob PatternType = iota
	// Regex uses an anchored regular expression.
	Regex
	// Auto treats patterns wrapped in ^...$ as Regex and everything else as Glob.
	Auto
)

// String returns the pattern type name.
func (pt PatternType) String() string {
	switch pt {
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("PatternType(%d)", int(pt))
	}
}

// Matcher reports whether an input matches a pattern.
type Matcher interface {
	Match(input string) bool
	Pattern() string
	Type() PatternType
}

type matcher struct {
	pattern     string
	patternType PatternType
	regex       *regexp.Regexp
	literal     bool
}

// New compiles pattern. Auto is resolved to Glob or Regex.
func New(patternType PatternType, pattern string) (Matcher, error) {
	if patternType == Auto {
		patternType = detectPatternType(pattern)
	}

	m := &matcher{pattern: pattern, patternType: patternType}
	switch patternType {
	case Glob:
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		m.literal = !strings.ContainsAny(pattern, `*?[\`)
	case Regex:
		expr := pattern
		if !strings.HasPrefix(expr, "^") {
			expr = "^" + expr
		}
		if !strings.HasSuffix(expr, "$") {
			expr += "$"
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		m.regex = re
	default:
		return nil, fmt.Errorf("unknown pattern type %v", patternType)
	}
	return m, nil
}

// Match implements Matcher.
func (m *matcher) Match(input string) bool {
	switch {
	case m.regex != nil:
		return m.regex.MatchString(input)
	case m.literal:
		return m.pattern == input
	default:
		ok, _ := path.Match(m.pattern, input)
		return ok
	}
}

// Pattern implements Matcher.
func (m *matcher) Pattern() string { return m.pattern }

// Type implements Matcher.
func (m *matcher) Type() PatternType { return m.patternType }

func detectPatternType(pattern string) PatternType {
	if strings.HasPrefix(pattern, "^") && strings.HasSuffix(pattern, "$") {
		return Regex
	}
	return Glob
}

// MultiMatcher matches if any of its patterns match.
type MultiMatcher struct {
	matchers []Matcher
}

// NewMultiMatcher compiles every pattern with patternType.
func NewMultiMatcher(patterns []string, patternType PatternType) (*MultiMatcher, error) {
	mm := &MultiMatcher{matchers: make([]Matcher, 0, len(patterns))}
	for _, p := range patterns {
		m, err := New(patternType, p)
		if err != nil {
			return nil, err
		}
		mm.matchers = append(mm.matchers, m)
	}
	return mm, nil
}

// Match reports whether any pattern matches input. An empty MultiMatcher
// matches nothing.
func (mm *MultiMatcher) Match(input string) bool {
	for _, m := range mm.matchers {
		if m.Match(input) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns.
func (mm *MultiMatcher) Len() int { return len(mm.matchers) }
