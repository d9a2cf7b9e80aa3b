package walker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	regexDelimiter        = "/"
	caseInsensitivePrefix = "(?i)"
)

// ErrInvalidPattern reports a grep pattern that does not compile.
var ErrInvalidPattern = errors.New("invalid grep pattern")

// Pattern filters files by content. A pattern wrapped in slashes is a raw
// regular expression; anything else is a case-insensitive substring.
type Pattern struct {
	source     string
	expression *regexp.Regexp
}

// CompilePattern parses a grep argument. An empty argument yields a nil
// pattern, which matches everything.
func CompilePattern(raw string) (*Pattern, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	expressionSource := caseInsensitivePrefix + regexp.QuoteMeta(trimmed)
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, regexDelimiter) && strings.HasSuffix(trimmed, regexDelimiter) {
		expressionSource = trimmed[1 : len(trimmed)-1]
	}
	expression, compileError := regexp.Compile(expressionSource)
	if compileError != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, trimmed, compileError)
	}
	return &Pattern{source: trimmed, expression: expression}, nil
}

// MatchString reports whether content matches. A nil pattern matches everything.
func (pattern *Pattern) MatchString(content string) bool {
	if pattern == nil {
		return true
	}
	return pattern.expression.MatchString(content)
}

// String returns the pattern as given on the command line.
func (pattern *Pattern) String() string {
	if pattern == nil {
		return ""
	}
	return pattern.source
}
