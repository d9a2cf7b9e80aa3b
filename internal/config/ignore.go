// Package config loads ignore files and application configuration.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/pathrules"

	"github.com/temirov/contree/internal/utils"
)

const (
	commentPrefix        = "#"
	pathSegmentSeparator = "/"
	currentDirectoryBase = "."

	loadIgnoreFileErrorFormat    = "loading %s from %s: %w"
	compileIgnoreRulesFormat     = "compiling ignore rules for %q: %w"
	closeIgnoreFileWarning       = "failed to close %s: %v"
	exclusionPatternsDescription = "exclusion patterns"
)

// IgnoreOptions selects which ignore sources a Matcher honors.
type IgnoreOptions struct {
	UseGitignore      bool
	UseIgnoreFile     bool
	ExclusionPatterns []string
}

// ignoreScope is a compiled rule set that applies beneath base.
type ignoreScope struct {
	base  string
	rules *pathrules.Matcher
}

// Matcher evaluates gitignore-style rules collected from every directory
// visited during a walk. Scopes are consulted in load order and the last
// scope with a matching rule decides.
type Matcher struct {
	options IgnoreOptions
	scopes  []ignoreScope
}

// NewMatcher returns a matcher seeded with the root-level exclusion patterns.
func NewMatcher(options IgnoreOptions) (*Matcher, error) {
	matcher := &Matcher{options: options}
	if addError := matcher.AddPatterns("", utils.DeduplicatePatterns(options.ExclusionPatterns)); addError != nil {
		return nil, fmt.Errorf(loadIgnoreFileErrorFormat, exclusionPatternsDescription, currentDirectoryBase, addError)
	}
	return matcher, nil
}

// AddPatterns compiles patterns into a scope rooted at base.
func (matcher *Matcher) AddPatterns(base string, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}
	normalizedBase := normalizeRelativePath(base)
	rules, parseError := pathrules.ParseRules(strings.Join(patterns, "\n"))
	if parseError != nil {
		return fmt.Errorf(compileIgnoreRulesFormat, normalizedBase, parseError)
	}
	compiled, compileError := pathrules.NewMatcher(rules)
	if compileError != nil {
		return fmt.Errorf(compileIgnoreRulesFormat, normalizedBase, compileError)
	}
	matcher.scopes = append(matcher.scopes, ignoreScope{base: normalizedBase, rules: compiled})
	return nil
}

// IgnoreFileNames lists the ignore files read in every directory, in precedence order.
func (matcher *Matcher) IgnoreFileNames() []string {
	var names []string
	if matcher.options.UseGitignore {
		names = append(names, utils.GitIgnoreFileName)
	}
	if matcher.options.UseIgnoreFile {
		names = append(names, utils.IgnoreFileName)
	}
	return append(names, utils.ContreeIgnoreFileName)
}

// LoadDirectory reads the ignore files held by absoluteDirectory, whose path
// relative to the walk root is relativeDirectory.
func (matcher *Matcher) LoadDirectory(absoluteDirectory string, relativeDirectory string) error {
	for _, ignoreFileName := range matcher.IgnoreFileNames() {
		patterns, loadError := LoadIgnoreFilePatterns(filepath.Join(absoluteDirectory, ignoreFileName))
		if loadError == nil {
			loadError = matcher.AddPatterns(relativeDirectory, patterns)
		}
		if loadError != nil {
			return fmt.Errorf(loadIgnoreFileErrorFormat, ignoreFileName, absoluteDirectory, loadError)
		}
	}
	return nil
}

// Match reports whether the slash-separated relativePath is ignored.
func (matcher *Matcher) Match(relativePath string, isDirectory bool) bool {
	normalizedPath := normalizeRelativePath(relativePath)
	ignored := false
	for _, scope := range matcher.scopes {
		candidate, applies := scope.relativePath(normalizedPath)
		if !applies {
			continue
		}
		switch scope.rules.Decide(candidate, isDirectory) {
		case pathrules.DecisionExclude:
			ignored = true
		case pathrules.DecisionInclude:
			ignored = false
		}
	}
	return ignored
}

func (scope ignoreScope) relativePath(normalizedPath string) (string, bool) {
	if scope.base == "" {
		return normalizedPath, true
	}
	prefix := scope.base + pathSegmentSeparator
	if !strings.HasPrefix(normalizedPath, prefix) {
		return "", false
	}
	return strings.TrimPrefix(normalizedPath, prefix), true
}

func normalizeRelativePath(relativePath string) string {
	normalized := strings.Trim(filepath.ToSlash(relativePath), pathSegmentSeparator)
	if normalized == currentDirectoryBase {
		return ""
	}
	return normalized
}

// IsServiceFile reports whether name is one of the ignore files themselves,
// which are never emitted as context.
func IsServiceFile(name string) bool {
	switch name {
	case utils.GitIgnoreFileName, utils.IgnoreFileName, utils.ContreeIgnoreFileName:
		return true
	default:
		return false
	}
}

// LoadIgnoreFilePatterns reads an ignore file and returns its non-empty,
// non-comment lines. Backslash escapes are left for the rule parser. A
// missing file yields no patterns.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer func() {
		if closeError := fileHandle.Close(); closeError != nil {
			fmt.Fprintf(os.Stderr, utils.WarningPrefix+closeIgnoreFileWarning+"\n", ignoreFilePath, closeError)
		}
	}()

	var patterns []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmedLine := strings.TrimSpace(line)
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		patterns = append(patterns, trimmedLine)
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return patterns, nil
}
