// Package utils contains general helper functions used across contree.
package utils

import (
	"path/filepath"
	"strings"
)

// File and directory names with special meaning during traversal.
const (
	// IgnoreFileName is the generic ignore file honored alongside .gitignore.
	IgnoreFileName = ".ignore"
	// GitIgnoreFileName is the name of the Git ignore file.
	GitIgnoreFileName = ".gitignore"
	// ContreeIgnoreFileName is the tool-specific ignore file discovered at any directory level.
	ContreeIgnoreFileName = ".contreeignore"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
	// ConfigFileName is the local configuration file looked up in the working directory.
	ConfigFileName = ".contree.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home holding the global configuration.
	GlobalConfigDirectoryName = ".contree"
	// GlobalConfigFileName is the configuration file inside GlobalConfigDirectoryName.
	GlobalConfigFileName = "config.yaml"
)

const pathSegmentSeparator = "/"

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, exists := encounteredPatterns[pattern]; !exists {
			encounteredPatterns[pattern] = struct{}{}
			result = append(result, pattern)
		}
	}
	return result
}


// RelativePathOrSelf calculates the slash-separated relative path from root to fullPath.
// Returns the cleaned fullPath if relative calculation fails.
// Returns "." if fullPath and root resolve to the same directory.
func RelativePathOrSelf(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return cleanPath
	}
	cleanAbsoluteRoot := filepath.Clean(absoluteRoot)

	if cleanPath == cleanAbsoluteRoot {
		return "."
	}

	relativePath, relErr := filepath.Rel(cleanAbsoluteRoot, cleanPath)
	if relErr != nil {
		return cleanPath
	}
	return filepath.ToSlash(relativePath)
}

// PathDepth returns how many directories separate a slash-separated relative
// path from the root: "a.txt" is 0, "dir/a.txt" is 1.
func PathDepth(relativePath string) int {
	if relativePath == "" || relativePath == "." {
		return 0
	}
	return strings.Count(strings.Trim(relativePath, pathSegmentSeparator), pathSegmentSeparator)
}

// IsHiddenName reports whether a single path segment names a dot file or dot directory.
func IsHiddenName(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".") && name != ".."
}

// SplitCommaSeparated trims each comma-separated element and drops empty ones.
func SplitCommaSeparated(values []string) []string {
	var result []string
	for _, value := range values {
		for _, element := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(element)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
