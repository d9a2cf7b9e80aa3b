// Package correlate finds dependency source files related to errors found in
// captured build or test output.
package correlate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/contree/internal/types"
)

const (
	warningQueryFailed  = "%s dependency query failed: %v"
	warningCacheMissing = "%s package cache %s not found"
	warningScanFailed   = "failed to scan %s: %v"
)

// Environment carries the package-manager locations resolved by the configuration layer.
type Environment struct {
	CargoHome     string
	GoModCache    string
	HomeDirectory string
}

// Signals are the names and paths extracted from captured output.
type Signals struct {
	References []string
	Symbols    []string
	Macros     []string
}

// Empty reports whether nothing was extracted.
func (signals Signals) Empty() bool {
	return len(signals.References) == 0 && len(signals.Symbols) == 0 && len(signals.Macros) == 0
}

// Ecosystem describes one package-manager layout the correlator understands.
type Ecosystem interface {
	Name() string
	// Marker is the file whose presence identifies a project root.
	Marker() string
	SourceExtension() string
	CacheRoot(environment Environment) string
	Extract(text string) Signals
	// Dependencies returns identifiers of the packages the project depends on.
	Dependencies(ctx context.Context, projectRoot string) ([]string, error)
	// PackageDirectories maps dependency identifiers to directories under cacheRoot.
	PackageDirectories(cacheRoot string, dependencies []string) ([]string, error)
}

// Options configures a Correlator.
type Options struct {
	WorkingDirectory string
	Environment      Environment
	Ecosystems       []Ecosystem
	Logger           *zap.Logger
	Warn             func(message string)
}

// Correlator matches captured output against dependency sources.
type Correlator struct {
	options Options
	logger  *zap.Logger
}

// New constructs a Correlator. Without explicit ecosystems it understands cargo and go.
func New(options Options) *Correlator {
	if len(options.Ecosystems) == 0 {
		options.Ecosystems = DefaultEcosystems(ExecRunner{})
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{options: options, logger: logger}
}

// DefaultEcosystems returns every supported ecosystem; cargo queries through runner.
func DefaultEcosystems(runner CommandRunner) []Ecosystem {
	return []Ecosystem{
		NewCargoEcosystem(runner),
		NewGoEcosystem(nil),
	}
}

// Find returns the dependency files relevant to text, sorted by path.
// Ecosystems whose marker is absent contribute nothing.
func (correlator *Correlator) Find(ctx context.Context, text string) ([]types.DependencyMatch, error) {
	var matches []types.DependencyMatch
	for _, ecosystem := range correlator.options.Ecosystems {
		if contextError := ctx.Err(); contextError != nil {
			return nil, contextError
		}
		ecosystemMatches, findError := correlator.findInEcosystem(ctx, ecosystem, text)
		if findError != nil {
			return nil, findError
		}
		matches = append(matches, ecosystemMatches...)
	}
	return matches, nil
}

func (correlator *Correlator) findInEcosystem(ctx context.Context, ecosystem Ecosystem, text string) ([]types.DependencyMatch, error) {
	logger := correlator.logger.With(zap.String("ecosystem", ecosystem.Name()))
	projectRoot := FindProjectRoot(correlator.options.WorkingDirectory, ecosystem.Marker())
	if projectRoot == "" {
		logger.Debug("project marker not found", zap.String("marker", ecosystem.Marker()))
		return nil, nil
	}
	signals := ecosystem.Extract(text)
	if signals.Empty() {
		logger.Debug("no dependency signals in captured output")
		return nil, nil
	}

	cacheRoot := ecosystem.CacheRoot(correlator.options.Environment)
	if info, statError := os.Stat(cacheRoot); cacheRoot == "" || statError != nil || !info.IsDir() {
		correlator.warn(fmt.Sprintf(warningCacheMissing, ecosystem.Name(), cacheRoot))
		return nil, nil
	}

	reasons := reasonSet{}
	for _, reference := range signals.References {
		if isWithin(cacheRoot, reference) {
			reasons.add(reference, types.ReasonDirectlyReferenced)
		}
	}

	if len(signals.Symbols) > 0 || len(signals.Macros) > 0 {
		logger.Debug("querying dependencies", zap.String("project", projectRoot))
		dependencies, queryError := ecosystem.Dependencies(ctx, projectRoot)
		if queryError != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			correlator.warn(fmt.Sprintf(warningQueryFailed, ecosystem.Name(), queryError))
			return nil, nil
		}
		directories, locateError := ecosystem.PackageDirectories(cacheRoot, dependencies)
		if locateError != nil {
			correlator.warn(fmt.Sprintf(warningScanFailed, cacheRoot, locateError))
			return nil, nil
		}
		for _, directory := range directories {
			logger.Debug("scanning package", zap.String("directory", directory))
			if scanError := scanPackage(ctx, directory, ecosystem.SourceExtension(), signals, reasons); scanError != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				correlator.warn(fmt.Sprintf(warningScanFailed, directory, scanError))
			}
		}
	}
	return reasons.matches(ecosystem.Name()), nil
}

func (correlator *Correlator) warn(message string) {
	if correlator.options.Warn != nil {
		correlator.options.Warn(message)
	}
}

// FindProjectRoot returns the nearest directory at or above start holding
// marker, or an empty string when there is none.
func FindProjectRoot(start string, marker string) string {
	if start == "" {
		start = "."
	}
	current, absoluteError := filepath.Abs(start)
	if absoluteError != nil {
		return ""
	}
	for {
		if info, statError := os.Stat(filepath.Join(current, marker)); statError == nil && !info.IsDir() {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

func scanPackage(ctx context.Context, directory string, extension string, signals Signals, reasons reasonSet) error {
	lowerSymbols := make([]string, len(signals.Symbols))
	for index, symbol := range signals.Symbols {
		lowerSymbols[index] = strings.ToLower(symbol)
	}
	return filepath.WalkDir(directory, func(walkedPath string, entry fs.DirEntry, accessError error) error {
		if accessError != nil {
			return accessError
		}
		if contextError := ctx.Err(); contextError != nil {
			return contextError
		}
		if !entry.Type().IsRegular() || filepath.Ext(walkedPath) != extension {
			return nil
		}
		contentBytes, readError := os.ReadFile(walkedPath)
		if readError != nil {
			contentBytes = nil
		}
		content := string(contentBytes)
		lowerContent := strings.ToLower(content)
		lowerName := strings.ToLower(entry.Name())
		for index, symbol := range signals.Symbols {
			if strings.Contains(lowerName, lowerSymbols[index]) || strings.Contains(lowerContent, lowerSymbols[index]) {
				reasons.add(walkedPath, fmt.Sprintf(types.ReasonTypeFormat, symbol))
			}
		}
		for _, macroName := range signals.Macros {
			if strings.Contains(content, macroDefinitionPrefix+macroName) {
				reasons.add(walkedPath, fmt.Sprintf(types.ReasonMacroFormat, macroName))
			}
		}
		return nil
	})
}

func isWithin(root string, candidate string) bool {
	relative, relativeError := filepath.Rel(filepath.Clean(root), filepath.Clean(candidate))
	if relativeError != nil {
		return false
	}
	return relative != ".." && !strings.HasPrefix(relative, ".."+string(filepath.Separator))
}

type reasonSet map[string]map[string]struct{}

func (set reasonSet) add(path string, reason string) {
	if set[path] == nil {
		set[path] = map[string]struct{}{}
	}
	set[path][reason] = struct{}{}
}

func (set reasonSet) matches(ecosystemName string) []types.DependencyMatch {
	paths := make([]string, 0, len(set))
	for path := range set {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	matches := make([]types.DependencyMatch, 0, len(paths))
	for _, path := range paths {
		reasons := make([]string, 0, len(set[path]))
		for reason := range set[path] {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		matches = append(matches, types.DependencyMatch{Ecosystem: ecosystemName, Path: path, Reasons: reasons})
	}
	return matches
}

// uniqueSorted drops empty and duplicate values.
func uniqueSorted(values []string) []string {
	seen := map[string]struct{}{}
	var result []string
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	sort.Strings(result)
	return result
}
