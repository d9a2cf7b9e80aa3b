package correlate

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	cargoEcosystemName     = "cargo"
	cargoMarkerFile        = "Cargo.toml"
	cargoSourceExtension   = ".rs"
	cargoCommand           = "cargo"
	cargoTreeSubcommand    = "tree"
	cargoDefaultHome       = ".cargo"
	cargoRegistryDirectory = "registry"
	cargoSourceDirectory   = "src"
	cargoRegistryMaxDepth  = 2
	genericArgumentsStart  = "<"
	macroDefinitionPrefix  = "macro_rules! "
)

var (
	cargoReferencePattern     = regexp.MustCompile(`--> ([/\\].*?\.rs):(\d+):(\d+)`)
	cargoMethodMissingPattern = regexp.MustCompile("method not found in `([^`]+)`")
	cargoMismatchPattern      = regexp.MustCompile("expected `([^`]+)`, found `([^`]+)`")
	cargoMacroOriginPattern   = regexp.MustCompile("this error originates in the macro `([^`]+)`")
	cargoTreeLinePattern      = regexp.MustCompile(`^[\s│]*[├└]── (\S+) v(\S+)`)

	errCargoTreeNotUTF8 = errors.New("cargo tree output is not UTF-8")
)

// CargoEcosystem correlates rustc diagnostics with crates in the cargo registry.
type CargoEcosystem struct {
	runner CommandRunner
}

// NewCargoEcosystem returns the cargo ecosystem using runner for `cargo tree`.
func NewCargoEcosystem(runner CommandRunner) CargoEcosystem {
	return CargoEcosystem{runner: runner}
}

func (CargoEcosystem) Name() string            { return cargoEcosystemName }
func (CargoEcosystem) Marker() string          { return cargoMarkerFile }
func (CargoEcosystem) SourceExtension() string { return cargoSourceExtension }

// CacheRoot is $CARGO_HOME/registry/src, defaulting CARGO_HOME to ~/.cargo.
func (CargoEcosystem) CacheRoot(environment Environment) string {
	cargoHome := environment.CargoHome
	if cargoHome == "" {
		if environment.HomeDirectory == "" {
			return ""
		}
		cargoHome = filepath.Join(environment.HomeDirectory, cargoDefaultHome)
	}
	return filepath.Join(cargoHome, cargoRegistryDirectory, cargoSourceDirectory)
}

// Extract collects `-->` source references, type names from method-not-found
// and mismatched-type errors, and macro names from macro-origin notes.
func (CargoEcosystem) Extract(text string) Signals {
	var signals Signals
	for _, captures := range cargoReferencePattern.FindAllStringSubmatch(text, -1) {
		signals.References = append(signals.References, captures[1])
	}
	for _, captures := range cargoMethodMissingPattern.FindAllStringSubmatch(text, -1) {
		signals.Symbols = append(signals.Symbols, stripGenericArguments(captures[1]))
	}
	for _, captures := range cargoMismatchPattern.FindAllStringSubmatch(text, -1) {
		signals.Symbols = append(signals.Symbols, stripGenericArguments(captures[1]), stripGenericArguments(captures[2]))
	}
	for _, captures := range cargoMacroOriginPattern.FindAllStringSubmatch(text, -1) {
		signals.Macros = append(signals.Macros, captures[1])
	}
	signals.References = uniqueSorted(signals.References)
	signals.Symbols = uniqueSorted(signals.Symbols)
	signals.Macros = uniqueSorted(signals.Macros)
	return signals
}

// Dependencies runs `cargo tree` and returns "name-version" identifiers.
func (ecosystem CargoEcosystem) Dependencies(ctx context.Context, projectRoot string) ([]string, error) {
	output, runError := ecosystem.runner.Run(ctx, projectRoot, cargoCommand, cargoTreeSubcommand)
	if runError != nil {
		return nil, runError
	}
	return ParseCargoTree(output)
}

// ParseCargoTree extracts "name-version" identifiers from `cargo tree` output.
func ParseCargoTree(output []byte) ([]string, error) {
	if !utf8.Valid(output) {
		return nil, errCargoTreeNotUTF8
	}
	var identifiers []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		captures := cargoTreeLinePattern.FindStringSubmatch(scanner.Text())
		if captures == nil {
			continue
		}
		identifiers = append(identifiers, captures[1]+"-"+captures[2])
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return uniqueSorted(identifiers), nil
}

// PackageDirectories walks the registry two levels deep (index, then crate)
// and keeps the crate directories named after a dependency identifier.
func (CargoEcosystem) PackageDirectories(cacheRoot string, dependencies []string) ([]string, error) {
	wanted := make(map[string]struct{}, len(dependencies))
	for _, dependency := range dependencies {
		wanted[dependency] = struct{}{}
	}
	var directories []string
	walkError := filepath.WalkDir(cacheRoot, func(walkedPath string, entry fs.DirEntry, accessError error) error {
		if accessError != nil {
			if walkedPath == cacheRoot {
				return accessError
			}
			return nil
		}
		if !entry.IsDir() || walkedPath == cacheRoot {
			return nil
		}
		relative, _ := filepath.Rel(cacheRoot, walkedPath)
		depth := strings.Count(filepath.ToSlash(relative), "/") + 1
		if _, matched := wanted[entry.Name()]; matched {
			directories = append(directories, walkedPath)
			return filepath.SkipDir
		}
		if depth >= cargoRegistryMaxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}
	return directories, nil
}

func stripGenericArguments(typeName string) string {
	if index := strings.Index(typeName, genericArgumentsStart); index >= 0 {
		return typeName[:index]
	}
	return typeName
}

var _ Ecosystem = CargoEcosystem{}
