package correlate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"golang.org/x/tools/go/packages"
)

const (
	goEcosystemName        = "go"
	goMarkerFile           = "go.mod"
	goSourceExtension      = ".go"
	goDefaultPath          = "go"
	goModCacheSubdirectory = "pkg/mod"
	goAllPackagesPattern   = "./..."
	goModuleVersionMarker  = "@"
	typeParametersStart    = "["
)

var (
	goReferencePattern = regexp.MustCompile(`(?m)(?:^|\s)((?:[A-Za-z]:)?[/\\][^\s:]*?\.go):(\d+):(\d+)`)
	goMissingPattern   = regexp.MustCompile(`type (\*?[\w./\[\], ]+?) has no field or method (\w+)`)
	goCannotUsePattern = regexp.MustCompile(`cannot use .*?\(.*?type (\*?[\w./\[\], ]+?)\) as (\*?[\w./\[\], ]+?) value`)
	goUndefinedPattern = regexp.MustCompile(`undefined: (\w+)\.(\w+)`)
	goTypeDecorations  = strings.NewReplacer("*", "", "[]", "")
)

// ModuleLister lists the modules a Go project depends on.
type ModuleLister func(ctx context.Context, projectRoot string) ([]module.Version, error)

// GoEcosystem correlates Go compiler diagnostics with modules in the module cache.
type GoEcosystem struct {
	listModules ModuleLister
}

// NewGoEcosystem returns the go ecosystem. A nil lister loads the package
// graph with go/packages and falls back to the requirements in go.mod.
func NewGoEcosystem(lister ModuleLister) GoEcosystem {
	if lister == nil {
		lister = LoadModuleGraph
	}
	return GoEcosystem{listModules: lister}
}

func (GoEcosystem) Name() string            { return goEcosystemName }
func (GoEcosystem) Marker() string          { return goMarkerFile }
func (GoEcosystem) SourceExtension() string { return goSourceExtension }

// CacheRoot is GOMODCACHE as resolved by the configuration layer, or ~/go/pkg/mod.
func (GoEcosystem) CacheRoot(environment Environment) string {
	if environment.GoModCache != "" {
		return environment.GoModCache
	}
	if environment.HomeDirectory == "" {
		return ""
	}
	return filepath.Join(environment.HomeDirectory, goDefaultPath, filepath.FromSlash(goModCacheSubdirectory))
}

// Extract collects file:line:col references and the type names named by
// missing-member, assignment and undefined-identifier errors.
func (GoEcosystem) Extract(text string) Signals {
	var signals Signals
	for _, captures := range goReferencePattern.FindAllStringSubmatch(text, -1) {
		signals.References = append(signals.References, captures[1])
	}
	for _, captures := range goMissingPattern.FindAllStringSubmatch(text, -1) {
		signals.Symbols = append(signals.Symbols, goTypeName(captures[1]))
	}
	for _, captures := range goCannotUsePattern.FindAllStringSubmatch(text, -1) {
		signals.Symbols = append(signals.Symbols, goTypeName(captures[1]), goTypeName(captures[2]))
	}
	for _, captures := range goUndefinedPattern.FindAllStringSubmatch(text, -1) {
		signals.Symbols = append(signals.Symbols, captures[2])
	}
	signals.References = uniqueSorted(signals.References)
	signals.Symbols = uniqueSorted(signals.Symbols)
	return signals
}

// Dependencies returns "path@version" identifiers of the project's modules.
func (ecosystem GoEcosystem) Dependencies(ctx context.Context, projectRoot string) ([]string, error) {
	versions, listError := ecosystem.listModules(ctx, projectRoot)
	if listError != nil {
		return nil, listError
	}
	identifiers := make([]string, 0, len(versions))
	for _, version := range versions {
		if version.Path == "" || version.Version == "" {
			continue
		}
		identifiers = append(identifiers, version.String())
	}
	return uniqueSorted(identifiers), nil
}

// PackageDirectories resolves identifiers to their escaped module cache
// directories and keeps those present on disk.
func (GoEcosystem) PackageDirectories(cacheRoot string, dependencies []string) ([]string, error) {
	var directories []string
	for _, dependency := range dependencies {
		modulePath, moduleVersion, found := strings.Cut(dependency, goModuleVersionMarker)
		if !found {
			continue
		}
		escapedPath, pathError := module.EscapePath(modulePath)
		if pathError != nil {
			continue
		}
		escapedVersion, versionError := module.EscapeVersion(moduleVersion)
		if versionError != nil {
			continue
		}
		directory := filepath.Join(cacheRoot, filepath.FromSlash(escapedPath)+goModuleVersionMarker+escapedVersion)
		if info, statError := os.Stat(directory); statError == nil && info.IsDir() {
			directories = append(directories, directory)
		}
	}
	return directories, nil
}

// LoadModuleGraph lists the non-main modules providing the project's packages
// and their transitive imports. When the package graph cannot be loaded, the
// requirements declared in go.mod are returned instead.
func LoadModuleGraph(ctx context.Context, projectRoot string) ([]module.Version, error) {
	configuration := &packages.Config{
		Context: ctx,
		Dir:     projectRoot,
		Mode:    packages.NeedName | packages.NeedModule | packages.NeedImports | packages.NeedDeps,
	}
	loadedPackages, loadError := packages.Load(configuration, goAllPackagesPattern)
	if loadError != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return RequiredModules(filepath.Join(projectRoot, goMarkerFile))
	}
	seen := map[string]struct{}{}
	var versions []module.Version
	packages.Visit(loadedPackages, nil, func(loaded *packages.Package) {
		moduleInfo := loaded.Module
		if moduleInfo == nil || moduleInfo.Main {
			return
		}
		if moduleInfo.Replace != nil {
			if moduleInfo.Replace.Version == "" {
				return
			}
			moduleInfo = moduleInfo.Replace
		}
		version := module.Version{Path: moduleInfo.Path, Version: moduleInfo.Version}
		if _, exists := seen[version.String()]; exists {
			return
		}
		seen[version.String()] = struct{}{}
		versions = append(versions, version)
	})
	return versions, nil
}

// RequiredModules parses goModPath and returns its require directives,
// honoring versioned replace directives.
func RequiredModules(goModPath string) ([]module.Version, error) {
	content, readError := os.ReadFile(goModPath)
	if readError != nil {
		return nil, fmt.Errorf("read %s: %w", goModPath, readError)
	}
	modFile, parseError := modfile.Parse(goModPath, content, nil)
	if parseError != nil {
		return nil, fmt.Errorf("parse %s: %w", goModPath, parseError)
	}
	replacements := map[string]module.Version{}
	for _, replacement := range modFile.Replace {
		if replacement == nil || replacement.New.Version == "" {
			continue
		}
		replacements[replacement.Old.Path] = replacement.New
	}
	versions := make([]module.Version, 0, len(modFile.Require))
	for _, requirement := range modFile.Require {
		if requirement == nil {
			continue
		}
		version := requirement.Mod
		if replacement, replaced := replacements[version.Path]; replaced {
			version = replacement
		}
		versions = append(versions, version)
	}
	return versions, nil
}

// goTypeName reduces a qualified Go type expression such as
// "*pkg.Client[T]" to its bare name "Client".
func goTypeName(expression string) string {
	name := strings.TrimSpace(goTypeDecorations.Replace(expression))
	if index := strings.Index(name, typeParametersStart); index >= 0 {
		name = name[:index]
	}
	if index := strings.LastIndex(name, "."); index >= 0 {
		name = name[index+1:]
	}
	return name
}

var _ Ecosystem = GoEcosystem{}
