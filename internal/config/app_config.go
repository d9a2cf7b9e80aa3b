package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/temirov/contree/internal/utils"
)

const (
	cargoHomeEnvironmentKey  = "cargo_home"
	goModCacheEnvironmentKey = "gomodcache"
	goPathEnvironmentKey     = "gopath"
	homeEnvironmentKey       = "home"

	cargoHomeVariable  = "CARGO_HOME"
	goModCacheVariable = "GOMODCACHE"
	goPathVariable     = "GOPATH"
	homeVariable       = "HOME"

	defaultCargoDirectoryName = ".cargo"
	defaultGoPathName         = "go"
	goModCacheSubdirectory    = "pkg/mod"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
	HomeDirectory    string
}

// ApplicationConfiguration holds defaults for every contree command.
type ApplicationConfiguration struct {
	Scan         ScanConfiguration       `mapstructure:"scan" yaml:"scan"`
	Run          RunConfiguration        `mapstructure:"run" yaml:"run"`
	Dependencies DependencyConfiguration `mapstructure:"dependencies" yaml:"dependencies"`
	Tokens       TokenConfiguration      `mapstructure:"tokens" yaml:"tokens"`
}

// ScanConfiguration configures the project walk.
type ScanConfiguration struct {
	Grep          string   `mapstructure:"grep" yaml:"grep,omitempty"`
	MaxDepth      *int     `mapstructure:"max_depth" yaml:"max_depth,omitempty"`
	Include       []string `mapstructure:"include" yaml:"include"`
	Exclude       []string `mapstructure:"exclude" yaml:"exclude"`
	UseGitignore  *bool    `mapstructure:"use_gitignore" yaml:"use_gitignore"`
	UseIgnoreFile *bool    `mapstructure:"use_ignore" yaml:"use_ignore"`
	IncludeHidden *bool    `mapstructure:"hidden" yaml:"hidden"`
	Summary       *bool    `mapstructure:"summary" yaml:"summary"`
	Clipboard     *bool    `mapstructure:"copy" yaml:"copy"`
}

// RunConfiguration configures the command passthrough variant.
type RunConfiguration struct {
	Command string `mapstructure:"command" yaml:"command"`
}

// DependencyConfiguration configures the dependency correlator.
type DependencyConfiguration struct {
	Enabled    *bool  `mapstructure:"enabled" yaml:"enabled"`
	CargoHome  string `mapstructure:"cargo_home" yaml:"cargo_home,omitempty"`
	GoModCache string `mapstructure:"go_mod_cache" yaml:"go_mod_cache,omitempty"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled" yaml:"enabled"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// DependencyLocations are the resolved package-manager directories handed to the correlator.
type DependencyLocations struct {
	CargoHome     string
	GoModCache    string
	HomeDirectory string
}

// LoadApplicationConfiguration loads configuration from the global file and
// then the local (or explicit) file, later sources overriding earlier ones.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	homeDirectory := options.HomeDirectory
	if homeDirectory == "" {
		if resolvedHome, err := os.UserHomeDir(); err == nil {
			homeDirectory = resolvedHome
		}
	}
	if homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath, false)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	localConfig, loadErr := loadConfigurationFromPath(localPath, options.ExplicitFilePath != "")
	if loadErr != nil {
		return ApplicationConfiguration{}, loadErr
	}
	merged = merged.Merge(localConfig)

	merged.Scan.Exclude = utils.DeduplicatePatterns(merged.Scan.Exclude)
	merged.Scan.Include = utils.DeduplicatePatterns(utils.SplitCommaSeparated(merged.Scan.Include))

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) string {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath
		}
		return filepath.Join(workingDirectory, explicitPath)
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName)
}

func loadConfigurationFromPath(path string, required bool) (ApplicationConfiguration, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) && !required {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		reader.SetConfigType("yaml")
	}
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// ResolveDependencyLocations binds the package-manager environment variables
// and combines them with configured overrides. Configured values win over the
// environment, which wins over conventional directories under the home directory.
func ResolveDependencyLocations(configuration DependencyConfiguration) DependencyLocations {
	environment := viper.New()
	_ = environment.BindEnv(cargoHomeEnvironmentKey, cargoHomeVariable)
	_ = environment.BindEnv(goModCacheEnvironmentKey, goModCacheVariable)
	_ = environment.BindEnv(goPathEnvironmentKey, goPathVariable)
	_ = environment.BindEnv(homeEnvironmentKey, homeVariable)

	homeDirectory := strings.TrimSpace(environment.GetString(homeEnvironmentKey))
	if homeDirectory == "" {
		if resolvedHome, err := os.UserHomeDir(); err == nil {
			homeDirectory = resolvedHome
		}
	}

	locations := DependencyLocations{HomeDirectory: homeDirectory}

	locations.CargoHome = firstNonEmpty(configuration.CargoHome, environment.GetString(cargoHomeEnvironmentKey))
	if locations.CargoHome == "" && homeDirectory != "" {
		locations.CargoHome = filepath.Join(homeDirectory, defaultCargoDirectoryName)
	}

	locations.GoModCache = firstNonEmpty(configuration.GoModCache, environment.GetString(goModCacheEnvironmentKey))
	if locations.GoModCache == "" {
		goPath := strings.TrimSpace(environment.GetString(goPathEnvironmentKey))
		if goPath != "" {
			firstEntry := filepath.SplitList(goPath)[0]
			locations.GoModCache = filepath.Join(firstEntry, filepath.FromSlash(goModCacheSubdirectory))
		} else if homeDirectory != "" {
			locations.GoModCache = filepath.Join(homeDirectory, defaultGoPathName, filepath.FromSlash(goModCacheSubdirectory))
		}
	}
	return locations
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Scan = result.Scan.merge(override.Scan)
	if override.Run.Command != "" {
		result.Run.Command = override.Run.Command
	}
	result.Dependencies = result.Dependencies.merge(override.Dependencies)
	result.Tokens = result.Tokens.merge(override.Tokens)
	return result
}

func (config ScanConfiguration) merge(override ScanConfiguration) ScanConfiguration {
	result := config
	if override.Grep != "" {
		result.Grep = override.Grep
	}
	if override.MaxDepth != nil {
		result.MaxDepth = cloneInt(override.MaxDepth)
	}
	if len(override.Include) > 0 {
		result.Include = append([]string{}, override.Include...)
	}
	if len(override.Exclude) > 0 {
		result.Exclude = append([]string{}, utils.DeduplicatePatterns(override.Exclude)...)
	}
	if override.UseGitignore != nil {
		result.UseGitignore = cloneBool(override.UseGitignore)
	}
	if override.UseIgnoreFile != nil {
		result.UseIgnoreFile = cloneBool(override.UseIgnoreFile)
	}
	if override.IncludeHidden != nil {
		result.IncludeHidden = cloneBool(override.IncludeHidden)
	}
	if override.Summary != nil {
		result.Summary = cloneBool(override.Summary)
	}
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	return result
}

func (config DependencyConfiguration) merge(override DependencyConfiguration) DependencyConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.CargoHome != "" {
		result.CargoHome = override.CargoHome
	}
	if override.GoModCache != "" {
		result.GoModCache = override.GoModCache
	}
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

// BoolValue dereferences value, returning fallback for nil.
func BoolValue(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
