package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/temirov/contree/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes configuration into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes configuration into the global configuration directory.
	InitTargetGlobal InitTarget = "global"

	// DefaultRunCommand is the command wrapped by the run variant when none is configured.
	DefaultRunCommand = "cargo test"
	// DefaultTokenizerModel is the model used for token counting when none is configured.
	DefaultTokenizerModel = "gpt-4o"

	configurationHeader = "# contree configuration; command line flags override these values.\n"
)

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
	HomeDirectory    string
}

// DefaultApplicationConfiguration returns the values written by InitializeConfiguration.
func DefaultApplicationConfiguration() ApplicationConfiguration {
	enabled := true
	disabled := false
	return ApplicationConfiguration{
		Scan: ScanConfiguration{
			Include:       []string{},
			Exclude:       []string{},
			UseGitignore:  &enabled,
			UseIgnoreFile: &enabled,
			IncludeHidden: &disabled,
			Summary:       &disabled,
			Clipboard:     &disabled,
		},
		Run: RunConfiguration{Command: DefaultRunCommand},
		Dependencies: DependencyConfiguration{
			Enabled: &disabled,
		},
		Tokens: TokenConfiguration{
			Enabled: &disabled,
			Model:   DefaultTokenizerModel,
		},
	}
}

// InitializeConfiguration writes the default configuration to the requested target.
func InitializeConfiguration(options InitOptions) (string, error) {
	target := options.Target
	if target == "" {
		target = InitTargetLocal
	}
	var destinationPath string
	switch target {
	case InitTargetLocal:
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			current, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("determine working directory for configuration: %w", err)
			}
			workingDirectory = current
		}
		destinationPath = filepath.Join(workingDirectory, utils.ConfigFileName)
	case InitTargetGlobal:
		homeDirectory := options.HomeDirectory
		if homeDirectory == "" {
			resolvedHome, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home directory for configuration: %w", err)
			}
			homeDirectory = resolvedHome
		}
		configurationDirectory := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName)
		if err := os.MkdirAll(configurationDirectory, 0o755); err != nil {
			return "", fmt.Errorf("create configuration directory %s: %w", configurationDirectory, err)
		}
		destinationPath = filepath.Join(configurationDirectory, utils.GlobalConfigFileName)
	default:
		return "", fmt.Errorf("unsupported init target %q", target)
	}

	if _, err := os.Stat(destinationPath); err == nil {
		if !options.Force {
			return "", fmt.Errorf("configuration file already exists at %s", destinationPath)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("inspect configuration path %s: %w", destinationPath, err)
	}

	encoded, encodeErr := yaml.Marshal(DefaultApplicationConfiguration())
	if encodeErr != nil {
		return "", fmt.Errorf("encode default configuration: %w", encodeErr)
	}
	content := append([]byte(configurationHeader), encoded...)
	if err := os.WriteFile(destinationPath, content, 0o600); err != nil {
		return "", fmt.Errorf("write configuration to %s: %w", destinationPath, err)
	}

	return destinationPath, nil
}
