package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/temirov/contree/internal/utils"
)

func boolPointer(value bool) *bool {
	pointer := value
	return &pointer
}

func TestLoadApplicationConfigurationMergesSources(t *testing.T) {
	testCases := []struct {
		name            string
		globalContent   string
		localContent    string
		explicitPath    string
		expectCommand   string
		expectMaxDepth  *int
		expectHidden    *bool
		expectDeps      *bool
		expectModel     string
		expectExclude   []string
		expectIncludeCt int
	}{
		{
			name:           "local_overrides_global",
			globalContent:  "run:\n  command: make test\nscan:\n  hidden: true\n  max_depth: 4\ntokens:\n  model: gpt-4\n",
			localContent:   "scan:\n  max_depth: 1\n  exclude:\n    - target/\n    - target/\ndependencies:\n  enabled: true\n",
			expectCommand:  "make test",
			expectMaxDepth: intPointer(1),
			expectHidden:   boolPointer(true),
			expectDeps:     boolPointer(true),
			expectModel:    "gpt-4",
			expectExclude:  []string{"target/"},
		},
		{
			name:            "explicit_path_only",
			globalContent:   "run:\n  command: make test\n",
			localContent:    "run:\n  command: ignored\n",
			explicitPath:    "custom.yaml",
			expectCommand:   "go test ./...",
			expectIncludeCt: 2,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			homeDirectory := t.TempDir()
			workingDirectory := t.TempDir()
			if testCase.globalContent != "" {
				globalDirectory := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName)
				if err := os.MkdirAll(globalDirectory, 0o755); err != nil {
					t.Fatalf("mkdir global: %v", err)
				}
				writeConfig(t, filepath.Join(globalDirectory, utils.GlobalConfigFileName), testCase.globalContent)
			}
			if testCase.localContent != "" {
				writeConfig(t, filepath.Join(workingDirectory, utils.ConfigFileName), testCase.localContent)
			}
			if testCase.explicitPath != "" {
				writeConfig(t, filepath.Join(workingDirectory, testCase.explicitPath), "run:\n  command: go test ./...\nscan:\n  include:\n    - a.txt, b.txt\n")
			}

			configuration, err := LoadApplicationConfiguration(LoadOptions{
				WorkingDirectory: workingDirectory,
				ExplicitFilePath: testCase.explicitPath,
				HomeDirectory:    homeDirectory,
			})
			if err != nil {
				t.Fatalf("load configuration: %v", err)
			}
			if configuration.Run.Command != testCase.expectCommand {
				t.Fatalf("expected command %q, got %q", testCase.expectCommand, configuration.Run.Command)
			}
			if !equalIntPointers(configuration.Scan.MaxDepth, testCase.expectMaxDepth) {
				t.Fatalf("unexpected max depth: %v", configuration.Scan.MaxDepth)
			}
			if !equalBoolPointers(configuration.Scan.IncludeHidden, testCase.expectHidden) {
				t.Fatalf("unexpected hidden flag: %v", configuration.Scan.IncludeHidden)
			}
			if !equalBoolPointers(configuration.Dependencies.Enabled, testCase.expectDeps) {
				t.Fatalf("unexpected dependencies flag: %v", configuration.Dependencies.Enabled)
			}
			if configuration.Tokens.Model != testCase.expectModel {
				t.Fatalf("expected model %q, got %q", testCase.expectModel, configuration.Tokens.Model)
			}
			if len(configuration.Scan.Exclude) != len(testCase.expectExclude) {
				t.Fatalf("expected exclude %v, got %v", testCase.expectExclude, configuration.Scan.Exclude)
			}
			if len(configuration.Scan.Include) != testCase.expectIncludeCt {
				t.Fatalf("expected %d include entries, got %v", testCase.expectIncludeCt, configuration.Scan.Include)
			}
		})
	}
}

func TestLoadApplicationConfigurationMissingExplicitFile(t *testing.T) {
	_, err := LoadApplicationConfiguration(LoadOptions{
		WorkingDirectory: t.TempDir(),
		ExplicitFilePath: "absent.yaml",
		HomeDirectory:    t.TempDir(),
	})
	if err == nil {
		t.Fatalf("expected error for missing explicit configuration")
	}
}

func TestResolveDependencyLocations(t *testing.T) {
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)
	t.Setenv("CARGO_HOME", "")
	t.Setenv("GOMODCACHE", "")
	t.Setenv("GOPATH", "")

	defaults := ResolveDependencyLocations(DependencyConfiguration{})
	if defaults.CargoHome != filepath.Join(homeDirectory, ".cargo") {
		t.Fatalf("unexpected default cargo home: %s", defaults.CargoHome)
	}
	if defaults.GoModCache != filepath.Join(homeDirectory, "go", "pkg", "mod") {
		t.Fatalf("unexpected default module cache: %s", defaults.GoModCache)
	}

	t.Setenv("CARGO_HOME", "/opt/cargo")
	t.Setenv("GOPATH", "/opt/gopath")
	fromEnvironment := ResolveDependencyLocations(DependencyConfiguration{})
	if fromEnvironment.CargoHome != "/opt/cargo" {
		t.Fatalf("expected CARGO_HOME to be used, got %s", fromEnvironment.CargoHome)
	}
	if fromEnvironment.GoModCache != filepath.Join("/opt/gopath", "pkg", "mod") {
		t.Fatalf("expected GOPATH module cache, got %s", fromEnvironment.GoModCache)
	}

	configured := ResolveDependencyLocations(DependencyConfiguration{CargoHome: "/configured/cargo", GoModCache: "/configured/mod"})
	if configured.CargoHome != "/configured/cargo" || configured.GoModCache != "/configured/mod" {
		t.Fatalf("expected configured locations to win, got %+v", configured)
	}
}

func writeConfig(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config %s: %v", path, err)
	}
}

func intPointer(value int) *int {
	pointer := value
	return &pointer
}

func equalBoolPointers(left, right *bool) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	return *left == *right
}

func equalIntPointers(left, right *int) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	return *left == *right
}
