package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/temirov/contree/internal/utils"
)

func TestMatcherEvaluatesGitignoreSemantics(t *testing.T) {
	matcher, err := NewMatcher(IgnoreOptions{ExclusionPatterns: []string{"*.tmp"}})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	if err := matcher.AddPatterns("", []string{"*.log", "!keep.log", "build/", "/root-only.txt", "docs/**/draft.md", `\[draft\].md`, `notes\?.txt`}); err != nil {
		t.Fatalf("add root patterns: %v", err)
	}
	if err := matcher.AddPatterns("nested", []string{"local.txt", "!app.log"}); err != nil {
		t.Fatalf("add nested patterns: %v", err)
	}

	testCases := []struct {
		path        string
		isDirectory bool
		expected    bool
	}{
		{path: "app.log", expected: true},
		{path: "deep/dir/app.log", expected: true},
		{path: "keep.log", expected: false},
		{path: "build", isDirectory: true, expected: true},
		{path: "build", isDirectory: false, expected: false},
		{path: "root-only.txt", expected: true},
		{path: "sub/root-only.txt", expected: false},
		{path: "docs/draft.md", expected: true},
		{path: "docs/a/b/draft.md", expected: true},
		{path: "other/docs/draft.md", expected: false},
		{path: "nested/local.txt", expected: true},
		{path: "nested/deeper/local.txt", expected: true},
		{path: "local.txt", expected: false},
		{path: "nested/app.log", expected: false},
		{path: "[draft].md", expected: true},
		{path: "d.md", expected: false},
		{path: "notes?.txt", expected: true},
		{path: "notesX.txt", expected: false},
		{path: "scratch.tmp", expected: true},
		{path: "main.go", expected: false},
	}
	for _, testCase := range testCases {
		if actual := matcher.Match(testCase.path, testCase.isDirectory); actual != testCase.expected {
			t.Errorf("%s (dir=%t): expected ignored=%t, got %t", testCase.path, testCase.isDirectory, testCase.expected, actual)
		}
	}
}

func TestMatcherLoadDirectoryHonorsOptions(t *testing.T) {
	root := t.TempDir()
	writeIgnoreFile(t, filepath.Join(root, utils.GitIgnoreFileName), "from-git.txt\n")
	writeIgnoreFile(t, filepath.Join(root, utils.IgnoreFileName), "from-ignore.txt\n")
	writeIgnoreFile(t, filepath.Join(root, utils.ContreeIgnoreFileName), "# comment\n\nfrom-contree.txt\n")

	testCases := []struct {
		name     string
		options  IgnoreOptions
		expected map[string]bool
	}{
		{
			name:     "all sources",
			options:  IgnoreOptions{UseGitignore: true, UseIgnoreFile: true},
			expected: map[string]bool{"from-git.txt": true, "from-ignore.txt": true, "from-contree.txt": true},
		},
		{
			name:     "custom ignore file always honored",
			options:  IgnoreOptions{},
			expected: map[string]bool{"from-git.txt": false, "from-ignore.txt": false, "from-contree.txt": true},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			matcher, err := NewMatcher(testCase.options)
			if err != nil {
				t.Fatalf("new matcher: %v", err)
			}
			if err := matcher.LoadDirectory(root, ""); err != nil {
				t.Fatalf("load directory: %v", err)
			}
			for path, expected := range testCase.expected {
				if actual := matcher.Match(path, false); actual != expected {
					t.Errorf("%s: expected ignored=%t, got %t", path, expected, actual)
				}
			}
		})
	}
}

func TestLoadIgnoreFilePatternsMissingFile(t *testing.T) {
	patterns, err := LoadIgnoreFilePatterns(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(patterns) != 0 {
		t.Fatalf("expected no patterns, got %v", patterns)
	}
}

func TestIsServiceFile(t *testing.T) {
	for _, name := range []string{utils.GitIgnoreFileName, utils.IgnoreFileName, utils.ContreeIgnoreFileName} {
		if !IsServiceFile(name) {
			t.Errorf("expected %s to be a service file", name)
		}
	}
	if IsServiceFile("main.go") {
		t.Errorf("expected main.go not to be a service file")
	}
}

func writeIgnoreFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
