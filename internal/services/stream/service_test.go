package stream_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/temirov/contree/internal/config"
	"github.com/temirov/contree/internal/services/stream"
	"github.com/temirov/contree/internal/types"
	"github.com/temirov/contree/internal/walker"
)

type stubCounter struct{}

func (stubCounter) Name() string { return "stub" }

func (stubCounter) CountString(input string) (int, error) { return len([]rune(input)), nil }

type stubFinder struct {
	matches  []types.DependencyMatch
	err      error
	captured string
}

func (finder *stubFinder) Find(_ context.Context, capturedOutput string) ([]types.DependencyMatch, error) {
	finder.captured = capturedOutput
	return finder.matches, finder.err
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "example.txt"), []byte("content"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return root
}

func TestStreamContextEmitsProjectFilesWithSummary(t *testing.T) {
	root := writeProject(t)

	events := collectEvents(t, func(ch chan<- stream.Event) error {
		options := stream.ContextOptions{
			Walk:         walker.Options{Root: root, Ignore: config.IgnoreOptions{UseGitignore: true}},
			TokenCounter: stubCounter{},
			TokenModel:   "stub-model",
		}
		return stream.StreamContext(context.Background(), options, ch)
	})

	expectedKinds := []stream.EventKind{
		stream.EventKindStart,
		stream.EventKindSection,
		stream.EventKindFile,
		stream.EventKindSummary,
		stream.EventKindDone,
	}
	if len(events) != len(expectedKinds) {
		t.Fatalf("expected %d events, got %d", len(expectedKinds), len(events))
	}
	for index, kind := range expectedKinds {
		if events[index].Kind != kind {
			t.Fatalf("event %d: expected %s, got %s", index, kind, events[index].Kind)
		}
	}
	if events[1].Section != stream.SectionProject {
		t.Fatalf("expected project section, got %s", events[1].Section)
	}
	file := events[2].File
	if file.Path != filepath.Join(root, "example.txt") || file.Content != "content" {
		t.Fatalf("unexpected file event %+v", file)
	}
	if file.Tokens != len("content") || file.Model != "stub-model" {
		t.Fatalf("expected token count propagated, got %d (%s)", file.Tokens, file.Model)
	}
	summary := events[3].Summary
	if summary.Files != 1 || summary.Bytes != int64(len("content")) || summary.Tokens != len("content") || summary.Model != "stub-model" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestStreamContextEmitsDependencySection(t *testing.T) {
	root := writeProject(t)
	dependencyDirectory := t.TempDir()
	dependencyPath := filepath.Join(dependencyDirectory, "lib.rs")
	if err := os.WriteFile(dependencyPath, []byte("pub struct Value;"), 0o600); err != nil {
		t.Fatalf("write dependency: %v", err)
	}
	missingPath := filepath.Join(dependencyDirectory, "missing.rs")
	finder := &stubFinder{matches: []types.DependencyMatch{
		{Ecosystem: "cargo", Path: dependencyPath, Reasons: []string{"type Value"}},
		{Ecosystem: "cargo", Path: missingPath, Reasons: []string{"directly referenced"}},
	}}

	events := collectEvents(t, func(ch chan<- stream.Event) error {
		options := stream.ContextOptions{
			Walk:           walker.Options{Root: root},
			Dependencies:   finder,
			CapturedOutput: "captured text",
		}
		return stream.StreamContext(context.Background(), options, ch)
	})

	if finder.captured != "captured text" {
		t.Fatalf("expected captured output passed to finder, got %q", finder.captured)
	}
	var sections []stream.Section
	var dependencies []*stream.DependencyEvent
	var warnings []string
	var summary *stream.SummaryEvent
	for _, event := range events {
		switch event.Kind {
		case stream.EventKindSection:
			sections = append(sections, event.Section)
		case stream.EventKindDependency:
			dependencies = append(dependencies, event.Dependency)
		case stream.EventKindWarning:
			warnings = append(warnings, event.Message.Message)
		case stream.EventKindSummary:
			summary = event.Summary
		}
	}
	if len(sections) != 2 || sections[1] != stream.SectionDependencies {
		t.Fatalf("expected project and dependency sections, got %v", sections)
	}
	if len(dependencies) != 2 {
		t.Fatalf("expected two dependency events, got %d", len(dependencies))
	}
	if dependencies[0].Content != "pub struct Value;" || dependencies[0].ReadError != "" {
		t.Fatalf("unexpected readable dependency %+v", dependencies[0])
	}
	if dependencies[1].ReadError == "" || dependencies[1].Content != "" {
		t.Fatalf("expected read error for missing dependency, got %+v", dependencies[1])
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if summary == nil || summary.Files != 2 {
		t.Fatalf("expected summary counting project and readable dependency files, got %+v", summary)
	}
}

func TestStreamContextOmitsEmptyDependencySection(t *testing.T) {
	root := writeProject(t)
	events := collectEvents(t, func(ch chan<- stream.Event) error {
		options := stream.ContextOptions{Walk: walker.Options{Root: root}, Dependencies: &stubFinder{}}
		return stream.StreamContext(context.Background(), options, ch)
	})
	for _, event := range events {
		if event.Kind == stream.EventKindSection && event.Section == stream.SectionDependencies {
			t.Fatalf("dependency section emitted without matches")
		}
	}
}

func TestStreamContextReturnsFinderError(t *testing.T) {
	root := writeProject(t)
	finderError := errors.New("finder failed")
	events := make(chan stream.Event, 32)
	err := stream.StreamContext(context.Background(), stream.ContextOptions{
		Walk:         walker.Options{Root: root},
		Dependencies: &stubFinder{err: finderError},
	}, events)
	if !errors.Is(err, finderError) {
		t.Fatalf("expected finder error, got %v", err)
	}
}

func TestStreamContextRejectsNilChannel(t *testing.T) {
	root := writeProject(t)
	if err := stream.StreamContext(context.Background(), stream.ContextOptions{Walk: walker.Options{Root: root}}, nil); err == nil {
		t.Fatalf("expected error for nil channel")
	}
}

func collectEvents(t *testing.T, producer func(chan<- stream.Event) error) []stream.Event {
	t.Helper()
	events := make(chan stream.Event, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- producer(events)
		close(events)
	}()

	var out []stream.Event
	for event := range events {
		out = append(out, event)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("producer returned error: %v", err)
	}
	return out
}
