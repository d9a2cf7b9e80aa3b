package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/contree/internal/tokenizer"
	"github.com/temirov/contree/internal/types"
	"github.com/temirov/contree/internal/utils"
	"github.com/temirov/contree/internal/walker"
)

const warningReadDependency = "failed to read dependency file %s: %v"

var errNilChannel = errors.New("stream: event channel is nil")

// DependencyFinder locates dependency files relevant to captured output.
type DependencyFinder interface {
	Find(ctx context.Context, capturedOutput string) ([]types.DependencyMatch, error)
}

// ContextOptions configures StreamContext.
type ContextOptions struct {
	Walk walker.Options
	// Dependencies is nil when dependency correlation is disabled.
	Dependencies   DependencyFinder
	CapturedOutput string
	TokenCounter   tokenizer.Counter
	TokenModel     string
}

type emitter struct {
	ctx context.Context
	out chan<- Event
}

func newEmitter(ctx context.Context, out chan<- Event) *emitter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &emitter{ctx: ctx, out: out}
}

func (e *emitter) send(event Event) error {
	if e.out == nil {
		return errNilChannel
	}
	select {
	case <-e.ctx.Done():
		return e.ctx.Err()
	case e.out <- event:
		return nil
	}
}

func (e *emitter) warn(path, message string) {
	trimmed := strings.TrimRight(message, "\n")
	if trimmed == "" {
		return
	}
	_ = e.send(Event{
		Kind:    EventKindWarning,
		Path:    path,
		Message: &LogEvent{Level: "warning", Message: trimmed},
	})
}

type summaryTracker struct {
	files  int
	bytes  int64
	tokens int
	model  string
}

func (tracker *summaryTracker) add(size int64, tokens int, model string) {
	tracker.files++
	tracker.bytes += size
	tracker.tokens += tokens
	if tracker.model == "" && model != "" && tokens > 0 {
		tracker.model = model
	}
}

func (tracker *summaryTracker) summary() *SummaryEvent {
	return &SummaryEvent{
		Files:  tracker.files,
		Bytes:  tracker.bytes,
		Tokens: tracker.tokens,
		Model:  tracker.model,
	}
}

// StreamContext emits the project section, then the dependency section when
// a finder is configured and reports matches, then a summary. Events are
// sent in render order.
func StreamContext(ctx context.Context, opts ContextOptions, out chan<- Event) error {
	root := opts.Walk.Root
	emitter := newEmitter(ctx, out)
	if err := emitter.send(Event{Kind: EventKindStart, Path: root}); err != nil {
		return err
	}

	tracker := &summaryTracker{}
	if err := streamProject(ctx, emitter, tracker, opts); err != nil {
		return err
	}
	if opts.Dependencies != nil {
		if err := streamDependencies(ctx, emitter, tracker, opts); err != nil {
			return err
		}
	}

	if err := emitter.send(Event{Kind: EventKindSummary, Path: root, Summary: tracker.summary()}); err != nil {
		return err
	}
	return emitter.send(Event{Kind: EventKindDone, Path: root})
}

func streamProject(ctx context.Context, emitter *emitter, tracker *summaryTracker, opts ContextOptions) error {
	if err := emitter.send(Event{Kind: EventKindSection, Path: opts.Walk.Root, Section: SectionProject}); err != nil {
		return err
	}
	walkOptions := opts.Walk
	walkOptions.Warn = func(message string) {
		emitter.warn(opts.Walk.Root, message)
	}
	return walker.Walk(ctx, walkOptions, func(entry types.FileEntry) error {
		tokens, model := countTokens(emitter, opts, entry)
		tracker.add(entry.SizeBytes, tokens, model)
		return emitter.send(Event{
			Kind: EventKindFile,
			Path: entry.Path,
			File: &FileEvent{
				Path:      entry.Path,
				Content:   entry.Content,
				SizeBytes: entry.SizeBytes,
				IsBinary:  entry.IsBinary,
				Included:  entry.Included,
				Tokens:    tokens,
				Model:     model,
			},
		})
	})
}

func streamDependencies(ctx context.Context, emitter *emitter, tracker *summaryTracker, opts ContextOptions) error {
	matches, findError := opts.Dependencies.Find(ctx, opts.CapturedOutput)
	if findError != nil {
		return findError
	}
	if len(matches) == 0 {
		return nil
	}
	if err := emitter.send(Event{Kind: EventKindSection, Path: opts.Walk.Root, Section: SectionDependencies}); err != nil {
		return err
	}
	for _, match := range matches {
		dependency := &DependencyEvent{
			Ecosystem: match.Ecosystem,
			Path:      match.Path,
			Reasons:   append([]string(nil), match.Reasons...),
		}
		textFile, readError := utils.ReadTextFile(match.Path)
		if readError != nil {
			emitter.warn(match.Path, fmt.Sprintf(warningReadDependency, match.Path, readError))
			dependency.ReadError = readError.Error()
		} else {
			entry := types.FileEntry{Path: match.Path, Content: textFile.Content, IsBinary: textFile.IsBinary, SizeBytes: textFile.SizeBytes}
			if entry.IsBinary {
				entry.Content = types.BinaryPlaceholder
			}
			dependency.Content = entry.Content
			dependency.IsBinary = entry.IsBinary
			dependency.SizeBytes = entry.SizeBytes
			dependency.Tokens, dependency.Model = countTokens(emitter, opts, entry)
			tracker.add(dependency.SizeBytes, dependency.Tokens, dependency.Model)
		}
		if err := emitter.send(Event{Kind: EventKindDependency, Path: match.Path, Dependency: dependency}); err != nil {
			return err
		}
	}
	return nil
}

func countTokens(emitter *emitter, opts ContextOptions, entry types.FileEntry) (int, string) {
	tokens, counted, countError := tokenizer.CountEntry(opts.TokenCounter, entry)
	if countError != nil {
		emitter.warn(entry.Path, countError.Error())
		return 0, ""
	}
	if !counted {
		return 0, ""
	}
	return tokens, opts.TokenModel
}
