// Package walker enumerates the project files that make up the rendered context.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/contree/internal/config"
	"github.com/temirov/contree/internal/types"
	"github.com/temirov/contree/internal/utils"
)

const (
	errorRootEmpty          = "walker: root path is empty"
	errorAbsolutePathFormat = "failed to get absolute path for %s: %w"
	errorRootNotDirectory   = "scan root %s is not a directory"
	errorReadDirectory      = "failed to read directory %s: %w"
	errorReadFileFormat     = "failed to read file %s: %w"
	warningIncludedMissing  = "Included path %s does not exist or is not a file"
	warningIncludedRead     = "failed to read included file %s: %v"
)

// Options configures a project walk.
type Options struct {
	// Root is the scan directory as it should appear in emitted paths.
	Root    string
	Pattern *Pattern
	// Include lists files emitted regardless of location, ignore rules or pattern.
	Include []string
	// MaxDepth limits how many directories below Root are visited; nil is unlimited.
	MaxDepth      *int
	Ignore        config.IgnoreOptions
	IncludeHidden bool
	// ExcludePaths are absolute paths never emitted, such as the output file.
	ExcludePaths []string
	Logger       *zap.Logger
	Warn         func(message string)
}

// Visitor receives each emitted file in order.
type Visitor func(types.FileEntry) error

type walkState struct {
	options      Options
	absoluteRoot string
	matcher      *config.Matcher
	excluded     map[string]struct{}
	emitted      map[string]struct{}
	logger       *zap.Logger
}

// Walk emits every file under options.Root that survives the ignore rules,
// the depth limit and the pattern, followed by the explicitly included files.
func Walk(ctx context.Context, options Options, visit Visitor) error {
	if options.Root == "" {
		return errors.New(errorRootEmpty)
	}
	absoluteRoot, absoluteError := filepath.Abs(options.Root)
	if absoluteError != nil {
		return fmt.Errorf(errorAbsolutePathFormat, options.Root, absoluteError)
	}
	rootInfo, statError := os.Stat(absoluteRoot)
	if statError != nil {
		return fmt.Errorf(errorReadDirectory, options.Root, statError)
	}
	if !rootInfo.IsDir() {
		return fmt.Errorf(errorRootNotDirectory, options.Root)
	}

	matcher, matcherError := config.NewMatcher(options.Ignore)
	if matcherError != nil {
		return matcherError
	}
	state := &walkState{
		options:      options,
		absoluteRoot: filepath.Clean(absoluteRoot),
		matcher:      matcher,
		excluded:     map[string]struct{}{},
		emitted:      map[string]struct{}{},
		logger:       options.Logger,
	}
	if state.logger == nil {
		state.logger = zap.NewNop()
	}
	for _, excludedPath := range options.ExcludePaths {
		if absoluteExcluded, err := filepath.Abs(excludedPath); err == nil {
			state.excluded[filepath.Clean(absoluteExcluded)] = struct{}{}
		}
	}

	walkError := filepath.WalkDir(state.absoluteRoot, func(walkedPath string, directoryEntry fs.DirEntry, accessError error) error {
		if accessError != nil {
			return fmt.Errorf(errorReadDirectory, walkedPath, accessError)
		}
		if contextError := ctx.Err(); contextError != nil {
			return contextError
		}
		return state.visitEntry(walkedPath, directoryEntry, visit)
	})
	if walkError != nil {
		return walkError
	}

	return state.visitIncluded(ctx, visit)
}

func (state *walkState) visitEntry(walkedPath string, directoryEntry fs.DirEntry, visit Visitor) error {
	relativePath := utils.RelativePathOrSelf(walkedPath, state.absoluteRoot)
	if relativePath == "." {
		return state.matcher.LoadDirectory(walkedPath, "")
	}
	entryName := directoryEntry.Name()

	if directoryEntry.IsDir() {
		if !state.shouldDescend(relativePath, entryName) {
			state.logger.Debug("skipping directory", zap.String("path", relativePath))
			return filepath.SkipDir
		}
		return state.matcher.LoadDirectory(walkedPath, relativePath)
	}

	if !directoryEntry.Type().IsRegular() {
		return nil
	}
	if !state.shouldEmitFile(walkedPath, relativePath, entryName) {
		return nil
	}

	textFile, readError := utils.ReadTextFile(walkedPath)
	if readError != nil {
		return fmt.Errorf(errorReadFileFormat, walkedPath, readError)
	}
	if state.options.Pattern != nil {
		if textFile.IsBinary || !state.options.Pattern.MatchString(textFile.Content) {
			return nil
		}
	}

	state.emitted[filepath.Clean(walkedPath)] = struct{}{}
	return visit(newFileEntry(filepath.Join(state.options.Root, filepath.FromSlash(relativePath)), textFile, false))
}

func (state *walkState) shouldDescend(relativePath string, entryName string) bool {
	if entryName == utils.GitDirectoryName {
		return false
	}
	if !state.options.IncludeHidden && utils.IsHiddenName(entryName) {
		return false
	}
	if state.options.MaxDepth != nil && utils.PathDepth(relativePath)+1 > *state.options.MaxDepth {
		return false
	}
	return !state.matcher.Match(relativePath, true)
}

func (state *walkState) shouldEmitFile(walkedPath string, relativePath string, entryName string) bool {
	if config.IsServiceFile(entryName) {
		return false
	}
	if !state.options.IncludeHidden && utils.IsHiddenName(entryName) {
		return false
	}
	if state.options.MaxDepth != nil && utils.PathDepth(relativePath) > *state.options.MaxDepth {
		return false
	}
	if _, excluded := state.excluded[filepath.Clean(walkedPath)]; excluded {
		return false
	}
	return !state.matcher.Match(relativePath, false)
}

func (state *walkState) visitIncluded(ctx context.Context, visit Visitor) error {
	for _, includedPath := range state.options.Include {
		if contextError := ctx.Err(); contextError != nil {
			return contextError
		}
		fileInfo, statError := os.Stat(includedPath)
		if statError != nil || !fileInfo.Mode().IsRegular() {
			state.warn(fmt.Sprintf(warningIncludedMissing, includedPath))
			continue
		}
		absoluteIncluded, absoluteError := filepath.Abs(includedPath)
		if absoluteError == nil {
			absoluteIncluded = filepath.Clean(absoluteIncluded)
			if _, alreadyEmitted := state.emitted[absoluteIncluded]; alreadyEmitted {
				state.logger.Debug("included file already emitted", zap.String("path", includedPath))
				continue
			}
			state.emitted[absoluteIncluded] = struct{}{}
		}
		textFile, readError := utils.ReadTextFile(includedPath)
		if readError != nil {
			state.warn(fmt.Sprintf(warningIncludedRead, includedPath, readError))
			continue
		}
		if visitError := visit(newFileEntry(includedPath, textFile, true)); visitError != nil {
			return visitError
		}
	}
	return nil
}

func (state *walkState) warn(message string) {
	if state.options.Warn != nil {
		state.options.Warn(message)
	}
}

func newFileEntry(displayPath string, textFile utils.TextFile, included bool) types.FileEntry {
	entry := types.FileEntry{
		Path:      displayPath,
		Content:   textFile.Content,
		IsBinary:  textFile.IsBinary,
		Included:  included,
		SizeBytes: textFile.SizeBytes,
	}
	if entry.IsBinary {
		entry.Content = types.BinaryPlaceholder
	}
	return entry
}
