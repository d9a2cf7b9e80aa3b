package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/contree/internal/capture"
	"github.com/temirov/contree/internal/config"
	"github.com/temirov/contree/internal/correlate"
	"github.com/temirov/contree/internal/filelock"
	"github.com/temirov/contree/internal/output"
	"github.com/temirov/contree/internal/services/stream"
	"github.com/temirov/contree/internal/tokenizer"
	"github.com/temirov/contree/internal/types"
	"github.com/temirov/contree/internal/utils"
	"github.com/temirov/contree/internal/walker"
)

const (
	standardInputName           = "standard input"
	warningStandardInputFormat  = "failed to read standard input: %v"
	warningClipboardFormat      = "failed to copy context to clipboard: %v"
	workingDirectoryErrorFormat = "unable to determine working directory: %w"
	errorOutputPathFormat       = "invalid output path %s: %w"
	errorMaxDepthFormat         = "--%s must not be negative, got %d"
	errorRunCommandFormat       = "failed to run %q: %w"
)

// scanOptions stores the flags shared by the root and run commands.
type scanOptions struct {
	directory         string
	includeDeps       bool
	outputPath        string
	grep              string
	include           []string
	maxDepth          int
	exclusionPatterns []string
	disableGitignore  bool
	disableIgnoreFile bool
	includeHidden     bool
	summary           bool
	tokens            bool
	model             string
	copyToClipboard   bool
	command           string
}

func addScanFlags(command *cobra.Command, options *scanOptions) {
	flags := command.Flags()
	flags.StringVarP(&options.directory, directoryFlagName, directoryFlagShorthand, defaultPath, directoryFlagDescription)
	flags.BoolVarP(&options.includeDeps, dependenciesFlagName, dependenciesShorthand, false, dependenciesFlagDescription)
	flags.StringVarP(&options.outputPath, outputFlagName, outputFlagShorthand, "", outputFlagDescription)
	flags.StringVarP(&options.grep, grepFlagName, grepFlagShorthand, "", grepFlagDescription)
	flags.StringSliceVarP(&options.include, includeFlagName, includeFlagShorthand, nil, includeFlagDescription)
	flags.IntVar(&options.maxDepth, maxDepthFlagName, unlimitedDepth, maxDepthFlagDescription)
	flags.StringArrayVarP(&options.exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	flags.BoolVar(&options.disableGitignore, noGitignoreFlagName, false, noGitignoreFlagDescription)
	flags.BoolVar(&options.disableIgnoreFile, noIgnoreFlagName, false, noIgnoreFlagDescription)
	flags.BoolVar(&options.includeHidden, hiddenFlagName, false, hiddenFlagDescription)
	flags.BoolVar(&options.summary, summaryFlagName, false, summaryFlagDescription)
	flags.BoolVar(&options.tokens, tokensFlagName, false, tokensFlagDescription)
	flags.StringVar(&options.model, modelFlagName, config.DefaultTokenizerModel, modelFlagDescription)
	flags.BoolVar(&options.copyToClipboard, copyFlagName, false, copyFlagDescription)
}

// scanSettings is the configuration file overlaid with explicitly set flags.
type scanSettings struct {
	directory       string
	includeDeps     bool
	outputPath      string
	grep            string
	include         []string
	maxDepth        *int
	exclude         []string
	useGitignore    bool
	useIgnoreFile   bool
	includeHidden   bool
	summary         bool
	tokens          bool
	model           string
	copyToClipboard bool
	command         string
	dependencies    config.DependencyConfiguration
}

func resolveScanSettings(command *cobra.Command, flags scanOptions, configuration config.ApplicationConfiguration) (scanSettings, error) {
	changed := command.Flags().Changed
	settings := scanSettings{
		directory:       flags.directory,
		outputPath:      flags.outputPath,
		grep:            configuration.Scan.Grep,
		include:         configuration.Scan.Include,
		maxDepth:        configuration.Scan.MaxDepth,
		exclude:         configuration.Scan.Exclude,
		useGitignore:    config.BoolValue(configuration.Scan.UseGitignore, true),
		useIgnoreFile:   config.BoolValue(configuration.Scan.UseIgnoreFile, true),
		includeHidden:   config.BoolValue(configuration.Scan.IncludeHidden, false),
		summary:         config.BoolValue(configuration.Scan.Summary, false),
		copyToClipboard: config.BoolValue(configuration.Scan.Clipboard, false),
		includeDeps:     config.BoolValue(configuration.Dependencies.Enabled, false),
		tokens:          config.BoolValue(configuration.Tokens.Enabled, false),
		model:           configuration.Tokens.Model,
		command:         configuration.Run.Command,
		dependencies:    configuration.Dependencies,
	}
	if changed(grepFlagName) {
		settings.grep = flags.grep
	}
	if changed(includeFlagName) {
		settings.include = utils.DeduplicatePatterns(utils.SplitCommaSeparated(flags.include))
	}
	if changed(maxDepthFlagName) {
		if flags.maxDepth < 0 {
			return scanSettings{}, fmt.Errorf(errorMaxDepthFormat, maxDepthFlagName, flags.maxDepth)
		}
		depth := flags.maxDepth
		settings.maxDepth = &depth
	}
	if settings.maxDepth != nil && *settings.maxDepth < 0 {
		settings.maxDepth = nil
	}
	if changed(exclusionFlagName) {
		settings.exclude = utils.DeduplicatePatterns(append(append([]string{}, settings.exclude...), flags.exclusionPatterns...))
	}
	if changed(noGitignoreFlagName) {
		settings.useGitignore = !flags.disableGitignore
	}
	if changed(noIgnoreFlagName) {
		settings.useIgnoreFile = !flags.disableIgnoreFile
	}
	if changed(hiddenFlagName) {
		settings.includeHidden = flags.includeHidden
	}
	if changed(summaryFlagName) {
		settings.summary = flags.summary
	}
	if changed(copyFlagName) {
		settings.copyToClipboard = flags.copyToClipboard
	}
	if changed(dependenciesFlagName) {
		settings.includeDeps = flags.includeDeps
	}
	if changed(tokensFlagName) {
		settings.tokens = flags.tokens
	}
	if changed(modelFlagName) || settings.model == "" {
		settings.model = flags.model
	}
	if changed(commandFlagName) || settings.command == "" {
		settings.command = flags.command
	}
	return settings, nil
}

// runScan captures input for the command variant, then streams the project
// context (and dependency files) into the sink.
func runScan(command *cobra.Command, environment Environment, globalFlags persistentOptions, flags scanOptions, commandName string) (err error) {
	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := environment.Logger
	warnings := utils.NewWarningPrinter(environment.Stderr)
	warn := func(message string) {
		warnings.Warnf("%s", message)
	}

	workingDirectory := environment.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}
	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: globalFlags.configPath,
		HomeDirectory:    environment.HomeDirectory,
	})
	if configurationError != nil {
		return configurationError
	}
	settings, settingsError := resolveScanSettings(command, flags, configuration)
	if settingsError != nil {
		return settingsError
	}
	if settings.directory == defaultPath {
		settings.directory = workingDirectory
	}

	pattern, patternError := walker.CompilePattern(settings.grep)
	if patternError != nil {
		return patternError
	}

	var excludePaths []string
	if settings.outputPath != "" {
		absoluteOutput, absoluteError := filepath.Abs(settings.outputPath)
		if absoluteError != nil {
			return fmt.Errorf(errorOutputPathFormat, settings.outputPath, absoluteError)
		}
		excludePaths = append(excludePaths, absoluteOutput, filelock.NewFileLock(absoluteOutput).Path())
	}

	var tokenCounter tokenizer.Counter
	var tokenModel string
	if settings.tokens {
		createdCounter, resolvedModel, counterError := tokenizer.NewCounter(settings.model)
		if counterError != nil {
			return counterError
		}
		tokenCounter = createdCounter
		tokenModel = resolvedModel
	}

	sink, sinkError := output.OpenSink(output.SinkOptions{
		Path:    settings.outputPath,
		Stdout:  environment.Stdout,
		Capture: settings.copyToClipboard,
	})
	if sinkError != nil {
		return sinkError
	}
	defer func() {
		if closeError := sink.Close(); closeError != nil && err == nil {
			err = closeError
		}
		if err == nil && settings.copyToClipboard && environment.Clipboard != nil {
			if copyError := environment.Clipboard.Copy(sink.Captured()); copyError != nil {
				warnings.Warnf(warningClipboardFormat, copyError)
			}
		}
	}()

	buffer := &capture.Buffer{}
	switch commandName {
	case types.CommandRun:
		logger.Debug("running command", zap.String("command", settings.command), zap.String("directory", settings.directory))
		if _, runError := capture.RunCommand(ctx, capture.CommandOptions{
			Command:   settings.command,
			Directory: settings.directory,
			Stdout:    environment.Stdout,
			Stderr:    environment.Stderr,
			Warn:      warn,
			Logger:    logger,
		}, buffer); runError != nil {
			return fmt.Errorf(errorRunCommandFormat, settings.command, runError)
		}
	default:
		if environment.Stdin != nil && !environment.IsTerminal(environment.Stdin) {
			logger.Debug("capturing standard input")
			if passthroughError := capture.Passthrough(ctx, environment.Stdin, buffer, capture.StreamOptions{
				Name:    standardInputName,
				Console: environment.Stdout,
				Warn:    warn,
			}); passthroughError != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				warnings.Warnf(warningStandardInputFormat, passthroughError)
			}
		}
	}

	var dependencyFinder stream.DependencyFinder
	if settings.includeDeps {
		locations := config.ResolveDependencyLocations(settings.dependencies)
		dependencyFinder = environment.NewDependencyFinder(correlate.Options{
			WorkingDirectory: settings.directory,
			Environment: correlate.Environment{
				CargoHome:     locations.CargoHome,
				GoModCache:    locations.GoModCache,
				HomeDirectory: locations.HomeDirectory,
			},
			Logger: logger,
			Warn:   warn,
		})
	}

	renderer := output.NewRawStreamRenderer(output.RendererOptions{
		Out:            sink.Writer(),
		Warnings:       warnings,
		SummaryOut:     environment.Stderr,
		IncludeSummary: settings.summary,
	})
	contextOptions := stream.ContextOptions{
		Walk: walker.Options{
			Root:     settings.directory,
			Pattern:  pattern,
			Include:  settings.include,
			MaxDepth: settings.maxDepth,
			Ignore: config.IgnoreOptions{
				UseGitignore:      settings.useGitignore,
				UseIgnoreFile:     settings.useIgnoreFile,
				ExclusionPatterns: settings.exclude,
			},
			IncludeHidden: settings.includeHidden,
			ExcludePaths:  excludePaths,
			Logger:        logger,
		},
		Dependencies:   dependencyFinder,
		CapturedOutput: buffer.String(),
		TokenCounter:   tokenCounter,
		TokenModel:     tokenModel,
	}

	producer := func(streamCtx context.Context, events chan<- stream.Event) error {
		return stream.StreamContext(streamCtx, contextOptions, events)
	}
	if dispatchError := dispatchStream(ctx, producer, renderer.Handle); dispatchError != nil {
		return dispatchError
	}
	return renderer.Flush()
}

func dispatchStream(
	ctx context.Context,
	produce func(context.Context, chan<- stream.Event) error,
	consume func(stream.Event) error,
) error {
	group, streamCtx := errgroup.WithContext(ctx)
	events := make(chan stream.Event)

	group.Go(func() error {
		defer close(events)
		return produce(streamCtx, events)
	})

	group.Go(func() error {
		for {
			select {
			case <-streamCtx.Done():
				return streamCtx.Err()
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := consume(event); err != nil {
					return err
				}
			}
		}
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
