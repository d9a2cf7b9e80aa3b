// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/contree/internal/config"
	"github.com/temirov/contree/internal/correlate"
	"github.com/temirov/contree/internal/services/clipboard"
	"github.com/temirov/contree/internal/services/stream"
	"github.com/temirov/contree/internal/types"
	"github.com/temirov/contree/internal/utils"
)

const (
	directoryFlagName       = "dir"
	directoryFlagShorthand  = "d"
	dependenciesFlagName    = "include-deps"
	dependenciesShorthand   = "D"
	outputFlagName          = "output"
	outputFlagShorthand     = "o"
	grepFlagName            = "grep"
	grepFlagShorthand       = "g"
	includeFlagName         = "include"
	includeFlagShorthand    = "i"
	maxDepthFlagName        = "max-depth"
	exclusionFlagName       = "e"
	noGitignoreFlagName     = "no-gitignore"
	noIgnoreFlagName        = "no-ignore"
	hiddenFlagName          = "hidden"
	summaryFlagName         = "summary"
	tokensFlagName          = "tokens"
	modelFlagName           = "model"
	copyFlagName            = "copy"
	configFlagName          = "config"
	verboseFlagName         = "verbose"
	verboseFlagShorthand    = "v"
	versionFlagName         = "version"
	commandFlagName         = "command"
	commandFlagShorthand    = "c"
	globalFlagName          = "global"
	forceFlagName           = "force"
	defaultPath             = "."
	unlimitedDepth          = -1
	versionTemplate         = "contree version: %s\n"
	initCompletedFormat     = "Configuration written to %s\n"
	rootUse                 = "contree"
	runUse                  = "run"
	initUse                 = "init"
	rootShortDescription    = "collect project files into a single context document"
	runShortDescription     = "run a command and collect context for its output"
	initShortDescription    = "write a default configuration file"
	rootLongDescription     = `contree walks a project directory and prints every file that survives the
ignore rules as a "File:" block with a fenced body.
When standard input is piped, it is echoed and captured first; with --include-deps
the captured compiler output is matched against the cargo registry and the Go
module cache, and the relevant dependency sources are appended.`
	runLongDescription = `Run a shell command in the scan directory, relaying its output while capturing
it, then collect the project context. A non-zero exit status of the command is a
warning, not an error.`
	rootUsageExample = `  # Collect the current project
  contree

  # Collect context for failing tests, including dependency sources
  cargo test 2>&1 | contree -D -o context.txt

  # Only files mentioning "parser", plus two explicit files
  contree -g parser -i README.md,Cargo.toml`
	runUsageExample = `  # Run the default command and include dependency sources
  contree run -D

  # Run go vet instead
  contree run -c "go vet ./..." -D`

	directoryFlagDescription    = "directory to scan"
	dependenciesFlagDescription = "include dependency files related to captured errors"
	outputFlagDescription       = "write context to a file instead of standard output"
	grepFlagDescription         = "only include files containing the pattern; /regex/ for a regular expression"
	includeFlagDescription      = "always include these files (comma separated)"
	maxDepthFlagDescription     = "maximum directory depth to descend"
	exclusionFlagDescription    = "exclude path pattern"
	noGitignoreFlagDescription  = "do not use .gitignore"
	noIgnoreFlagDescription     = "do not use .ignore or .contreeignore"
	hiddenFlagDescription       = "include hidden files and directories"
	summaryFlagDescription      = "print a summary of the collected files to standard error"
	tokensFlagDescription       = "include token counts in the summary"
	modelFlagDescription        = "tokenizer model to use for token counting"
	copyFlagDescription         = "copy the rendered context to the clipboard"
	configFlagDescription       = "path to a configuration file"
	verboseFlagDescription      = "enable debug logging"
	versionFlagDescription      = "display application version"
	commandFlagDescription      = "shell command to run"
	globalFlagDescription       = "write the global configuration file"
	forceFlagDescription        = "overwrite an existing configuration file"
)

// Environment holds the process-level collaborators of the commands.
type Environment struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// IsTerminal reports whether the reader is an interactive terminal;
	// standard input is only captured when it is not.
	IsTerminal func(io.Reader) bool
	Clipboard  clipboard.Copier
	// NewDependencyFinder builds the correlator for --include-deps.
	NewDependencyFinder func(correlate.Options) stream.DependencyFinder
	// WorkingDirectory and HomeDirectory locate configuration files; empty
	// values resolve to the process defaults.
	WorkingDirectory string
	HomeDirectory    string
	Logger           *zap.Logger
	LogLevel         *zap.AtomicLevel
}

// Execute runs the contree application against the process streams.
func Execute(logger *zap.Logger, logLevel zap.AtomicLevel) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCommand := NewRootCommand(Environment{
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		IsTerminal: isTerminalReader,
		Clipboard:  clipboard.NewService(),
		Logger:     logger,
		LogLevel:   &logLevel,
	})
	return rootCommand.ExecuteContext(ctx)
}

// NewRootCommand builds the root command with its run and init subcommands.
func NewRootCommand(environment Environment) *cobra.Command {
	environment = withDefaults(environment)
	var globalFlags persistentOptions
	var scanFlags scanOptions

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Example:       rootUsageExample,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if globalFlags.verbose && environment.LogLevel != nil {
				environment.LogLevel.SetLevel(zap.DebugLevel)
			}
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			if globalFlags.showVersion {
				return printVersion(environment.Stdout)
			}
			return runScan(command, environment, globalFlags, scanFlags, types.CommandScan)
		},
	}
	rootCommand.SetIn(environment.Stdin)
	rootCommand.SetOut(environment.Stdout)
	rootCommand.SetErr(environment.Stderr)

	rootCommand.PersistentFlags().StringVar(&globalFlags.configPath, configFlagName, "", configFlagDescription)
	rootCommand.PersistentFlags().BoolVarP(&globalFlags.verbose, verboseFlagName, verboseFlagShorthand, false, verboseFlagDescription)
	rootCommand.PersistentFlags().BoolVar(&globalFlags.showVersion, versionFlagName, false, versionFlagDescription)
	addScanFlags(rootCommand, &scanFlags)

	rootCommand.AddCommand(
		createRunCommand(environment, &globalFlags),
		createInitCommand(environment, &globalFlags),
	)
	return rootCommand
}

type persistentOptions struct {
	configPath  string
	verbose     bool
	showVersion bool
}

func createRunCommand(environment Environment, globalFlags *persistentOptions) *cobra.Command {
	var scanFlags scanOptions
	runCommand := &cobra.Command{
		Use:     runUse,
		Short:   runShortDescription,
		Long:    runLongDescription,
		Example: runUsageExample,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if globalFlags.showVersion {
				return printVersion(environment.Stdout)
			}
			return runScan(command, environment, *globalFlags, scanFlags, types.CommandRun)
		},
	}
	addScanFlags(runCommand, &scanFlags)
	runCommand.Flags().StringVarP(&scanFlags.command, commandFlagName, commandFlagShorthand, config.DefaultRunCommand, commandFlagDescription)
	return runCommand
}

func createInitCommand(environment Environment, globalFlags *persistentOptions) *cobra.Command {
	var global bool
	var force bool
	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			destination, initError := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: environment.WorkingDirectory,
				HomeDirectory:    environment.HomeDirectory,
			})
			if initError != nil {
				return initError
			}
			_, writeError := fmt.Fprintf(environment.Stdout, initCompletedFormat, destination)
			return writeError
		},
	}
	initCommand.Flags().BoolVar(&global, globalFlagName, false, globalFlagDescription)
	initCommand.Flags().BoolVar(&force, forceFlagName, false, forceFlagDescription)
	return initCommand
}

func printVersion(out io.Writer) error {
	_, err := fmt.Fprintf(out, versionTemplate, utils.GetApplicationVersion())
	return err
}

func withDefaults(environment Environment) Environment {
	if environment.Stdout == nil {
		environment.Stdout = io.Discard
	}
	if environment.Stderr == nil {
		environment.Stderr = io.Discard
	}
	if environment.IsTerminal == nil {
		environment.IsTerminal = isTerminalReader
	}
	if environment.NewDependencyFinder == nil {
		environment.NewDependencyFinder = func(options correlate.Options) stream.DependencyFinder {
			return correlate.New(options)
		}
	}
	if environment.Logger == nil {
		environment.Logger = zap.NewNop()
	}
	return environment
}

// isTerminalReader treats anything that is not a file as having no input.
func isTerminalReader(reader io.Reader) bool {
	file, isFile := reader.(*os.File)
	if !isFile || file == nil {
		return true
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
