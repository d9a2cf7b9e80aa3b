package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	unixShell           = "sh"
	unixShellFlag       = "-c"
	windowsShell        = "cmd"
	windowsShellFlag    = "/C"
	windowsPlatformName = "windows"

	standardOutputName = "command stdout"
	standardErrorName  = "command stderr"

	warningNonZeroExit = "command %q exited with status %d"

	// commandWaitDelay bounds how long the relays wait for the output pipes
	// after cancellation; background children of the shell can hold them open.
	commandWaitDelay = 2 * time.Second
)

// ErrEmptyCommand reports a run request without a command.
var ErrEmptyCommand = errors.New("command is empty")

// CommandOptions configures RunCommand.
type CommandOptions struct {
	Command   string
	Directory string
	Stdout    io.Writer
	Stderr    io.Writer
	Warn      func(message string)
	Logger    *zap.Logger
}

// Result describes a finished command.
type Result struct {
	ExitCode int
}

// RunCommand runs options.Command through the platform shell, relaying its
// standard output and standard error concurrently into buffer. A non-zero
// exit status is reported through Warn rather than as an error. The relative
// order of lines from the two streams in buffer is not guaranteed.
func RunCommand(ctx context.Context, options CommandOptions, buffer *Buffer) (Result, error) {
	if options.Command == "" {
		return Result{}, ErrEmptyCommand
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	commandContext, cancelCommand := context.WithCancel(ctx)
	defer cancelCommand()
	command := shellCommand(commandContext, options.Command)
	command.Dir = options.Directory
	command.WaitDelay = commandWaitDelay
	stdoutPipe, stdoutError := command.StdoutPipe()
	if stdoutError != nil {
		return Result{}, fmt.Errorf("attach stdout: %w", stdoutError)
	}
	stderrPipe, stderrError := command.StderrPipe()
	if stderrError != nil {
		return Result{}, fmt.Errorf("attach stderr: %w", stderrError)
	}

	logger.Debug("starting command", zap.String("command", options.Command), zap.String("directory", options.Directory))
	if startError := command.Start(); startError != nil {
		return Result{}, fmt.Errorf("start %q: %w", options.Command, startError)
	}

	// A failed relay kills the child so the other stream reaches EOF.
	relay := func(reader io.Reader, streamOptions StreamOptions) func() error {
		return func() error {
			if relayError := Passthrough(ctx, reader, buffer, streamOptions); relayError != nil {
				cancelCommand()
				return relayError
			}
			return nil
		}
	}
	var group errgroup.Group
	group.Go(relay(stdoutPipe, StreamOptions{Name: standardOutputName, Console: options.Stdout, Warn: options.Warn}))
	group.Go(relay(stderrPipe, StreamOptions{Name: standardErrorName, Console: options.Stderr, Warn: options.Warn}))
	relaysDone := make(chan struct{})
	go closePipesAfterCancel(commandContext, relaysDone, stdoutPipe, stderrPipe)
	relayError := group.Wait()
	close(relaysDone)
	waitError := command.Wait()
	if relayError != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, relayError
	}

	if waitError != nil {
		var exitError *exec.ExitError
		if errors.As(waitError, &exitError) && ctx.Err() == nil {
			result := Result{ExitCode: exitError.ExitCode()}
			if options.Warn != nil {
				options.Warn(fmt.Sprintf(warningNonZeroExit, options.Command, result.ExitCode))
			}
			return result, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("wait for %q: %w", options.Command, waitError)
	}
	logger.Debug("command finished", zap.String("command", options.Command))
	return Result{}, nil
}

// closePipesAfterCancel unblocks the relays once the command is cancelled and
// the pipes stay open past commandWaitDelay.
func closePipesAfterCancel(ctx context.Context, relaysDone <-chan struct{}, pipes ...io.Closer) {
	select {
	case <-relaysDone:
		return
	case <-ctx.Done():
	}
	timer := time.NewTimer(commandWaitDelay)
	defer timer.Stop()
	select {
	case <-relaysDone:
	case <-timer.C:
		for _, pipe := range pipes {
			_ = pipe.Close()
		}
	}
}

func shellCommand(ctx context.Context, commandLine string) *exec.Cmd {
	if runtime.GOOS == windowsPlatformName {
		return exec.CommandContext(ctx, windowsShell, windowsShellFlag, commandLine)
	}
	return exec.CommandContext(ctx, unixShell, unixShellFlag, commandLine)
}
