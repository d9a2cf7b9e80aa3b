package capture

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("console closed") }

func TestPassthroughEchoesAndCaptures(t *testing.T) {
	var console bytes.Buffer
	var buffer Buffer
	input := "line one\nline two\nno trailing newline"

	err := Passthrough(context.Background(), strings.NewReader(input), &buffer, StreamOptions{Name: "stdin", Console: &console})
	require.NoError(t, err)
	require.Equal(t, input, console.String())
	require.Equal(t, input, buffer.String())
}

func TestPassthroughReplacesInvalidUTF8(t *testing.T) {
	var console bytes.Buffer
	var buffer Buffer
	var warnings []string
	input := "ok\n\xff\xfe bad\n\xff again\n"

	err := Passthrough(context.Background(), strings.NewReader(input), &buffer, StreamOptions{
		Name:    "stdin",
		Console: &console,
		Warn:    func(message string) { warnings = append(warnings, message) },
	})
	require.NoError(t, err)
	require.Equal(t, input, console.String())
	require.Equal(t, "ok\n� bad\n� again\n", buffer.String())
	require.Equal(t, []string{"stdin is not valid UTF-8; invalid bytes were replaced"}, warnings)
}

func TestPassthroughReportsConsoleFailure(t *testing.T) {
	var buffer Buffer
	err := Passthrough(context.Background(), strings.NewReader("line\n"), &buffer, StreamOptions{Name: "stdin", Console: failingWriter{}})
	require.ErrorContains(t, err, "console closed")
}

func TestPassthroughHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buffer Buffer
	err := Passthrough(ctx, strings.NewReader("line\n"), &buffer, StreamOptions{Name: "stdin"})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, buffer.String())
}

func skipWithoutPosixShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == windowsPlatformName {
		t.Skip("shell fixtures use POSIX syntax")
	}
}

func TestRunCommandCapturesBothStreams(t *testing.T) {
	skipWithoutPosixShell(t)
	var stdout, stderr bytes.Buffer
	var buffer Buffer

	result, err := RunCommand(context.Background(), CommandOptions{
		Command: "echo out; echo err 1>&2",
		Stdout:  &stdout,
		Stderr:  &stderr,
	}, &buffer)
	require.NoError(t, err)
	require.Zero(t, result.ExitCode)
	require.Equal(t, "out\n", stdout.String())
	require.Equal(t, "err\n", stderr.String())
	require.Contains(t, buffer.String(), "out\n")
	require.Contains(t, buffer.String(), "err\n")
}

func TestRunCommandNonZeroExitIsWarning(t *testing.T) {
	skipWithoutPosixShell(t)
	var buffer Buffer
	var warnings []string

	result, err := RunCommand(context.Background(), CommandOptions{
		Command: "echo failing; exit 3",
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
		Warn:    func(message string) { warnings = append(warnings, message) },
	}, &buffer)
	require.NoError(t, err)
	require.Equal(t, 3, result.ExitCode)
	require.Equal(t, "failing\n", buffer.String())
	require.Equal(t, []string{`command "echo failing; exit 3" exited with status 3`}, warnings)
}

func TestRunCommandRunsInDirectory(t *testing.T) {
	skipWithoutPosixShell(t)
	directory := t.TempDir()
	var stdout bytes.Buffer
	var buffer Buffer

	_, err := RunCommand(context.Background(), CommandOptions{Command: "pwd -P", Directory: directory, Stdout: &stdout}, &buffer)
	require.NoError(t, err)
	require.NotEmpty(t, strings.TrimSpace(buffer.String()))
	require.Equal(t, stdout.String(), buffer.String())
}

func TestRunCommandReturnsWhenBackgroundChildHoldsPipes(t *testing.T) {
	skipWithoutPosixShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var buffer Buffer

	started := time.Now()
	_, err := RunCommand(ctx, CommandOptions{Command: "sleep 30 & wait"}, &buffer)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(started), 10*time.Second)
}

func TestRunCommandRejectsEmptyCommand(t *testing.T) {
	var buffer Buffer
	_, err := RunCommand(context.Background(), CommandOptions{}, &buffer)
	require.ErrorIs(t, err, ErrEmptyCommand)
}
