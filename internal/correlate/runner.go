package correlate

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes a package-manager query and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, directory string, name string, arguments ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with arguments inside directory.
func (ExecRunner) Run(ctx context.Context, directory string, name string, arguments ...string) ([]byte, error) {
	command := exec.CommandContext(ctx, name, arguments...)
	command.Dir = directory
	var standardError bytes.Buffer
	command.Stderr = &standardError
	output, runError := command.Output()
	if runError != nil {
		details := strings.TrimSpace(standardError.String())
		if details != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(arguments, " "), runError, details)
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(arguments, " "), runError)
	}
	return output, nil
}

var _ CommandRunner = ExecRunner{}
