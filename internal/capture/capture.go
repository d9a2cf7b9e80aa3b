// Package capture relays piped or child-process output to the console while
// accumulating it for the dependency correlator.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

const warningInvalidUTF8 = "%s is not valid UTF-8; invalid bytes were replaced"

// Buffer accumulates captured lines. It is safe for concurrent use.
type Buffer struct {
	mutex   sync.Mutex
	builder strings.Builder
}

// Append adds text to the buffer.
func (buffer *Buffer) Append(text string) {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	buffer.builder.WriteString(text)
}

// String returns everything captured so far.
func (buffer *Buffer) String() string {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	return buffer.builder.String()
}

// StreamOptions describes one relayed stream.
type StreamOptions struct {
	// Name identifies the stream in warnings.
	Name    string
	Console io.Writer
	Warn    func(message string)
}

// Passthrough copies reader to the console line by line, appending every
// line to buffer as soon as it has been echoed. Lines that are not valid
// UTF-8 are echoed unchanged but captured with invalid bytes replaced.
func Passthrough(ctx context.Context, reader io.Reader, buffer *Buffer, options StreamOptions) error {
	lineReader := bufio.NewReader(reader)
	warnedInvalid := false
	for {
		if contextError := ctx.Err(); contextError != nil {
			return contextError
		}
		line, readError := lineReader.ReadString('\n')
		if line != "" {
			if options.Console != nil {
				if _, writeError := io.WriteString(options.Console, line); writeError != nil {
					return fmt.Errorf("echo %s: %w", options.Name, writeError)
				}
			}
			if !utf8.ValidString(line) {
				if !warnedInvalid && options.Warn != nil {
					options.Warn(fmt.Sprintf(warningInvalidUTF8, options.Name))
				}
				warnedInvalid = true
				line = strings.ToValidUTF8(line, string(utf8.RuneError))
			}
			buffer.Append(line)
		}
		if readError != nil {
			if errors.Is(readError, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", options.Name, readError)
		}
	}
}
