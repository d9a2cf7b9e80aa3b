package output

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/temirov/contree/internal/filelock"
)

// SinkOptions selects where rendered context goes.
type SinkOptions struct {
	// Path is the output file; empty writes to Stdout.
	Path   string
	Stdout io.Writer
	// Capture keeps a copy of everything written, for the clipboard.
	Capture bool
}

// Sink is a buffered destination for rendered context. File sinks hold an
// exclusive lock on "<path>.lock" until Close.
type Sink struct {
	writer   *bufio.Writer
	file     *os.File
	lock     *filelock.FileLock
	captured *bytes.Buffer
}

// OpenSink creates the output file (taking its lock) or wraps Stdout.
func OpenSink(options SinkOptions) (*Sink, error) {
	sink := &Sink{}
	destination := options.Stdout
	if destination == nil {
		destination = io.Discard
	}
	if options.Path != "" {
		lock := filelock.NewFileLock(options.Path)
		if lockError := lock.Acquire(); lockError != nil {
			return nil, fmt.Errorf("failed to lock output file %s: %w", options.Path, lockError)
		}
		file, createError := os.Create(options.Path)
		if createError != nil {
			_ = lock.Release()
			return nil, fmt.Errorf("failed to create output file %s: %w", options.Path, createError)
		}
		sink.file = file
		sink.lock = lock
		destination = file
	}
	if options.Capture {
		sink.captured = &bytes.Buffer{}
		destination = io.MultiWriter(destination, sink.captured)
	}
	sink.writer = bufio.NewWriter(destination)
	return sink, nil
}

// Writer returns the buffered writer; it is flushed by Close.
func (sink *Sink) Writer() io.Writer {
	return sink.writer
}

// Captured returns everything written so far when capture is enabled.
// Unflushed bytes are not included until Close.
func (sink *Sink) Captured() string {
	if sink.captured == nil {
		return ""
	}
	return sink.captured.String()
}

// Close flushes buffered output, closes the file and releases the lock.
func (sink *Sink) Close() error {
	var closeErrors []error
	if flushError := sink.writer.Flush(); flushError != nil {
		closeErrors = append(closeErrors, fmt.Errorf("failed to flush output: %w", flushError))
	}
	if sink.file != nil {
		if fileError := sink.file.Close(); fileError != nil {
			closeErrors = append(closeErrors, fmt.Errorf("failed to close output file: %w", fileError))
		}
	}
	if sink.lock != nil {
		if releaseError := sink.lock.Release(); releaseError != nil {
			closeErrors = append(closeErrors, releaseError)
		}
	}
	return errors.Join(closeErrors...)
}
