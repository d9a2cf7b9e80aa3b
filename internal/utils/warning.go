package utils

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// WarningPrinter writes "Warning: ..." lines to an error stream. Output is
// colored only when the stream is a terminal.
type WarningPrinter struct {
	mutex     sync.Mutex
	writer    io.Writer
	colorizer *color.Color
}

// NewWarningPrinter constructs a printer for writer.
func NewWarningPrinter(writer io.Writer) *WarningPrinter {
	colorizer := color.New(color.FgYellow)
	if !isTerminalWriter(writer) {
		colorizer.DisableColor()
	} else {
		colorizer.EnableColor()
	}
	return &WarningPrinter{writer: writer, colorizer: colorizer}
}

// Warnf formats and prints one warning line.
func (printer *WarningPrinter) Warnf(format string, arguments ...any) {
	if printer == nil || printer.writer == nil {
		return
	}
	printer.mutex.Lock()
	defer printer.mutex.Unlock()
	message := fmt.Sprintf(format, arguments...)
	printer.colorizer.Fprintln(printer.writer, WarningPrefix+message)
}

func isTerminalWriter(writer io.Writer) bool {
	file, isFile := writer.(*os.File)
	if !isFile {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
