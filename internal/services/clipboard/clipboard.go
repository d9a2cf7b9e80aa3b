// Package clipboard copies rendered context to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnsupported reports a platform without a clipboard utility.
var ErrUnsupported = errors.New("no clipboard utility available")

// Copier copies text to a clipboard.
type Copier interface {
	Copy(text string) error
}

// Service writes through github.com/atotto/clipboard.
type Service struct {
	unsupported bool
	write       func(string) error
}

// NewService returns a Service bound to the system clipboard.
func NewService() *Service {
	return &Service{unsupported: clipboard.Unsupported, write: clipboard.WriteAll}
}

// Copy replaces the clipboard content with text.
func (service *Service) Copy(text string) error {
	if service.unsupported {
		return ErrUnsupported
	}
	if writeError := service.write(text); writeError != nil {
		return fmt.Errorf("write clipboard: %w", writeError)
	}
	return nil
}

var _ Copier = (*Service)(nil)
