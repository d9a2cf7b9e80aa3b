package output

import (
	"github.com/temirov/contree/internal/services/stream"
)

// StreamRenderer consumes events in order and writes the rendered context.
type StreamRenderer interface {
	Handle(event stream.Event) error
	Flush() error
}
