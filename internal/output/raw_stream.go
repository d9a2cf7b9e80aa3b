package output

import (
	"fmt"
	"io"

	"github.com/temirov/contree/internal/services/stream"
	"github.com/temirov/contree/internal/types"
	"github.com/temirov/contree/internal/utils"
)

type rawSummary struct {
	files  int
	bytes  int64
	tokens int
	model  string
}

func (summary *rawSummary) add(data *stream.SummaryEvent) {
	if data == nil {
		return
	}
	summary.files += data.Files
	summary.bytes += data.Bytes
	summary.tokens += data.Tokens
	if summary.model == "" && data.Model != "" && data.Tokens > 0 {
		summary.model = data.Model
	}
}

// RendererOptions configures the text renderer.
type RendererOptions struct {
	Out      io.Writer
	Warnings *utils.WarningPrinter
	// SummaryOut receives the summary line when IncludeSummary is set.
	SummaryOut     io.Writer
	IncludeSummary bool
}

type rawStreamRenderer struct {
	options RendererOptions
	summary rawSummary
}

// NewRawStreamRenderer returns the renderer producing the plain-text context format.
func NewRawStreamRenderer(options RendererOptions) StreamRenderer {
	return &rawStreamRenderer{options: options}
}

func (renderer *rawStreamRenderer) Handle(event stream.Event) error {
	switch event.Kind {
	case stream.EventKindWarning:
		if event.Message != nil && renderer.options.Warnings != nil {
			renderer.options.Warnings.Warnf("%s", event.Message.Message)
		}
	case stream.EventKindSection:
		return renderer.write(sectionBanner(event.Section))
	case stream.EventKindFile:
		if event.File != nil {
			return renderer.write(FormatFileBlock(event.File.Path, event.File.Content))
		}
	case stream.EventKindDependency:
		if event.Dependency != nil {
			return renderer.write(FormatDependencyBlock(event.Dependency))
		}
	case stream.EventKindSummary:
		renderer.summary.add(event.Summary)
	}
	return nil
}

func (renderer *rawStreamRenderer) Flush() error {
	if !renderer.options.IncludeSummary || renderer.options.SummaryOut == nil {
		return nil
	}
	outputSummary := &types.OutputSummary{
		TotalFiles:  renderer.summary.files,
		TotalSize:   FormatFileSize(renderer.summary.bytes),
		TotalTokens: renderer.summary.tokens,
		Model:       renderer.summary.model,
	}
	_, err := fmt.Fprintln(renderer.options.SummaryOut, FormatSummaryLine(outputSummary))
	return err
}

func (renderer *rawStreamRenderer) write(text string) error {
	if renderer.options.Out == nil || text == "" {
		return nil
	}
	_, err := io.WriteString(renderer.options.Out, text)
	return err
}

func sectionBanner(section stream.Section) string {
	switch section {
	case stream.SectionProject:
		return ProjectBanner
	case stream.SectionDependencies:
		return DependencyBanner
	default:
		return ""
	}
}
