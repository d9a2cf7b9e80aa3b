// Package output renders project context blocks and manages the output sink.
package output

import (
	"fmt"
	"strings"

	"github.com/temirov/contree/internal/services/stream"
	"github.com/temirov/contree/internal/types"
)

const (
	// ProjectBanner opens the project section.
	ProjectBanner = "\n=== Project Context ===\n\n"
	// DependencyBanner opens the dependency section.
	DependencyBanner = "\n=== Relevant Dependency Files ===\n\n"

	fileHeaderFormat     = "File: %s\n"
	reasonPrefix         = "  - "
	codeFence            = "```"
	failedReadFormat     = "(Failed to read file: %s)"
	summaryTokensFormat  = ", %d tokens"
	summaryModelFormat   = " (model: %s)"
	summaryLineFormat    = "Summary: %d %s, %s%s%s"
	summaryFileLabel     = "file"
	summaryFilesLabel    = "files"
	sizeUnitsDescription = "b kb mb gb tb pb"
)

var sizeUnits = strings.Fields(sizeUnitsDescription)

// FormatFileBlock renders one file as a header line, a fenced body and a blank line.
func FormatFileBlock(path string, content string) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(fileHeaderFormat, path))
	writeFencedBody(&builder, content)
	return builder.String()
}

// FormatDependencyBlock renders a dependency file with one line per match reason.
func FormatDependencyBlock(dependency *stream.DependencyEvent) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(fileHeaderFormat, dependency.Path))
	for _, reason := range dependency.Reasons {
		builder.WriteString(reasonPrefix + reason + "\n")
	}
	body := dependency.Content
	if dependency.ReadError != "" {
		body = fmt.Sprintf(failedReadFormat, dependency.ReadError)
	}
	writeFencedBody(&builder, body)
	return builder.String()
}

func writeFencedBody(builder *strings.Builder, body string) {
	builder.WriteString(codeFence + "\n")
	builder.WriteString(body)
	builder.WriteString("\n" + codeFence + "\n\n")
}

// FormatSummaryLine renders the aggregate counts of a run.
func FormatSummaryLine(summary *types.OutputSummary) string {
	if summary == nil {
		summary = &types.OutputSummary{}
	}
	label := summaryFilesLabel
	if summary.TotalFiles == 1 {
		label = summaryFileLabel
	}
	extra := ""
	if summary.TotalTokens > 0 {
		extra = fmt.Sprintf(summaryTokensFormat, summary.TotalTokens)
	}
	modelSuffix := ""
	if summary.Model != "" {
		modelSuffix = fmt.Sprintf(summaryModelFormat, summary.Model)
	}
	return fmt.Sprintf(summaryLineFormat, summary.TotalFiles, label, summary.TotalSize, extra, modelSuffix)
}

// FormatFileSize converts a byte length into a human-readable lower-case unit string.
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		return "0b"
	}
	value := float64(bytes)
	unitIndex := 0
	for value >= 1024 && unitIndex < len(sizeUnits)-1 {
		value /= 1024
		unitIndex++
	}
	if unitIndex == 0 {
		return fmt.Sprintf("%db", bytes)
	}
	if value < 10 {
		formatted := strings.TrimSuffix(fmt.Sprintf("%.1f", value), ".0")
		return formatted + sizeUnits[unitIndex]
	}
	return fmt.Sprintf("%.0f%s", value, sizeUnits[unitIndex])
}
