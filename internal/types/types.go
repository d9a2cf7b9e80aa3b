// Package types defines every cross‑package data structure used by the contree CLI.
package types

const (
	CommandScan = "scan"
	CommandRun  = "run"

	// BinaryPlaceholder replaces the body of files that are not valid text.
	BinaryPlaceholder = "[binary file]"

	// ReasonDirectlyReferenced marks dependency files named verbatim in captured output.
	ReasonDirectlyReferenced = "directly referenced"
	// ReasonTypeFormat describes a dependency file matched by a type or symbol name.
	ReasonTypeFormat = "type %s"
	// ReasonMacroFormat describes a dependency file defining a referenced macro.
	ReasonMacroFormat = "macro %s"
)

// FileEntry is one file emitted into the rendered context.
type FileEntry struct {
	Path      string
	Content   string
	IsBinary  bool
	Included  bool
	SizeBytes int64
}

// DependencyMatch is a package-cache file deemed relevant to captured output.
type DependencyMatch struct {
	Ecosystem string
	Path      string
	Reasons   []string
}

// OutputSummary captures aggregate information about rendered files.
type OutputSummary struct {
	TotalFiles  int
	TotalSize   string
	TotalTokens int
	Model       string
}
