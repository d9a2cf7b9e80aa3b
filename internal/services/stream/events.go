package stream

type EventKind string

const (
	EventKindStart      EventKind = "start"
	EventKindSection    EventKind = "section"
	EventKindFile       EventKind = "file"
	EventKindDependency EventKind = "dependency"
	EventKindSummary    EventKind = "summary"
	EventKindWarning    EventKind = "warning"
	EventKindDone       EventKind = "done"
)

// Section names a block of the rendered context.
type Section string

const (
	SectionProject      Section = "project"
	SectionDependencies Section = "dependencies"
)

type Event struct {
	Kind EventKind
	Path string

	Section    Section
	File       *FileEvent
	Dependency *DependencyEvent
	Summary    *SummaryEvent
	Message    *LogEvent
}

type FileEvent struct {
	Path      string
	Content   string
	SizeBytes int64
	IsBinary  bool
	Included  bool
	Tokens    int
	Model     string
}

// DependencyEvent is a dependency source file with the reasons it matched.
// ReadError is set instead of Content when the file could not be read.
type DependencyEvent struct {
	Ecosystem string
	Path      string
	Reasons   []string
	Content   string
	ReadError string
	SizeBytes int64
	IsBinary  bool
	Tokens    int
	Model     string
}

type SummaryEvent struct {
	Files  int
	Bytes  int64
	Tokens int
	Model  string
}

type LogEvent struct {
	Level   string
	Message string
}
