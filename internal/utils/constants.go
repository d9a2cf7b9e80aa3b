package utils

// Messages shared by the entry point and the CLI.
const (
	// LoggerInitializationFailedMessageFormat reports a logger that could not be built.
	LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"
	// ApplicationExecutionFailedMessage prefixes fatal execution errors.
	ApplicationExecutionFailedMessage = "contree failed"
	// WarningPrefix starts every user-facing warning line.
	WarningPrefix = "Warning: "
)
