package detect

// Export internal functions for testing.

// ParseSilenceOutput exports parseSilenceOutput for testing.
var ParseSilenceOutput = parseSilenceOutput

// SilenceFilter exports silenceFilter for testing.
var SilenceFilter = silenceFilter

// CommandRunner exports commandRunner interface for testing.
type CommandRunner = commandRunner
