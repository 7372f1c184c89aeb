// Package logging assembles structured slog loggers and formatting helpers used
// across preziup.
//
// It owns the console and JSON handlers and the fanout that sends CLI logs to
// stderr and to a daily JSON file in the log directory, pruned after the
// configured retention. Context-aware helpers tag log lines with the document
// source and correlation ID. NewNop serves tests and library callers that do
// not supply a logger.
package logging
