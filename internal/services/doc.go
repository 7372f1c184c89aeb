// Package services defines shared utilities consumed by the upgrade engine,
// its collaborators, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and document sources
//     for logging.
//   - Structured error markers plus the Wrap helper that keep failures
//     matchable with errors.Is across package boundaries.
//   - Exit-code and kind classification so the CLI and batch reports treat a
//     given failure the same way.
package services
