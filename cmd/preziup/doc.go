// Package main hosts the preziup CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into calls on the
// internal upgrade engine: single-document upgrades, concurrent batch runs,
// document cache maintenance and configuration scaffolding. Configuration
// resolution, logger setup and collaborator wiring (fetcher, cache, patches)
// live in commandContext so subcommands only deal with their own flags and
// output.
//
// Keep this package lean: new behavior belongs in the internal packages
// first and is surfaced here through commands or flags.
package main
