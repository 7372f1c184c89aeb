// Package config loads, normalizes, and validates preziup configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// XDG_CACHE_HOME and PREZIUP_USER_AGENT. The Config type centralizes the
// upgrade engine flags together with the retrieval, cache, output, and logging
// knobs the CLI needs.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical format names, and clear validation errors.
package config
