package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Upgrade contains the rewrite engine flags.
type Upgrade struct {
	// ExtOK keeps non-standard properties verbatim instead of dropping them.
	ExtOK bool `toml:"ext_ok"`
	// DerefLinks fetches and inlines externally referenced annotation lists.
	DerefLinks bool `toml:"deref_links"`
	// DescriptionIsMetadata emits description as a "Description" metadata row
	// instead of a summary.
	DescriptionIsMetadata bool `toml:"description_is_metadata"`
	// RelatedIsMetadata emits related as a "Related" metadata row instead of homepage.
	RelatedIsMetadata bool `toml:"related_is_metadata"`
	// DefaultLanguage is the language map key for untagged values. Default: "@none"
	DefaultLanguage string `toml:"default_language"`
	// ErrorPolicy is "continue" (skip failing subtrees) or "abort".
	ErrorPolicy string `toml:"error_policy"`
	// StrictVersion rejects documents that do not declare a 2.x context.
	StrictVersion    bool   `toml:"strict_version"`
	MintBase         string `toml:"mint_base"`
	AttributionLabel string `toml:"attribution_label"`
}

// Fetch contains configuration for remote document retrieval.
type Fetch struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
	MaxBytes       int64  `toml:"max_bytes"`
}

// Cache contains configuration for the document cache.
type Cache struct {
	Enabled  bool   `toml:"enabled"`
	Path     string `toml:"path"`     // Default: <cache_dir>/documents.db
	Compress bool   `toml:"compress"` // xz-compress stored payloads
	TTLHours int    `toml:"ttl_hours"`
}

// Output contains configuration for document encoding.
type Output struct {
	Format string `toml:"format"` // "json" or "yaml"
	Indent int    `toml:"indent"`
}

// Batch contains configuration for multi-document runs.
type Batch struct {
	Workers int `toml:"workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Patches lists RFC 6902 patch files applied to every upgraded document.
type Patches struct {
	Files []string `toml:"files"`
}

// Config encapsulates all configuration values for preziup.
//
// Configuration sections by subsystem:
//   - Paths: cache and log directories
//   - Upgrade: rewrite engine flags
//   - Fetch: HTTP retrieval of remote documents
//   - Cache: persistent read-through document cache
//   - Output: JSON or YAML encoding of results
//   - Batch: worker pool sizing
//   - Logging: log format and level
//   - Patches: post-upgrade JSON patches
type Config struct {
	Paths   Paths   `toml:"paths"`
	Upgrade Upgrade `toml:"upgrade"`
	Fetch   Fetch   `toml:"fetch"`
	Cache   Cache   `toml:"cache"`
	Output  Output  `toml:"output"`
	Batch   Batch   `toml:"batch"`
	Logging Logging `toml:"logging"`
	Patches Patches `toml:"patches"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/preziup/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("preziup.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Cache.Enabled {
		if err := os.MkdirAll(filepath.Dir(c.Cache.Path), 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "preziup")
	}
	return "~/.cache/preziup"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
