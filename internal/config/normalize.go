package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUpgrade()
	c.normalizeFetch()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	if err := c.normalizePatches(); err != nil {
		return err
	}
	c.normalizeOutput()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeUpgrade() {
	c.Upgrade.DefaultLanguage = strings.TrimSpace(c.Upgrade.DefaultLanguage)
	if c.Upgrade.DefaultLanguage == "" {
		c.Upgrade.DefaultLanguage = defaultLanguage
	}
	c.Upgrade.ErrorPolicy = strings.ToLower(strings.TrimSpace(c.Upgrade.ErrorPolicy))
	if c.Upgrade.ErrorPolicy == "" {
		c.Upgrade.ErrorPolicy = defaultErrorPolicy
	}
	c.Upgrade.MintBase = strings.TrimSpace(c.Upgrade.MintBase)
	if c.Upgrade.MintBase == "" {
		c.Upgrade.MintBase = defaultMintBase
	}
	c.Upgrade.AttributionLabel = strings.TrimSpace(c.Upgrade.AttributionLabel)
	if c.Upgrade.AttributionLabel == "" {
		c.Upgrade.AttributionLabel = defaultAttributionLabel
	}
}

func (c *Config) normalizeFetch() {
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if value, ok := os.LookupEnv("PREZIUP_USER_AGENT"); ok && strings.TrimSpace(value) != "" {
		c.Fetch.UserAgent = strings.TrimSpace(value)
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeout
	}
	if c.Fetch.MaxBytes == 0 {
		c.Fetch.MaxBytes = defaultFetchMaxBytes
	}
}

func (c *Config) normalizeCache() error {
	path := strings.TrimSpace(c.Cache.Path)
	if path == "" {
		path = filepath.Join(c.Paths.CacheDir, "documents.db")
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	c.Cache.Path = expanded
	return nil
}

func (c *Config) normalizePatches() error {
	files := make([]string, 0, len(c.Patches.Files))
	for _, file := range c.Patches.Files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		expanded, err := expandPath(file)
		if err != nil {
			return fmt.Errorf("patches.files: %w", err)
		}
		files = append(files, expanded)
	}
	c.Patches.Files = files
	return nil
}

func (c *Config) normalizeOutput() {
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" {
		c.Output.Format = defaultOutputFormat
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
