package config

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUpgrade(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Batch.Workers <= 0 {
		return errors.New("batch.workers must be positive")
	}
	return nil
}

func (c *Config) validateUpgrade() error {
	switch c.Upgrade.ErrorPolicy {
	case "continue", "abort":
	default:
		return fmt.Errorf("upgrade.error_policy must be \"continue\" or \"abort\", got %q", c.Upgrade.ErrorPolicy)
	}
	if c.Upgrade.DefaultLanguage != "@none" {
		if _, err := language.Parse(c.Upgrade.DefaultLanguage); err != nil {
			return fmt.Errorf("upgrade.default_language %q is not a BCP-47 tag: %w", c.Upgrade.DefaultLanguage, err)
		}
	}
	u, err := url.Parse(c.Upgrade.MintBase)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upgrade.mint_base must be an absolute URI, got %q", c.Upgrade.MintBase)
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.TimeoutSeconds < 0 {
		return errors.New("fetch.timeout_seconds must be >= 0")
	}
	if c.Fetch.MaxBytes < 0 {
		return errors.New("fetch.max_bytes must be >= 0")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Enabled && c.Cache.TTLHours < 0 {
		return errors.New("cache.ttl_hours must be >= 0 when cache.enabled is true")
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("output.format must be \"json\" or \"yaml\", got %q", c.Output.Format)
	}
	if c.Output.Indent < 0 || c.Output.Indent > 8 {
		return errors.New("output.indent must be between 0 and 8")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
