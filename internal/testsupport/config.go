package testsupport

import (
	"path/filepath"
	"testing"

	"preziup/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Cache.Path = filepath.Join(base, "cache", "documents.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCache toggles the persistent document cache.
func WithCache(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Enabled = enabled
	}
}

// WithUpgrade replaces the upgrade section wholesale.
func WithUpgrade(u config.Upgrade) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upgrade = u
	}
}

// WithPatchFiles writes each patch body under the base directory and lists
// the resulting files in the patches section.
func WithPatchFiles(bodies ...string) ConfigOption {
	return func(b *configBuilder) {
		for i, body := range bodies {
			path := filepath.Join(b.baseDir, "patches", patchName(i))
			WriteText(b.t, path, body)
			b.cfg.Patches.Files = append(b.cfg.Patches.Files, path)
		}
	}
}

func patchName(i int) string {
	return "patch-" + string(rune('a'+i)) + ".json"
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
