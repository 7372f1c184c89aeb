package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"preziup/internal/config"
	"preziup/internal/doccache"
	"preziup/internal/docio"
	"preziup/internal/fetch"
	"preziup/internal/logging"
	"preziup/internal/services"
	"preziup/internal/upgrade"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "directories", "", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// upgradeFlags are the per-invocation overrides shared by upgrade and batch.
type upgradeFlags struct {
	format                string
	indent                int
	patches               []string
	extOK                 bool
	derefLinks            bool
	descriptionIsMetadata bool
	relatedIsMetadata     bool
	strictVersion         bool
	errorPolicy           string
	defaultLanguage       string
	noCache               bool
}

func (f *upgradeFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.format, "format", "f", "", "Output format: json or yaml (default from config)")
	flags.IntVar(&f.indent, "indent", 0, "JSON indentation width (default from config)")
	flags.StringArrayVar(&f.patches, "patch", nil, "RFC 6902 patch file applied after upgrade (repeatable)")
	flags.BoolVar(&f.extOK, "ext-ok", false, "Keep non-standard properties")
	flags.BoolVar(&f.derefLinks, "deref", false, "Fetch and inline referenced annotation lists")
	flags.BoolVar(&f.descriptionIsMetadata, "description-as-metadata", false, "Emit description as a metadata row instead of summary")
	flags.BoolVar(&f.relatedIsMetadata, "related-as-metadata", false, "Emit related as a metadata row instead of homepage")
	flags.BoolVar(&f.strictVersion, "strict", false, "Reject documents without a Presentation 2 context")
	flags.StringVar(&f.errorPolicy, "error-policy", "", "continue or abort (default from config)")
	flags.StringVar(&f.defaultLanguage, "lang", "", "Language key for untagged values (default from config)")
	flags.BoolVar(&f.noCache, "no-cache", false, "Bypass the document cache")
}

// apply merges explicitly set flags over the configuration.
func (f *upgradeFlags) apply(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = f.format
	}
	if flags.Changed("indent") {
		cfg.Output.Indent = f.indent
	}
	if flags.Changed("ext-ok") {
		cfg.Upgrade.ExtOK = f.extOK
	}
	if flags.Changed("deref") {
		cfg.Upgrade.DerefLinks = f.derefLinks
	}
	if flags.Changed("description-as-metadata") {
		cfg.Upgrade.DescriptionIsMetadata = f.descriptionIsMetadata
	}
	if flags.Changed("related-as-metadata") {
		cfg.Upgrade.RelatedIsMetadata = f.relatedIsMetadata
	}
	if flags.Changed("strict") {
		cfg.Upgrade.StrictVersion = f.strictVersion
	}
	if flags.Changed("error-policy") {
		cfg.Upgrade.ErrorPolicy = strings.ToLower(strings.TrimSpace(f.errorPolicy))
	}
	if flags.Changed("lang") {
		cfg.Upgrade.DefaultLanguage = strings.TrimSpace(f.defaultLanguage)
	}
	if f.noCache {
		cfg.Cache.Enabled = false
	}
	cfg.Patches.Files = append([]string(nil), cfg.Patches.Files...)
	for _, p := range f.patches {
		expanded, err := config.ExpandPath(p)
		if err != nil {
			return cfg, err
		}
		cfg.Patches.Files = append(cfg.Patches.Files, expanded)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, services.Wrap(services.ErrConfiguration, "flags", "validate", "", err)
	}
	return cfg, nil
}

// upgradeSession bundles the collaborators one command invocation upgrades with.
type upgradeSession struct {
	upgrader *upgrade.Upgrader
	store    *doccache.Store
	encode   docio.EncodeOptions
	logger   *slog.Logger
}

func (c *commandContext) newSession(cmd *cobra.Command, flags *upgradeFlags) (*upgradeSession, error) {
	base, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	cfg, err := flags.apply(cmd, *base)
	if err != nil {
		return nil, err
	}

	format, err := docio.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	patches, err := docio.LoadPatches(cfg.Patches.Files)
	if err != nil {
		return nil, err
	}
	for _, p := range patches {
		logger.Debug("post-upgrade patch loaded", logging.String("patch", p.String()))
	}

	sess := &upgradeSession{
		encode: docio.EncodeOptions{Format: format, Indent: cfg.Output.Indent, Patches: patches},
		logger: logger,
	}

	client := fetch.New(append(fetch.OptionsFromConfig(cfg.Fetch), fetch.WithLogger(logger))...)
	var fetcher upgrade.Fetcher = client
	options := []upgrade.Option{upgrade.WithLogger(logger)}
	if cfg.Cache.Enabled {
		store, err := doccache.Open(cfg.Cache.Path, append(doccache.OptionsFromConfig(cfg.Cache), doccache.WithLogger(logger))...)
		if err != nil {
			logging.WarnWithContext(logger, "document cache unavailable", "cache_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'preziup cache clear' or disable [cache]"),
				logging.String(logging.FieldImpact, "documents are fetched and upgraded without caching"),
			)
		} else {
			sess.store = store
			fetcher = doccache.NewReadThrough(client, store, logger)
			options = append(options, upgrade.WithCache(store))
		}
	} else {
		fetcher = doccache.NewReadThrough(client, nil, logger)
	}
	options = append(options, upgrade.WithFetcher(fetcher))

	sess.upgrader = upgrade.New(upgrade.OptionsFromConfig(cfg.Upgrade), options...)
	return sess, nil
}

func (r *upgradeSession) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

func (r *upgradeSession) encodeDocument(doc map[string]any) ([]byte, error) {
	return docio.Encode(doc, r.encode)
}

// upgradeSource dispatches on the source form: "-" is stdin, anything with
// a scheme goes through the fetcher, the rest is a local path.
func (r *upgradeSession) upgradeSource(ctx context.Context, source string, stdin io.Reader) (*upgrade.Result, error) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	switch {
	case source == "-":
		if stdin == nil {
			return nil, errors.New("no standard input available")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, services.Wrap(services.ErrInputNotFound, "input", "read stdin", "", err)
		}
		doc, err := docio.DecodeObject(data)
		if err != nil {
			return nil, err
		}
		return r.upgrader.Process(services.WithSource(ctx, "stdin"), doc)
	case isURI(source):
		return r.upgrader.ProcessURI(ctx, source)
	default:
		path, err := config.ExpandPath(source)
		if err != nil {
			return nil, err
		}
		return r.upgrader.ProcessCached(ctx, path)
	}
}

func isURI(source string) bool {
	scheme, rest, ok := strings.Cut(source, "://")
	return ok && scheme != "" && rest != "" && !strings.ContainsAny(scheme, "/\\")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
