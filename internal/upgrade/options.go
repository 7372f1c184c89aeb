package upgrade

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"preziup/internal/config"
	"preziup/internal/langmap"
)

// ErrorPolicy decides what a failing sub-tree does to the rest of the document.
type ErrorPolicy string

const (
	// PolicyContinue omits the failing sub-tree, records it and keeps going.
	PolicyContinue ErrorPolicy = "continue"
	// PolicyAbort returns the first failure.
	PolicyAbort ErrorPolicy = "abort"
)

// Options are the immutable flags of one upgrader.
type Options struct {
	ExtOK                 bool
	DerefLinks            bool
	DescriptionIsMetadata bool
	RelatedIsMetadata     bool
	StrictVersion         bool
	DefaultLanguage       string
	ErrorPolicy           ErrorPolicy
	MintBase              string
	AttributionLabel      string
}

// DefaultOptions returns the flag set used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		DefaultLanguage:  langmap.NoLanguage,
		ErrorPolicy:      PolicyContinue,
		MintBase:         "https://example.org/uuid/",
		AttributionLabel: "Attribution",
	}
}

// OptionsFromConfig converts the [upgrade] configuration section.
func OptionsFromConfig(c config.Upgrade) Options {
	opts := DefaultOptions()
	opts.ExtOK = c.ExtOK
	opts.DerefLinks = c.DerefLinks
	opts.DescriptionIsMetadata = c.DescriptionIsMetadata
	opts.RelatedIsMetadata = c.RelatedIsMetadata
	opts.StrictVersion = c.StrictVersion
	if v := strings.TrimSpace(c.DefaultLanguage); v != "" {
		opts.DefaultLanguage = v
	}
	if v := strings.TrimSpace(c.ErrorPolicy); v != "" {
		opts.ErrorPolicy = ErrorPolicy(strings.ToLower(v))
	}
	if v := strings.TrimSpace(c.MintBase); v != "" {
		opts.MintBase = v
	}
	if v := strings.TrimSpace(c.AttributionLabel); v != "" {
		opts.AttributionLabel = v
	}
	return opts
}

// Fingerprint identifies the flags that change upgrade output, for cache keys.
func (o Options) Fingerprint() string {
	return fmt.Sprintf("ext=%t;deref=%t;desc=%t;related=%t;strict=%t;lang=%s;policy=%s;attr=%s;mint=%s",
		o.ExtOK, o.DerefLinks, o.DescriptionIsMetadata, o.RelatedIsMetadata, o.StrictVersion,
		o.DefaultLanguage, o.ErrorPolicy, o.AttributionLabel, o.MintBase)
}

func (o Options) abort() bool {
	return o.ErrorPolicy == PolicyAbort
}

// Fetcher retrieves raw documents by URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Cache stores encoded documents by namespace and key.
type Cache interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Put(ctx context.Context, namespace, key string, data []byte) error
}

// Option customizes an Upgrader.
type Option func(*Upgrader)

// WithFetcher sets the retrieval collaborator used by ProcessURI and link dereferencing.
func WithFetcher(f Fetcher) Option {
	return func(u *Upgrader) {
		if f != nil {
			u.fetcher = f
		}
	}
}

// WithCache enables the upgraded-document cache.
func WithCache(c Cache) Option {
	return func(u *Upgrader) {
		u.cache = c
	}
}

// WithLogger sets the logger; warnings are logged as well as returned.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Upgrader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithIDMinter overrides how ids for synthesized resources are produced.
func WithIDMinter(mint func() string) Option {
	return func(u *Upgrader) {
		if mint != nil {
			u.mint = mint
		}
	}
}

func uuidMinter(base string) func() string {
	return func() string {
		return base + uuid.NewString()
	}
}
