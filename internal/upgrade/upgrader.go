package upgrade

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"preziup/internal/docio"
	"preziup/internal/fetch"
	"preziup/internal/logging"
	"preziup/internal/services"
)

// CacheNamespace is the cache namespace holding upgraded documents.
const CacheNamespace = "upgraded"

// Upgrader rewrites Presentation 2.x documents into Presentation 3.
// It is safe for concurrent use; each call keeps its own state.
type Upgrader struct {
	opts    Options
	fetcher Fetcher
	cache   Cache
	logger  *slog.Logger
	mint    func() string
}

// New constructs an Upgrader. Without WithFetcher an HTTP client with
// default settings is used for retrieval.
func New(opts Options, options ...Option) *Upgrader {
	if opts.ErrorPolicy == "" {
		opts.ErrorPolicy = PolicyContinue
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = DefaultOptions().DefaultLanguage
	}
	if opts.MintBase == "" {
		opts.MintBase = DefaultOptions().MintBase
	}
	if opts.AttributionLabel == "" {
		opts.AttributionLabel = DefaultOptions().AttributionLabel
	}
	u := &Upgrader{
		opts:   opts,
		logger: logging.NewNop(),
	}
	for _, option := range options {
		option(u)
	}
	if u.fetcher == nil {
		u.fetcher = fetch.New()
	}
	if u.mint == nil {
		u.mint = uuidMinter(opts.MintBase)
	}
	u.logger = logging.NewComponentLogger(u.logger, "upgrade")
	return u
}

// Options returns the flags the upgrader was built with.
func (u *Upgrader) Options() Options {
	return u.opts
}

// Process upgrades an in-memory document. The input is not modified.
func (u *Upgrader) Process(ctx context.Context, doc map[string]any) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, services.Wrap(services.ErrUnrecognizedResource, "upgrade", "process", "document root is not an object", nil)
	}
	w := u.newWalker(ctx)

	switch detectVersion(doc["@context"]) {
	case version3:
		out, _ := cloneValue(doc).(map[string]any)
		out["@context"] = documentContext()
		w.warn("", WarnAlreadyUpgraded, "document already declares Presentation 3; returned unchanged")
		return w.result(out), nil
	case version2:
	default:
		if u.opts.StrictVersion {
			return nil, services.Wrap(services.ErrUnsupportedSourceVersion, "upgrade", "detect version",
				fmt.Sprintf("@context %v does not name Presentation 2", doc["@context"]), nil)
		}
		w.warn("/@context", WarnUnrecognizedSource, "document does not declare Presentation 2; rewriting best-effort")
	}

	out, err := w.node(doc, "", "", 0)
	if err != nil {
		return nil, err
	}
	if _, ok := out["id"]; !ok {
		id := u.mint()
		out["id"] = id
		w.warn("", WarnMintedID, fmt.Sprintf("document has no @id; minted %s", id))
	}
	out["@context"] = documentContext()

	w.logger.Debug("document upgraded",
		logging.String("type", fmt.Sprint(out["type"])),
		logging.Int("warnings", len(w.warnings)),
		logging.Int("failures", len(w.failures)),
	)
	return w.result(out), nil
}

// ProcessCached reads a local JSON document and upgrades it.
func (u *Upgrader) ProcessCached(ctx context.Context, path string) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := fetch.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := docio.DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u.Process(services.WithSource(ctx, path), doc)
}

// ProcessURI retrieves a remote document and upgrades it. With a cache
// configured, a previous upgrade under the same options is reused.
func (u *Upgrader) ProcessURI(ctx context.Context, uri string) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithSource(ctx, uri)
	logger := logging.WithContext(ctx, u.logger)
	key := uri + "#" + u.opts.Fingerprint()

	if u.cache != nil {
		data, ok, err := u.cache.Get(ctx, CacheNamespace, key)
		switch {
		case err != nil:
			logging.WarnWithContext(logger, "upgraded-document cache read failed", "cache_read_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "document is fetched and upgraded again"),
			)
		case ok:
			if doc, err := docio.DecodeObject(data); err == nil {
				logger.Debug("upgraded document served from cache")
				return &Result{Document: doc, Cached: true}, nil
			}
		}
	}

	data, err := u.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	doc, err := docio.DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	res, err := u.Process(ctx, doc)
	if err != nil {
		return nil, err
	}

	if u.cache != nil && len(res.Failures) == 0 {
		encoded, err := json.Marshal(res.Document)
		if err == nil {
			err = u.cache.Put(ctx, CacheNamespace, key, encoded)
		}
		if err != nil {
			logging.WarnWithContext(logger, "upgraded-document cache write failed", "cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next run upgrades the document again"),
			)
		}
	}
	return res, nil
}

// deref fetches an externally referenced annotation list. Failures are
// warnings; the caller keeps the reference.
func (w *walker) deref(id, path string) (map[string]any, bool) {
	if id == "" {
		w.warn(path, WarnDerefFailed, "referenced resource has no id")
		return nil, false
	}
	data, err := w.u.fetcher.Fetch(w.ctx, id)
	if err != nil {
		w.warn(path, WarnDerefFailed, fmt.Sprintf("fetch %s: %v", id, err))
		return nil, false
	}
	doc, err := docio.DecodeObject(data)
	if err != nil {
		w.warn(path, WarnDerefFailed, fmt.Sprintf("decode %s: %v", id, err))
		return nil, false
	}
	return doc, true
}

type sourceVersion int

const (
	versionUnknown sourceVersion = iota
	version2
	version3
	versionOther
)

func detectVersion(ctx any) sourceVersion {
	found := versionUnknown
	for _, item := range asSlice(ctx) {
		s, ok := item.(string)
		if !ok {
			continue
		}
		switch {
		case strings.Contains(s, "/presentation/3"):
			return version3
		case strings.Contains(s, "/presentation/2"):
			found = version2
		case found == versionUnknown:
			found = versionOther
		}
	}
	return found
}
