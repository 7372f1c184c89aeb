package doccache

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"preziup/internal/logging"
)

// Fetcher retrieves a raw document.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Cache is the storage contract shared by Store and Memory.
type Cache interface {
	Get(ctx context.Context, namespace, source string) ([]byte, bool, error)
	Put(ctx context.Context, namespace, source string, data []byte) error
}

// ReadThrough serves fetches from a cache, fetching each missing source at
// most once however many callers ask for it concurrently.
type ReadThrough struct {
	inner  Fetcher
	store  Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewReadThrough wraps inner with store. A nil store only collapses
// concurrent fetches.
func NewReadThrough(inner Fetcher, store Cache, logger *slog.Logger) *ReadThrough {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ReadThrough{
		inner:  inner,
		store:  store,
		logger: logging.NewComponentLogger(logger, "doccache"),
	}
}

// Fetch returns the cached document for uri, retrieving it on a miss.
func (r *ReadThrough) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if data, ok := r.lookup(ctx, uri); ok {
		return data, nil
	}
	v, err, shared := r.group.Do(uri, func() (any, error) {
		// A flight that finished just before this one may have filled the cache.
		if data, ok := r.lookup(ctx, uri); ok {
			return data, nil
		}
		data, err := r.inner.Fetch(ctx, uri)
		if err != nil {
			return nil, err
		}
		if r.store != nil {
			if err := r.store.Put(ctx, NamespaceSource, uri, data); err != nil {
				logging.WarnWithContext(r.logger, "source cache write failed", "cache_write_failed",
					logging.String(logging.FieldSource, uri),
					logging.Error(err),
					logging.String(logging.FieldImpact, "document will be fetched again next time"),
				)
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Debug("fetch shared with concurrent caller", logging.String(logging.FieldSource, uri))
	}
	return v.([]byte), nil
}

func (r *ReadThrough) lookup(ctx context.Context, uri string) ([]byte, bool) {
	if r.store == nil {
		return nil, false
	}
	data, ok, err := r.store.Get(ctx, NamespaceSource, uri)
	if err != nil {
		r.logger.Debug("source cache read failed", logging.String(logging.FieldSource, uri), logging.Error(err))
		return nil, false
	}
	return data, ok
}
