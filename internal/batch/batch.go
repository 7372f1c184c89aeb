// Package batch upgrades many documents concurrently with a bounded number
// of workers. Documents are independent; one failure never stops the others.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"preziup/internal/logging"
)

// Outcome reports what happened to one source.
type Outcome struct {
	Source   string
	Output   string
	Type     string
	Warnings int
	Failures int
	Cached   bool
	Elapsed  time.Duration
	Err      error
}

// Func upgrades one source. The returned Outcome may be partially filled;
// Run sets Source, Elapsed and Err.
type Func func(ctx context.Context, index int, source string) (Outcome, error)

// Option customizes Run.
type Option func(*runner)

type runner struct {
	logger *slog.Logger
}

// WithLogger enables progress logging.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Run applies fn to every source with at most workers in flight. Outcomes
// are returned in source order. After ctx is cancelled, sources not yet
// started are reported with the context error.
func Run(ctx context.Context, sources []string, fn Func, workers int, opts ...Option) []Outcome {
	r := runner{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&r)
	}
	logger := logging.NewComponentLogger(r.logger, "batch")
	if workers <= 0 {
		workers = 1
	}

	outcomes := make([]Outcome, len(sources))
	sampler := logging.NewProgressSampler(10)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, source := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = Outcome{Source: source, Err: err}
				return nil
			}
			started := time.Now()
			out, err := fn(gctx, i, source)
			out.Source = source
			out.Err = err
			out.Elapsed = time.Since(started)
			outcomes[i] = out

			n := int(done.Add(1))
			if sampler.Observe(n, len(sources)) {
				logger.Info("batch progress",
					logging.Int("done", n),
					logging.Int("total", len(sources)),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Summary totals a batch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Warnings  int `json:"warnings"`
	Cached    int `json:"cached"`
}

// Summarize counts outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Err != nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.Warnings += o.Warnings
		if o.Cached {
			s.Cached++
		}
	}
	return s
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// OutputName derives a unique, filesystem-safe file name for the source at
// index.
func OutputName(index int, source, ext string) string {
	base := source
	if u, err := url.Parse(source); err == nil && u.Host != "" {
		base = u.Host + u.Path
	} else {
		base = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	base = strings.TrimSuffix(base, "/")
	for _, suffix := range []string{"/manifest.json", "/manifest", "/collection.json", ".json"} {
		base = strings.TrimSuffix(base, suffix)
	}
	slug := strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "_.")
	if len(slug) > 96 {
		slug = slug[len(slug)-96:]
	}
	if slug == "" {
		slug = "document"
	}
	return fmt.Sprintf("%03d-%s%s", index+1, slug, ext)
}
