package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"preziup/internal/config"
	"preziup/internal/logging"
	"preziup/internal/services"
)

const (
	defaultUserAgent   = "preziup/dev"
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxBytes    = 64 << 20
	acceptHeader       = `application/ld+json;profile="http://iiif.io/api/presentation/2/context.json", application/ld+json;q=0.9, application/json;q=0.8`
)

// RetrievalError reports a failed remote fetch.
type RetrievalError struct {
	URI    string
	Status int
	Err    error
}

func (e *RetrievalError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URI, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: status %d", e.URI, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URI, e.Err)
	}
}

func (e *RetrievalError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrRetrieval}
	}
	return []error{services.ErrRetrieval, e.Err}
}

// Client retrieves documents over HTTP(S). file:// URIs are read locally.
type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
	logger    *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithMaxBytes caps the size of a response body. Zero disables the cap.
func WithMaxBytes(n int64) Option {
	return func(cl *Client) {
		if n >= 0 {
			cl.maxBytes = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// OptionsFromConfig maps the [fetch] section onto client options.
func OptionsFromConfig(cfg config.Fetch) []Option {
	return []Option{
		WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		WithUserAgent(cfg.UserAgent),
		WithMaxBytes(cfg.MaxBytes),
	}
}

// New constructs a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: defaultHTTPTimeout},
		userAgent: defaultUserAgent,
		maxBytes:  defaultMaxBytes,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "fetch")
	return c
}

// Fetch returns the raw body of uri.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if c == nil {
		return nil, &RetrievalError{URI: uri, Err: errors.New("client is nil")}
	}
	parsed, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return nil, &RetrievalError{URI: uri, Err: fmt.Errorf("parse uri: %w", err)}
	}
	switch parsed.Scheme {
	case "http", "https":
	case "file":
		return ReadFile(parsed.Path)
	default:
		return nil, &RetrievalError{URI: uri, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, &RetrievalError{URI: uri, Err: err}
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", c.userAgent)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RetrievalError{URI: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var cause error
		if msg := strings.TrimSpace(string(snippet)); msg != "" {
			cause = errors.New(msg)
		}
		return nil, &RetrievalError{URI: uri, Status: resp.StatusCode, Err: cause}
	}

	reader := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &RetrievalError{URI: uri, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if c.maxBytes > 0 && int64(len(body)) > c.maxBytes {
		return nil, &RetrievalError{URI: uri, Status: resp.StatusCode, Err: fmt.Errorf("body exceeds %d bytes", c.maxBytes)}
	}
	c.logger.Debug("document fetched",
		logging.String(logging.FieldSource, uri),
		logging.Int("bytes", len(body)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return body, nil
}

// ReadFile loads a local document. Failures unwrap to services.ErrInputNotFound.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrInputNotFound, "fetch", "read file", path, err)
	}
	return data, nil
}
