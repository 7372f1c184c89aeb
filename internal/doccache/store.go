package doccache

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"preziup/internal/config"
	"preziup/internal/logging"
)

// Cache namespaces.
const (
	NamespaceSource   = "source"
	NamespaceUpgraded = "upgraded"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrLocked is returned when an exclusive operation cannot get the lock.
var ErrLocked = errors.New("cache is in use by another process")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	lockRetryDelay          = 50 * time.Millisecond
)

// Store is the SQLite document cache.
type Store struct {
	db       *sql.DB
	path     string
	lock     *flock.Flock
	compress bool
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithCompression stores payloads xz-compressed.
func WithCompression(enabled bool) Option {
	return func(s *Store) { s.compress = enabled }
}

// WithTTL expires entries older than d. Zero keeps entries forever.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.ttl = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// OptionsFromConfig maps the [cache] section onto store options.
func OptionsFromConfig(cfg config.Cache) []Option {
	return []Option{
		WithCompression(cfg.Compress),
		WithTTL(time.Duration(cfg.TTLHours) * time.Hour),
	}
}

// Key derives the primary key for a namespaced source identifier.
func Key(namespace, source string) string {
	sum := blake3.Sum256([]byte(namespace + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

// Open creates or opens the cache database at path.
func Open(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		path:   path,
		lock:   lock,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	store.logger = logging.NewComponentLogger(store.logger, "doccache")

	if err := store.initSchema(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close releases the database and the shared lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
	}
	return errors.Join(errs...)
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'preziup cache clear --all' or delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Get returns the cached payload for source in namespace. Expired entries
// are removed and reported as a miss.
func (s *Store) Get(ctx context.Context, namespace, source string) ([]byte, bool, error) {
	ctx = ensureContext(ctx)
	key := Key(namespace, source)
	var (
		payload    []byte
		compressed bool
		createdAt  int64
	)
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT payload, compressed, created_at FROM documents WHERE key = ?", key,
		).Scan(&payload, &compressed, &createdAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	if s.ttl > 0 && s.now().Sub(time.Unix(createdAt, 0)) > s.ttl {
		if err := s.exec(ctx, "DELETE FROM documents WHERE key = ?", key); err != nil {
			s.logger.Debug("expired cache entry not removed", logging.Error(err))
		}
		return nil, false, nil
	}

	if compressed {
		payload, err = decompress(payload)
		if err != nil {
			return nil, false, fmt.Errorf("decompress cache entry: %w", err)
		}
	}
	return payload, true, nil
}

// Put stores data for source in namespace, replacing any previous entry.
func (s *Store) Put(ctx context.Context, namespace, source string, data []byte) error {
	ctx = ensureContext(ctx)
	payload := data
	if s.compress {
		packed, err := compress(data)
		if err != nil {
			return fmt.Errorf("compress cache entry: %w", err)
		}
		payload = packed
	}
	err := s.exec(ctx, `INSERT INTO documents (key, namespace, source, payload, compressed, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, compressed = excluded.compressed,
			size = excluded.size, created_at = excluded.created_at`,
		Key(namespace, source), namespace, source, payload, s.compress, len(data), s.now().Unix())
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Purge removes every entry in namespace, or all entries when namespace is
// empty. It needs the exclusive lock, so it waits for other processes using
// the cache until ctx is done.
func (s *Store) Purge(ctx context.Context, namespace string) (int64, error) {
	ctx = ensureContext(ctx)
	if err := s.lock.Unlock(); err != nil {
		return 0, fmt.Errorf("release shared lock: %w", err)
	}
	defer func() {
		if err := s.lock.RLock(); err != nil {
			s.logger.Warn("shared cache lock not restored", logging.Error(err))
		}
	}()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %s", ErrLocked, s.path)
		}
		return 0, fmt.Errorf("acquire exclusive cache lock: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("%w: %s", ErrLocked, s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	query, args := "DELETE FROM documents", []any{}
	if namespace != "" {
		query, args = "DELETE FROM documents WHERE namespace = ?", []any{namespace}
	}
	var removed int64
	err = retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		removed, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		s.logger.Debug("vacuum after purge failed", logging.Error(err))
	}
	s.logger.Info("cache purged", logging.String("namespace", namespaceLabel(namespace)), logging.Int64("removed", removed))
	return removed, nil
}

// NamespaceStats summarizes one namespace.
type NamespaceStats struct {
	Namespace   string    `json:"namespace"`
	Entries     int64     `json:"entries"`
	StoredBytes int64     `json:"stored_bytes"`
	RawBytes    int64     `json:"raw_bytes"`
	Oldest      time.Time `json:"oldest"`
	Newest      time.Time `json:"newest"`
}

// Stats returns per-namespace totals ordered by namespace.
func (s *Store) Stats(ctx context.Context) ([]NamespaceStats, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT namespace, COUNT(1), COALESCE(SUM(LENGTH(payload)), 0),
		COALESCE(SUM(size), 0), MIN(created_at), MAX(created_at)
		FROM documents GROUP BY namespace ORDER BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("query cache stats: %w", err)
	}
	defer rows.Close()

	var stats []NamespaceStats
	for rows.Next() {
		var (
			st             NamespaceStats
			oldest, newest int64
		)
		if err := rows.Scan(&st.Namespace, &st.Entries, &st.StoredBytes, &st.RawBytes, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("scan cache stats: %w", err)
		}
		st.Oldest = time.Unix(oldest, 0)
		st.Newest = time.Unix(newest, 0)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func namespaceLabel(ns string) string {
	if ns == "" {
		return "all"
	}
	return ns
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
