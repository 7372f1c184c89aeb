// Package doccache persists fetched and upgraded Presentation documents.
//
// Store is a SQLite-backed cache keyed by a BLAKE3 digest of namespace and
// source identifier, with optional xz compression and a TTL. Each open
// Store holds a shared file lock on the database; Purge takes the exclusive
// lock so that clearing never races a running upgrade. Memory is an
// in-process equivalent for tests and cache-less runs.
//
// ReadThrough wraps a fetcher so that concurrent requests for the same
// source collapse into one retrieval and later requests are served from the
// cache.
package doccache
