// Package fetch retrieves Presentation documents for the upgrader: remote
// documents over HTTP(S) and local files from disk.
package fetch
