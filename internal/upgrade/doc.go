// Package upgrade rewrites IIIF Presentation 2.x manifests and collections
// into Presentation 3.
//
// An Upgrader walks the source tree once, parent before children and
// children in source order. Each node is classified by the dispatch package
// and rewritten by the ordered steps of its kind; whatever the steps leave
// is handled by the property table. Non-fatal conditions are collected as
// Warnings. Failing sub-trees are omitted and recorded as Failures, or end
// the run when the error policy is "abort".
//
// Process works on an in-memory tree, ProcessCached reads a local file and
// ProcessURI retrieves the document through a Fetcher, optionally reusing
// earlier upgrades from a Cache.
package upgrade
