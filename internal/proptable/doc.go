// Package proptable holds the declarative Presentation 2.x to 3.x mapping
// data: per-property rewrite rules, resource type names, the service type
// registry, known behaviors and reference type inference.
//
// Nothing here walks a document. The traversal lives in the upgrade package
// and consults these tables, so the mapping can be audited and tested on
// its own.
package proptable
