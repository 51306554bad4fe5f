// Package manifest persists per-package article indexes and drives their
// lifecycle.
//
// A Manifest is the single source of truth for "is this package ready for
// stage X" and "is this package complete". PIPs are sealed at creation; SIPs
// build additively as each transformer records derivative outcomes, then seal
// once the METS document is compiled. Entries are append/update-only until
// the package seals, after which every mutation fails.
//
// Saves validate that all referenced files exist on disk, take a file lock,
// and replace the document atomically. Treat this package as the authority on
// derivative dependency order; when you add a stage, extend stageDeps and
// TransformOrder together.
package manifest
