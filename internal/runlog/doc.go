// Package runlog keeps a SQLite ledger of pipeline stage invocations for the
// runs command. It is observability only; package manifests remain the single
// source of truth.
package runlog
