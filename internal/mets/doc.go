// Package mets compiles a transformed SIP into its sealed archival form: it
// verifies derivative completeness, writes the METS structural document with
// SHA-256 fixity for every referenced file, and seals the manifest.
package mets
