// Package aggregate builds Pre-Ingest Packages from the content source. A
// harvest fetches every record in a date window, writes records and media
// under a temporary directory, and renames the sealed package into place so
// partial harvests never masquerade as finished ones.
package aggregate
