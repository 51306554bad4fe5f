// Package tools wraps the external binaries the transformer chain shells out
// to: a PDF engine for pagination, pdftotext for word geometry, and pdftoppm
// for page rasterization. Each client takes an Executor so tests can run
// without the binaries installed.
package tools
