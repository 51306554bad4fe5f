// Package transform implements the derivative chain over a SIP: HTML from the
// source record, PDF from HTML, layout XML and page images from the PDF, and
// descriptive metadata from the record. A shared runner applies one handler
// across every article, recording per-article done/skipped/failed outcomes in
// the manifest so any stage can be replayed safely.
package transform
