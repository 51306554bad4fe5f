// Package pipeline drives a full distillation run: harvest a window into a
// PIP, materialize the SIP, execute the five derivative stages in dependency
// order, and seal the package behind its METS document.
package pipeline
