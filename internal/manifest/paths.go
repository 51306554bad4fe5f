package manifest

import "fmt"

// FileName is the manifest document at every package root.
const FileName = "manifest.json"

// lockName guards manifest writes against concurrent savers.
const lockName = ".manifest.lock"

// Relative path helpers. Manifests always store forward-slash paths relative
// to the package root so packages stay relocatable.

// RecordPath is the raw source record for an article.
func RecordPath(articleID string) string {
	return fmt.Sprintf("articles/%s/record.json", articleID)
}

// MediaPath places a downloaded media file under the article directory.
func MediaPath(articleID, filename string) string {
	return fmt.Sprintf("articles/%s/media/%s", articleID, filename)
}

// HTMLPath is the rendered HTML derivative for an article.
func HTMLPath(articleID string) string {
	return fmt.Sprintf("articles/%s/article.html", articleID)
}

// PDFPath is the paginated PDF derivative for an article.
func PDFPath(articleID string) string {
	return fmt.Sprintf("articles/%s/article.pdf", articleID)
}

// ALTOPagePath is the per-page layout XML derivative.
func ALTOPagePath(articleID string, page int) string {
	return fmt.Sprintf("articles/%s/%03d.alto.xml", articleID, page)
}

// ALTOArticlePath is the whole-article layout XML derivative used when
// per-page output is disabled.
func ALTOArticlePath(articleID string) string {
	return fmt.Sprintf("articles/%s/article.alto.xml", articleID)
}

// MODSPath is the descriptive metadata derivative for an article.
func MODSPath(articleID string) string {
	return fmt.Sprintf("articles/%s/article.mods.xml", articleID)
}

// ImagePath is the rasterized page image derivative.
func ImagePath(articleID string, page int) string {
	return fmt.Sprintf("articles/%s/page-%03d.jpg", articleID, page)
}

// METSName is the structural metadata document written at seal time.
const METSName = "mets.xml"
