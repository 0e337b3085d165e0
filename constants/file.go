package constants

import "strings"

// AllowedExtensions holds the file extensions accepted for lab report ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// PDFMagic is the header every accepted document must start with.
const PDFMagic = "%PDF-"

// Output file suffixes written next to each processed document.
const (
	SuffixExtractedText = "_extracted_text.txt"
	SuffixEntities      = "_entities.json"
	SuffixSignatures    = "_signature_detection.json"
	SuffixReport        = "_report.xlsx"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
