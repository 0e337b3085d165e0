package constants

import "strings"

// SignatureType is the classifier's verdict for one image.
type SignatureType string

const (
	FullSignature SignatureType = "full_signature"
	Initials      SignatureType = "initials"
	Mark          SignatureType = "mark"
	Stamp         SignatureType = "stamp"
	NotSignature  SignatureType = "not_signature"
)

var allSignatureTypes = []SignatureType{FullSignature, Initials, Mark, Stamp, NotSignature}

// SignatureTypes returns every type as strings, in a stable order.
func SignatureTypes() []string {
	out := make([]string, len(allSignatureTypes))
	for i, t := range allSignatureTypes {
		out[i] = string(t)
	}
	return out
}

// ParseSignatureType maps free-form classifier labels onto a SignatureType.
func ParseSignatureType(input string) (SignatureType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if normalized == "" {
		return NotSignature, false
	}

	// synonyms map
	synonyms := map[string]SignatureType{
		"signature":             FullSignature,
		"full":                  FullSignature,
		"handwritten":           FullSignature,
		"handwritten_signature": FullSignature,
		"initial":               Initials,
		"paraph":                Initials,
		"checkmark":             Mark,
		"check_mark":            Mark,
		"tick":                  Mark,
		"seal":                  Stamp,
		"stamp_seal":            Stamp,
		"rubber_stamp":          Stamp,
		"none":                  NotSignature,
		"other":                 NotSignature,
		"not_a_signature":       NotSignature,
		"no_signature":          NotSignature,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}
	for _, t := range allSignatureTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return NotSignature, false
}

// ImageSource names the channel an image came from.
type ImageSource string

const (
	// SourceLayout is channel A: figures cropped by a layout-analysis service.
	SourceLayout ImageSource = "document_intelligence"
	// SourceEmbedded is channel B: image objects embedded in the PDF.
	SourceEmbedded ImageSource = "embedded"
)
