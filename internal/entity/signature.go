package entity

import "github.com/joseph-ayodele/labcert-validator/constants"

// SignatureDetection is the per-document detection result written as
// <stem>_signature_detection.json.
type SignatureDetection struct {
	PDFPath             string                          `json:"pdf_path"`
	TotalImagesDetected int                             `json:"total_images_detected"`
	EmbeddedImagesFound int                             `json:"embedded_images_found"`
	LayoutFiguresFound  int                             `json:"layout_figures_found"`
	DuplicatesSkipped   int                             `json:"duplicates_skipped"`
	SignaturesFound     int                             `json:"signatures_found"`
	TypeCounts          map[constants.SignatureType]int `json:"type_counts"`
	SignatureDetails    []SignatureInstance             `json:"signature_details"`
	ProcessingErrors    []string                        `json:"processing_errors"`
	DetectionMethod     string                          `json:"detection_method"`
}

// SignatureInstance is one classified mark. An image holding several full
// signatures yields several instances sharing ImageIndex.
type SignatureInstance struct {
	SignatureID    string                  `json:"signature_id"`
	PageNumber     int                     `json:"page_number"`
	Type           constants.SignatureType `json:"type"`
	Confidence     float64                 `json:"confidence"`
	Reasoning      string                  `json:"reasoning"`
	Position       string                  `json:"position,omitempty"`
	Description    string                  `json:"description,omitempty"`
	ImageSource    constants.ImageSource   `json:"image_source"`
	ImageIndex     int                     `json:"image_index"`
	ImageSizeBytes int                     `json:"image_size_bytes"`
	Error          string                  `json:"error,omitempty"`
}

// FullSignatures returns the full_signature instances in detection order.
func (d *SignatureDetection) FullSignatures() []SignatureInstance {
	if d == nil {
		return nil
	}
	var out []SignatureInstance
	for _, s := range d.SignatureDetails {
		if s.Type == constants.FullSignature {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy of d.
func (d *SignatureDetection) Clone() *SignatureDetection {
	if d == nil {
		return nil
	}
	out := *d
	out.SignatureDetails = append([]SignatureInstance(nil), d.SignatureDetails...)
	out.ProcessingErrors = append([]string(nil), d.ProcessingErrors...)
	if d.TypeCounts != nil {
		out.TypeCounts = make(map[constants.SignatureType]int, len(d.TypeCounts))
		for k, v := range d.TypeCounts {
			out.TypeCounts[k] = v
		}
	}
	return &out
}
