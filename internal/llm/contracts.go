package llm

import (
	"context"

	"github.com/joseph-ayodele/labcert-validator/constants"
)

// EntityFields is the normalized shape we want from the entity prompt.
type EntityFields struct {
	OurRef                string          `json:"our_ref"`
	CompanyName           string          `json:"company_name"`
	LabReportCreationDate string          `json:"lab_report_creation_date"` // DD/MM/YYYY
	Subject               string          `json:"subject"`
	SampleReference       string          `json:"sample_reference"`
	NamesAndDesignations  []NamedRole     `json:"names_and_designations"`
	TestResults           []TestResultRow `json:"test_results"`
}

type NamedRole struct {
	Name        string `json:"name"`
	Designation string `json:"designation"`
}

type TestResultRow struct {
	Parameter     string `json:"parameter"`
	Unit          string `json:"unit"`
	TestMethod    string `json:"test_method"`
	Result        string `json:"result"`
	Specification string `json:"specification"`
	PassFail      string `json:"pass_fail"`
}

type ExtractRequest struct {
	Text      string
	Filename  string
	PageCount int
}

// FieldExtractor turns page text into entity fields.
type FieldExtractor interface {
	ExtractEntities(ctx context.Context, req ExtractRequest) (EntityFields, []byte /*rawJSON*/, error)
}

// ClassifyRequest carries one candidate image.
type ClassifyRequest struct {
	Image      []byte
	MIMEType   string
	PageNumber int
	Source     constants.ImageSource
	Index      int
}

// Mark is one individual mark the classifier saw inside an image.
type Mark struct {
	Position        string   `json:"position,omitempty"`
	Type            string   `json:"type"`
	Description     string   `json:"description,omitempty"`
	Characteristics []string `json:"characteristics,omitempty"`
}

// Classification is the fixed classifier contract. Every backend response is
// normalized and schema-checked before it becomes one of these.
type Classification struct {
	IsSignature               bool                    `json:"is_signature"`
	Type                      constants.SignatureType `json:"signature_type"`
	Confidence                float64                 `json:"confidence"`
	Reasoning                 string                  `json:"reasoning"`
	SignatureCount            int                     `json:"signature_count,omitempty"`
	FullSignatureCount        int                     `json:"full_signature_count,omitempty"`
	Characteristics           []string                `json:"signature_characteristics,omitempty"`
	Marks                     []Mark                  `json:"individual_signatures,omitempty"`
	AlternativeClassification string                  `json:"alternative_classification,omitempty"`
}

// FullMarks returns the individual marks typed as full signatures.
func (c Classification) FullMarks() []Mark {
	var out []Mark
	for _, m := range c.Marks {
		if t, _ := constants.ParseSignatureType(m.Type); t == constants.FullSignature {
			out = append(out, m)
		}
	}
	return out
}

// ImageClassifier is the vision collaborator used by signature detection.
type ImageClassifier interface {
	Name() string
	ClassifyImage(ctx context.Context, req ClassifyRequest) (Classification, []byte /*rawJSON*/, error)
}
