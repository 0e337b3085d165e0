package entity

// Record is the validated entity record written as <stem>_entities.json.
type Record struct {
	OurRef                string          `json:"our_ref"`
	CompanyName           string          `json:"company_name"`
	LabReportCreationDate string          `json:"lab_report_creation_date"`
	Subject               string          `json:"subject"`
	SampleReference       string          `json:"sample_reference"`
	SamplingDateTime      string          `json:"sampling_date_time,omitempty"` // DD/MM/YYYY HH:MM
	NamesAndDesignations  []SignatoryPair `json:"names_and_designations"`
	ExpectedSignatures    int             `json:"expected_signatures"`
	ActualSignatures      int             `json:"actual_signatures"`
	IsThereSignature      string          `json:"is_there_signature"`
	ResultsComply         string          `json:"results_comply"`
	TestResults           []TestResult    `json:"test_results"`

	SignatureValidationDetails *ValidationDetails  `json:"signature_validation_details,omitempty"`
	SignatureDetection         *SignatureDetection `json:"signature_detection,omitempty"`
	ExtractionNotes            []string            `json:"extraction_notes,omitempty"`

	// UnpairedDesignations holds designation keywords found in the text with
	// no adjacent name. The validator uses them as hints when inferring
	// signatories from signatures.
	UnpairedDesignations []string `json:"-"`
}

// SignatoryPair is one (name, designation) found in the document or
// inferred from a detected signature.
type SignatoryPair struct {
	Name        string `json:"name"`
	Designation string `json:"designation"`
	Inferred    bool   `json:"inferred,omitempty"`
}

// TestResult is one row of the results table.
type TestResult struct {
	Parameter     string `json:"parameter"`
	Unit          string `json:"unit"`
	TestMethod    string `json:"test_method"`
	Result        string `json:"result"`
	Specification string `json:"specification"`
	PassFail      string `json:"pass_fail"`
}

// ValidationDetails records how the signature checks were decided.
type ValidationDetails struct {
	NamesFound            []string `json:"names_found"`
	SignatureCountMatches bool     `json:"signature_count_matches"`
	TestResultsComply     bool     `json:"test_results_comply"`
	ValidationNote        string   `json:"validation_note"`
	Notes                 []string `json:"notes,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.NamesAndDesignations = append([]SignatoryPair(nil), r.NamesAndDesignations...)
	out.TestResults = append([]TestResult(nil), r.TestResults...)
	out.ExtractionNotes = append([]string(nil), r.ExtractionNotes...)
	out.UnpairedDesignations = append([]string(nil), r.UnpairedDesignations...)
	if r.SignatureValidationDetails != nil {
		d := *r.SignatureValidationDetails
		d.NamesFound = append([]string(nil), d.NamesFound...)
		d.Notes = append([]string(nil), d.Notes...)
		out.SignatureValidationDetails = &d
	}
	out.SignatureDetection = r.SignatureDetection.Clone()
	return &out
}
