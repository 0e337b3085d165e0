package llm

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// maxPromptText caps the document text sent with the entity prompt.
const maxPromptText = 12000

// ClassifierSystemPrompt describes what counts as a human signature.
func ClassifierSystemPrompt() string {
	parts := []string{
		"You are an expert in document analysis and signature detection.",
		"Decide whether the image contains human signatures.",
		"A human signature is handwritten by a person, usually their name, with flowing cursive-like strokes and a personal style. It often sits near a signature label or a printed name.",
		"Be conservative. Count only distinct signature instances.",
		"NOT signatures: printed text or names, logos, stamps without handwriting, digital signature blocks, form fields, checkboxes, random marks.",
	}
	return strings.Join(parts, " ")
}

// ClassifierUserPrompt asks for the fixed JSON contract.
func ClassifierUserPrompt() string {
	var b strings.Builder
	b.WriteString("Classify every mark in this image by type:\n")
	b.WriteString("- full_signature: a complete handwritten name or elaborate signature\n")
	b.WriteString("- initials: simple initials or short marks of 1-3 characters\n")
	b.WriteString("- mark: dots, ticks or basic strokes that are not names\n")
	b.WriteString("- stamp: printed stamps or seals\n")
	b.WriteString("Set signature_type to the most significant type present, or not_signature when there is none.\n")
	b.WriteString("If a printed name is legible next to a signature, mention it in that mark's description as name 'Full Name'.\n")
	b.WriteString("Return ONLY a JSON object that matches this JSON Schema:\n")
	b.WriteString(mustJSON(BuildClassificationJSONSchema()))
	return b.String()
}

// EntitySystemPrompt lists the lab report fields and their rules.
func EntitySystemPrompt() string {
	parts := []string{
		"You extract structured data from laboratory test reports and certificates of analysis. Return ONLY JSON that matches the provided JSON Schema.",
		"our_ref: the value next to 'Our Ref' or 'File No'.",
		"company_name: the issuing laboratory or company.",
		"lab_report_creation_date: the report date converted to DD/MM/YYYY.",
		"subject: the value next to 'Subject', 'Type of Product' or 'Product Type'.",
		"sample_reference: the value next to 'Sample Reference', 'Sample Description' or 'Batch No'.",
		"names_and_designations: every person who signs or approves the report, with the designation printed near the name (for example QA APPROVED, QC PASSED, Certified by, Issued by, Chemist, Manager). Ignore single letters.",
		"test_results: one entry per row of the results table, in order, with pass_fail set to Pass, Fail or unknown.",
		"Use the exact string 'Not found' for any text field that is absent. Never output null.",
	}
	return strings.Join(parts, " ")
}

// EntityUserPrompt packages the document text.
func EntityUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if fn := strings.TrimSpace(req.Filename); fn != "" {
		b.WriteString("Filename: ")
		b.WriteString(fn)
		b.WriteString("\n")
	}
	text := req.Text
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}
	b.WriteString("Document text:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY JSON that matches the provided schema.")
	return b.String()
}

// DataURL encodes an image for chat APIs that take image_url parts.
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
