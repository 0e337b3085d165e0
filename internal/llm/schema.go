package llm

import "github.com/joseph-ayodele/labcert-validator/constants"

// BuildClassificationJSONSchema returns the classifier contract as a generic map.
// We send it with the prompt and use it locally to validate.
func BuildClassificationJSONSchema() map[string]any {
	types := constants.SignatureTypes()
	markTypes := []string{}
	for _, t := range types {
		if t != string(constants.NotSignature) {
			markTypes = append(markTypes, t)
		}
	}
	mark := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"position":        map[string]any{"type": "string"},
			"type":            map[string]any{"type": "string", "enum": markTypes},
			"description":     map[string]any{"type": "string"},
			"characteristics": stringArray(),
		},
		"required": []string{"type"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_signature":               map[string]any{"type": "boolean"},
			"signature_type":             map[string]any{"type": "string", "enum": types},
			"confidence":                 map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"reasoning":                  map[string]any{"type": "string"},
			"signature_count":            map[string]any{"type": "integer", "minimum": 0},
			"full_signature_count":       map[string]any{"type": "integer", "minimum": 0},
			"signature_characteristics":  stringArray(),
			"individual_signatures":      map[string]any{"type": "array", "items": mark},
			"alternative_classification": map[string]any{"type": "string"},
		},
		"required": []string{"is_signature", "signature_type", "confidence", "reasoning"},
	}
}

// BuildEntityJSONSchema returns the entity extraction contract.
func BuildEntityJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	pair := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":        map[string]any{"type": "string", "minLength": 2},
			"designation": str,
		},
		"required": []string{"name", "designation"},
	}
	row := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"parameter":     map[string]any{"type": "string", "minLength": 1},
			"unit":          str,
			"test_method":   str,
			"result":        str,
			"specification": str,
			"pass_fail":     map[string]any{"type": "string", "enum": []string{constants.VerdictPass, constants.VerdictFail, constants.VerdictUnknown}},
		},
		"required": []string{"parameter", "result", "pass_fail"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"our_ref":                  str,
			"company_name":             str,
			"lab_report_creation_date": map[string]any{"type": "string", "pattern": `^(\d{2}/\d{2}/\d{4}|` + constants.NotFound + `)$`},
			"subject":                  str,
			"sample_reference":         str,
			"names_and_designations":   map[string]any{"type": "array", "items": pair},
			"test_results":             map[string]any{"type": "array", "items": row},
		},
		"required": []string{
			"our_ref", "company_name", "lab_report_creation_date", "subject",
			"sample_reference", "names_and_designations", "test_results",
		},
	}
}

func stringArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}
