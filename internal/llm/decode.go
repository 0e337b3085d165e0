package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// DecodeClassification turns a model's text answer into a Classification.
// The answer is validated strictly, then once more after lenient
// normalization. Any failure is a *ClassificationError.
func DecodeClassification(provider string, content []byte, logger *slog.Logger) (Classification, []byte, error) {
	schema := BuildClassificationJSONSchema()
	raw := []byte(StripCodeFences(string(content)))

	if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
		cleaned, _, nErr := NormalizeClassificationJSON(raw, logger)
		if nErr != nil {
			return Classification{}, raw, &ClassificationError{Provider: provider, Reason: "not a JSON object", Raw: raw, Err: nErr}
		}
		if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			return Classification{}, cleaned, &ClassificationError{Provider: provider, Reason: "schema validation failed", Raw: cleaned, Err: vErr}
		}
		raw = cleaned
	}

	var out Classification
	if err := json.Unmarshal(raw, &out); err != nil {
		return Classification{}, raw, &ClassificationError{Provider: provider, Reason: "unmarshal", Raw: raw, Err: err}
	}
	return out, raw, nil
}

// DecodeEntities turns a model's text answer into EntityFields.
func DecodeEntities(content []byte, logger *slog.Logger) (EntityFields, []byte, error) {
	schema := BuildEntityJSONSchema()
	raw := []byte(StripCodeFences(string(content)))

	if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
		cleaned, _, nErr := NormalizeEntityJSON(raw, logger)
		if nErr != nil {
			return EntityFields{}, raw, fmt.Errorf("sanitize failed: %w", nErr)
		}
		if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			return EntityFields{}, cleaned, fmt.Errorf("schema validation failed: %w", vErr)
		}
		raw = cleaned
	}

	var out EntityFields
	if err := json.Unmarshal(raw, &out); err != nil {
		return EntityFields{}, raw, fmt.Errorf("unmarshal fields: %w", err)
	}
	return out, raw, nil
}
