package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

// StripCodeFences removes a surrounding ```json fence and any prose around
// the outermost JSON object.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		s = s[i : j+1]
	}
	return s
}

// NormalizeClassificationJSON coerces a classifier answer toward the fixed contract:
// - Renames known synonyms (type -> signature_type)
// - Maps type labels onto the canonical enum
// - Rescales percent confidences and clamps to [0,1]
// - Derives signature_type from individual_signatures when it is missing
// - Drops null optionals
func NormalizeClassificationJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(StripCodeFences(string(raw))), &m); err != nil {
		return nil, nil, fmt.Errorf("normalize: decode: %w", err)
	}

	changed := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changed = append(changed, from+"->"+to)
		}
	}

	// 1) rename synonyms
	renamed("type", "signature_type")
	renamed("classification", "signature_type")
	renamed("signatures", "individual_signatures")
	renamed("explanation", "reasoning")

	// 2) is_signature may arrive as a string
	switch v := m["is_signature"].(type) {
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(v)))
		if err != nil {
			b = strings.EqualFold(strings.TrimSpace(v), "yes")
		}
		m["is_signature"] = b
		changed = append(changed, "is_signature(string)")
	case nil:
		if _, present := m["is_signature"]; present {
			m["is_signature"] = false
			changed = append(changed, "is_signature(null)")
		}
	}

	// 3) confidence: numbers, numeric strings, percentages
	if v, ok := m["confidence"]; ok {
		f, ok := toFloat(v)
		if !ok {
			f = 0
		}
		if f > 1 && f <= 100 {
			f /= 100
			changed = append(changed, "confidence(percent)")
		}
		m["confidence"] = min(max(f, 0), 1)
	}

	// 4) reasoning must be a string
	switch v := m["reasoning"].(type) {
	case nil:
		m["reasoning"] = ""
	case string:
	default:
		m["reasoning"] = fmt.Sprint(v)
	}

	// 5) individual marks
	fullMarks := 0
	firstType := ""
	if arr, ok := m["individual_signatures"].([]any); ok {
		kept := make([]any, 0, len(arr))
		for _, it := range arr {
			mk, ok := it.(map[string]any)
			if !ok {
				continue
			}
			label, _ := mk["type"].(string)
			t, _ := constants.ParseSignatureType(label)
			if t == constants.NotSignature {
				changed = append(changed, "individual_signatures(drop:"+label+")")
				continue
			}
			mk["type"] = string(t)
			for k, v := range maps.Clone(mk) {
				if v == nil {
					delete(mk, k)
				}
			}
			if t == constants.FullSignature {
				fullMarks++
			}
			if firstType == "" {
				firstType = string(t)
			}
			kept = append(kept, mk)
		}
		m["individual_signatures"] = kept
	} else if _, present := m["individual_signatures"]; present {
		delete(m, "individual_signatures")
		changed = append(changed, "individual_signatures(type)")
	}

	// 6) signature_type: canonicalize or derive
	isSig, _ := m["is_signature"].(bool)
	if label, ok := m["signature_type"].(string); ok {
		t, known := constants.ParseSignatureType(label)
		if !known {
			changed = append(changed, "signature_type(unknown:"+label+")")
			t = deriveType(isSig, fullMarks, firstType)
		}
		m["signature_type"] = string(t)
	} else {
		m["signature_type"] = string(deriveType(isSig, fullMarks, firstType))
		changed = append(changed, "signature_type(derived)")
	}

	// 7) counters and optional strings
	for _, k := range []string{"signature_count", "full_signature_count"} {
		if v, ok := m[k]; ok {
			f, ok := toFloat(v)
			if !ok || f < 0 {
				delete(m, k)
				changed = append(changed, k+"(dropped)")
				continue
			}
			m[k] = int(f)
		}
	}
	if _, ok := m["alternative_classification"].(string); !ok {
		delete(m, "alternative_classification")
	}
	if arr, ok := m["signature_characteristics"].([]any); ok {
		strs := make([]any, 0, len(arr))
		for _, v := range arr {
			if s, ok := v.(string); ok {
				strs = append(strs, s)
			}
		}
		m["signature_characteristics"] = strs
	} else {
		delete(m, "signature_characteristics")
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("normalize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Debug("llm.classify.normalize", "changed", changed)
	}
	return out, changed, nil
}

// deriveType picks a type when the model did not give a usable one. A bare
// positive answer with no per-mark detail counts as one full signature.
func deriveType(isSig bool, fullMarks int, firstType string) constants.SignatureType {
	switch {
	case !isSig:
		return constants.NotSignature
	case fullMarks > 0:
		return constants.FullSignature
	case firstType != "":
		return constants.SignatureType(firstType)
	}
	return constants.FullSignature
}

// NormalizeEntityJSON fills sentinels and drops unknown keys so an entity
// answer can satisfy the strict schema.
func NormalizeEntityJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(StripCodeFences(string(raw))), &m); err != nil {
		return nil, nil, fmt.Errorf("normalize: decode: %w", err)
	}
	changed := make([]string, 0, 8)

	for _, k := range []string{"our_ref", "company_name", "lab_report_creation_date", "subject", "sample_reference"} {
		s := stringOf(m[k])
		if k == "lab_report_creation_date" && !textnorm.IsNotFound(s) {
			if d, ok := textnorm.NormalizeDate(s); ok {
				s = d
			} else {
				s = ""
				changed = append(changed, k+"(unparseable)")
			}
		}
		m[k] = textnorm.OrNotFound(s)
	}

	pairs := []any{}
	if arr, ok := m["names_and_designations"].([]any); ok {
		for _, it := range arr {
			p, ok := it.(map[string]any)
			if !ok {
				continue
			}
			name := strings.TrimSpace(stringOf(p["name"]))
			if len([]rune(name)) < 2 || textnorm.IsNotFound(name) {
				changed = append(changed, "names_and_designations(drop:"+name+")")
				continue
			}
			pairs = append(pairs, map[string]any{
				"name":        name,
				"designation": textnorm.OrNotFound(stringOf(p["designation"])),
			})
		}
	}
	m["names_and_designations"] = pairs

	rows := []any{}
	if arr, ok := m["test_results"].([]any); ok {
		for _, it := range arr {
			r, ok := it.(map[string]any)
			if !ok {
				continue
			}
			param := strings.TrimSpace(stringOf(r["parameter"]))
			if param == "" {
				continue
			}
			rows = append(rows, map[string]any{
				"parameter":     param,
				"unit":          strings.TrimSpace(stringOf(r["unit"])),
				"test_method":   strings.TrimSpace(stringOf(r["test_method"])),
				"result":        strings.TrimSpace(stringOf(r["result"])),
				"specification": strings.TrimSpace(stringOf(r["specification"])),
				"pass_fail":     textnorm.NormalizeVerdict(stringOf(r["pass_fail"])),
			})
		}
	}
	m["test_results"] = rows

	allowed := BuildEntityJSONSchema()["properties"].(map[string]any)
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("normalize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "changed", changed)
	}
	return out, changed, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(t), "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}
