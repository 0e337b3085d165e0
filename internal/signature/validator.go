package signature

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/extract"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

var (
	// The classifier prompt asks for names as: name 'Full Name'.
	reNameHint   = regexp.MustCompile(`(?i)\bnamed?\s*[:=]?\s*['"“‘]([^'"”’]{2,60})['"”’]`)
	reQuoted     = regexp.MustCompile(`['"“‘]([^'"”’]{2,60})['"”’]`)
	reNameLabels = regexp.MustCompile(`\b(?i:signed\s+by|signature\s+of|reads|name)\s*[:\-]?\s*(\p{Lu}[\p{L}.'\-]+(?:\s+\p{Lu}[\p{L}.'\-]+){1,4})`)
	reQA         = regexp.MustCompile(`(?i)\bQA\b`)
	reQC         = regexp.MustCompile(`(?i)\bQC\b`)
)

// Validator reconciles detected signatures with the extracted signatories
// and decides compliance.
type Validator struct {
	policy string
	logger *slog.Logger
}

func NewValidator(cfg common.ValidationConfig, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.SignaturePolicy
	if policy == "" {
		policy = common.PolicyPresence
	}
	return &Validator{policy: policy, logger: logger}
}

// Validate returns a validated copy of rec and the notes explaining each
// decision. rec is not modified. det may be nil when detection was not
// requested.
func (v *Validator) Validate(rec *entity.Record, det *entity.SignatureDetection) (*entity.Record, []string) {
	out := rec.Clone()
	if out == nil {
		out = &entity.Record{}
		extract.Finalize(out)
	}
	var notes []string

	actual := 0
	var fulls []entity.SignatureInstance
	if det != nil {
		actual = det.SignaturesFound
		fulls = det.FullSignatures()
	} else {
		notes = append(notes, "signature detection was not requested; actual signatures set to 0")
	}

	if actual > len(out.NamesAndDesignations) {
		notes = append(notes, v.infer(out, fulls)...)
	}

	expected := len(out.NamesAndDesignations)
	countMatches := expected == actual
	testsComply := true
	for _, t := range out.TestResults {
		if t.PassFail == constants.VerdictFail {
			testsComply = false
			break
		}
	}

	signaturesOK := actual > 0
	if v.policy == common.PolicyCountMatch {
		signaturesOK = signaturesOK && countMatches
	}

	out.ExpectedSignatures = expected
	out.ActualSignatures = actual
	out.IsThereSignature = yesNo(actual > 0)
	out.ResultsComply = yesNo(testsComply && signaturesOK)

	switch {
	case actual < expected:
		notes = append(notes, fmt.Sprintf("%d expected signature(s) were not detected", expected-actual))
	case actual == 0:
		notes = append(notes, "no signatures detected")
	}
	if !testsComply {
		notes = append(notes, "at least one test result failed")
	}
	if !signaturesOK {
		if v.policy == common.PolicyCountMatch {
			notes = append(notes, "signature count does not match the named signatories")
		} else {
			notes = append(notes, "document is not signed")
		}
	}

	names := make([]string, 0, expected)
	for _, p := range out.NamesAndDesignations {
		names = append(names, p.Name+" - "+p.Designation)
	}
	out.SignatureValidationDetails = &entity.ValidationDetails{
		NamesFound:            names,
		SignatureCountMatches: countMatches,
		TestResultsComply:     testsComply,
		ValidationNote: fmt.Sprintf("Expected %d signatures based on names/designations, found %d signatures. Test results comply: %s",
			expected, actual, yesNo(testsComply)),
		Notes: notes,
	}
	if det != nil {
		out.SignatureDetection = det.Clone()
	}

	v.logger.Debug("signature.validate.ok",
		"expected", expected,
		"actual", actual,
		"results_comply", out.ResultsComply,
		"policy", v.policy,
	)
	return out, notes
}

// infer appends a signatory for every full signature the named pairs do not
// account for. Pairs are only ever added.
func (v *Validator) infer(rec *entity.Record, fulls []entity.SignatureInstance) []string {
	var notes []string
	hints := append([]string(nil), rec.UnpairedDesignations...)
	from := len(rec.NamesAndDesignations)
	if from > len(fulls) {
		return nil
	}
	for _, inst := range fulls[from:] {
		name := NameFromInstance(inst)
		if name != "" && nameKnown(rec.NamesAndDesignations, name) {
			notes = append(notes, fmt.Sprintf("%s names %s, who is already listed; not added", inst.SignatureID, name))
			continue
		}
		if name == "" {
			name = fmt.Sprintf("Unidentified signatory (%s, page %d)", inst.SignatureID, inst.PageNumber)
		}

		var designation string
		switch {
		case len(hints) > 0:
			designation, hints = hints[0], hints[1:]
		case extract.FindDesignation(inst.Position+" "+inst.Description) != "":
			designation = extract.FindDesignation(inst.Position + " " + inst.Description)
		default:
			designation = complement(rec.NamesAndDesignations)
		}

		rec.NamesAndDesignations = append(rec.NamesAndDesignations, entity.SignatoryPair{
			Name:        name,
			Designation: designation,
			Inferred:    true,
		})
		notes = append(notes, fmt.Sprintf("added inferred signatory %s - %s from %s on page %d", name, designation, inst.SignatureID, inst.PageNumber))
	}
	return notes
}

// NameFromInstance reads a signatory name from the classifier's free text.
func NameFromInstance(inst entity.SignatureInstance) string {
	for _, text := range []string{inst.Description, inst.Position, inst.Reasoning} {
		if text == "" {
			continue
		}
		for _, re := range []*regexp.Regexp{reNameHint, reNameLabels, reQuoted} {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				name := strings.Join(strings.Fields(m[1]), " ")
				if extract.LooksLikeName(name) {
					return name
				}
			}
		}
	}
	return ""
}

func nameKnown(pairs []entity.SignatoryPair, name string) bool {
	for _, p := range pairs {
		if textnorm.ContainsFold(p.Name, name) {
			return true
		}
	}
	return false
}

// complement pairs QA APPROVED with QC PASSED and vice versa.
func complement(pairs []entity.SignatoryPair) string {
	var qa, qc bool
	for _, p := range pairs {
		qa = qa || reQA.MatchString(p.Designation)
		qc = qc || reQC.MatchString(p.Designation)
	}
	switch {
	case qa && !qc:
		return constants.DesignationQCPassed
	case qc && !qa:
		return constants.DesignationQAApproved
	}
	return constants.DesignationSignatory
}

func yesNo(b bool) string {
	if b {
		return constants.Yes
	}
	return constants.No
}
