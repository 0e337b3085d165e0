package signature

import (
	"strings"
	"testing"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

func detection(insts ...entity.SignatureInstance) *entity.SignatureDetection {
	det := &entity.SignatureDetection{TypeCounts: map[constants.SignatureType]int{}}
	for i, s := range insts {
		s.SignatureID = "sig_" + string(rune('1'+i))
		if s.Type == "" {
			s.Type = constants.FullSignature
		}
		if s.Type == constants.FullSignature {
			det.SignaturesFound++
		}
		det.SignatureDetails = append(det.SignatureDetails, s)
	}
	return det
}

func baseRecord(pairs ...entity.SignatoryPair) *entity.Record {
	return &entity.Record{
		OurRef:               "R-1",
		NamesAndDesignations: pairs,
		ExpectedSignatures:   len(pairs),
		TestResults: []entity.TestResult{
			{Parameter: "Moisture", PassFail: constants.VerdictPass},
		},
	}
}

func TestValidateMatchingCount(t *testing.T) {
	rec := baseRecord(entity.SignatoryPair{Name: "Jun Wy", Designation: "QA APPROVED"})
	out, _ := NewValidator(common.ValidationConfig{}, nil).Validate(rec, detection(entity.SignatureInstance{PageNumber: 1}))
	if out.ExpectedSignatures != 1 || out.ActualSignatures != 1 {
		t.Errorf("expected/actual = %d/%d", out.ExpectedSignatures, out.ActualSignatures)
	}
	if out.IsThereSignature != constants.Yes || out.ResultsComply != constants.Yes {
		t.Errorf("flags = %s/%s", out.IsThereSignature, out.ResultsComply)
	}
	d := out.SignatureValidationDetails
	if !d.SignatureCountMatches || !d.TestResultsComply {
		t.Errorf("details = %+v", d)
	}
	if d.NamesFound[0] != "Jun Wy - QA APPROVED" {
		t.Errorf("names_found = %v", d.NamesFound)
	}
	want := "Expected 1 signatures based on names/designations, found 1 signatures. Test results comply: Yes"
	if d.ValidationNote != want {
		t.Errorf("note = %q", d.ValidationNote)
	}
	if out.SignatureDetection == nil {
		t.Error("detection should be attached")
	}
}

func TestValidateInference(t *testing.T) {
	tests := []struct {
		name      string
		rec       *entity.Record
		det       *entity.SignatureDetection
		wantPairs []entity.SignatoryPair
		wantMatch bool
	}{
		{
			name: "qa complement with name from description",
			rec:  baseRecord(entity.SignatoryPair{Name: "Jun Wy", Designation: "QA APPROVED"}),
			det: detection(
				entity.SignatureInstance{PageNumber: 1},
				entity.SignatureInstance{PageNumber: 1, Description: "cursive signature, name 'Tan Ah Kow'"},
			),
			wantPairs: []entity.SignatoryPair{
				{Name: "Jun Wy", Designation: "QA APPROVED"},
				{Name: "Tan Ah Kow", Designation: constants.DesignationQCPassed, Inferred: true},
			},
			wantMatch: true,
		},
		{
			name: "unpaired hint wins and placeholder name",
			rec: func() *entity.Record {
				r := baseRecord()
				r.UnpairedDesignations = []string{"Laboratory Manager"}
				return r
			}(),
			det: detection(entity.SignatureInstance{PageNumber: 2, Position: "bottom right"}),
			wantPairs: []entity.SignatoryPair{
				{Name: "Unidentified signatory (sig_1, page 2)", Designation: "Laboratory Manager", Inferred: true},
			},
			wantMatch: true,
		},
		{
			name: "designation from position text",
			rec:  baseRecord(),
			det:  detection(entity.SignatureInstance{PageNumber: 1, Position: "above Chemist label", Reasoning: "signed by Grace Tan"}),
			wantPairs: []entity.SignatoryPair{
				{Name: "Grace Tan", Designation: "Chemist", Inferred: true},
			},
			wantMatch: true,
		},
		{
			name: "fallback designation is signatory",
			rec:  baseRecord(),
			det:  detection(entity.SignatureInstance{PageNumber: 1}),
			wantPairs: []entity.SignatoryPair{
				{Name: "Unidentified signatory (sig_1, page 1)", Designation: constants.DesignationSignatory, Inferred: true},
			},
			wantMatch: true,
		},
		{
			name: "known name is not added twice",
			rec:  baseRecord(entity.SignatoryPair{Name: "Jun Wy", Designation: "QA APPROVED"}),
			det: detection(
				entity.SignatureInstance{PageNumber: 1},
				entity.SignatureInstance{PageNumber: 1, Description: "name 'JUN WY'"},
			),
			wantPairs: []entity.SignatoryPair{{Name: "Jun Wy", Designation: "QA APPROVED"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(tt.rec.NamesAndDesignations)
			out, notes := NewValidator(common.ValidationConfig{}, nil).Validate(tt.rec, tt.det)
			if len(tt.rec.NamesAndDesignations) != before {
				t.Error("input record was mutated")
			}
			if len(out.NamesAndDesignations) != len(tt.wantPairs) {
				t.Fatalf("pairs = %+v, want %+v", out.NamesAndDesignations, tt.wantPairs)
			}
			for i, w := range tt.wantPairs {
				if out.NamesAndDesignations[i] != w {
					t.Errorf("pair %d = %+v, want %+v", i, out.NamesAndDesignations[i], w)
				}
			}
			if out.ExpectedSignatures != len(tt.wantPairs) {
				t.Errorf("expected = %d", out.ExpectedSignatures)
			}
			if got := out.SignatureValidationDetails.SignatureCountMatches; got != tt.wantMatch {
				t.Errorf("signature_count_matches = %v, want %v (expected %d, actual %d)",
					got, tt.wantMatch, out.ExpectedSignatures, out.ActualSignatures)
			}
			if len(notes) == 0 {
				t.Error("inference should leave notes")
			}
		})
	}
}

func TestValidateCompliance(t *testing.T) {
	failing := baseRecord(entity.SignatoryPair{Name: "Jun Wy", Designation: "QA APPROVED"})
	failing.TestResults = append(failing.TestResults, entity.TestResult{Parameter: "FFA", PassFail: constants.VerdictFail})

	twoNames := baseRecord(
		entity.SignatoryPair{Name: "Jun Wy", Designation: "QA APPROVED"},
		entity.SignatoryPair{Name: "Tan Ah Kow", Designation: "QC PASSED"},
	)

	tests := []struct {
		name   string
		policy string
		rec    *entity.Record
		det    *entity.SignatureDetection
		want   string
	}{
		{"failed test row", common.PolicyPresence, failing, detection(entity.SignatureInstance{}), constants.No},
		{"no detection requested", common.PolicyPresence, baseRecord(), nil, constants.No},
		{"presence tolerates missing signature", common.PolicyPresence, twoNames, detection(entity.SignatureInstance{}), constants.Yes},
		{"count_match requires equal counts", common.PolicyCountMatch, twoNames, detection(entity.SignatureInstance{}), constants.No},
		{"count_match satisfied", common.PolicyCountMatch, twoNames, detection(entity.SignatureInstance{}, entity.SignatureInstance{}), constants.Yes},
		{"only initials detected", common.PolicyPresence, baseRecord(), detection(entity.SignatureInstance{Type: constants.Initials}), constants.No},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := NewValidator(common.ValidationConfig{SignaturePolicy: tt.policy}, nil).Validate(tt.rec, tt.det)
			if out.ResultsComply != tt.want {
				t.Errorf("results_comply = %s, want %s (notes %v)", out.ResultsComply, tt.want, out.SignatureValidationDetails.Notes)
			}
		})
	}
}

func TestValidateWithoutDetection(t *testing.T) {
	out, notes := NewValidator(common.ValidationConfig{}, nil).Validate(baseRecord(entity.SignatoryPair{Name: "Jun Wy", Designation: "QA"}), nil)
	if out.ActualSignatures != 0 || out.IsThereSignature != constants.No || out.SignatureDetection != nil {
		t.Errorf("out = %+v", out)
	}
	if !strings.Contains(strings.Join(notes, ";"), "not requested") {
		t.Errorf("notes = %v", notes)
	}
}

func TestNameFromInstance(t *testing.T) {
	tests := []struct {
		inst entity.SignatureInstance
		want string
	}{
		{entity.SignatureInstance{Description: "name 'Jun Wy'"}, "Jun Wy"},
		{entity.SignatureInstance{Reasoning: `the signature reads "Tan Ah Kow"`}, "Tan Ah Kow"},
		{entity.SignatureInstance{Reasoning: "Signed by Grace Tan above the line"}, "Grace Tan"},
		{entity.SignatureInstance{Description: "illegible scrawl"}, ""},
		{entity.SignatureInstance{Description: "name 'X'"}, ""},
	}
	for _, tt := range tests {
		if got := NameFromInstance(tt.inst); got != tt.want {
			t.Errorf("NameFromInstance(%+v) = %q, want %q", tt.inst, got, tt.want)
		}
	}
}
