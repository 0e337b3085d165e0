package textnorm

import (
	"testing"

	"github.com/joseph-ayodele/labcert-validator/constants"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12/12/07, 1510 hrs", "12/12/2007", true},
		{"Date: 5/9/21", "05/09/2021", true},
		{"15/06/2023, 1200 hrs", "15/06/2023", true},
		{"2023-06-15", "15/06/2023", true},
		{"12 Dec 2007", "12/12/2007", true},
		{"December 3, 2021", "03/12/2021", true},
		{"31/02/2020", "", false},
		{"no date here", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDate(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatDateTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12/12/07, 1510 hrs", "12/12/2007 15:10"},
		{"01/01/23, 0830 hrs", "01/01/2023 08:30"},
		{"31/12/22, 2359 hrs", "31/12/2022 23:59"},
		{"15/06/2023, 1200 hrs", "15/06/2023 12:00"},
		{"5/9/21, 130 hrs", "05/09/2021 01:30"},
		{"10/10/10, 10 hrs", "10/10/2010 10:00"},
		{"01/01/1999, 0001 hrs", "01/01/1999 00:01"},
		{"01/01/1999", "01/01/1999"},
	}
	for _, tt := range tests {
		got, ok := FormatDateTime(tt.in)
		if !ok || got != tt.want {
			t.Errorf("FormatDateTime(%q) = %q, %v; want %q", tt.in, got, ok, tt.want)
		}
	}
}

func TestNormalizeVerdict(t *testing.T) {
	tests := map[string]string{
		"Pass":              constants.VerdictPass,
		"COMPLIES":          constants.VerdictPass,
		"passed.":           constants.VerdictPass,
		"Fail":              constants.VerdictFail,
		"Does not comply":   constants.VerdictFail,
		"OOS":               constants.VerdictFail,
		"":                  constants.VerdictUnknown,
		"see remarks":       constants.VerdictUnknown,
	}
	for in, want := range tests {
		if got := NormalizeVerdict(in); got != want {
			t.Errorf("NormalizeVerdict(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFoldHelpers(t *testing.T) {
	if !EqualFold("  JOHN   Smith ", "john smith") {
		t.Error("EqualFold should ignore case and spacing")
	}
	if !ContainsFold("Dr. John Smith", "john smith") {
		t.Error("ContainsFold should find folded substring")
	}
	if ContainsFold("", "x") {
		t.Error("empty strings never match")
	}
	if OrNotFound("  ") != constants.NotFound || OrNotFound("null") != constants.NotFound {
		t.Error("OrNotFound sentinel mapping")
	}
	if got := Clean("A\u00a0B\x00"); got != "A B" {
		t.Errorf("Clean = %q", got)
	}
}
