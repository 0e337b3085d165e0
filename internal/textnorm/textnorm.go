// Package textnorm holds the text normalization shared by the extractors and
// the validator: Unicode cleanup, case folding, dates and verdicts.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/labcert-validator/constants"
)

// Clean applies NFKC, maps exotic spaces to ASCII space and drops control
// characters other than newline, tab and form feed.
func Clean(s string) string {
	s = norm.NFKC.String(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == '\f':
			return r
		case r == '\u00a0' || r == '\u2007' || r == '\u202f':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

// Fold returns the case-folded, whitespace-collapsed form used for comparisons.
func Fold(s string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// EqualFold compares two strings after folding.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// ContainsFold reports whether either string contains the other after folding.
// Empty strings never match.
func ContainsFold(a, b string) bool {
	fa, fb := Fold(a), Fold(b)
	if fa == "" || fb == "" {
		return false
	}
	return strings.Contains(fa, fb) || strings.Contains(fb, fa)
}

// OrNotFound returns the trimmed value or the sentinel when it is empty.
func OrNotFound(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") || strings.EqualFold(s, constants.NotFound) {
		return constants.NotFound
	}
	return s
}

// IsNotFound reports whether s is empty or the sentinel.
func IsNotFound(s string) bool {
	return OrNotFound(s) == constants.NotFound
}

// NormalizeVerdict maps free-form pass/fail wording onto Pass, Fail or unknown.
func NormalizeVerdict(s string) string {
	f := Fold(strings.Trim(s, " .:;*"))
	switch f {
	case "pass", "passed", "complies", "complied", "comply", "conforms", "conform", "ok",
		"satisfactory", "within limit", "within limits", "within specification", "acceptable", "p", "yes":
		return constants.VerdictPass
	case "fail", "failed", "does not comply", "not comply", "non-compliant", "noncompliant",
		"not conform", "does not conform", "out of specification", "oos", "unsatisfactory", "f", "no":
		return constants.VerdictFail
	}
	switch {
	case strings.HasPrefix(f, "pass") || strings.HasPrefix(f, "compl"):
		return constants.VerdictPass
	case strings.HasPrefix(f, "fail") || strings.Contains(f, "not compl") || strings.Contains(f, "non compl"):
		return constants.VerdictFail
	}
	return constants.VerdictUnknown
}
