package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}\b`)
	reUnit   = regexp.MustCompile(`\b(mg/l|mg/kg|µg/l|ug/l|ppm|ppb|cfu|%|°c|ntu|ms/cm|µs/cm|g/l)\b`)
	reLabel  = regexp.MustCompile(`\b(our ref|report|certificate|sample|result|specification|test method|parameter)\b`)
	reNumber = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
)

// heuristicConfidence scores how much the text looks like a lab report:
// dates, units, report labels and numeric results each add to the base.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2)
	if reDate.MatchString(txtL) {
		score += 0.15
	}
	if reUnit.MatchString(txtL) {
		score += 0.15
	}
	if reLabel.MatchString(txtL) {
		score += 0.2
	}
	if len(reNumber.FindAllString(txtL, 10)) >= 5 {
		score += 0.15
	}
	if len(txt) > 200 {
		score += 0.15
	}
	return min(score, 1.0)
}
