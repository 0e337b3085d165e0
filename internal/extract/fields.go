package extract

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

// labelRe matches "<label>: value" where the label starts a line or a column.
func labelRe(labels ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|\s{2,}|\|)\s*(?:` + strings.Join(labels, "|") + `)\.?\s*(?:[:\-]|\s{2,}|$)\s*(.*)$`)
}

var (
	reOurRef  = labelRe(`our\s+ref(?:erence)?\.?(?:\s+no)?`, `file\s+no`, `ref(?:erence)?\s+no`, `report\s+no`, `certificate\s+no`)
	reDate    = labelRe(`date\s+of\s+issue`, `report\s+date`, `issue\s+date`, `date\s+issued`, `date`)
	reSubject = labelRe(`subject`, `type\s+of\s+product`, `product\s+type`, `product\s+name`)
	reSample  = labelRe(`sample\s+ref(?:erence)?(?:\s+no)?`, `sample\s+description`, `sample\s+id`, `batch\s+no`, `batch\s+number`, `lot\s+no`)
	reCompany = labelRe(`company(?:\s+name)?`, `laboratory`)
	reSampled = labelRe(`sampling\s+date\s*(?:&|and|/)?\s*time`, `date\s*(?:&|and|/)\s*time\s+of\s+sampling`, `sampling\s+date`, `date\s+sampled`)

	reCompanySuffix = regexp.MustCompile(`(?i)\b(?:ltd|limited|plc|inc|llc|llp|gmbh|corp|corporation|company|pvt|pte|sdn\s+bhd|bhd|laboratories|laboratory|labs)\b\.?`)
	reAnyLabel      = regexp.MustCompile(`^[\p{L} /]{2,30}\s*:`)
	reColumnGap     = regexp.MustCompile(`\s{2,}`)
)

// labelled returns the value of the first line matching re. A label with
// nothing after it takes the next non-empty line, unless that line is itself
// a label.
func labelled(lines []string, re *regexp.Regexp) string {
	for i, line := range lines {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if v := cellValue(m[1]); v != "" {
			return v
		}
		for j := i + 1; j < len(lines) && j <= i+2; j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" {
				continue
			}
			if reAnyLabel.MatchString(next) {
				break
			}
			return cellValue(next)
		}
	}
	return constants.NotFound
}

// cellValue cuts a value at the first column gap and trims separators.
func cellValue(s string) string {
	s = strings.TrimSpace(s)
	if loc := reColumnGap.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.Trim(s, " :-|")
}

func extractDate(lines []string) string {
	v := labelled(lines, reDate)
	if textnorm.IsNotFound(v) {
		return constants.NotFound
	}
	if d, ok := textnorm.NormalizeDate(v); ok {
		return d
	}
	return constants.NotFound
}

// extractSampled renders the sampling date and time, e.g. "12/12/07, 1510 hrs"
// as "12/12/2007 15:10". Empty when the certificate has none.
func extractSampled(lines []string) string {
	v := labelled(lines, reSampled)
	if textnorm.IsNotFound(v) {
		return ""
	}
	if f, ok := textnorm.FormatDateTime(v); ok {
		return f
	}
	return v
}

// extractCompany prefers an explicit label, then the first line near the top
// carrying a company suffix, then the first line that is not a label.
func extractCompany(lines []string) string {
	if v := labelled(lines, reCompany); !textnorm.IsNotFound(v) {
		return v
	}
	top := lines
	if len(top) > 15 {
		top = top[:15]
	}
	for _, l := range top {
		if reAnyLabel.MatchString(strings.TrimSpace(l)) {
			continue
		}
		if loc := reCompanySuffix.FindStringIndex(l); loc != nil {
			return cellAround(l, loc[0])
		}
	}
	for _, l := range top {
		t := strings.TrimSpace(l)
		if t == "" || reAnyLabel.MatchString(t) || !hasLetters(t, 3) {
			continue
		}
		return cellValue(t)
	}
	return constants.NotFound
}

// cellAround returns the column segment of line containing byte offset pos.
func cellAround(line string, pos int) string {
	start, end := 0, len(line)
	for _, gap := range reColumnGap.FindAllStringIndex(line, -1) {
		if gap[1] <= pos {
			start = gap[1]
		} else if gap[0] > pos {
			end = gap[0]
			break
		}
	}
	return strings.Trim(strings.TrimSpace(line[start:end]), ":-|")
}

func hasLetters(s string, n int) bool {
	c := 0
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || r > 127 {
			c++
			if c >= n {
				return true
			}
		}
	}
	return false
}
