package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

const num = `(-?\d+(?:[.,]\d+)?)`

var (
	reSpecRange = regexp.MustCompile(`^(?:from\s+)?` + num + `\s*(?:-|–|—|to)\s*` + num)
	reSpecLE    = regexp.MustCompile(`^(?:≤|<=|=<|max(?:imum)?\.?|nmt|not\s+more\s+than|up\s+to)\s*:?\s*` + num)
	reSpecLT    = regexp.MustCompile(`^(?:<|less\s+than|below)\s*` + num)
	reSpecGE    = regexp.MustCompile(`^(?:≥|>=|=>|min(?:imum)?\.?|nlt|not\s+less\s+than|at\s+least)\s*:?\s*` + num)
	reSpecGT    = regexp.MustCompile(`^(?:>|more\s+than|greater\s+than|above)\s*` + num)
	reResultNum = regexp.MustCompile(`^(?:[<>≤≥]=?)?\s*` + num)
)

var notDetected = map[string]bool{
	"nd": true, "n.d.": true, "not detected": true, "absent": true, "nil": true, "none detected": true,
}

// VerdictFromSpec compares a numeric result with a numeric specification
// (upper bound, lower bound or range). Anything it cannot read is unknown.
func VerdictFromSpec(result, spec string) string {
	s := textnorm.Fold(spec)
	r := textnorm.Fold(result)
	if s == "" || r == "" {
		return constants.VerdictUnknown
	}

	upper := false
	var check func(float64) bool
	switch {
	case reSpecLE.MatchString(s):
		x := parseNum(reSpecLE.FindStringSubmatch(s)[1])
		check, upper = func(v float64) bool { return v <= x }, true
	case reSpecLT.MatchString(s):
		x := parseNum(reSpecLT.FindStringSubmatch(s)[1])
		check, upper = func(v float64) bool { return v < x }, true
	case reSpecGE.MatchString(s):
		x := parseNum(reSpecGE.FindStringSubmatch(s)[1])
		check = func(v float64) bool { return v >= x }
	case reSpecGT.MatchString(s):
		x := parseNum(reSpecGT.FindStringSubmatch(s)[1])
		check = func(v float64) bool { return v > x }
	case reSpecRange.MatchString(s):
		m := reSpecRange.FindStringSubmatch(s)
		lo, hi := parseNum(m[1]), parseNum(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		check = func(v float64) bool { return v >= lo && v <= hi }
	default:
		return constants.VerdictUnknown
	}

	if notDetected[r] {
		if upper {
			return constants.VerdictPass
		}
		return constants.VerdictUnknown
	}
	m := reResultNum.FindStringSubmatch(r)
	if m == nil {
		return constants.VerdictUnknown
	}
	if check(parseNum(m[1])) {
		return constants.VerdictPass
	}
	return constants.VerdictFail
}

// parseNum reads "1,000" as a thousands group and "0,5" as a decimal comma.
func parseNum(s string) float64 {
	if i := strings.IndexByte(s, ','); i >= 0 {
		if len(s)-i-1 == 3 {
			s = strings.Replace(s, ",", "", 1)
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
