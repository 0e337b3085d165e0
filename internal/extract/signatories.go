package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

var (
	reDesignation = designationRe(constants.DesignationKeywords)
	reNamePrefix  = regexp.MustCompile(`(?i)^(?:name(?:\s*/\s*signature)?\s*[:\-]\s*|(?:mr|mrs|ms|miss|dr|prof)\.?\s+)`)
	reNameLabel   = regexp.MustCompile(`(?i)(?:^|\s{2,})name\s*:\s*(.+)$`)
	reRoleLabel   = regexp.MustCompile(`(?i)(?:^|\s{2,})(?:designation|position|title|role)\s*:\s*(.+)$`)
)

// Words that show up next to signature blocks but are never names.
var nameStopwords = map[string]bool{
	"name": true, "signature": true, "sign": true, "signed": true, "date": true, "stamp": true,
	"approved": true, "passed": true, "remarks": true, "page": true, "certificate": true,
	"analysis": true, "result": true, "results": true, "test": true, "method": true, "unit": true,
	"specification": true, "authorised": true, "authorized": true, "laboratory": true,
	"report": true, "end": true, "of": true, "the": true, "and": true, "for": true,
	"complies": true, "pass": true, "fail": true, "sample": true, "not": true, "found": true,
}

func designationRe(keywords []string) *regexp.Regexp {
	alts := make([]string, len(keywords))
	for i, k := range keywords {
		alts[i] = strings.Join(strings.Fields(regexp.QuoteMeta(k)), `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

// segment is one column of a layout line, in rune offsets.
type segment struct {
	start, end int
	text       string
}

func segments(line string) []segment {
	runes := []rune(line)
	var out []segment
	i := 0
	for i < len(runes) {
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		if i >= len(runes) {
			break
		}
		start := i
		for i < len(runes) {
			if unicode.IsSpace(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				break
			}
			if runes[i] == '\t' {
				break
			}
			i++
		}
		out = append(out, segment{start: start, end: i, text: strings.TrimSpace(string(runes[start:i]))})
	}
	return out
}

type hit struct {
	seg         segment
	designation string
	before      string
	after       string
	// leads is set when the keyword introduces the name after it
	// ("Certified by: X", "Chemist: X") rather than trailing it.
	leads bool
	// gap numbers the text slot before this hit within seg; the slot after
	// it is gap+1. Two neighbouring hits share one slot.
	gap int
}

// designationHits finds every keyword on line. The text between two
// keywords in the same column is a slot shared by both neighbours, and
// before and after are cut at the nearest separator.
func designationHits(line string) []hit {
	var out []hit
	for _, seg := range segments(line) {
		locs := reDesignation.FindAllStringIndex(seg.text, -1)
		prevEnd := 0
		for k := 0; k < len(locs); k++ {
			start, end := locs[k][0], locs[k][1]
			d := seg.text[start:end]
			if strings.HasSuffix(strings.ToUpper(d), " OF") {
				// "Head of Quality Control" is one designation.
				if tail := firstPiece(strings.SplitN(seg.text[end:], ":", 2)[0]); tail != "" {
					d += " " + tail
					end += strings.Index(seg.text[end:], tail) + len(tail)
				}
				for k+1 < len(locs) && locs[k+1][0] < end {
					k++
				}
			}
			nextStart := len(seg.text)
			if k+1 < len(locs) {
				nextStart = locs[k+1][0]
			}
			rawAfter := seg.text[end:nextStart]
			out = append(out, hit{
				seg:         seg,
				designation: strings.Join(strings.Fields(d), " "),
				before:      lastPiece(seg.text[prevEnd:start]),
				after:       firstPiece(rawAfter),
				leads:       isByPhrase(d) || strings.HasPrefix(strings.TrimSpace(rawAfter), ":"),
				gap:         len(out),
			})
			prevEnd = end
		}
	}
	return out
}

func splitPieces(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune("(),;|", r) }) {
		if p = strings.Trim(p, " -:"); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstPiece(s string) string {
	if p := splitPieces(s); len(p) > 0 {
		return p[0]
	}
	return ""
}

func lastPiece(s string) string {
	if p := splitPieces(s); len(p) > 0 {
		return p[len(p)-1]
	}
	return ""
}

func isByPhrase(d string) bool {
	return strings.HasSuffix(strings.ToUpper(strings.TrimSpace(d)), " BY")
}

// signatories pairs names with designation keywords. Designations left
// without a name are returned as hints.
func signatories(lines []string) ([]entity.SignatoryPair, []string) {
	var (
		pairs    []entity.SignatoryPair
		unpaired []string
		used     = map[[2]int]bool{}
	)

	for i, line := range lines {
		if m := reNameLabel.FindStringSubmatch(line); m != nil {
			name := cleanName(cellValue(m[1]))
			role := ""
			if r := reRoleLabel.FindStringSubmatch(line); r != nil {
				role = cellValue(r[1])
			} else if i+1 < len(lines) {
				if r := reRoleLabel.FindStringSubmatch(lines[i+1]); r != nil {
					role = cellValue(r[1])
				}
			}
			if LooksLikeName(name) && role != "" {
				pairs = append(pairs, entity.SignatoryPair{Name: name, Designation: role})
				continue
			}
		}

		// slot -> index of the pair that took the name in it
		taken := map[[2]int]int{}
		for _, h := range designationHits(line) {
			type slot struct {
				text string
				gap  int
			}
			order := []slot{{h.before, h.gap}, {h.after, h.gap + 1}}
			if h.leads {
				order[0], order[1] = order[1], order[0]
			}
			paired := false
			for _, sl := range order {
				name := cleanName(sl.text)
				if !LooksLikeName(name) {
					continue
				}
				key := [2]int{h.seg.start, sl.gap}
				if p, ok := taken[key]; ok {
					// One person between "Certified by" and "Chemist": keep
					// the role rather than the verb phrase.
					if isByPhrase(pairs[p].Designation) && !isByPhrase(h.designation) {
						pairs[p].Designation = h.designation
					}
				} else {
					taken[key] = len(pairs)
					pairs = append(pairs, entity.SignatoryPair{Name: name, Designation: h.designation})
				}
				paired = true
				break
			}
			if paired {
				continue
			}
			if name, key, ok := adjacentName(lines, i, h.seg, used); ok {
				used[key] = true
				pairs = append(pairs, entity.SignatoryPair{Name: name, Designation: h.designation})
				continue
			}
			unpaired = append(unpaired, h.designation)
		}
	}
	return pairs, unpaired
}

// adjacentName looks one line below, then one above, for the column that
// overlaps the designation's column.
func adjacentName(lines []string, i int, at segment, used map[[2]int]bool) (string, [2]int, bool) {
	for _, j := range []int{i + 1, i - 1} {
		if j < 0 || j >= len(lines) {
			continue
		}
		for _, seg := range segments(lines[j]) {
			key := [2]int{j, seg.start}
			if used[key] || !overlaps(seg, at) {
				continue
			}
			if reDesignation.MatchString(seg.text) {
				continue
			}
			if name := cleanName(seg.text); LooksLikeName(name) {
				return name, key, true
			}
		}
	}
	return "", [2]int{}, false
}

func overlaps(a, b segment) bool {
	return a.start < b.end && b.start < a.end
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	for {
		loc := reNamePrefix.FindStringIndex(s)
		if loc == nil || loc[1] == 0 {
			break
		}
		s = strings.TrimSpace(s[loc[1]:])
	}
	s = strings.TrimRight(s, " *.,;:-")
	return strings.Join(strings.Fields(s), " ")
}

// LooksLikeName accepts two to five alphabetic words with at least four
// letters overall. Single words, digits and boilerplate are rejected.
func LooksLikeName(s string) bool {
	if s == "" || textnorm.IsNotFound(s) || reDesignation.MatchString(s) {
		return false
	}
	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 5 {
		return false
	}
	letters := 0
	for _, w := range words {
		if nameStopwords[textnorm.Fold(strings.Trim(w, ".,"))] {
			return false
		}
		first, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsLetter(first) {
			return false
		}
		for _, r := range w {
			switch {
			case unicode.IsLetter(r):
				letters++
			case r == '.' || r == '\'' || r == '-' || r == '’':
			default:
				return false
			}
		}
	}
	return letters >= 4
}

// FindDesignation returns the first designation keyword in s, or "".
func FindDesignation(s string) string {
	loc := reDesignation.FindStringIndex(s)
	if loc == nil {
		return ""
	}
	return strings.Join(strings.Fields(s[loc[0]:loc[1]]), " ")
}
