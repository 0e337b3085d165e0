package extract

import (
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

type column int

const (
	colNone column = iota
	colParameter
	colUnit
	colMethod
	colResult
	colSpec
	colVerdict
)

// classifyHeader maps a header cell onto a column. Order matters: "Test
// Method" is a method column, not a parameter column.
func classifyHeader(cell string) column {
	f := textnorm.Fold(cell)
	switch {
	case strings.Contains(f, "method"):
		return colMethod
	case strings.Contains(f, "pass") || strings.Contains(f, "fail") || strings.Contains(f, "remark") ||
		strings.Contains(f, "status") || strings.Contains(f, "conform") || strings.Contains(f, "complian") ||
		strings.Contains(f, "verdict"):
		return colVerdict
	case f == "unit" || f == "units" || strings.HasPrefix(f, "unit "):
		return colUnit
	case strings.Contains(f, "specification") || strings.HasPrefix(f, "spec") || strings.Contains(f, "limit") ||
		strings.Contains(f, "requirement") || strings.Contains(f, "standard"):
		return colSpec
	case strings.Contains(f, "result") || strings.Contains(f, "observ") || strings.Contains(f, "value") ||
		strings.Contains(f, "finding"):
		return colResult
	case strings.Contains(f, "parameter") || strings.Contains(f, "test") || strings.Contains(f, "characteristic") ||
		strings.Contains(f, "propert") || strings.Contains(f, "analyte") || strings.Contains(f, "determination") ||
		strings.Contains(f, "item"):
		return colParameter
	}
	return colNone
}

type header struct {
	cols []column
	segs []segment
}

// findHeader returns the first line naming at least three known columns.
func findHeader(lines []string, from int) (int, header, bool) {
	for i := from; i < len(lines); i++ {
		segs := segments(lines[i])
		if len(segs) < 3 {
			continue
		}
		h := header{segs: segs, cols: make([]column, len(segs))}
		seen := map[column]bool{}
		for k, s := range segs {
			c := classifyHeader(s.text)
			h.cols[k] = c
			if c != colNone {
				seen[c] = true
			}
		}
		if len(seen) >= 3 {
			return i, h, true
		}
	}
	return 0, header{}, false
}

// testResults parses the first results table. Rows run until two blank
// lines, a signatory line, or a line with a single cell that does not
// continue the previous row.
func testResults(lines []string) []entity.TestResult {
	at, h, ok := findHeader(lines, 0)
	if !ok {
		return nil
	}

	var rows []entity.TestResult
	blank := 0
	for i := at + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			blank++
			if blank >= 2 {
				break
			}
			continue
		}
		blank = 0
		if reDesignation.MatchString(line) || strings.Trim(line, " -_=") == "" {
			if len(rows) > 0 && strings.Trim(line, " -_=") != "" {
				break
			}
			continue
		}
		segs := segments(line)
		if len(segs) < 2 {
			if len(rows) > 0 && continuesParameter(segs, h) {
				rows[len(rows)-1].Parameter += " " + segs[0].text
				continue
			}
			if len(rows) > 0 {
				break
			}
			continue
		}
		rows = append(rows, h.row(segs))
	}

	for i := range rows {
		rows[i].PassFail = deriveVerdict(rows[i])
	}
	return rows
}

// continuesParameter reports whether a lone cell sits under the parameter
// column, as a wrapped parameter name does.
func continuesParameter(segs []segment, h header) bool {
	if len(segs) != 1 {
		return false
	}
	for k, c := range h.cols {
		if c == colParameter {
			return nearest(segs[0], h.segs) == k
		}
	}
	return false
}

// row assigns cells to columns: positionally when the counts agree,
// otherwise by the nearest header column start.
func (h header) row(segs []segment) entity.TestResult {
	cells := map[column][]string{}
	for k, s := range segs {
		idx := k
		if len(segs) != len(h.segs) {
			idx = nearest(s, h.segs)
		}
		c := h.cols[idx]
		if c == colNone {
			continue
		}
		cells[c] = append(cells[c], s.text)
	}
	get := func(c column) string { return strings.Join(cells[c], " ") }
	return entity.TestResult{
		Parameter:     get(colParameter),
		Unit:          get(colUnit),
		TestMethod:    get(colMethod),
		Result:        get(colResult),
		Specification: get(colSpec),
		PassFail:      get(colVerdict),
	}
}

func nearest(s segment, cols []segment) int {
	best, bestDist := 0, -1
	for k, c := range cols {
		if overlaps(s, c) {
			return k
		}
		d := s.start - c.start
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// deriveVerdict keeps an explicit verdict and otherwise compares the result
// against a numeric specification.
func deriveVerdict(r entity.TestResult) string {
	if v := textnorm.NormalizeVerdict(r.PassFail); v != constants.VerdictUnknown {
		return v
	}
	return VerdictFromSpec(r.Result, r.Specification)
}
