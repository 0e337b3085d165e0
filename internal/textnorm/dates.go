package textnorm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reNumericDate = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2}|\d{4})\b`)
	reISODate     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	reDayMonName  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?[\s\-./]+([a-z]{3,9})\.?[\s\-./,]+(\d{2}|\d{4})\b`)
	reMonNameDay  = regexp.MustCompile(`(?i)\b([a-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	reHrs         = regexp.MustCompile(`(?i)(\d{1,4})\s*(?:hrs|hours|h)\b`)
	reClock       = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

// ParseDate finds the first recognizable date in s. Numeric dates are read
// day first. Two-digit years pivot at 70.
func ParseDate(s string) (time.Time, bool) {
	if m := reISODate.FindStringSubmatch(s); m != nil {
		if t, ok := mkDate(m[1], m[2], m[3]); ok {
			return t, true
		}
	}
	if m := reNumericDate.FindStringSubmatch(s); m != nil {
		if t, ok := mkDate(m[3], m[2], m[1]); ok {
			return t, true
		}
	}
	if m := reDayMonName.FindStringSubmatch(s); m != nil {
		if mon, ok := monthOf(m[2]); ok {
			if t, ok := mkDate(m[3], strconv.Itoa(int(mon)), m[1]); ok {
				return t, true
			}
		}
	}
	if m := reMonNameDay.FindStringSubmatch(s); m != nil {
		if mon, ok := monthOf(m[1]); ok {
			if t, ok := mkDate(m[3], strconv.Itoa(int(mon)), m[2]); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// NormalizeDate renders the first date in s as DD/MM/YYYY.
func NormalizeDate(s string) (string, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return t.Format("02/01/2006"), true
}

// FormatDateTime renders inputs like "12/12/07, 1510 hrs" as
// "12/12/2007 15:10". A date without a time is rendered as DD/MM/YYYY.
func FormatDateTime(s string) (string, bool) {
	date, ok := NormalizeDate(s)
	if !ok {
		return "", false
	}
	rest := s
	if loc := reNumericDate.FindStringIndex(s); loc != nil {
		rest = s[loc[1]:]
	}
	if m := reHrs.FindStringSubmatch(rest); m != nil {
		digits := m[1]
		var hh, mm int
		if len(digits) <= 2 {
			hh, _ = strconv.Atoi(digits)
		} else {
			digits = strings.Repeat("0", 4-len(digits)) + digits
			hh, _ = strconv.Atoi(digits[:2])
			mm, _ = strconv.Atoi(digits[2:])
		}
		if hh < 24 && mm < 60 {
			return fmt.Sprintf("%s %02d:%02d", date, hh, mm), true
		}
	}
	if m := reClock.FindStringSubmatch(rest); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if hh < 24 && mm < 60 {
			return fmt.Sprintf("%s %02d:%02d", date, hh, mm), true
		}
	}
	return date, true
}

func monthOf(name string) (time.Month, bool) {
	n := strings.ToLower(name)
	if m, ok := months[n]; ok {
		return m, true
	}
	if len(n) >= 3 {
		if m, ok := months[n[:3]]; ok {
			return m, true
		}
	}
	return 0, false
}

func mkDate(ys, ms, ds string) (time.Time, bool) {
	y, err1 := strconv.Atoi(ys)
	m, err2 := strconv.Atoi(ms)
	d, err3 := strconv.Atoi(ds)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if len(ys) == 2 {
		if y < 70 {
			y += 2000
		} else {
			y += 1900
		}
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
