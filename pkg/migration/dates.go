package migration

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	minYear = 1900
	maxYear = 2100
)

var monthDayYearPrefix = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})`)

// dateFormat is a fully anchored numeric layout with its segment order.
type dateFormat struct {
	pattern          *regexp.Regexp
	year, month, day int // capture group index of each segment
}

var dateFormats = []dateFormat{
	{regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`), 1, 2, 3}, // YYYY-MM-DD
	{regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`), 3, 2, 1}, // DD/MM/YYYY
	{regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})$`), 3, 2, 1}, // DD-MM-YYYY
	{regexp.MustCompile(`^(\d{4})/(\d{2})/(\d{2})$`), 1, 2, 3}, // YYYY/MM/DD
}

// genericLayouts are tried last, after the numeric formats.
var genericLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2006.01.02",
	time.RFC1123,
	time.RFC1123Z,
	"Mon Jan 2 2006",
	"2006-1-2",
	"2006/1/2",
	"2006-01-02 15:04",
	"Jan 2 2006",
	"January 2 2006",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
}

// zoneName matches the "(Coordinated Universal Time)" suffix of
// JavaScript Date strings.
var zoneName = regexp.MustCompile(`\s*\([^)]*\)$`)

// ParseDate detects a calendar date in an arbitrary legacy string and returns
// it as YYYY-MM-DD. The second result is false when no date was detected;
// that is not an error.
//
// M/D/YYYY is tried first, then the numeric formats with explicit segment
// order, then a set of textual layouts, then dateparse. Years outside
// 1900-2100 and dates that do not exist on the calendar are rejected.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if m := monthDayYearPrefix.FindStringSubmatch(s); m != nil {
		if date, ok := buildDate(m[3], m[1], m[2]); ok {
			return date, true
		}
	}

	for _, f := range dateFormats {
		m := f.pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if date, ok := buildDate(m[f.year], m[f.month], m[f.day]); ok {
			return date, true
		}
	}

	text := zoneName.ReplaceAllString(s, "")
	for _, layout := range genericLayouts {
		t, err := time.Parse(layout, text)
		if err != nil {
			continue
		}
		if t.Year() < minYear || t.Year() > maxYear {
			continue
		}
		return t.Format("2006-01-02"), true
	}

	if t, ok := parseAny(text); ok && t.Year() >= minYear && t.Year() <= maxYear {
		return t.Format("2006-01-02"), true
	}

	return "", false
}

// parseAny is the last resort for free-form dates. Ambiguous
// day/month orders are rejected.
func parseAny(s string) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()

	t, err := dateparse.ParseStrict(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func buildDate(year, month, day string) (string, bool) {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil {
		return "", false
	}
	if y < minYear || y > maxYear || m < 1 || m > 12 || d < 1 || d > 31 {
		return "", false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 → Mar 2); reject it.
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != d {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
