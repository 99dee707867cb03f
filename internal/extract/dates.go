package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// icelandicMonths maps month names as they appear on the site.
var icelandicMonths = map[string]time.Month{
	"janúar":    time.January,
	"febrúar":   time.February,
	"mars":      time.March,
	"apríl":     time.April,
	"maí":       time.May,
	"júní":      time.June,
	"júlí":      time.July,
	"ágúst":     time.August,
	"september": time.September,
	"október":   time.October,
	"nóvember":  time.November,
	"desember":  time.December,
}

var (
	numericDate = regexp.MustCompile(`(\d{1,2})\.?\s*(\d{1,2})\.?\s*(\d{4})`)
	textualDate = regexp.MustCompile(`(?:(\d{1,2})\.?\s*)?(janúar|febrúar|mars|apríl|maí|júní|júlí|ágúst|september|október|nóvember|desember)`)
	yearPattern = regexp.MustCompile(`\d{4}`)
)

// ParseDateRange parses the date strings used on exhibition pages.
//
// Formats seen in the archive:
//
//	"6. desember 2025 - 8. febrúar 2026"
//	"6. 12. 2025 - 8. 2. 2026"
//	"desember 2025"
//
// A two-part range yields (start, end); a single date yields the same date
// on both sides. When the start segment omits its year, the end date's year
// is inherited. A day omitted from a textual date defaults to 1. Unparsable
// input yields (nil, nil) rather than an error.
func ParseDateRange(text string) (*time.Time, *time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	if strings.Contains(text, " - ") {
		parts := strings.SplitN(text, " - ", 2)
		end := parseSingleDate(parts[1], 0)
		yearHint := 0
		if end != nil {
			yearHint = end.Year()
		}
		start := parseSingleDate(parts[0], yearHint)
		return start, end
	}

	single := parseSingleDate(text, 0)
	return single, single
}

// parseSingleDate parses one date segment. yearHint supplies the year when
// the segment omits it (zero means no hint).
func parseSingleDate(text string, yearHint int) *time.Time {
	text = strings.ToLower(strings.TrimSpace(text))

	if m := numericDate.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return makeDate(year, time.Month(month), day)
	}

	if m := textualDate.FindStringSubmatch(text); m != nil {
		day := 1
		if m[1] != "" {
			day, _ = strconv.Atoi(m[1])
		}
		month := icelandicMonths[m[2]]
		year := yearHint
		if y := yearPattern.FindString(text); y != "" {
			year, _ = strconv.Atoi(y)
		}
		if year == 0 {
			return nil
		}
		return makeDate(year, month, day)
	}
	return nil
}

func makeDate(year int, month time.Month, day int) *time.Time {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return nil
	}
	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &date
}
