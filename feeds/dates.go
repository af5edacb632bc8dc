package feeds

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const _MONTH_NAMES = `january|february|march|april|may|june|july|august|september|october|november|december|` +
	`jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`

const (
	_MAX_YEARS_AHEAD       = 2 // how far ahead an in-text date may point
	_MAX_HINT_YEARS_BEHIND = 1 // how stale a published hint may be
)

// pattern families in precedence order. numeric first, then month-name first,
// then day first.
var (
	_numeric_date_expr   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)
	_month_day_date_expr = regexp.MustCompile(`\b(` + _MONTH_NAMES + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)
	_day_month_date_expr = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + _MONTH_NAMES + `)\b\.?(?:,?\s+(\d{4})\b)?`)
)

var (
	_published_layouts = []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC3339,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2 Jan 2006 15:04:05 -0700",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"January 2, 2006",
		"2 January 2006",
	}
)

// DateHeuristic pulls a best guess event date out of free text.
type DateHeuristic struct {
	now func() time.Time
}

func NewDateHeuristic(now func() time.Time) *DateHeuristic {
	if now == nil {
		now = time.Now
	}
	return &DateHeuristic{now: now}
}

// Extract returns the event date (midnight UTC) found in title/description, or
// failing that the published hint. ok is false when nothing plausible was found,
// which callers treat as undated.
func (h *DateHeuristic) Extract(title, description, published string) (date time.Time, ok bool) {
	current_year := h.now().Year()
	text := strings.ToLower(title + " " + description)

	for _, m := range _numeric_date_expr.FindAllStringSubmatch(text, -1) {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if date, ok = validDate(parseYear(m[3], current_year), month, day, current_year); ok {
			return date, true
		}
	}
	for _, m := range _month_day_date_expr.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[2])
		if date, ok = validDate(parseYear(m[3], current_year), monthNumber(m[1]), day, current_year); ok {
			return date, true
		}
	}
	for _, m := range _day_month_date_expr.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[1])
		if date, ok = validDate(parseYear(m[3], current_year), monthNumber(m[2]), day, current_year); ok {
			return date, true
		}
	}
	return h.fromPublished(published, current_year)
}

func (h *DateHeuristic) fromPublished(published string, current_year int) (time.Time, bool) {
	published = strings.TrimSpace(published)
	if published == "" {
		return time.Time{}, false
	}
	for _, layout := range _published_layouts {
		if t, err := time.Parse(layout, published); err == nil {
			if t.Year() < current_year-_MAX_HINT_YEARS_BEHIND {
				return time.Time{}, false
			}
			return ToDate(t), true
		}
	}
	return time.Time{}, false
}

// validDate applies the plausibility window and rejects dates that do not
// exist (Feb 30 and friends).
func validDate(year, month, day, current_year int) (time.Time, bool) {
	if year < current_year || year > current_year+_MAX_YEARS_AHEAD {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || int(date.Month()) != month {
		return time.Time{}, false
	}
	return date, true
}

func parseYear(raw string, current_year int) int {
	if raw == "" {
		return current_year
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if len(raw) == 2 {
		year += 2000
	}
	return year
}

func monthNumber(name string) int {
	name = strings.TrimSuffix(name, ".")
	if len(name) < 3 {
		return 0
	}
	for i, month := range []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"} {
		if strings.HasPrefix(name, month) {
			return i + 1
		}
	}
	return 0
}

// ToDate truncates t to its calendar date at midnight UTC.
func ToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
