package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

// dateLayouts are tried in order; day-first layouts precede month-first ones
var dateLayouts = []string{
	"2 January, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2/1/2006",
	"2/1/06",
	"2-1-2006",
	"2-1-06",
	"2.1.2006",
	"2.1.06",
	"2006-1-2",
	"2006/1/2",
	"1/2/2006",
	"1/2/06",
	// comma-free renderings of the month-name forms
	"2 January 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"2 Jan, 2006",
}

// looseLayouts are accepted for structured inputs such as manifests and voucher periods
var looseLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var (
	timeOfDay       = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?::\d{2})?\s*(?:a\.m\.|p\.m\.|am|pm)?`)
	separatorRun    = regexp.MustCompile(`[\s:;,]+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	dateLabel       = regexp.MustCompile(`(?i)\b(?:invoice date|bill date|inv date|delivered on|shipped on|dated|date|dt|time)\b\.?|&`)
	bareDay         = regexp.MustCompile(`^\d{1,2}$`)
	bareYear        = regexp.MustCompile(`^\d{4}$`)
	monthToken      = regexp.MustCompile(`\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`)
	fullTextDateRun = regexp.MustCompile(`(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})|([A-Za-z]{3,9}\s+\d{1,2},*\s+\d{4})|(\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4})`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// DateExtractor finds the bill date in OCR lines
type DateExtractor struct {
	now        func() time.Time
	yearsBack  int
	yearsAhead int
	cascade    []strategy[time.Time]
}

// DateOption configures a DateExtractor
type DateOption func(*DateExtractor)

// WithClock sets the clock the acceptance window is anchored on
func WithClock(now func() time.Time) DateOption {
	return func(d *DateExtractor) { d.now = now }
}

// WithYearWindow sets how many years before and after the current one are accepted
func WithYearWindow(back, ahead int) DateOption {
	return func(d *DateExtractor) {
		d.yearsBack = back
		d.yearsAhead = ahead
	}
}

// NewDateExtractor creates a DateExtractor accepting [year-6, year+1] by default
func NewDateExtractor(opts ...DateOption) *DateExtractor {
	d := &DateExtractor{
		now:        time.Now,
		yearsBack:  6,
		yearsAhead: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cascade = []strategy[time.Time]{
		{name: "fragmented", run: d.fragmented},
		{name: "keyword_proximity", run: d.keywordProximity},
		{name: "standalone_line", run: d.standaloneLine},
		{name: "full_text", run: d.fullText},
	}
	return d
}

// Extract returns the canonical dd-mm-yyyy bill date, or empty
func (d *DateExtractor) Extract(lines []entity.OcrLine) string {
	t, _, ok := firstMatch(lines, d.cascade)
	if !ok {
		return ""
	}
	return t.Format(entity.CanonicalDateLayout)
}

// Normalize parses a single candidate and renders it canonically, or returns empty
func (d *DateExtractor) Normalize(s string) string {
	t, ok := d.Parse(s)
	if !ok {
		return ""
	}
	return t.Format(entity.CanonicalDateLayout)
}

// Parse attempts a full parse of s against the accepted layouts inside the year window
func (d *DateExtractor) Parse(s string) (time.Time, bool) {
	for _, candidate := range dateCandidates(s) {
		for _, layout := range dateLayouts {
			t, err := time.Parse(layout, candidate)
			if err != nil {
				continue
			}
			t = expandTwoDigitYear(layout, t)
			if d.inWindow(t) {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func (d *DateExtractor) inWindow(t time.Time) bool {
	year := d.now().Year()
	return t.Year() >= year-d.yearsBack && t.Year() <= year+d.yearsAhead
}

// fragmented rebuilds a date whose day and year head the page and whose month sits at the foot
func (d *DateExtractor) fragmented(lines []entity.OcrLine) (time.Time, bool) {
	if len(lines) < 2 {
		return time.Time{}, false
	}
	day := strings.TrimSpace(lines[0].Text)
	year := strings.TrimSpace(lines[1].Text)
	if !bareDay.MatchString(day) || !bareYear.MatchString(year) {
		return time.Time{}, false
	}

	footer := strings.ToLower(entity.JoinLines(tail(lines, 5), " ")) + " "
	m := monthToken.FindStringSubmatch(footer)
	if m == nil {
		return time.Time{}, false
	}

	dd, _ := strconv.Atoi(day)
	yy, _ := strconv.Atoi(year)
	month := monthIndex[m[1][:3]]
	t := time.Date(yy, month, dd, 0, 0, 0, 0, time.UTC)
	if t.Day() != dd || t.Month() != month || !d.inWindow(t) {
		return time.Time{}, false
	}
	return t, true
}

// keywordProximity parses the text around a date label, widening to the next two lines
func (d *DateExtractor) keywordProximity(lines []entity.OcrLine) (time.Time, bool) {
	for i, line := range lines {
		if !dateKeywordPattern.MatchString(line.Text) {
			continue
		}
		for span := 1; span <= 3 && i+span <= len(lines); span++ {
			joined := entity.JoinLines(lines[i:i+span], " ")
			if t, ok := d.Parse(dateLabel.ReplaceAllString(joined, " ")); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func (d *DateExtractor) standaloneLine(lines []entity.OcrLine) (time.Time, bool) {
	for _, line := range lines {
		if t, ok := d.Parse(line.Text); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func (d *DateExtractor) fullText(lines []entity.OcrLine) (time.Time, bool) {
	text := entity.JoinLines(lines, " ")
	for _, m := range fullTextDateRun.FindAllStringSubmatch(text, -1) {
		for _, group := range m[1:] {
			if group == "" {
				continue
			}
			if t, ok := d.Parse(group); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// dateCandidates yields the cleaned renderings of s worth parsing
func dateCandidates(s string) []string {
	stripped := timeOfDay.ReplaceAllString(s, " ")
	kept := strings.Trim(whitespaceRun.ReplaceAllString(stripped, " "), " .-/")
	flat := strings.Trim(separatorRun.ReplaceAllString(stripped, " "), " .-/")

	if kept == "" && flat == "" {
		return nil
	}
	if kept == flat {
		return []string{kept}
	}
	return []string{kept, flat}
}

// expandTwoDigitYear applies the >50 → 19xx pivot to layouts with a two-digit year
func expandTwoDigitYear(layout string, t time.Time) time.Time {
	if !strings.Contains(layout, "06") || strings.Contains(layout, "2006") {
		return t
	}
	yy := t.Year() % 100
	year := 2000 + yy
	if yy > 50 {
		year = 1900 + yy
	}
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseLooseDate parses structured date inputs without the OCR year window
func ParseLooseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range looseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	for _, candidate := range dateCandidates(s) {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return expandTwoDigitYear(layout, t), true
			}
		}
	}
	return time.Time{}, false
}
