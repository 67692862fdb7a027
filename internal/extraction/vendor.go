package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

const (
	vendorLineWindow     = 15
	vendorScoreThreshold = 50.0
)

var (
	bareTimeOfDay  = regexp.MustCompile(`^\d{1,2}(?::\d{2})?$`)
	shortAlnum     = regexp.MustCompile(`^[0-9A-Z]{1,2}$`)
	barePercentage = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{1,2})?%?$`)
)

// ExtractVendor picks the issuing party from the head of the document
func ExtractVendor(lines []entity.OcrLine) string {
	lines = head(lines, vendorLineWindow)
	if len(lines) == 0 {
		return ""
	}

	if brand, ok := brandShortcut(lines); ok {
		return brand
	}

	n := len(lines)
	bestScore := 0.0
	best := ""
	found := false
	for i, line := range lines {
		text := strings.TrimSpace(line.Text)
		if isNoise(text) {
			continue
		}
		score := scoreVendorLine(text, line.Confidence, i, n)
		if !found || score > bestScore {
			best, bestScore, found = text, score, true
		}
	}

	if !found || bestScore < vendorScoreThreshold {
		for _, line := range head(lines, 5) {
			text := strings.TrimSpace(line.Text)
			if !isNoise(text) && len(text) > 5 {
				return text
			}
		}
	}
	return best
}

func brandShortcut(lines []entity.OcrLine) (string, bool) {
	for _, line := range head(lines, 3) {
		low := strings.ToLower(strings.TrimSpace(line.Text))
		for _, b := range singleBrands {
			if low == b.token || (strings.Contains(low, b.token) && len(low) < 5) {
				return b.name, true
			}
		}
	}
	return "", false
}

func scoreVendorLine(text string, confidence float64, index, window int) float64 {
	low := strings.ToLower(text)
	score := confidence*10 + float64(window-index)*5

	if digitRatio(text) > 0.5 {
		score -= 40
	}
	if containsAny(low, vendorKeywords) {
		score += 50
	}
	if containsAny(low, brandFragments) {
		score += 100
	}
	if containsAny(low, travelBoilerplate) {
		score -= 150
	}
	if invoiceKeywordPattern.MatchString(low) || dateLike.MatchString(low) {
		score -= 60
	}
	return score
}

// isNoise rejects lines that cannot name a vendor
func isNoise(text string) bool {
	if len(text) < 3 {
		return true
	}
	if bareTimeOfDay.MatchString(text) || shortAlnum.MatchString(text) || barePercentage.MatchString(text) {
		return true
	}
	if boilerplateWords.MatchString(text) {
		return true
	}
	return isShoutedToken(text)
}

// isShoutedToken matches short all-caps fragments such as "GST" or "TAX"
func isShoutedToken(text string) bool {
	if len(text) >= 5 {
		return false
	}
	hasLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func digitRatio(text string) float64 {
	if text == "" {
		return 0
	}
	digits := 0
	total := 0
	for _, r := range text {
		total++
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return float64(digits) / float64(total)
}
