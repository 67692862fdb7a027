// Package extraction turns noisy OCR lines into canonical bill fields.
package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	minPlausibleAmount = 1.0
	maxPlausibleAmount = 500000.0
	minYearLike        = 1990.0
	maxYearLike        = 2050.0
)

var (
	currencyStripper = strings.NewReplacer(
		"₹", "", "â‚¹", "", "$", "", "€", "", "â‚¬", "", "£", "", "Â£", "", "¥", "", "Â¥", "",
		"{", "", "}", "", "(", "", ")", "", "[", "", "]", "",
	)

	// OCR confusions around the decimal part
	confusableFixer = strings.NewReplacer(
		"o.o0", "0.00",
		"O.00", "0.00",
		"OO", "00",
		"O.", "0.",
		"o.", "0.",
	)

	strayBeforeDecimal = regexp.MustCompile(`[lI](\.\d{1,4})$`)
	commaThousands     = regexp.MustCompile(`^\d{1,3}(?:,\d{3})*\.\d{1,4}$`)
	dotThousands       = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})*,\d{1,4}$`)
	decimalComma       = regexp.MustCompile(`^\d+,\d{1,2}$`)
	nonNumeric         = regexp.MustCompile(`[^0-9.\-]`)

	timestampToken = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?::\d{2})?\s*(?:[ap]\.?m\.?)?|\b\d{1,2}\.\d{2}\s*[ap]\.?m\.?`)
	rateToken      = regexp.MustCompile(`(?i)[\d.]+\s*/\s*(?:km|min)\b`)
	distanceToken  = regexp.MustCompile(`(?i)[\d.]+\s*(?:kms?|mins?|minutes?|kilometers?)\b`)
	anchoredAmount = regexp.MustCompile(`(?i)(?:rs\.?|inr|₹|\$|€|£|¥|\{|\(|\[|total|paid|[rs])\s*[:\-]?\s*([\d.,]{1,15})`)
)

// ParseAmount canonicalizes a noisy numeric string. Unparseable input yields 0.
func ParseAmount(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = currencyStripper.Replace(s)
	s = confusableFixer.Replace(s)
	s = strings.TrimSpace(s)
	s = strayBeforeDecimal.ReplaceAllString(s, "$1")

	switch {
	case commaThousands.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case dotThousands.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case decimalComma.MatchString(s):
		s = strings.Replace(s, ",", ".", 1)
	}

	s = nonNumeric.ReplaceAllString(s, "")
	if strings.Count(s, ".") > 1 {
		parts := strings.Split(s, ".")
		s = parts[0] + "." + strings.Join(parts[1:], "")
	}
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" || s == "." {
		return 0
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// IsPlausibleAmount rejects values outside the bill range and calendar years
func IsPlausibleAmount(n float64) bool {
	if n < minPlausibleAmount || n > maxPlausibleAmount {
		return false
	}
	return n < minYearLike || n > maxYearLike
}

// FindPlausibleAmounts extracts currency-anchored amounts from free text
func FindPlausibleAmounts(text string) []float64 {
	text = timestampToken.ReplaceAllString(text, " ")
	text = rateToken.ReplaceAllString(text, " ")
	text = distanceToken.ReplaceAllString(text, " ")

	var amounts []float64
	for _, m := range anchoredAmount.FindAllStringSubmatch(text, -1) {
		if v := ParseAmount(m[1]); IsPlausibleAmount(v) {
			amounts = append(amounts, v)
		}
	}
	return amounts
}

func maxAmount(amounts []float64) (float64, bool) {
	if len(amounts) == 0 {
		return 0, false
	}
	best := amounts[0]
	for _, a := range amounts[1:] {
		if a > best {
			best = a
		}
	}
	return best, true
}
