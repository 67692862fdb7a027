package extraction

import (
	"strings"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

const fallbackMinimumTotal = 50.0

// terminalTotalPhrases label the final payable amount
var terminalTotalPhrases = []string{
	"total payable", "grand total", "net total", "total due", "total bill (rounded)",
	"total amount", "net amount", "amount payable", "paid by cash",
}

// intermediateQualifiers mark partial sums that must not be taken as the total
var intermediateQualifiers = []string{"sub", "tax", "discount", "fee", "includes", "received"}

var totalCascade = []strategy[float64]{
	{name: "terminal_keyword", run: terminalKeywordTotal},
	{name: "generic_label", run: genericLabelTotal},
	{name: "fallback", run: fallbackTotal},
}

// ExtractTotal scans the foot of the document bottom-up for the payable amount
func ExtractTotal(lines []entity.OcrLine) (float64, bool) {
	v, _, ok := firstMatch(lines, totalCascade)
	return v, ok
}

func terminalKeywordTotal(lines []entity.OcrLine) (float64, bool) {
	start := len(lines) - 20
	if start < 0 {
		start = 0
	}
	for i := len(lines) - 1; i >= start; i-- {
		low := strings.ToLower(lines[i].Text)
		if !containsAny(low, terminalTotalPhrases) || containsAny(low, intermediateQualifiers) {
			continue
		}
		end := i + 3
		if end > len(lines) {
			end = len(lines)
		}
		if v, ok := maxAmount(FindPlausibleAmounts(entity.JoinLines(lines[i:end], " "))); ok {
			return v, true
		}
	}
	return 0, false
}

func genericLabelTotal(lines []entity.OcrLine) (float64, bool) {
	start := len(lines) - 10
	if start < 0 {
		start = 0
	}
	for i := len(lines) - 1; i >= start; i-- {
		low := strings.ToLower(strings.TrimSpace(lines[i].Text))
		if low != "total" && low != "amount" {
			continue
		}
		if i+1 >= len(lines) {
			continue
		}
		if v, ok := maxAmount(FindPlausibleAmounts(lines[i+1].Text)); ok {
			return v, true
		}
	}
	return 0, false
}

func fallbackTotal(lines []entity.OcrLine) (float64, bool) {
	var pooled []float64
	for _, a := range FindPlausibleAmounts(entity.JoinLines(tail(lines, 25), " ")) {
		if a >= fallbackMinimumTotal {
			pooled = append(pooled, a)
		}
	}
	return maxAmount(pooled)
}
