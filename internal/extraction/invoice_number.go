package extraction

import (
	"regexp"
	"strings"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

var (
	labelledInvoice = regexp.MustCompile(`(?i)\b(?:invoice\s*number|invoice\s*(?:no\b|#|id\b)\.?|inv\s*no\b|bill\s*number|bill\s*no\b|order\s*#|order\s*id\b|txn\s*id\b|crn\b|ref\b)[\s#:\-/]*([A-Z0-9\-\s/]{5,40})`)
	longDigitRun    = regexp.MustCompile(`^\d{10,}$`)
	letterOrSlash   = regexp.MustCompile(`(?i)[a-z/]`)
	trailingPunct   = regexp.MustCompile(`[\s.,;]+$`)
	bareLongCode    = regexp.MustCompile(`(?i)^[A-Z0-9]{10,}$`)
	shortOrderNo    = regexp.MustCompile(`(?i)(?:order\s*no|order\s*#)[\s.]*\s*(\d{1,4})$`)
	codeShaped      = regexp.MustCompile(`\b([A-Z]{2,4}\d{6,12})\b`)
	marketplaceID   = regexp.MustCompile(`\b(OD\d{10,})\b`)
	knownTokenRun   = regexp.MustCompile(`[A-Za-z0-9\-/]+`)
)

var invoiceCascade = []strategy[string]{
	{name: "labelled", run: labelledInvoiceNumber},
	{name: "next_line", run: invoiceNumberOnNextLine},
	{name: "short_order_no", run: shortOrderNumber},
	{name: "code_shaped", run: codeShapedInvoiceNumber},
	{name: "marketplace_order", run: marketplaceOrderID},
}

// ExtractInvoiceNumber returns the bill identifier, or empty when no tier matches
func ExtractInvoiceNumber(lines []entity.OcrLine) string {
	v, _, _ := firstMatch(lines, invoiceCascade)
	return v
}

// labelledInvoiceNumber captures the token after an invoice/bill/order/ref label
func labelledInvoiceNumber(lines []entity.OcrLine) (string, bool) {
	for _, line := range lines {
		m := labelledInvoice.FindStringSubmatch(line.Text)
		if m == nil {
			continue
		}

		result := strings.TrimSpace(m[1])
		if strings.HasSuffix(strings.ToLower(result), "number") {
			result = strings.TrimSpace(result[:len(result)-len("number")])
		}
		if strings.HasSuffix(strings.ToLower(result), "to") {
			result = strings.TrimSpace(result[:len(result)-len("to")])
		}
		if fields := strings.Fields(result); len(fields) > 0 {
			result = fields[0]
		}

		if acceptableInvoiceToken(result) {
			return trailingPunct.ReplaceAllString(result, ""), true
		}
	}
	return "", false
}

func acceptableInvoiceToken(token string) bool {
	if len(token) <= 4 || isInvoiceKeyword(token) {
		return false
	}
	if strings.Contains(strings.ToLower(token), "details") {
		return false
	}
	return letterOrSlash.MatchString(token) || longDigitRun.MatchString(token)
}

func invoiceNumberOnNextLine(lines []entity.OcrLine) (string, bool) {
	for i := 0; i+1 < len(lines); i++ {
		if !strings.Contains(strings.ToLower(lines[i].Text), "invoice number") {
			continue
		}
		next := strings.TrimSpace(lines[i+1].Text)
		if bareLongCode.MatchString(next) {
			return next, true
		}
	}
	return "", false
}

func shortOrderNumber(lines []entity.OcrLine) (string, bool) {
	for _, line := range tail(lines, 10) {
		low := strings.ToLower(strings.TrimSpace(line.Text))
		if m := shortOrderNo.FindStringSubmatch(low); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func codeShapedInvoiceNumber(lines []entity.OcrLine) (string, bool) {
	for _, line := range lines {
		if m := codeShaped.FindStringSubmatch(line.Text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func marketplaceOrderID(lines []entity.OcrLine) (string, bool) {
	for _, line := range lines {
		if m := marketplaceID.FindStringSubmatch(line.Text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// MatchesKnownInvoice reports whether known appears in text as a whole token,
// ignoring punctuation and case on both sides.
func MatchesKnownInvoice(text, known string) bool {
	want := entity.NormalizeInvoiceNumber(known)
	if want == "" {
		return false
	}
	for _, token := range knownTokenRun.FindAllString(text, -1) {
		got := entity.NormalizeInvoiceNumber(token)
		if len(got) == len(want) && got == want {
			return true
		}
	}
	return false
}

// ResolveKnownInvoice fills an empty invoice number with the first known identifier present in text
func ResolveKnownInvoice(text string, fields entity.ExtractedFields, known []string) entity.ExtractedFields {
	if fields.InvoiceNumber != "" {
		return fields
	}
	for _, k := range known {
		if MatchesKnownInvoice(text, k) {
			fields.InvoiceNumber = strings.TrimSpace(k)
			return fields
		}
	}
	return fields
}
