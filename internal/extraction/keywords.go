package extraction

import (
	"regexp"
	"strings"
)

// vendorKeywords mark a line as likely naming the issuing business
var vendorKeywords = []string{
	"pvt", "ltd", "private", "company", "co.", "shop", "store", "enterprises",
	"restaurant", "dhaba", "hotel", "foods", "cafe", "bakery", "mart", "super",
	"services", "agency", "clinic", "pharmacy", "electrical", "electronics",
	"bus", "cab", "ride", "uber", "rapido", "ola", "zomato", "swiggy", "blinkit",
	"groceries", "trading", "retail", "solutions", "corp", "family", "shree",
	"ventures", "llp", "ani technologies", "flipkart", "cloudstore", "eiht",
}

// brandFragments are exact issuer names seen on marketplace and ride receipts
var brandFragments = []string{"ani technologies", "eiht", "flipkart", "cloudstore"}

// travelBoilerplate phrases head ride receipts but never name the vendor
var travelBoilerplate = []string{"thanks for travelling", "ride details", "trip details"}

// invoiceKeywords label identifiers rather than vendors
var invoiceKeywords = []string{
	"invoice", "bill", "receipt", "inv", "no", "number", "bill#", "invoice#", "inv#",
	"ref", "ride id", "order #", "txn id", "transaction", "folio", "voucher", "doc no",
}

// dateKeywords label the line carrying the bill date
var dateKeywords = []string{
	"invoice date", "bill date", "inv date", "delivered on", "shipped on",
	"dated", "date", "dt",
}

// singleBrands short-circuit vendor scoring when they head the receipt
var singleBrands = []struct {
	token string
	name  string
}{
	{token: "ola", name: "OLA"},
	{token: "uber", name: "Uber"},
}

var (
	invoiceKeywordPattern = wordPattern(invoiceKeywords)
	dateKeywordPattern    = wordPattern(dateKeywords)
	boilerplateWords      = regexp.MustCompile(`(?i)\b(?:chq|help|delivered|items|copy|logo|time|date|dated|gst|gstin|cin|pan|reorder|qty)\b|4dd|sr#`)
	dateLike              = regexp.MustCompile(`\d{2,4}[-/.]\d{2,4}[-/.]\d{2,4}`)
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func isInvoiceKeyword(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range invoiceKeywords {
		if s == k {
			return true
		}
	}
	return false
}

// wordPattern matches any of the phrases on word boundaries, case-insensitively
func wordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(?:` + strings.Join(quoted, "|") + `)(?:$|[^a-z0-9])`)
}
