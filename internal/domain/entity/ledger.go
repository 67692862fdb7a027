package entity

import (
	"strings"
	"time"
	"unicode"
)

// LedgerFingerprint is the duplicate-detection key of an accepted claim line
type LedgerFingerprint struct {
	EmployeeCode  string  `json:"employeeCode"`
	InvoiceNumber string  `json:"invoiceNumber"`
	Date          string  `json:"invoiceDate"`
	Amount        float64 `json:"totalAmount"`
}

// LedgerRecord is one accepted claim line. Records are append-only.
type LedgerRecord struct {
	EmployeeCode  string    `json:"employeeCode"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Date          string    `json:"date"`
	Amount        float64   `json:"amount"`
	ClaimType     string    `json:"claimType"`
	ClaimID       string    `json:"claimId,omitempty"`
	SourceDigest  string    `json:"sourceDigest,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
}

// Fingerprint returns the duplicate-detection key of the record
func (r LedgerRecord) Fingerprint() LedgerFingerprint {
	return LedgerFingerprint{
		EmployeeCode:  r.EmployeeCode,
		InvoiceNumber: r.InvoiceNumber,
		Date:          r.Date,
		Amount:        r.Amount,
	}
}

// Matches compares amounts within tolerance and the other fields exactly after normalization
func (f LedgerFingerprint) Matches(r LedgerRecord, tolerance float64) bool {
	if NormalizeEmployeeCode(f.EmployeeCode) != NormalizeEmployeeCode(r.EmployeeCode) {
		return false
	}
	if NormalizeInvoiceNumber(f.InvoiceNumber) != NormalizeInvoiceNumber(r.InvoiceNumber) {
		return false
	}
	if strings.TrimSpace(f.Date) != strings.TrimSpace(r.Date) {
		return false
	}
	return WithinTolerance(f.Amount, r.Amount, tolerance)
}

// NormalizeEmployeeCode trims and case-folds an employee code
func NormalizeEmployeeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// NormalizeInvoiceNumber keeps letters and digits only, case-folded
func NormalizeInvoiceNumber(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
