package entity

import "time"

// Claim is the root aggregate of one expense submission
type Claim struct {
	ID            string    `json:"id"`
	EmployeeCode  string    `json:"employeeCode"`
	ClaimType     string    `json:"claimType"`
	DeclaredTotal float64   `json:"declaredTotal"`
	Vouchers      []Voucher `json:"vouchers"`
	KnownInvoices []string  `json:"knownInvoices,omitempty"`
}

// Voucher groups attachments under one declared amount and optional date range
type Voucher struct {
	DeclaredAmount float64      `json:"declaredAmount"`
	FromDate       *time.Time   `json:"fromDate,omitempty"`
	ToDate         *time.Time   `json:"toDate,omitempty"`
	Attachments    []Attachment `json:"attachments"`
}

// HasDateRange returns true if both ends of the voucher period are set
func (v *Voucher) HasDateRange() bool {
	return v.FromDate != nil && v.ToDate != nil
}

// Covers reports whether d falls inside the voucher period, inclusive on both ends
func (v *Voucher) Covers(d time.Time) bool {
	from := truncateDay(*v.FromDate)
	to := truncateDay(*v.ToDate)
	d = truncateDay(d)
	return !d.Before(from) && !d.After(to)
}

// AttachmentCount returns the number of attachments across all vouchers
func (c *Claim) AttachmentCount() int {
	n := 0
	for _, v := range c.Vouchers {
		n += len(v.Attachments)
	}
	return n
}

// ManifestRow is one invoice line listed in a spreadsheet manifest
type ManifestRow struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	Date          string  `json:"date"`
	Amount        float64 `json:"amount"`
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
