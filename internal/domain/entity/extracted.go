package entity

// ExtractedFields is the structured record pulled out of one document.
// Empty strings and a nil TotalAmount mean the field was not found.
type ExtractedFields struct {
	Vendor        string   `json:"vendor"`
	Date          string   `json:"date"`
	InvoiceNumber string   `json:"invoiceNumber"`
	TotalAmount   *float64 `json:"totalAmount"`
}

// Total returns the extracted total, or 0 when none was found
func (f ExtractedFields) Total() float64 {
	if f.TotalAmount == nil {
		return 0
	}
	return *f.TotalAmount
}

// HasTotal reports whether a total amount was extracted
func (f ExtractedFields) HasTotal() bool {
	return f.TotalAmount != nil
}

// Missing lists the names of fields that were not extracted
func (f ExtractedFields) Missing() []string {
	var missing []string
	if f.Vendor == "" {
		missing = append(missing, "vendor")
	}
	if f.Date == "" {
		missing = append(missing, "date")
	}
	if f.InvoiceNumber == "" {
		missing = append(missing, "invoice_number")
	}
	if f.TotalAmount == nil {
		missing = append(missing, "total_amount")
	}
	return missing
}

// AmountPtr returns a pointer to a copy of v
func AmountPtr(v float64) *float64 {
	return &v
}
