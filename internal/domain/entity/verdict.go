package entity

// Verdict is the outcome of reconciling one claim: exactly one of Accepted or Rejection is set
type Verdict struct {
	Status    string      `json:"status"`
	Accepted  *Acceptance `json:"accepted,omitempty"`
	Rejection *Rejection  `json:"rejection,omitempty"`
}

// Acceptance carries the records appended for an accepted claim
type Acceptance struct {
	Records    []LedgerRecord `json:"records"`
	GrandTotal float64        `json:"grandTotal"`
}

// Rejection carries the diagnostics of the first failed check
type Rejection struct {
	Message         string             `json:"message"`
	Expected        float64            `json:"expected"`
	Extracted       float64            `json:"extracted"`
	Fingerprint     *LedgerFingerprint `json:"fingerprint,omitempty"`
	InvoiceDate     string             `json:"invoiceDate,omitempty"`
	FromDate        string             `json:"fromDate,omitempty"`
	ToDate          string             `json:"toDate,omitempty"`
	VoucherIndex    int                `json:"voucherIndex"`
	AttachmentIndex int                `json:"attachmentIndex"`
}

// NewAcceptedVerdict builds a NEW_CLAIM verdict
func NewAcceptedVerdict(records []LedgerRecord, grandTotal float64) *Verdict {
	return &Verdict{
		Status:   StatusNewClaim,
		Accepted: &Acceptance{Records: records, GrandTotal: grandTotal},
	}
}

// NewRejectedVerdict builds a rejection verdict with the given status
func NewRejectedVerdict(status string, rejection Rejection) *Verdict {
	return &Verdict{Status: status, Rejection: &rejection}
}

// IsAccepted returns true if the claim was accepted
func (v *Verdict) IsAccepted() bool {
	return v.Status == StatusNewClaim && v.Accepted != nil
}

// Payload renders the status-specific response body
func (v *Verdict) Payload() map[string]interface{} {
	out := map[string]interface{}{"status": v.Status}

	if v.Accepted != nil {
		out["recordsSaved"] = len(v.Accepted.Records)
		out["totalAttachmentsAmount"] = RoundAmount(v.Accepted.GrandTotal)
		return out
	}

	r := v.Rejection
	if r == nil {
		return out
	}

	switch v.Status {
	case StatusExcelAmountExceedsVoucher:
		out["excelTotal"] = RoundAmount(r.Extracted)
		out["voucherAmount"] = r.Expected
	case StatusDuplicateClaim:
		if r.Fingerprint != nil {
			out["invoiceNumber"] = r.Fingerprint.InvoiceNumber
			out["invoiceDate"] = r.Fingerprint.Date
			out["totalAmount"] = RoundAmount(r.Fingerprint.Amount)
		}
	case StatusIncorrectDate:
		out["invoiceDate"] = r.InvoiceDate
		out["fromDate"] = r.FromDate
		out["toDate"] = r.ToDate
		out["message"] = r.Message
	case StatusAmountMismatch:
		out["expectedBillAmount"] = r.Expected
		out["extractedAttachmentTotal"] = RoundAmount(r.Extracted)
	case StatusClaimTotalMismatch:
		out["expectedTotalAmount"] = r.Expected
		out["totalAttachmentsAmount"] = RoundAmount(r.Extracted)
	default:
		out["message"] = r.Message
	}
	return out
}

// ErrorPayload renders the generic ERROR response body
func ErrorPayload(message string) map[string]interface{} {
	return map[string]interface{}{
		"status":  StatusError,
		"message": message,
	}
}
