package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
	"github.com/garyjia/claim-reconciler/internal/extraction"
)

// errNoClaim is returned when a request body carries no claim in either shape
var errNoClaim = errors.New("request carries no claim")

// amount accepts a JSON number, a numeric string or null
type amount float64

func (a *amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amount(extraction.ParseAmount(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid amount %s", data)
	}
	*a = amount(f)
	return nil
}

// ClaimRequest is the body of POST /process-claim
type ClaimRequest struct {
	ClaimID       string           `json:"claimId"`
	EmployeeCode  string           `json:"employeeCode"`
	ClaimType     string           `json:"claimType"`
	DeclaredTotal amount           `json:"declaredTotal"`
	Vouchers      []VoucherRequest `json:"vouchers"`
	KnownInvoices []string         `json:"knownInvoices"`

	Legacy *LegacyClaim `json:"Claim"`
}

// VoucherRequest is one voucher in a ClaimRequest
type VoucherRequest struct {
	DeclaredAmount amount              `json:"declaredAmount"`
	FromDate       string              `json:"fromDate"`
	ToDate         string              `json:"toDate"`
	Attachments    []AttachmentRequest `json:"attachments"`
}

// AttachmentRequest is one base64 encoded file
type AttachmentRequest struct {
	EncodedPayload string `json:"encodedPayload"`
}

// LegacyClaim is the claim envelope used by existing callers
type LegacyClaim struct {
	EmployeeCode    string          `json:"Employee_Code"`
	ClaimType       string          `json:"Claim_Type"`
	TotalBillAmount amount          `json:"Total_Bill_Amount"`
	Vouchers        []LegacyVoucher `json:"Vouchers"`
}

// LegacyVoucher is one voucher in a LegacyClaim
type LegacyVoucher struct {
	BillAmount  amount             `json:"Bill_Amount"`
	FromDate    string             `json:"From_Date"`
	ToDate      string             `json:"To_Date"`
	Attachments []LegacyAttachment `json:"Attachments"`
}

// LegacyAttachment is one base64 encoded file in a LegacyVoucher
type LegacyAttachment struct {
	Base64File string `json:"base64File"`
}

// ToClaim converts either request shape into a claim. Legacy attachments without a file are skipped.
func (r *ClaimRequest) ToClaim(claimID string) (*entity.Claim, error) {
	if r.Legacy != nil {
		return r.Legacy.toClaim(claimID)
	}
	if r.EmployeeCode == "" && len(r.Vouchers) == 0 {
		return nil, errNoClaim
	}

	claim := &entity.Claim{
		ID:            claimID,
		EmployeeCode:  r.EmployeeCode,
		ClaimType:     r.ClaimType,
		DeclaredTotal: float64(r.DeclaredTotal),
		KnownInvoices: r.KnownInvoices,
	}
	if r.ClaimID != "" {
		claim.ID = r.ClaimID
	}

	for i, v := range r.Vouchers {
		voucher := newVoucher(float64(v.DeclaredAmount), v.FromDate, v.ToDate)
		for j, a := range v.Attachments {
			att, err := decodeAttachment(a.EncodedPayload)
			if err != nil {
				return nil, fmt.Errorf("voucher %d attachment %d: %w", i, j, err)
			}
			voucher.Attachments = append(voucher.Attachments, att)
		}
		claim.Vouchers = append(claim.Vouchers, voucher)
	}
	return claim, nil
}

func (l *LegacyClaim) toClaim(claimID string) (*entity.Claim, error) {
	claim := &entity.Claim{
		ID:            claimID,
		EmployeeCode:  l.EmployeeCode,
		ClaimType:     l.ClaimType,
		DeclaredTotal: float64(l.TotalBillAmount),
	}

	for i, v := range l.Vouchers {
		voucher := newVoucher(float64(v.BillAmount), v.FromDate, v.ToDate)
		for j, a := range v.Attachments {
			if a.Base64File == "" {
				continue
			}
			att, err := decodeAttachment(a.Base64File)
			if err != nil {
				return nil, fmt.Errorf("voucher %d attachment %d: %w", i, j, err)
			}
			voucher.Attachments = append(voucher.Attachments, att)
		}
		claim.Vouchers = append(claim.Vouchers, voucher)
	}
	return claim, nil
}

// newVoucher parses the period ends; an unparseable end leaves the period open
func newVoucher(declared float64, from, to string) entity.Voucher {
	return entity.Voucher{
		DeclaredAmount: declared,
		FromDate:       parseDate(from),
		ToDate:         parseDate(to),
	}
}

func parseDate(s string) *time.Time {
	t, ok := extraction.ParseLooseDate(s)
	if !ok {
		return nil
	}
	return &t
}

func decodeAttachment(encoded string) (entity.Attachment, error) {
	payload, err := entity.DecodeAttachment(encoded)
	if err != nil {
		return entity.Attachment{}, err
	}
	return entity.NewAttachment(payload)
}

// ExtractRequest is the body of POST /extract
type ExtractRequest struct {
	EncodedPayload string   `json:"encodedPayload" binding:"required"`
	KnownInvoices  []string `json:"knownInvoices"`
}
