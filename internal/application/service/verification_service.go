package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/claim-reconciler/internal/application/port"
	"github.com/garyjia/claim-reconciler/internal/domain/entity"
	"github.com/garyjia/claim-reconciler/internal/extraction"
)

// ErrNothingToVerify is returned when the encrypted file decrypts to nothing
var ErrNothingToVerify = errors.New("encrypted file is empty or could not be decrypted")

// DateNormalizer canonicalizes a free-form date string
type DateNormalizer interface {
	Normalize(s string) string
}

// VerificationRequest carries the encrypted expected values and document
type VerificationRequest struct {
	EncryptedDate    string `json:"encDate"`
	EncryptedTotal   string `json:"encTotal"`
	EncryptedInvoice string `json:"encInvoice"`
	EncryptedVendor  string `json:"encVendor"`
	EncryptedFile    string `json:"encFile"`
}

// VerificationResult reports each extracted field next to whether it matches the expected value
type VerificationResult struct {
	Date         string   `json:"date"`
	DateMatch    bool     `json:"dateMatch"`
	Total        *float64 `json:"total"`
	TotalMatch   bool     `json:"totalMatch"`
	Invoice      string   `json:"invoice"`
	InvoiceMatch bool     `json:"invoiceMatch"`
	Vendor       string   `json:"vendor"`
	VendorMatch  bool     `json:"vendorMatch"`
}

// Verified returns true if every field matched
func (r *VerificationResult) Verified() bool {
	return r.DateMatch && r.TotalMatch && r.InvoiceMatch && r.VendorMatch
}

// VerificationService compares a document against values supplied by the submitter
type VerificationService interface {
	Verify(ctx context.Context, req VerificationRequest) (*VerificationResult, error)
}

type verificationServiceImpl struct {
	decrypter port.Decrypter
	ocr       port.TextExtractor
	fields    port.FieldExtractor
	dates     DateNormalizer
	tolerance float64
	logger    Logger
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(
	decrypter port.Decrypter,
	ocr port.TextExtractor,
	fields port.FieldExtractor,
	dates DateNormalizer,
	tolerance float64,
	logger Logger,
) VerificationService {
	return &verificationServiceImpl{
		decrypter: decrypter,
		ocr:       ocr,
		fields:    fields,
		dates:     dates,
		tolerance: tolerance,
		logger:    logger,
	}
}

// Verify decrypts the request, extracts the document and compares field by field
func (s *verificationServiceImpl) Verify(ctx context.Context, req VerificationRequest) (*VerificationResult, error) {
	expectedDate := s.decrypter.DecryptText(req.EncryptedDate)
	expectedTotal := s.decrypter.DecryptText(req.EncryptedTotal)
	expectedInvoice := s.decrypter.DecryptText(req.EncryptedInvoice)
	expectedVendor := s.decrypter.DecryptText(req.EncryptedVendor)

	payload := s.decrypter.DecryptFile(req.EncryptedFile)
	if len(payload) == 0 {
		return nil, ErrNothingToVerify
	}

	lines, err := s.ocr.TextLines(ctx, payload)
	if err != nil {
		s.logger.Error("Failed to read document text", "error", err)
		return nil, fmt.Errorf("failed to read document text: %w", err)
	}

	var known []string
	if expectedInvoice != "" {
		known = append(known, expectedInvoice)
	}
	found := s.fields.ExtractContext(ctx, lines, known...)

	result := &VerificationResult{
		Date:         found.Date,
		DateMatch:    found.Date != "" && found.Date == s.dates.Normalize(expectedDate),
		Total:        found.TotalAmount,
		TotalMatch:   s.totalMatches(found, expectedTotal),
		Invoice:      found.InvoiceNumber,
		InvoiceMatch: found.InvoiceNumber != "" && entity.NormalizeInvoiceNumber(found.InvoiceNumber) == entity.NormalizeInvoiceNumber(expectedInvoice),
		Vendor:       found.Vendor,
		VendorMatch:  found.Vendor != "" && strings.EqualFold(strings.TrimSpace(found.Vendor), strings.TrimSpace(expectedVendor)),
	}

	s.logger.Info("Document verified",
		"date_match", result.DateMatch,
		"total_match", result.TotalMatch,
		"invoice_match", result.InvoiceMatch,
		"vendor_match", result.VendorMatch)

	return result, nil
}

func (s *verificationServiceImpl) totalMatches(found entity.ExtractedFields, expected string) bool {
	if !found.HasTotal() {
		return false
	}
	want := extraction.ParseAmount(expected)
	if want == 0 {
		return false
	}
	return entity.WithinTolerance(found.Total(), want, s.tolerance)
}
