package extraction

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

// FieldFallback fills fields the heuristics missed, typically from a language model
type FieldFallback interface {
	Fill(ctx context.Context, text string, fields entity.ExtractedFields) (entity.ExtractedFields, error)
}

// Extractor combines the date, vendor, invoice number and total extractors
type Extractor struct {
	dates         *DateExtractor
	knownInvoices []string
	fallback      FieldFallback
	logger        *zap.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithDateExtractor replaces the default date extractor
func WithDateExtractor(d *DateExtractor) Option {
	return func(e *Extractor) { e.dates = d }
}

// WithKnownInvoices sets identifiers accepted as fallback invoice numbers for every document
func WithKnownInvoices(known []string) Option {
	return func(e *Extractor) { e.knownInvoices = append([]string(nil), known...) }
}

// WithFallback sets the fallback consulted for missing fields
func WithFallback(f FieldFallback) Option {
	return func(e *Extractor) { e.fallback = f }
}

// NewExtractor creates a new field extractor
func NewExtractor(logger *zap.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		dates:  NewDateExtractor(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dates returns the date extractor in use
func (e *Extractor) Dates() *DateExtractor {
	return e.dates
}

// Extract runs every heuristic over one document's OCR lines
func (e *Extractor) Extract(lines []entity.OcrLine, knownInvoices ...string) entity.ExtractedFields {
	fields := entity.ExtractedFields{
		Vendor:        ExtractVendor(lines),
		Date:          e.dates.Extract(lines),
		InvoiceNumber: ExtractInvoiceNumber(lines),
	}
	if total, ok := ExtractTotal(lines); ok {
		fields.TotalAmount = entity.AmountPtr(entity.RoundAmount(total))
	}

	known := append(append([]string(nil), knownInvoices...), e.knownInvoices...)
	if fields.InvoiceNumber == "" && len(known) > 0 {
		fields = ResolveKnownInvoice(entity.JoinLines(lines, "\n"), fields, known)
	}

	e.logger.Debug("Extracted document fields",
		zap.Int("lines", len(lines)),
		zap.String("vendor", fields.Vendor),
		zap.String("date", fields.Date),
		zap.String("invoice_number", fields.InvoiceNumber),
		zap.Float64("total_amount", fields.Total()),
		zap.Strings("missing", fields.Missing()))

	return fields
}

// ExtractText runs the heuristics over flat text
func (e *Extractor) ExtractText(text string, knownInvoices ...string) entity.ExtractedFields {
	return e.Extract(entity.LinesFromText(text), knownInvoices...)
}

// ExtractContext runs the heuristics and then asks the fallback for whatever is still missing.
// Fallback failures leave the heuristic result untouched.
func (e *Extractor) ExtractContext(ctx context.Context, lines []entity.OcrLine, knownInvoices ...string) entity.ExtractedFields {
	fields := e.Extract(lines, knownInvoices...)
	if e.fallback == nil || len(fields.Missing()) == 0 {
		return fields
	}

	suggested, err := e.fallback.Fill(ctx, entity.JoinLines(lines, "\n"), fields)
	if err != nil {
		e.logger.Warn("Field fallback failed", zap.Error(err))
		return fields
	}
	return e.mergeSuggested(fields, suggested)
}

// mergeSuggested accepts only suggestions that pass the same canonicalizers as the heuristics
func (e *Extractor) mergeSuggested(fields, suggested entity.ExtractedFields) entity.ExtractedFields {
	if fields.Vendor == "" {
		fields.Vendor = suggested.Vendor
	}
	if fields.Date == "" && suggested.Date != "" {
		fields.Date = e.dates.Normalize(suggested.Date)
	}
	if fields.InvoiceNumber == "" && acceptableInvoiceToken(suggested.InvoiceNumber) {
		fields.InvoiceNumber = suggested.InvoiceNumber
	}
	if fields.TotalAmount == nil && suggested.TotalAmount != nil && IsPlausibleAmount(*suggested.TotalAmount) {
		fields.TotalAmount = entity.AmountPtr(entity.RoundAmount(*suggested.TotalAmount))
	}
	return fields
}
