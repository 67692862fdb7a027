package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyjia/claim-reconciler/internal/application/port"
	"github.com/garyjia/claim-reconciler/internal/domain/entity"
	"github.com/garyjia/claim-reconciler/internal/domain/workflow"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// VerdictObserver receives the outcome of every processed claim
type VerdictObserver interface {
	ObserveVerdict(status string, elapsed time.Duration)
	ObserveAttachment(kind string, missing []string)
}

// ReconciliationConfig holds the engine settings
type ReconciliationConfig struct {
	Tolerance float64
	Workers   int
}

// ReconciliationService decides whether a claim is new and records it
type ReconciliationService interface {
	ProcessClaim(ctx context.Context, claim *entity.Claim) (*entity.Verdict, error)
}

type reconciliationServiceImpl struct {
	ledger    port.Ledger
	ocr       port.TextExtractor
	fields    port.FieldExtractor
	manifests port.ManifestReader
	observer  VerdictObserver
	machines  workflow.StateMachineBuilder
	cfg       ReconciliationConfig
	logger    Logger
	now       func() time.Time
}

// preparedAttachment is the extraction result of one attachment, computed before the ledger is locked
type preparedAttachment struct {
	attachment  entity.Attachment
	fields      entity.ExtractedFields
	rows        []entity.ManifestRow
	manifestErr error
	err         error
}

// NewReconciliationService creates a new ReconciliationService. observer may be nil.
func NewReconciliationService(
	ledger port.Ledger,
	ocr port.TextExtractor,
	fields port.FieldExtractor,
	manifests port.ManifestReader,
	observer VerdictObserver,
	cfg ReconciliationConfig,
	logger Logger,
) ReconciliationService {
	if cfg.Tolerance < 0 {
		cfg.Tolerance = entity.DefaultTolerance
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &reconciliationServiceImpl{
		ledger:    ledger,
		ocr:       ocr,
		fields:    fields,
		manifests: manifests,
		observer:  observer,
		machines:  workflow.NewReconciliationBuilder(),
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessClaim extracts every attachment, then evaluates and commits the claim as one unit
func (s *reconciliationServiceImpl) ProcessClaim(ctx context.Context, claim *entity.Claim) (*entity.Verdict, error) {
	if claim == nil {
		return nil, errors.New("claim is nil")
	}
	started := time.Now()

	s.logger.Info("Processing claim",
		"claim_id", claim.ID,
		"employee_code", claim.EmployeeCode,
		"vouchers", len(claim.Vouchers),
		"attachments", claim.AttachmentCount())

	prepared, err := s.prepare(ctx, claim)
	if err != nil {
		s.logger.Error("Failed to prepare claim", "error", err, "claim_id", claim.ID)
		s.observe(entity.StatusError, started)
		return nil, fmt.Errorf("failed to prepare claim %s: %w", claim.ID, err)
	}

	var verdict *entity.Verdict
	err = s.ledger.WithTransaction(ctx, func(txCtx context.Context) error {
		v, err := s.evaluate(txCtx, claim, prepared)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to reconcile claim", "error", err, "claim_id", claim.ID)
		s.observe(entity.StatusError, started)
		return nil, fmt.Errorf("failed to reconcile claim %s: %w", claim.ID, err)
	}

	s.logger.Info("Claim reconciled", "claim_id", claim.ID, "status", verdict.Status)
	s.observe(verdict.Status, started)
	return verdict, nil
}

// prepare runs OCR, field extraction and manifest reads in parallel.
// Failures are kept per attachment so evaluation can surface them in submission order.
func (s *reconciliationServiceImpl) prepare(ctx context.Context, claim *entity.Claim) ([][]preparedAttachment, error) {
	prepared := make([][]preparedAttachment, len(claim.Vouchers))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)

	for vi := range claim.Vouchers {
		attachments := claim.Vouchers[vi].Attachments
		prepared[vi] = make([]preparedAttachment, len(attachments))

		for ai := range attachments {
			slot := &prepared[vi][ai]
			att := attachments[ai]
			g.Go(func() error {
				*slot = s.prepareAttachment(ctx, att, claim.KnownInvoices)
				return nil
			})
		}
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return prepared, nil
}

func (s *reconciliationServiceImpl) prepareAttachment(ctx context.Context, att entity.Attachment, knownInvoices []string) preparedAttachment {
	if att.Kind == "" {
		att.Kind, att.Format, att.MIME = entity.ClassifyPayload(att.Payload)
	}
	p := preparedAttachment{attachment: att}

	if len(att.Payload) == 0 {
		p.err = entity.ErrEmptyPayload
		return p
	}

	if att.IsManifest() {
		p.rows, p.manifestErr = s.manifests.ReadRows(ctx, att.Payload)
		if s.observer != nil {
			s.observer.ObserveAttachment(att.Kind, nil)
		}
		return p
	}

	lines, err := s.ocr.TextLines(ctx, att.Payload)
	if err != nil {
		p.err = fmt.Errorf("failed to read text from %s attachment: %w", att.Format, err)
		return p
	}
	p.fields = s.fields.ExtractContext(ctx, lines, knownInvoices...)
	if s.observer != nil {
		s.observer.ObserveAttachment(att.Kind, p.fields.Missing())
	}
	return p
}

// evaluate walks the claim in submission order and stops at the first failed check.
// It must run inside the ledger transaction.
func (s *reconciliationServiceImpl) evaluate(ctx context.Context, claim *entity.Claim, prepared [][]preparedAttachment) (*entity.Verdict, error) {
	machine := s.machines.Build(workflow.StatePending)
	tol := s.cfg.Tolerance

	var staged []entity.LedgerRecord
	grandTotal := 0.0

	for vi := range claim.Vouchers {
		voucher := &claim.Vouchers[vi]
		voucherTotal := 0.0

		for ai := range voucher.Attachments {
			p := prepared[vi][ai]
			if p.err != nil {
				return nil, fmt.Errorf("voucher %d attachment %d: %w", vi, ai, p.err)
			}
			digest := p.attachment.Digest()

			if p.attachment.IsManifest() {
				if p.manifestErr != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return nil, ctxErr
					}
					return s.reject(machine, workflow.TriggerManifestInvalid, entity.Rejection{
						Message:         p.manifestErr.Error(),
						VoucherIndex:    vi,
						AttachmentIndex: ai,
					})
				}

				amounts := make([]float64, 0, len(p.rows))
				for _, row := range p.rows {
					amounts = append(amounts, row.Amount)
				}
				manifestTotal := entity.SumAmounts(amounts...)

				if entity.ExceedsLimit(manifestTotal, voucher.DeclaredAmount, tol) {
					return s.reject(machine, workflow.TriggerExcelExceedsVoucher, entity.Rejection{
						Message:         "manifest total exceeds voucher amount",
						Expected:        voucher.DeclaredAmount,
						Extracted:       manifestTotal,
						VoucherIndex:    vi,
						AttachmentIndex: ai,
					})
				}

				for _, row := range p.rows {
					record := s.newRecord(claim, row.InvoiceNumber, row.Date, row.Amount, digest)
					verdict, err := s.checkDuplicate(ctx, machine, record, vi, ai)
					if verdict != nil || err != nil {
						return verdict, err
					}
					staged = append(staged, record)
				}
				voucherTotal = entity.SumAmounts(voucherTotal, manifestTotal)
				continue
			}

			fields := p.fields
			if fields.Date != "" && voucher.HasDateRange() {
				invoiceDate, err := time.Parse(entity.CanonicalDateLayout, fields.Date)
				if err == nil && !voucher.Covers(invoiceDate) {
					from := voucher.FromDate.Format(entity.CanonicalDateLayout)
					to := voucher.ToDate.Format(entity.CanonicalDateLayout)
					return s.reject(machine, workflow.TriggerDateOutOfRange, entity.Rejection{
						Message:         fmt.Sprintf("invoice date %s is outside the voucher period %s to %s", fields.Date, from, to),
						InvoiceDate:     fields.Date,
						FromDate:        from,
						ToDate:          to,
						VoucherIndex:    vi,
						AttachmentIndex: ai,
					})
				}
			}

			record := s.newRecord(claim, fields.InvoiceNumber, fields.Date, fields.Total(), digest)
			verdict, err := s.checkDuplicate(ctx, machine, record, vi, ai)
			if verdict != nil || err != nil {
				return verdict, err
			}
			staged = append(staged, record)
			voucherTotal = entity.SumAmounts(voucherTotal, fields.Total())
		}

		if entity.ExceedsLimit(voucherTotal, voucher.DeclaredAmount, tol) {
			return s.reject(machine, workflow.TriggerVoucherAmountMismatch, entity.Rejection{
				Message:         "attachment total exceeds voucher amount",
				Expected:        voucher.DeclaredAmount,
				Extracted:       voucherTotal,
				VoucherIndex:    vi,
				AttachmentIndex: -1,
			})
		}
		grandTotal = entity.SumAmounts(grandTotal, voucherTotal)
	}

	if entity.ExceedsLimit(grandTotal, claim.DeclaredTotal, tol) {
		return s.reject(machine, workflow.TriggerClaimTotalMismatch, entity.Rejection{
			Message:         "attachment total exceeds claim total",
			Expected:        claim.DeclaredTotal,
			Extracted:       grandTotal,
			VoucherIndex:    -1,
			AttachmentIndex: -1,
		})
	}

	if err := machine.Fire(workflow.TriggerAccept); err != nil {
		return nil, err
	}
	if err := s.ledger.AppendAll(ctx, staged); err != nil {
		return nil, fmt.Errorf("failed to append %d ledger records: %w", len(staged), err)
	}
	return entity.NewAcceptedVerdict(staged, grandTotal), nil
}

// checkDuplicate returns a DUPLICATE_CLAIM verdict when the ledger already holds the record
func (s *reconciliationServiceImpl) checkDuplicate(ctx context.Context, machine workflow.StateMachine, record entity.LedgerRecord, vi, ai int) (*entity.Verdict, error) {
	fp := record.Fingerprint()
	hit, err := s.ledger.Lookup(ctx, fp, s.cfg.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("failed to look up invoice %q: %w", fp.InvoiceNumber, err)
	}
	if !hit {
		return nil, nil
	}
	return s.reject(machine, workflow.TriggerDuplicateFound, entity.Rejection{
		Message:         "invoice already claimed",
		Expected:        fp.Amount,
		Extracted:       fp.Amount,
		Fingerprint:     &fp,
		InvoiceDate:     fp.Date,
		VoucherIndex:    vi,
		AttachmentIndex: ai,
	})
}

func (s *reconciliationServiceImpl) reject(machine workflow.StateMachine, trigger workflow.Trigger, rejection entity.Rejection) (*entity.Verdict, error) {
	if err := machine.Fire(trigger); err != nil {
		return nil, err
	}
	return entity.NewRejectedVerdict(machine.State().VerdictStatus(), rejection), nil
}

func (s *reconciliationServiceImpl) newRecord(claim *entity.Claim, invoiceNumber, date string, amount float64, digest string) entity.LedgerRecord {
	return entity.LedgerRecord{
		EmployeeCode:  strings.TrimSpace(claim.EmployeeCode),
		InvoiceNumber: strings.TrimSpace(invoiceNumber),
		Date:          strings.TrimSpace(date),
		Amount:        entity.RoundAmount(amount),
		ClaimType:     claim.ClaimType,
		ClaimID:       claim.ID,
		SourceDigest:  digest,
		RecordedAt:    s.now(),
	}
}

func (s *reconciliationServiceImpl) observe(status string, started time.Time) {
	if s.observer != nil {
		s.observer.ObserveVerdict(status, time.Since(started))
	}
}
