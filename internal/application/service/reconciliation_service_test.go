package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

type mockLedger struct {
	mu          sync.Mutex
	records     []entity.LedgerRecord
	lookupErr   error
	appendErr   error
	lookupCalls int
	appendCalls int
}

func (m *mockLedger) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

func (m *mockLedger) Lookup(ctx context.Context, fp entity.LedgerFingerprint, tolerance float64) (bool, error) {
	m.lookupCalls++
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	for _, r := range m.records {
		if fp.Matches(r, tolerance) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedger) AppendAll(ctx context.Context, records []entity.LedgerRecord) error {
	m.appendCalls++
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *mockLedger) Count(ctx context.Context) (int, error) {
	return len(m.records), nil
}

// mockTextExtractor returns the payload itself as a single OCR line
type mockTextExtractor struct {
	errs map[string]error
}

func (m *mockTextExtractor) TextLines(ctx context.Context, payload []byte) ([]entity.OcrLine, error) {
	if err, ok := m.errs[string(payload)]; ok {
		return nil, err
	}
	return entity.LinesFromText(string(payload)), nil
}

type mockFieldExtractor struct {
	mu     sync.Mutex
	fields map[string]entity.ExtractedFields
	known  []string
}

func (m *mockFieldExtractor) ExtractContext(ctx context.Context, lines []entity.OcrLine, knownInvoices ...string) entity.ExtractedFields {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.known = knownInvoices
	return m.fields[entity.JoinLines(lines, "\n")]
}

type mockManifestReader struct {
	rows map[string][]entity.ManifestRow
	errs map[string]error
}

func (m *mockManifestReader) ReadRows(ctx context.Context, payload []byte) ([]entity.ManifestRow, error) {
	if err, ok := m.errs[string(payload)]; ok {
		return nil, err
	}
	return m.rows[string(payload)], nil
}

type mockObserver struct {
	mu       sync.Mutex
	statuses []string
	kinds    []string
}

func (m *mockObserver) ObserveVerdict(status string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
}

func (m *mockObserver) ObserveAttachment(kind string, missing []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, kind)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func docAttachment(key string) entity.Attachment {
	return entity.Attachment{Payload: []byte(key), Kind: entity.AttachmentKindDocument, Format: entity.FormatImage}
}

func manifestAttachment(key string) entity.Attachment {
	return entity.Attachment{Payload: []byte(key), Kind: entity.AttachmentKindSpreadsheetManifest, Format: entity.FormatXLSX}
}

func day(year int, month time.Month, d int) *time.Time {
	t := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func fields(invoice, date string, total float64) entity.ExtractedFields {
	return entity.ExtractedFields{
		Vendor:        "Vendor",
		Date:          date,
		InvoiceNumber: invoice,
		TotalAmount:   entity.AmountPtr(total),
	}
}

type fixture struct {
	ledger    *mockLedger
	ocr       *mockTextExtractor
	extractor *mockFieldExtractor
	manifests *mockManifestReader
	observer  *mockObserver
}

func newFixture() *fixture {
	return &fixture{
		ledger:    &mockLedger{},
		ocr:       &mockTextExtractor{errs: map[string]error{}},
		extractor: &mockFieldExtractor{fields: map[string]entity.ExtractedFields{}},
		manifests: &mockManifestReader{rows: map[string][]entity.ManifestRow{}, errs: map[string]error{}},
		observer:  &mockObserver{},
	}
}

func (f *fixture) service() ReconciliationService {
	return NewReconciliationService(
		f.ledger, f.ocr, f.extractor, f.manifests, f.observer,
		ReconciliationConfig{Tolerance: entity.DefaultTolerance, Workers: 4},
		&mockLogger{},
	)
}

func singleVoucherClaim(declared float64, attachments ...entity.Attachment) *entity.Claim {
	return &entity.Claim{
		ID:            "claim-1",
		EmployeeCode:  "E1",
		ClaimType:     "TRAVEL",
		DeclaredTotal: declared,
		Vouchers: []entity.Voucher{
			{DeclaredAmount: declared, Attachments: attachments},
		},
	}
}

func TestReconciliationService_AmountWithinTolerance(t *testing.T) {
	f := newFixture()
	f.extractor.fields["bill-a"] = fields("INV1", "01-05-2024", 104)

	verdict, err := f.service().ProcessClaim(context.Background(), singleVoucherClaim(100, docAttachment("bill-a")))
	require.NoError(t, err)

	assert.Equal(t, entity.StatusNewClaim, verdict.Status)
	require.True(t, verdict.IsAccepted())
	assert.Len(t, verdict.Accepted.Records, 1)
	assert.Equal(t, 104.0, verdict.Accepted.GrandTotal)

	record := verdict.Accepted.Records[0]
	assert.Equal(t, "E1", record.EmployeeCode)
	assert.Equal(t, "INV1", record.InvoiceNumber)
	assert.Equal(t, "claim-1", record.ClaimID)
	assert.Equal(t, "TRAVEL", record.ClaimType)
	assert.Len(t, record.SourceDigest, 64)

	count, _ := f.ledger.Count(context.Background())
	assert.Equal(t, 1, count)

	payload := verdict.Payload()
	assert.Equal(t, 1, payload["recordsSaved"])
	assert.Equal(t, 104.0, payload["totalAttachmentsAmount"])
}

func TestReconciliationService_AmountMismatch(t *testing.T) {
	f := newFixture()
	f.extractor.fields["bill-a"] = fields("INV1", "01-05-2024", 106)

	verdict, err := f.service().ProcessClaim(context.Background(), singleVoucherClaim(100, docAttachment("bill-a")))
	require.NoError(t, err)

	assert.Equal(t, entity.StatusAmountMismatch, verdict.Status)
	require.NotNil(t, verdict.Rejection)
	assert.Equal(t, 100.0, verdict.Rejection.Expected)
	assert.Equal(t, 106.0, verdict.Rejection.Extracted)
	assert.Equal(t, 0, verdict.Rejection.VoucherIndex)

	assert.Equal(t, 0, f.ledger.appendCalls)
	count, _ := f.ledger.Count(context.Background())
	assert.Equal(t, 0, count)
}

func TestReconciliationService_DuplicateWithinTolerance(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		declared   float64
		wantStatus string
	}{
		{"diff 3 is a duplicate", 203, 300, entity.StatusDuplicateClaim},
		{"diff 7 is new", 207, 300, entity.StatusNewClaim},
		{"diff 7 proceeds to amount checks", 207, 200, entity.StatusAmountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.ledger.records = []entity.LedgerRecord{
				{EmployeeCode: "E1", InvoiceNumber: "INV1", Date: "01-05-2024", Amount: 200},
			}
			f.extractor.fields["bill-a"] = fields("INV1", "01-05-2024", tt.amount)

			before, _ := f.ledger.Count(context.Background())
			verdict, err := f.service().ProcessClaim(context.Background(), singleVoucherClaim(tt.declared, docAttachment("bill-a")))
			require.NoError(t, err)
			after, _ := f.ledger.Count(context.Background())

			assert.Equal(t, tt.wantStatus, verdict.Status)
			if verdict.IsAccepted() {
				assert.Equal(t, before+1, after)
			} else {
				assert.Equal(t, before, after)
			}
		})
	}
}

func TestReconciliationService_DuplicatePayload(t *testing.T) {
	f := newFixture()
	f.ledger.records = []entity.LedgerRecord{
		{EmployeeCode: "e1 ", InvoiceNumber: "inv-1", Date: "01-05-2024", Amount: 200},
	}
	f.extractor.fields["bill-a"] = fields("INV1", "01-05-2024", 203)

	verdict, err := f.service().ProcessClaim(context.Background(), singleVoucherClaim(300, docAttachment("bill-a")))
	require.NoError(t, err)

	require.Equal(t, entity.StatusDuplicateClaim, verdict.Status)
	require.NotNil(t, verdict.Rejection.Fingerprint)

	payload := verdict.Payload()
	assert.Equal(t, "INV1", payload["invoiceNumber"])
	assert.Equal(t, "01-05-2024", payload["invoiceDate"])
	assert.Equal(t, 203.0, payload["totalAmount"])
}

func TestReconciliationService_DateOutOfRange(t *testing.T) {
	f := newFixture()
	f.extractor.fields["bill-a"] = fields("INV1", "15-05-2024", 50)

	claim := singleVoucherClaim(100, docAttachment("bill-a"))
	claim.Vouchers[0].FromDate = day(2024, time.May, 1)
	claim.Vouchers[0].ToDate = day(2024, time.May, 10)

	verdict, err := f.service().ProcessClaim(context.Background(), claim)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusIncorrectDate, verdict.Status)
	assert.Equal(t, "15-05-2024", verdict.Rejection.InvoiceDate)
	assert.Equal(t, "01-05-2024", verdict.Rejection.FromDate)
	assert.Equal(t, "10-05-2024", verdict.Rejection.ToDate)
	assert.Equal(t, 0, f.ledger.lookupCalls)
}

func TestReconciliationService_DateRangeBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		date       string
		from, to   *time.Time
		wantStatus string
	}{
		{"first day", "01-05-2024", day(2024, time.May, 1), day(2024, time.May, 10), entity.StatusNewClaim},
		{"last day", "10-05-2024", day(2024, time.May, 1), day(2024, time.May, 10), entity.StatusNewClaim},
		{"day before", "30-04-2024", day(2024, time.May, 1), day(2024, time.May, 10), entity.StatusIncorrectDate},
		{"no range skips the check", "30-04-2024", nil, nil, entity.StatusNewClaim},
		{"half range skips the check", "30-04-2024", day(2024, time.May, 1), nil, entity.StatusNewClaim},
		{"missing date skips the check", "", day(2024, time.May, 1), day(2024, time.May, 10), entity.StatusNewClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.extractor.fields["bill-a"] = fields("INV1", tt.date, 50)

			claim := singleVoucherClaim(100, docAttachment("bill-a"))
			claim.Vouchers[0].FromDate = tt.from
			claim.Vouchers[0].ToDate = tt.to

			verdict, err := f.service().ProcessClaim(context.Background(), claim)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, verdict.Status)
		})
	}
}

func TestReconciliationService_Manifest(t *testing.T) {
	rows := []entity.ManifestRow{
		{InvoiceNumber: "M-1", Date: "02-05-2024", Amount: 60},
		{InvoiceNumber: "M-2", Date: "03-05-2024", Amount: 50},
	}

	t.Run("exceeds voucher", func(t *testing.T) {
		f := newFixture()
		f.manifests.rows["sheet"] = rows

		verdict, err := f.service().ProcessClaim(context.Background(), singleVoucherClaim(100, manifestAttachment("sheet")))
		require.NoError(t, err)

		assert.Equal(t, entity.StatusExcelAmountExceedsVoucher, verdict.Status)
		assert.Equal(t, 110.0, verdict.Rejection.Extracted)
		assert.Equal(t, 100.0, verdict.Rejection.Expected)
		assert.Equal(t, 0, f.ledger.lookupCalls)

		payload := verdict.Payload()
		assert.Equal(t, 110.0, payload["excelTotal"])
		assert.Equal(t, 100.0, payload["voucherAmount"])
	})

	t.Run("accepted with document", func(t *testing.T) {
		f := newFixture()
		f.manifests.rows["sheet"] = rows
		f.extractor.fields["bill-a"] = fields("INV9", "04-05-2024", 40)

		verdict, err := f.service().ProcessClaim(context.Background(),
			singleVoucherClaim(150, manifestAttachment("sheet"), docAttachment("bill-a")))
		require.NoError(t, err)

		require.Equal(t, entity.StatusNewClaim, verdict.Status)
		assert.Len(t, verdict.Accepted.Records, 3)
		assert.Equal(t, 150.0, verdict.Accepted.GrandTotal)
		assert.Equal(t, 1, f.ledger.appendCalls)
	})

	t.Run("duplicate row", func(t *testing.T) {
		f := newFixture()
		f.manifests.rows["sheet"] = rows
		f.ledger.records = []entity.LedgerRecord{
			{EmployeeCode: "E1", InvoiceNumber: "M-2", Date: "03-05-2024", Amount: 52},
		}

		verdict, err := f.service().ProcessClaim(context.Background(), singleVoucherClaim(110, manifestAttachment("sheet")))
		require.NoError(t, err)

		assert.Equal(t, entity.StatusDuplicateClaim, verdict.Status)
		assert.Equal(t, "M-2", verdict.Rejection.Fingerprint.InvoiceNumber)
		assert.Equal(t, 1, len(f.ledger.records))
	})

	t.Run("invalid manifest", func(t *testing.T) {
		f := newFixture()
		f.manifests.errs["sheet"] = errors.New("manifest is missing column Total_Amount")

		verdict, err := f.service().ProcessClaim(context.Background(), singleVoucherClaim(100, manifestAttachment("sheet")))
		require.NoError(t, err)

		assert.Equal(t, entity.StatusInvalidManifest, verdict.Status)
		assert.Contains(t, verdict.Payload()["message"], "Total_Amount")
	})
}

func TestReconciliationService_ClaimTotalMismatch(t *testing.T) {
	f := newFixture()
	f.extractor.fields["bill-a"] = fields("INV1", "01-05-2024", 104)
	f.extractor.fields["bill-b"] = fields("INV2", "02-05-2024", 100)

	claim := &entity.Claim{
		ID:            "claim-2",
		EmployeeCode:  "E1",
		DeclaredTotal: 150,
		Vouchers: []entity.Voucher{
			{DeclaredAmount: 100, Attachments: []entity.Attachment{docAttachment("bill-a")}},
			{DeclaredAmount: 100, Attachments: []entity.Attachment{docAttachment("bill-b")}},
		},
	}

	verdict, err := f.service().ProcessClaim(context.Background(), claim)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusClaimTotalMismatch, verdict.Status)
	assert.Equal(t, 150.0, verdict.Rejection.Expected)
	assert.Equal(t, 204.0, verdict.Rejection.Extracted)

	payload := verdict.Payload()
	assert.Equal(t, 150.0, payload["expectedTotalAmount"])
	assert.Equal(t, 204.0, payload["totalAttachmentsAmount"])
	assert.Equal(t, 0, f.ledger.appendCalls)
}

func TestReconciliationService_FailFastOrder(t *testing.T) {
	f := newFixture()
	f.ledger.records = []entity.LedgerRecord{
		{EmployeeCode: "E1", InvoiceNumber: "INV2", Date: "05-05-2024", Amount: 30},
	}
	f.extractor.fields["bill-a"] = fields("INV1", "20-05-2024", 30)
	f.extractor.fields["bill-b"] = fields("INV2", "05-05-2024", 30)
	f.ocr.errs["bill-c"] = errors.New("ocr unavailable")

	claim := singleVoucherClaim(100, docAttachment("bill-a"), docAttachment("bill-b"), docAttachment("bill-c"))
	claim.Vouchers[0].FromDate = day(2024, time.May, 1)
	claim.Vouchers[0].ToDate = day(2024, time.May, 10)

	verdict, err := f.service().ProcessClaim(context.Background(), claim)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusIncorrectDate, verdict.Status)
	assert.Equal(t, 0, verdict.Rejection.AttachmentIndex)
}

func TestReconciliationService_MissingTotalCountsAsZero(t *testing.T) {
	f := newFixture()
	f.extractor.fields["bill-a"] = entity.ExtractedFields{InvoiceNumber: "INV1", Date: "01-05-2024"}

	verdict, err := f.service().ProcessClaim(context.Background(), singleVoucherClaim(10, docAttachment("bill-a")))
	require.NoError(t, err)

	require.Equal(t, entity.StatusNewClaim, verdict.Status)
	assert.Equal(t, 0.0, verdict.Accepted.Records[0].Amount)
	assert.Equal(t, 0.0, verdict.Accepted.GrandTotal)
}

func TestReconciliationService_CollaboratorFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{
			name: "ocr failure",
			setup: func(f *fixture) {
				f.ocr.errs["bill-a"] = errors.New("ocr unavailable")
			},
		},
		{
			name: "lookup failure",
			setup: func(f *fixture) {
				f.ledger.lookupErr = errors.New("disk error")
			},
		},
		{
			name: "append failure",
			setup: func(f *fixture) {
				f.ledger.appendErr = errors.New("disk full")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.extractor.fields["bill-a"] = fields("INV1", "01-05-2024", 50)
			tt.setup(f)

			verdict, err := f.service().ProcessClaim(context.Background(), singleVoucherClaim(100, docAttachment("bill-a")))
			assert.Error(t, err)
			assert.Nil(t, verdict)
			assert.Empty(t, f.ledger.records)
			assert.Equal(t, []string{entity.StatusError}, f.observer.statuses)
		})
	}
}

func TestReconciliationService_CancelledContext(t *testing.T) {
	f := newFixture()
	f.extractor.fields["bill-a"] = fields("INV1", "01-05-2024", 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service().ProcessClaim(ctx, singleVoucherClaim(100, docAttachment("bill-a")))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.ledger.appendCalls)
}

func TestReconciliationService_NilClaim(t *testing.T) {
	_, err := newFixture().service().ProcessClaim(context.Background(), nil)
	assert.Error(t, err)
}

func TestReconciliationService_PassesKnownInvoices(t *testing.T) {
	f := newFixture()
	f.extractor.fields["bill-a"] = fields("INV1", "01-05-2024", 50)

	claim := singleVoucherClaim(100, docAttachment("bill-a"))
	claim.KnownInvoices = []string{"INV-KNOWN"}

	_, err := f.service().ProcessClaim(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-KNOWN"}, f.extractor.known)
}

func TestReconciliationService_ObservesVerdicts(t *testing.T) {
	f := newFixture()
	f.extractor.fields["bill-a"] = fields("INV1", "01-05-2024", 50)
	svc := f.service()

	_, err := svc.ProcessClaim(context.Background(), singleVoucherClaim(100, docAttachment("bill-a")))
	require.NoError(t, err)
	_, err = svc.ProcessClaim(context.Background(), singleVoucherClaim(100, docAttachment("bill-a")))
	require.NoError(t, err)

	assert.Equal(t, []string{entity.StatusNewClaim, entity.StatusDuplicateClaim}, f.observer.statuses)
	assert.Equal(t, []string{entity.AttachmentKindDocument, entity.AttachmentKindDocument}, f.observer.kinds)
}

func TestReconciliationService_ConcurrentClaimsCommitOnce(t *testing.T) {
	f := newFixture()
	f.extractor.fields["bill-a"] = fields("INV1", "01-05-2024", 50)
	svc := f.service()

	const claims = 8
	statuses := make([]string, claims)

	var wg sync.WaitGroup
	for i := 0; i < claims; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			verdict, err := svc.ProcessClaim(context.Background(), singleVoucherClaim(100, docAttachment("bill-a")))
			if err == nil {
				statuses[i] = verdict.Status
			}
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, s := range statuses {
		if s == entity.StatusNewClaim {
			accepted++
		} else {
			assert.Equal(t, entity.StatusDuplicateClaim, s)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Len(t, f.ledger.records, 1)
}
