package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/domain/entity"
	"github.com/garyjia/claim-reconciler/pkg/database"
)

func newTestLedger(t *testing.T) *LedgerRepository {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "ledger.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(Migrations, MigrationsDir))
	return NewLedgerRepository(NewDB(db.DB, logger), logger)
}

func record(invoice, date string, amount float64) entity.LedgerRecord {
	return entity.LedgerRecord{
		EmployeeCode:  "E1",
		InvoiceNumber: invoice,
		Date:          date,
		Amount:        amount,
		ClaimType:     "TRAVEL",
		ClaimID:       "claim-1",
		SourceDigest:  "abc",
	}
}

func TestLedgerRepository_LookupWithinTolerance(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	require.NoError(t, ledger.AppendAll(ctx, []entity.LedgerRecord{record("INV1", "01-05-2024", 200)}))

	tests := []struct {
		name string
		fp   entity.LedgerFingerprint
		want bool
	}{
		{"diff 3", entity.LedgerFingerprint{EmployeeCode: "E1", InvoiceNumber: "INV1", Date: "01-05-2024", Amount: 203}, true},
		{"diff 5", entity.LedgerFingerprint{EmployeeCode: "E1", InvoiceNumber: "INV1", Date: "01-05-2024", Amount: 195}, true},
		{"diff 7", entity.LedgerFingerprint{EmployeeCode: "E1", InvoiceNumber: "INV1", Date: "01-05-2024", Amount: 207}, false},
		{"normalized keys", entity.LedgerFingerprint{EmployeeCode: " e1", InvoiceNumber: "inv-1", Date: "01-05-2024 ", Amount: 200}, true},
		{"other employee", entity.LedgerFingerprint{EmployeeCode: "E2", InvoiceNumber: "INV1", Date: "01-05-2024", Amount: 200}, false},
		{"other date", entity.LedgerFingerprint{EmployeeCode: "E1", InvoiceNumber: "INV1", Date: "02-05-2024", Amount: 200}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ledger.Lookup(ctx, tt.fp, entity.DefaultTolerance)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLedgerRepository_RollbackLeavesNothing(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	errRejected := errors.New("rejected")
	err := ledger.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := ledger.AppendAll(txCtx, []entity.LedgerRecord{record("INV1", "01-05-2024", 10)}); err != nil {
			return err
		}
		return errRejected
	})
	assert.ErrorIs(t, err, errRejected)

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLedgerRepository_AppendAllAndList(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	require.NoError(t, ledger.AppendAll(ctx, nil))
	require.NoError(t, ledger.AppendAll(ctx, []entity.LedgerRecord{
		record("INV1", "01-05-2024", 10),
		record("INV2", "02-05-2024", 20.5),
	}))

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	records, err := ledger.ListByClaim(ctx, "claim-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "INV1", records[0].InvoiceNumber)
	assert.Equal(t, 20.5, records[1].Amount)
	assert.Equal(t, "abc", records[1].SourceDigest)
	assert.False(t, records[0].RecordedAt.IsZero())
}

func TestLedgerRepository_CheckThenAppendIsSerialized(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	rec := record("INV1", "01-05-2024", 50)

	const writers = 6
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ledger.WithTransaction(ctx, func(txCtx context.Context) error {
				hit, err := ledger.Lookup(txCtx, rec.Fingerprint(), entity.DefaultTolerance)
				if err != nil || hit {
					return err
				}
				return ledger.AppendAll(txCtx, []entity.LedgerRecord{rec})
			})
		}()
	}
	wg.Wait()

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
