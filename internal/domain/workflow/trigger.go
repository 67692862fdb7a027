package workflow

// Trigger represents the outcome of a reconciliation check
type Trigger string

const (
	TriggerAccept                Trigger = "ACCEPT"
	TriggerExcelExceedsVoucher   Trigger = "EXCEL_EXCEEDS_VOUCHER"
	TriggerDuplicateFound        Trigger = "DUPLICATE_FOUND"
	TriggerDateOutOfRange        Trigger = "DATE_OUT_OF_RANGE"
	TriggerVoucherAmountMismatch Trigger = "VOUCHER_AMOUNT_MISMATCH"
	TriggerClaimTotalMismatch    Trigger = "CLAIM_TOTAL_MISMATCH"
	TriggerManifestInvalid       Trigger = "MANIFEST_INVALID"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
