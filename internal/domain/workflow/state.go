package workflow

import "github.com/garyjia/claim-reconciler/internal/domain/entity"

// State represents where a claim stands in reconciliation
type State string

const (
	StatePending                     State = "PENDING"
	StateAccepted                    State = "ACCEPTED"
	StateRejectedExcelExceedsVoucher State = "REJECTED_EXCEL_EXCEEDS_VOUCHER"
	StateRejectedDuplicate           State = "REJECTED_DUPLICATE"
	StateRejectedIncorrectDate       State = "REJECTED_INCORRECT_DATE"
	StateRejectedAmountMismatch      State = "REJECTED_AMOUNT_MISMATCH"
	StateRejectedClaimTotalMismatch  State = "REJECTED_CLAIM_TOTAL_MISMATCH"
	StateRejectedInvalidManifest     State = "REJECTED_INVALID_MANIFEST"
)

// verdictStatuses maps each terminal state to the status tag reported to callers
var verdictStatuses = map[State]string{
	StateAccepted:                    entity.StatusNewClaim,
	StateRejectedExcelExceedsVoucher: entity.StatusExcelAmountExceedsVoucher,
	StateRejectedDuplicate:           entity.StatusDuplicateClaim,
	StateRejectedIncorrectDate:       entity.StatusIncorrectDate,
	StateRejectedAmountMismatch:      entity.StatusAmountMismatch,
	StateRejectedClaimTotalMismatch:  entity.StatusClaimTotalMismatch,
	StateRejectedInvalidManifest:     entity.StatusInvalidManifest,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	_, ok := verdictStatuses[s]
	return ok
}

// IsRejection returns true for every terminal state except acceptance
func (s State) IsRejection() bool {
	return s.IsTerminal() && s != StateAccepted
}

// VerdictStatus returns the status tag of a terminal state, or empty for Pending
func (s State) VerdictStatus() string {
	return verdictStatuses[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known reconciliation state
func (s State) IsValid() bool {
	return s == StatePending || s.IsTerminal()
}
