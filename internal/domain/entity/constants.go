package entity

// Verdict status tags, serialized as the response "status" field
const (
	StatusNewClaim                  = "NEW_CLAIM"
	StatusExcelAmountExceedsVoucher = "EXCEL_AMOUNT_EXCEEDS_VOUCHER"
	StatusDuplicateClaim            = "DUPLICATE_CLAIM"
	StatusIncorrectDate             = "INCORRECT_DATE"
	StatusAmountMismatch            = "AMOUNT_MISMATCH"
	StatusClaimTotalMismatch        = "CLAIM_TOTAL_MISMATCH"
	StatusInvalidManifest           = "INVALID_MANIFEST"
	StatusError                     = "ERROR"
)

// Attachment kind constants
const (
	AttachmentKindDocument            = "DOCUMENT"
	AttachmentKindSpreadsheetManifest = "SPREADSHEET_MANIFEST"
)

// Document format constants
const (
	FormatPDF   = "pdf"
	FormatImage = "image"
	FormatXLSX  = "xlsx"
)

// Manifest column headers
const (
	ManifestColumnInvoice = "Invoice_No"
	ManifestColumnDate    = "Date"
	ManifestColumnAmount  = "Total_Amount"
)

// CanonicalDateLayout is the dd-mm-yyyy layout every extracted date is rendered in
const CanonicalDateLayout = "02-01-2006"

// DefaultTolerance is the slack applied at every amount comparison
const DefaultTolerance = 5.0
