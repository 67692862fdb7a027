package entity

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		wantKind   string
		wantFormat string
	}{
		{"pdf signature", []byte("%PDF-1.7\n%âãÏÓ\n"), AttachmentKindDocument, FormatPDF},
		{"zip signature", []byte("PK\x03\x04\x14\x00\x06\x00"), AttachmentKindSpreadsheetManifest, FormatXLSX},
		{"png image", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), AttachmentKindDocument, FormatImage},
		{"unknown bytes", []byte("hello world"), AttachmentKindDocument, FormatImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, format, _ := ClassifyPayload(tt.payload)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantFormat, format)
		})
	}
}

func TestNewAttachment_EmptyPayload(t *testing.T) {
	_, err := NewAttachment(nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestAttachment_DigestIsStable(t *testing.T) {
	a, err := NewAttachment([]byte("%PDF-1.4 body"))
	require.NoError(t, err)
	b, err := NewAttachment([]byte("%PDF-1.4 body"))
	require.NoError(t, err)

	assert.Len(t, a.Digest(), 64)
	assert.Equal(t, a.Digest(), b.Digest())
}

func TestDecodeAttachment(t *testing.T) {
	raw := []byte("%PDF-1.4")
	plain := base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeAttachment(plain)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeAttachment("data:application/pdf;base64," + plain)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = DecodeAttachment("")
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = DecodeAttachment("not*base64")
	assert.Error(t, err)
}

func TestVoucher_Covers(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	v := Voucher{FromDate: &from, ToDate: &to}

	assert.True(t, v.HasDateRange())
	assert.True(t, v.Covers(from))
	assert.True(t, v.Covers(to))
	assert.True(t, v.Covers(time.Date(2024, 5, 10, 18, 30, 0, 0, time.UTC)))
	assert.False(t, v.Covers(time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, v.Covers(time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)))
}

func TestLinesFromText(t *testing.T) {
	lines := LinesFromText("Uber\n\n  Total  ₹1,415.00 \n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Total  ₹1,415.00", lines[1].Text)
	assert.Equal(t, 1.0, lines[0].Confidence)

	single := LinesFromText("just one line")
	assert.Len(t, single, 1)
}

func TestFilterByConfidence(t *testing.T) {
	lines := []OcrLine{{Text: "a", Confidence: 0.6}, {Text: "b", Confidence: 0.61}, {Text: "c", Confidence: 0.9}}
	kept := FilterByConfidence(lines, 0.6)
	require.Len(t, kept, 2)
	assert.Equal(t, "b", kept[0].Text)
}

func TestVerdict_Payload(t *testing.T) {
	accepted := NewAcceptedVerdict([]LedgerRecord{{}, {}}, 304.456)
	assert.Equal(t, map[string]interface{}{
		"status":                 StatusNewClaim,
		"recordsSaved":           2,
		"totalAttachmentsAmount": 304.46,
	}, accepted.Payload())

	dup := NewRejectedVerdict(StatusDuplicateClaim, Rejection{
		Fingerprint: &LedgerFingerprint{EmployeeCode: "E1", InvoiceNumber: "INV1", Date: "01-05-2024", Amount: 203},
	})
	payload := dup.Payload()
	assert.Equal(t, "INV1", payload["invoiceNumber"])
	assert.Equal(t, "01-05-2024", payload["invoiceDate"])
	assert.Equal(t, 203.0, payload["totalAmount"])

	mismatch := NewRejectedVerdict(StatusAmountMismatch, Rejection{Expected: 100, Extracted: 106})
	assert.Equal(t, 100.0, mismatch.Payload()["expectedBillAmount"])
	assert.Equal(t, 106.0, mismatch.Payload()["extractedAttachmentTotal"])
	assert.False(t, mismatch.IsAccepted())
}
