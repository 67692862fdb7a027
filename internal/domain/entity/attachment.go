package entity

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/blake2b"
)

// ErrEmptyPayload is returned when an attachment carries no bytes
var ErrEmptyPayload = errors.New("attachment payload is empty")

const spreadsheetMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Attachment is one decoded file submitted under a voucher
type Attachment struct {
	Payload []byte `json:"-"`
	Kind    string `json:"kind"`   // DOCUMENT or SPREADSHEET_MANIFEST
	Format  string `json:"format"` // pdf, image, xlsx
	MIME    string `json:"mime"`
}

// IsManifest returns true if the attachment is a spreadsheet manifest
func (a *Attachment) IsManifest() bool {
	return a.Kind == AttachmentKindSpreadsheetManifest
}

// Digest returns the hex blake2b-256 digest of the payload
func (a *Attachment) Digest() string {
	sum := blake2b.Sum256(a.Payload)
	return hex.EncodeToString(sum[:])
}

// NewAttachment classifies a payload by its content signature
func NewAttachment(payload []byte) (Attachment, error) {
	if len(payload) == 0 {
		return Attachment{}, ErrEmptyPayload
	}
	kind, format, mime := ClassifyPayload(payload)
	return Attachment{
		Payload: payload,
		Kind:    kind,
		Format:  format,
		MIME:    mime,
	}, nil
}

// ClassifyPayload determines attachment kind and format from leading bytes only.
// Any zip container is treated as a spreadsheet manifest.
func ClassifyPayload(payload []byte) (kind, format, mime string) {
	detected := mimetype.Detect(payload)
	mime = detected.String()

	switch {
	case bytes.HasPrefix(payload, []byte("%PDF")) || detected.Is("application/pdf"):
		return AttachmentKindDocument, FormatPDF, mime
	case detected.Is(spreadsheetMIME) || bytes.HasPrefix(payload, []byte("PK")):
		return AttachmentKindSpreadsheetManifest, FormatXLSX, mime
	default:
		return AttachmentKindDocument, FormatImage, mime
	}
}

// DecodeAttachment decodes a base64 payload, tolerating a data-URL prefix
func DecodeAttachment(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if idx := strings.Index(encoded, "base64,"); idx >= 0 {
		encoded = encoded[idx+len("base64,"):]
	}
	if encoded == "" {
		return nil, ErrEmptyPayload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment: %w", err)
	}
	return data, nil
}
