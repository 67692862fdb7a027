package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/claim-reconciler/internal/application/port"
	"github.com/garyjia/claim-reconciler/internal/application/service"
	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

// Version is reported by the health check
const Version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	claims   service.ReconciliationService
	verifier service.VerificationService
	ocr      port.TextExtractor
	fields   port.FieldExtractor
	logger   Logger
}

// NewHandlers creates a new Handlers instance. verifier may be nil when no decryption keys are configured.
func NewHandlers(
	claims service.ReconciliationService,
	verifier service.VerificationService,
	ocr port.TextExtractor,
	fields port.FieldExtractor,
	logger Logger,
) *Handlers {
	return &Handlers{
		claims:   claims,
		verifier: verifier,
		ocr:      ocr,
		fields:   fields,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// VerifyResponse is the body returned by POST /verify-invoice
type VerifyResponse struct {
	*service.VerificationResult
	Verified bool `json:"verified"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// ProcessClaim handles POST /process-claim
func (h *Handlers) ProcessClaim(c *gin.Context) {
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid claim request body", "error", err)
		c.JSON(http.StatusBadRequest, entity.ErrorPayload("invalid request body: "+err.Error()))
		return
	}

	claim, err := req.ToClaim(uuid.NewString())
	if err != nil {
		h.logger.Error("Invalid claim", "error", err)
		c.JSON(http.StatusBadRequest, entity.ErrorPayload(err.Error()))
		return
	}

	verdict, err := h.claims.ProcessClaim(c.Request.Context(), claim)
	if err != nil {
		h.logger.Error("Failed to process claim", "claim_id", claim.ID, "error", err)
		c.JSON(http.StatusInternalServerError, entity.ErrorPayload(err.Error()))
		return
	}

	c.JSON(http.StatusOK, verdict.Payload())
}

// VerifyInvoice handles POST /verify-invoice
func (h *Handlers) VerifyInvoice(c *gin.Context) {
	if h.verifier == nil {
		c.JSON(http.StatusNotImplemented, Response{
			Success: false,
			Error:   "invoice verification is not configured",
		})
		return
	}

	var req service.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid verification request body", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	result, err := h.verifier.Verify(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrNothingToVerify) {
			status = http.StatusBadRequest
		}
		h.logger.Error("Failed to verify invoice", "error", err)
		c.JSON(status, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    VerifyResponse{VerificationResult: result, Verified: result.Verified()},
	})
}

// Extract handles POST /extract
func (h *Handlers) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	att, err := decodeAttachment(req.EncodedPayload)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}
	if att.IsManifest() {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "spreadsheet manifests carry no document fields",
		})
		return
	}

	lines, err := h.ocr.TextLines(c.Request.Context(), att.Payload)
	if err != nil {
		h.logger.Error("Failed to read document text", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to read document text",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.fields.ExtractContext(c.Request.Context(), lines, req.KnownInvoices...),
	})
}
