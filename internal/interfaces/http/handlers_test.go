package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/claim-reconciler/internal/application/service"
	"github.com/garyjia/claim-reconciler/internal/domain/entity"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockClaims struct {
	ProcessClaimFunc func(ctx context.Context, claim *entity.Claim) (*entity.Verdict, error)
	got              *entity.Claim
}

func (m *mockClaims) ProcessClaim(ctx context.Context, claim *entity.Claim) (*entity.Verdict, error) {
	m.got = claim
	if m.ProcessClaimFunc != nil {
		return m.ProcessClaimFunc(ctx, claim)
	}
	return entity.NewAcceptedVerdict(nil, 0), nil
}

type mockVerifier struct {
	VerifyFunc func(ctx context.Context, req service.VerificationRequest) (*service.VerificationResult, error)
}

func (m *mockVerifier) Verify(ctx context.Context, req service.VerificationRequest) (*service.VerificationResult, error) {
	return m.VerifyFunc(ctx, req)
}

type mockOCR struct {
	err error
}

func (m *mockOCR) TextLines(_ context.Context, payload []byte) ([]entity.OcrLine, error) {
	if m.err != nil {
		return nil, m.err
	}
	return entity.LinesFromText(string(payload)), nil
}

type mockFields struct{}

func (m *mockFields) ExtractContext(_ context.Context, lines []entity.OcrLine, known ...string) entity.ExtractedFields {
	return entity.ExtractedFields{Vendor: lines[0].Text, InvoiceNumber: strings.Join(known, ",")}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(claims *mockClaims, verifier service.VerificationService, ocr *mockOCR) *Server {
	h := NewHandlers(claims, verifier, ocr, &mockFields{}, &mockLogger{})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	return NewServer(DefaultServerConfig(), h, metrics, &mockLogger{})
}

func post(t *testing.T, s *Server, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(&mockClaims{}, nil, &mockOCR{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(&mockClaims{}, nil, &mockOCR{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())
}

func TestProcessClaim_CamelCase(t *testing.T) {
	claims := &mockClaims{}
	s := newTestServer(claims, nil, &mockOCR{})

	w, out := post(t, s, "/process-claim", map[string]interface{}{
		"employeeCode":  "E1",
		"claimType":     "Travel",
		"declaredTotal": 1500,
		"knownInvoices": []string{"INV-1"},
		"vouchers": []map[string]interface{}{{
			"declaredAmount": "1,500.00",
			"fromDate":       "01-05-2024",
			"toDate":         "2024-05-31",
			"attachments":    []map[string]string{{"encodedPayload": encode("%PDF-1.4 bill")}},
		}},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.StatusNewClaim, out["status"])

	got := claims.got
	require.NotNil(t, got)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "E1", got.EmployeeCode)
	assert.Equal(t, 1500.0, got.DeclaredTotal)
	assert.Equal(t, []string{"INV-1"}, got.KnownInvoices)
	require.Len(t, got.Vouchers, 1)
	v := got.Vouchers[0]
	assert.Equal(t, 1500.0, v.DeclaredAmount)
	require.NotNil(t, v.FromDate)
	require.NotNil(t, v.ToDate)
	assert.Equal(t, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), *v.FromDate)
	assert.Equal(t, time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC), *v.ToDate)
	require.Len(t, v.Attachments, 1)
	assert.Equal(t, entity.FormatPDF, v.Attachments[0].Format)
}

func TestProcessClaim_LegacyEnvelope(t *testing.T) {
	claims := &mockClaims{
		ProcessClaimFunc: func(_ context.Context, _ *entity.Claim) (*entity.Verdict, error) {
			fp := entity.LedgerFingerprint{InvoiceNumber: "INV-1", Date: "01-05-2024", Amount: 100}
			return entity.NewRejectedVerdict(entity.StatusDuplicateClaim, entity.Rejection{Fingerprint: &fp}), nil
		},
	}
	s := newTestServer(claims, nil, &mockOCR{})

	w, out := post(t, s, "/process-claim", `{"Claim":{
		"Employee_Code":"E2","Claim_Type":"Food","Total_Bill_Amount":"250",
		"Vouchers":[{"Bill_Amount":250,"From_Date":"","To_Date":null,
			"Attachments":[{"base64File":""},{"base64File":"`+encode("%PDF-1.4 receipt")+`"}]}]}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.StatusDuplicateClaim, out["status"])
	assert.Equal(t, "INV-1", out["invoiceNumber"])

	got := claims.got
	require.NotNil(t, got)
	assert.Equal(t, "E2", got.EmployeeCode)
	assert.Equal(t, 250.0, got.DeclaredTotal)
	require.Len(t, got.Vouchers, 1)
	assert.Nil(t, got.Vouchers[0].FromDate)
	assert.Len(t, got.Vouchers[0].Attachments, 1)
}

func TestProcessClaim_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"employeeCode":`},
		{"empty body", `{}`},
		{"bad amount", `{"employeeCode":"E1","declaredTotal":true}`},
		{"undecodable attachment", `{"employeeCode":"E1","vouchers":[{"attachments":[{"encodedPayload":"%%%"}]}]}`},
		{"empty attachment", `{"employeeCode":"E1","vouchers":[{"attachments":[{"encodedPayload":""}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &mockClaims{}
			s := newTestServer(claims, nil, &mockOCR{})

			w, out := post(t, s, "/process-claim", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, entity.StatusError, out["status"])
			assert.Nil(t, claims.got)
		})
	}
}

func TestProcessClaim_ServiceError(t *testing.T) {
	claims := &mockClaims{
		ProcessClaimFunc: func(_ context.Context, _ *entity.Claim) (*entity.Verdict, error) {
			return nil, errors.New("ledger unavailable")
		},
	}
	s := newTestServer(claims, nil, &mockOCR{})

	w, out := post(t, s, "/process-claim", map[string]interface{}{"employeeCode": "E1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, entity.StatusError, out["status"])
	assert.Equal(t, "ledger unavailable", out["message"])
}

func TestVerifyInvoice(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newTestServer(&mockClaims{}, nil, &mockOCR{})
		w, out := post(t, s, "/verify-invoice", map[string]string{"encFile": "x"})
		assert.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, false, out["success"])
	})

	t.Run("verified", func(t *testing.T) {
		verifier := &mockVerifier{VerifyFunc: func(_ context.Context, req service.VerificationRequest) (*service.VerificationResult, error) {
			assert.Equal(t, "token", req.EncryptedFile)
			return &service.VerificationResult{
				Date: "01-05-2024", DateMatch: true,
				TotalMatch: true, InvoiceMatch: true, VendorMatch: true,
			}, nil
		}}
		s := newTestServer(&mockClaims{}, verifier, &mockOCR{})

		w, out := post(t, s, "/verify-invoice", map[string]string{"encFile": "token"})
		assert.Equal(t, http.StatusOK, w.Code)
		data := out["data"].(map[string]interface{})
		assert.Equal(t, true, data["verified"])
		assert.Equal(t, "01-05-2024", data["date"])
	})

	t.Run("nothing to verify", func(t *testing.T) {
		verifier := &mockVerifier{VerifyFunc: func(_ context.Context, _ service.VerificationRequest) (*service.VerificationResult, error) {
			return nil, service.ErrNothingToVerify
		}}
		s := newTestServer(&mockClaims{}, verifier, &mockOCR{})

		w, _ := post(t, s, "/verify-invoice", map[string]string{"encFile": "bad"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExtract(t *testing.T) {
	t.Run("document", func(t *testing.T) {
		s := newTestServer(&mockClaims{}, nil, &mockOCR{})
		w, out := post(t, s, "/extract", map[string]interface{}{
			"encodedPayload": encode("%PDF-1.4 Acme"),
			"knownInvoices":  []string{"INV-7"},
		})
		assert.Equal(t, http.StatusOK, w.Code)
		data := out["data"].(map[string]interface{})
		assert.Equal(t, "%PDF-1.4 Acme", data["vendor"])
		assert.Equal(t, "INV-7", data["invoiceNumber"])
	})

	t.Run("manifest rejected", func(t *testing.T) {
		s := newTestServer(&mockClaims{}, nil, &mockOCR{})
		w, _ := post(t, s, "/extract", map[string]string{"encodedPayload": encode("PK\x03\x04 sheet")})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ocr failure", func(t *testing.T) {
		s := newTestServer(&mockClaims{}, nil, &mockOCR{err: errors.New("engine down")})
		w, _ := post(t, s, "/extract", map[string]string{"encodedPayload": encode("%PDF-1.4")})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("missing payload", func(t *testing.T) {
		s := newTestServer(&mockClaims{}, nil, &mockOCR{})
		w, _ := post(t, s, "/extract", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
