package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"seller-payout-service/internal/adapter/http/dto"
	"seller-payout-service/internal/adapter/http/middleware"
	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/internal/core/ports/mocks"
	"seller-payout-service/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSeller = "seller-1"

func init() {
	gin.SetMode(gin.TestMode)
}

// sellerContext builds a test context as SellerAuth would leave it.
func sellerContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxSellerID, testSeller)
	c.Set(middleware.CtxSellerEmail, "seller@example.com")
	return c, w
}

func withID(c *gin.Context, id string) {
	c.Params = gin.Params{{Key: "id", Value: id}}
}

type envelope struct {
	Data      json.RawMessage   `json:"data"`
	ErrorCode string            `json:"error_code"`
	Fields    map[string]string `json:"fields"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(decode(t, w).Data, v))
}

// --- KYC Handler Tests ---

func TestUploadDocument_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	docs := mocks.NewMockDocumentService(ctrl)
	h := NewKYCHandler(docs, mocks.NewMockKYCService(ctrl))

	docs.EXPECT().Upload(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.DocumentUpload) (*domain.IdentityDocument, error) {
			assert.Equal(t, testSeller, req.SellerID)
			assert.Equal(t, domain.DocumentKindGovernmentID, req.Kind)
			assert.Equal(t, "image/png", req.ContentType)
			content, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			assert.Equal(t, "\x89PNG...", string(content))
			return &domain.IdentityDocument{
				Ref:         "abc123",
				SellerID:    req.SellerID,
				Kind:        req.Kind,
				ContentType: "image/png",
				Size:        int64(len(content)),
			}, nil
		},
	)

	c, w := sellerContext(http.MethodPost, "/api/v1/kyc/documents?kind=government_id", "\x89PNG...")
	c.Request.Header.Set("Content-Type", "image/png; charset=binary")

	h.UploadDocument(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var doc domain.IdentityDocument
	decodeData(t, w, &doc)
	assert.Equal(t, "abc123", doc.Ref)
	assert.Equal(t, "abc123", c.GetString(middleware.CtxResourceID))
}

func TestUploadDocument_TooLarge(t *testing.T) {
	ctrl := gomock.NewController(t)
	docs := mocks.NewMockDocumentService(ctrl)
	h := NewKYCHandler(docs, mocks.NewMockKYCService(ctrl))

	docs.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDocumentTooLarge("5MB"))

	c, w := sellerContext(http.MethodPost, "/api/v1/kyc/documents?kind=PROOF_OF_ADDRESS", "x")
	h.UploadDocument(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "DOC_001", decode(t, w).ErrorCode)
}

func TestUploadDocument_NoSeller(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewKYCHandler(mocks.NewMockDocumentService(ctrl), mocks.NewMockKYCService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/kyc/documents", nil)

	h.UploadDocument(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitKYC_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	kyc := mocks.NewMockKYCService(ctrl)
	h := NewKYCHandler(mocks.NewMockDocumentService(ctrl), kyc)

	kyc.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.KYCSubmitRequest) (*domain.SellerIdentity, error) {
			assert.Equal(t, testSeller, req.SellerID)
			assert.Equal(t, "Ada Lovelace", req.Fields.FullName)
			require.NotNil(t, req.Fields.Bank)
			assert.Equal(t, "021000021", req.Fields.Bank.RoutingNumber)
			assert.Equal(t, "gov-ref", req.Documents.GovernmentID)
			return &domain.SellerIdentity{SellerID: req.SellerID, State: domain.KYCStatePending, Version: 2}, nil
		},
	)

	c, w := sellerContext(http.MethodPost, "/api/v1/kyc/submissions", dto.KYCSubmitRequest{
		FullName:    "Ada Lovelace",
		DateOfBirth: "1990-12-10",
		Country:     "US",
		IDType:      "passport",
		IDNumber:    "X1234567",
		Bank: &dto.BankRequest{
			AccountName:   "Ada Lovelace",
			AccountNumber: "12345678",
			BankName:      "Chase Bank",
			RoutingNumber: "021000021",
		},
		DocumentRefs: dto.DocumentRefsRequest{GovernmentID: "gov-ref", ProofOfAddress: "poa-ref"},
	})

	h.Submit(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var identity domain.SellerIdentity
	decodeData(t, w, &identity)
	assert.Equal(t, domain.KYCStatePending, identity.State)
	assert.Equal(t, "2", c.GetString(middleware.CtxResourceID))
}

func TestSubmitKYC_MissingDocumentRefs(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewKYCHandler(mocks.NewMockDocumentService(ctrl), mocks.NewMockKYCService(ctrl))

	c, w := sellerContext(http.MethodPost, "/api/v1/kyc/submissions", `{"full_name":"Ada"}`)
	h.Submit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, "VAL_001", env.ErrorCode)
	var flagged bool
	for field := range env.Fields {
		flagged = flagged || strings.HasPrefix(field, "document_refs")
	}
	assert.True(t, flagged, env.Fields)
}

func TestSubmitKYC_AlreadyPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	kyc := mocks.NewMockKYCService(ctrl)
	h := NewKYCHandler(mocks.NewMockDocumentService(ctrl), kyc)

	kyc.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrSubmissionPending())

	c, w := sellerContext(http.MethodPost, "/api/v1/kyc/submissions",
		`{"document_refs":{"government_id":"a","proof_of_address":"b"}}`)
	h.Submit(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "STATE_004", decode(t, w).ErrorCode)
}

func TestGetIdentity_Unsubmitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	kyc := mocks.NewMockKYCService(ctrl)
	h := NewKYCHandler(mocks.NewMockDocumentService(ctrl), kyc)

	kyc.EXPECT().GetIdentity(gomock.Any(), testSeller).
		Return(domain.NewUnsubmittedIdentity(testSeller, time.Now()), nil)

	c, w := sellerContext(http.MethodGet, "/api/v1/kyc", nil)
	h.GetIdentity(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var identity domain.SellerIdentity
	decodeData(t, w, &identity)
	assert.Equal(t, domain.KYCStateUnsubmitted, identity.State)
}

func TestListSubmissions(t *testing.T) {
	ctrl := gomock.NewController(t)
	kyc := mocks.NewMockKYCService(ctrl)
	h := NewKYCHandler(mocks.NewMockDocumentService(ctrl), kyc)

	kyc.EXPECT().ListSubmissions(gomock.Any(), testSeller).Return([]domain.KYCSubmission{
		{ID: uuid.New(), SellerID: testSeller, Version: 2, State: domain.KYCStatePending},
		{ID: uuid.New(), SellerID: testSeller, Version: 1, State: domain.KYCStateRejected},
	}, nil)

	c, w := sellerContext(http.MethodGet, "/api/v1/kyc/submissions", nil)
	h.ListSubmissions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var subs []domain.KYCSubmission
	decodeData(t, w, &subs)
	require.Len(t, subs, 2)
	assert.Equal(t, int64(2), subs[0].Version)
}

func TestRecordDecision_Applied(t *testing.T) {
	ctrl := gomock.NewController(t)
	kyc := mocks.NewMockKYCService(ctrl)
	h := NewKYCHandler(mocks.NewMockDocumentService(ctrl), kyc)

	kyc.EXPECT().RecordProviderDecision(gomock.Any(), ports.ProviderDecisionRequest{
		SellerID: testSeller,
		Version:  3,
		Decision: domain.KYCDecisionVerified,
	}).Return(true, nil)

	c, w := sellerContext(http.MethodPost, "/api/v1/kyc/decisions",
		`{"seller_id":"seller-1","submission_version":3,"decision":"verified"}`)
	h.RecordDecision(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var ack dto.CallbackAck
	decodeData(t, w, &ack)
	assert.True(t, ack.Applied)
}

func TestRecordDecision_StaleIsAcknowledged(t *testing.T) {
	ctrl := gomock.NewController(t)
	kyc := mocks.NewMockKYCService(ctrl)
	h := NewKYCHandler(mocks.NewMockDocumentService(ctrl), kyc)

	kyc.EXPECT().RecordProviderDecision(gomock.Any(), gomock.Any()).Return(false, nil)

	c, w := sellerContext(http.MethodPost, "/api/v1/kyc/decisions",
		`{"seller_id":"seller-1","submission_version":1,"decision":"REJECTED","reason":"blurry"}`)
	h.RecordDecision(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var ack dto.CallbackAck
	decodeData(t, w, &ack)
	assert.False(t, ack.Applied)
}

func TestRecordDecision_MissingVersion(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewKYCHandler(mocks.NewMockDocumentService(ctrl), mocks.NewMockKYCService(ctrl))

	c, w := sellerContext(http.MethodPost, "/api/v1/kyc/decisions", `{"seller_id":"seller-1","decision":"VERIFIED"}`)
	h.RecordDecision(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Challenge Handler Tests ---

func TestIssueChallenge_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	challenges := mocks.NewMockChallengeService(ctrl)
	h := NewChallengeHandler(challenges)

	id := uuid.New()
	expires := time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)
	challenges.EXPECT().Issue(gomock.Any(), ports.IssueChallengeRequest{
		SellerID: testSeller,
		Email:    "seller@example.com",
		Purpose:  domain.ChallengePurposeWithdraw,
	}).Return(&domain.VerificationChallenge{
		ID:        id,
		SellerID:  testSeller,
		Purpose:   domain.ChallengePurposeWithdraw,
		Digest:    "secret-digest",
		ExpiresAt: expires,
	}, nil)

	c, w := sellerContext(http.MethodPost, "/api/v1/challenges", `{"purpose":"WITHDRAW"}`)
	h.Issue(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-digest")
	var resp dto.ChallengeResponse
	decodeData(t, w, &resp)
	assert.Equal(t, id.String(), resp.ChallengeID)
	assert.Equal(t, "WITHDRAW", resp.Purpose)
	assert.True(t, expires.Equal(resp.ExpiresAt))
}

func TestIssueChallenge_UnknownPurpose(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewChallengeHandler(mocks.NewMockChallengeService(ctrl))

	c, w := sellerContext(http.MethodPost, "/api/v1/challenges", `{"purpose":"LOGIN"}`)
	h.Issue(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Fields, "purpose")
}

// --- Health Check Tests ---

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	pg := mocks.NewMockHealthChecker(ctrl)
	rd := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Ping(gomock.Any()).Return(nil)
	pg.EXPECT().Name().Return("postgres").AnyTimes()
	rd.EXPECT().Ping(gomock.Any()).Return(assert.AnError)
	rd.EXPECT().Name().Return("redis").AnyTimes()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(pg, rd)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp struct {
		Status       string `json:"status"`
		Dependencies map[string]struct {
			Status string `json:"status"`
		} `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "healthy", resp.Dependencies["postgres"].Status)
	assert.Equal(t, "unhealthy", resp.Dependencies["redis"].Status)
}
