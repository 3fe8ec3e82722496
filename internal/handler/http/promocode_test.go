package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	apperrors "github.com/tahiry-dev-29/boutique-pricing/pkg/errors"
)

const testOwnerID = "550e8400-e29b-41d4-a716-446655440010"

// samplePendingCode returns a freshly purchased PERCENTAGE code awaiting
// payment confirmation.
func samplePendingCode() *domain.PromoCode {
	now := time.Now().UTC()
	return &domain.PromoCode{
		ID:              "550e8400-e29b-41d4-a716-446655440002",
		Code:            "SUMMER10",
		Type:            domain.CodeTypePercentage,
		Value:           10,
		Duration:        domain.Duration1Month,
		StartDate:       now,
		EndDate:         domain.Duration1Month.EndDateFrom(now),
		MinOrderAmount:  0,
		OwnerID:         testOwnerID,
		Status:          domain.CodeStatusPending,
		IsActive:        false,
		ActivationPrice: 9000,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func sampleActiveCode() *domain.PromoCode {
	pc := samplePendingCode()
	pc.Status = domain.CodeStatusActive
	pc.IsActive = true
	return pc
}

func validCreateCodeJSON() []byte {
	req := CreateCodeRequest{
		Code:     "SUMMER10",
		Type:     "PERCENTAGE",
		Value:    10,
		Duration: "1_MONTH",
		OwnerID:  testOwnerID,
	}
	b, _ := json.Marshal(req)
	return b
}

// ============================================================================
// POST /api/v1/promo-codes - CreateCode
// ============================================================================

func TestCreateCode_Success(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	codes.On("Create", mock.Anything, mock.AnythingOfType("*domain.PromoCode")).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes", bytes.NewReader(validCreateCodeJSON()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PENDING", data["status"])
	assert.Equal(t, float64(9000), data["activation_price"])
	codes.AssertExpectations(t)
}

func TestCreateCode_ManualActivationPrice(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	codes.On("Create", mock.Anything, mock.AnythingOfType("*domain.PromoCode")).Return(nil)

	override := int64(15000)
	reqBody := CreateCodeRequest{
		Code:            "SUMMER10",
		Type:            "PERCENTAGE",
		Value:           10,
		Duration:        "1_MONTH",
		OwnerID:         testOwnerID,
		ActivationPrice: &override,
	}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(15000), data["activation_price"])
	codes.AssertExpectations(t)
}

func TestCreateCode_ManualActivationPrice_Rejected(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	bad := int64(-100)
	reqBody := CreateCodeRequest{
		Code:            "SUMMER10",
		Type:            "PERCENTAGE",
		Value:           10,
		Duration:        "1_MONTH",
		OwnerID:         testOwnerID,
		ActivationPrice: &bad,
	}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestCreateCode_ValidationError_BadType(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	reqBody := CreateCodeRequest{
		Code:     "SUMMER10",
		Type:     "BOGUS",
		Value:    10,
		Duration: "1_MONTH",
		OwnerID:  testOwnerID,
	}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestCreateCode_ValueOutOfRange(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	reqBody := CreateCodeRequest{
		Code:     "SUMMER50",
		Type:     "PERCENTAGE",
		Value:    50, // above the percentage cap
		Duration: "1_MONTH",
		OwnerID:  testOwnerID,
	}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "OUT_OF_RANGE", resp.Error.Code)
}

func TestCreateCode_DuplicateCode(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	codes.On("Create", mock.Anything, mock.AnythingOfType("*domain.PromoCode")).
		Return(apperrors.ErrAlreadyExists)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes", bytes.NewReader(validCreateCodeJSON()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ALREADY_EXISTS", resp.Error.Code)
	codes.AssertExpectations(t)
}

// ============================================================================
// GET /api/v1/promo-codes - ListOwnerCodes
// ============================================================================

func TestListOwnerCodes_Success(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	codes.On("ListByOwner", mock.Anything, testOwnerID).
		Return([]domain.PromoCode{*sampleActiveCode()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promo-codes?owner_id="+testOwnerID, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	codes.AssertExpectations(t)
}

func TestListOwnerCodes_MissingOwnerID(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promo-codes", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "owner_id")
}

// ============================================================================
// GET /api/v1/promo-codes/{id} - GetCode
// ============================================================================

func TestGetCode_NotFound(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	id := "550e8400-e29b-41d4-a716-446655440099"
	codes.On("GetByID", mock.Anything, id).Return(nil, apperrors.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promo-codes/"+id, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	codes.AssertExpectations(t)
}

// ============================================================================
// POST /api/v1/promo-codes/quote - QuoteActivation
// ============================================================================

func TestQuoteActivation_Success(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	reqBody := QuoteActivationRequest{Type: "PERCENTAGE", Value: 10, Duration: "1_MONTH"}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes/quote", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(9000), data["activation_price"])
}

func TestQuoteActivation_ValidationError(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	reqBody := QuoteActivationRequest{Type: "PERCENTAGE", Value: 10, Duration: "2_WEEKS"}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes/quote", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

// ============================================================================
// POST /api/v1/promo-codes/validate - ValidateCode
// ============================================================================

func TestValidateCode_Active(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	codes.On("GetByCode", mock.Anything, "SUMMER10").Return(sampleActiveCode(), nil)

	reqBody := ValidateCodeRequest{Code: "SUMMER10", OrderAmount: 10000}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes/validate", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, float64(1000), data["discount_amount"])
	codes.AssertExpectations(t)
}

func TestValidateCode_PendingNotRedeemable(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	codes.On("GetByCode", mock.Anything, "SUMMER10").Return(samplePendingCode(), nil)

	reqBody := ValidateCodeRequest{Code: "SUMMER10", OrderAmount: 10000}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes/validate", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, data["valid"])
	codes.AssertExpectations(t)
}

func TestValidateCode_Unknown(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	codes.On("GetByCode", mock.Anything, "NOSUCH").Return(nil, apperrors.ErrNotFound)

	reqBody := ValidateCodeRequest{Code: "NOSUCH", OrderAmount: 10000}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes/validate", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	// An unknown code is a negative validation result, not an error.
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, data["valid"])
	codes.AssertExpectations(t)
}

// ============================================================================
// POST /api/v1/promo-codes/redeem - RedeemCode
// ============================================================================

func TestRedeemCode_Success(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	pc := sampleActiveCode()
	codes.On("GetByCode", mock.Anything, "SUMMER10").Return(pc, nil)
	codes.On("IncrementUsage", mock.Anything, pc.ID).Return(nil)

	reqBody := RedeemCodeRequest{Code: "SUMMER10", OrderAmount: 10000}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes/redeem", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	codes.AssertExpectations(t)
}

func TestRedeemCode_InvalidCode(t *testing.T) {
	codes := new(mockPromoCodeRepository)
	router := setupRouter(new(mockRuleRepository), codes, new(mockCatalogRepository))

	codes.On("GetByCode", mock.Anything, "SUMMER10").Return(samplePendingCode(), nil)

	reqBody := RedeemCodeRequest{Code: "SUMMER10", OrderAmount: 10000}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promo-codes/redeem", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	codes.AssertExpectations(t)
}
