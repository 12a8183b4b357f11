package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	domainErrors "github.com/wekeepgrowing/crowdfund-payment/internal/domain/errors"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	"github.com/wekeepgrowing/crowdfund-payment/internal/middleware/auth"
	"github.com/wekeepgrowing/crowdfund-payment/internal/usecase"
	"go.uber.org/zap"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, in usecase.CreatePaymentInput) (*usecase.CreatePaymentResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.CreatePaymentResult), args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, userID uuid.UUID, gatewayPaymentID string) (*model.Payment, error) {
	args := m.Called(ctx, userID, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) ListUserPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Payment, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Payment), args.Error(1)
}

type MockPaymentReconciler struct {
	mock.Mock
}

func (m *MockPaymentReconciler) Capture(ctx context.Context, gatewayPaymentID string) (*model.Payment, error) {
	args := m.Called(ctx, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentReconciler) Cancel(ctx context.Context, gatewayPaymentID, nonce string) (*model.Payment, error) {
	args := m.Called(ctx, gatewayPaymentID, nonce)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentReconciler) Refund(ctx context.Context, gatewayPaymentID string, amount *decimal.Decimal, nonce string) (*model.Payment, error) {
	args := m.Called(ctx, gatewayPaymentID, amount, nonce)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

type MockWebhookReceiver struct {
	mock.Mock
}

func (m *MockWebhookReceiver) Receive(ctx context.Context, payload []byte, signature string) error {
	args := m.Called(ctx, payload, signature)
	return args.Error(0)
}

type paymentFixture struct {
	echo       *echo.Echo
	user       *auth.AuthUser
	payments   *MockPaymentService
	reconciler *MockPaymentReconciler
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		echo:       echo.New(),
		user:       &auth.AuthUser{UserID: uuid.New()},
		payments:   new(MockPaymentService),
		reconciler: new(MockPaymentReconciler),
	}
	f.echo.Validator = NewRequestValidator()

	authenticated := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), f.user)))
			return next(c)
		}
	}
	NewPaymentHandler(f.payments, f.reconciler, zap.NewNop()).
		RegisterRoutes(f.echo.Group("/api/v1", authenticated))
	return f
}

func (f *paymentFixture) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func samplePayment(userID uuid.UUID, status model.PaymentStatus) *model.Payment {
	return &model.Payment{
		ID:               7,
		UserID:           userID,
		Platform:         model.PlatformStripe,
		GatewayPaymentID: "pi_123",
		Amount:           decimal.RequireFromString("25.00"),
		Currency:         "USD",
		RefundedAmount:   decimal.Zero,
		Status:           status,
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestPaymentHandler_CreatePayment(t *testing.T) {
	t.Run("created with idempotency key", func(t *testing.T) {
		f := newPaymentFixture()
		payment := samplePayment(f.user.UserID, model.PaymentStatusPending)
		f.payments.On("CreatePayment", mock.Anything, mock.MatchedBy(func(in usecase.CreatePaymentInput) bool {
			return in.UserID == f.user.UserID &&
				in.Amount.Equal(decimal.RequireFromString("25")) &&
				in.Currency == "usd" &&
				in.Nonce == "req-1"
		})).Return(&usecase.CreatePaymentResult{Payment: payment, ClientSecret: "pi_123_secret"}, nil)

		rec := f.do(http.MethodPost, "/api/v1/payments", `{"amount":"25.00","currency":"usd"}`,
			map[string]string{IdempotencyKeyHeader: "req-1"})

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp CreatePaymentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "pi_123_secret", resp.ClientSecret)
		assert.Equal(t, "pi_123", resp.Payment.GatewayPaymentID)
		assert.Equal(t, "PENDING", resp.Payment.Status)
		assert.True(t, resp.Payment.Amount.Equal(decimal.RequireFromString("25")))
		f.payments.AssertExpectations(t)
	})

	t.Run("numeric amount accepted", func(t *testing.T) {
		f := newPaymentFixture()
		payment := samplePayment(f.user.UserID, model.PaymentStatusPending)
		f.payments.On("CreatePayment", mock.Anything, mock.MatchedBy(func(in usecase.CreatePaymentInput) bool {
			return in.Amount.Equal(decimal.RequireFromString("12.5")) && in.Nonce == ""
		})).Return(&usecase.CreatePaymentResult{Payment: payment}, nil)

		rec := f.do(http.MethodPost, "/api/v1/payments", `{"amount":12.5}`, nil)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	validation := []struct {
		name string
		body string
	}{
		{name: "zero amount", body: `{"amount":"0"}`},
		{name: "negative amount", body: `{"amount":"-5"}`},
		{name: "missing amount", body: `{}`},
		{name: "bad currency", body: `{"amount":"5","currency":"dollars"}`},
		{name: "malformed json", body: `{"amount":`},
	}
	for _, tt := range validation {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture()
			rec := f.do(http.MethodPost, "/api/v1/payments", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_ARGUMENT", decodeBody(t, rec)["code"])
			f.payments.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
		})
	}

	t.Run("amount finer than the currency allows", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("CreatePayment", mock.Anything, mock.Anything).
			Return(nil, domainErrors.NewInvalidAmountError(decimal.RequireFromString("10.005"), "amount has more precision than USD allows"))

		rec := f.do(http.MethodPost, "/api/v1/payments", `{"amount":"10.005"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_AMOUNT", decodeBody(t, rec)["reason"])
	})

	t.Run("gateway unavailable", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("CreatePayment", mock.Anything, mock.Anything).
			Return(nil, domainErrors.ErrGatewayUnavailable)

		rec := f.do(http.MethodPost, "/api/v1/payments", `{"amount":"5"}`, nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "GATEWAY_UNAVAILABLE", decodeBody(t, rec)["reason"])
	})
}

func TestPaymentHandler_ListPayments(t *testing.T) {
	f := newPaymentFixture()
	payments := []*model.Payment{samplePayment(f.user.UserID, model.PaymentStatusCompleted)}
	f.payments.On("ListUserPayments", mock.Anything, f.user.UserID, 5, 10).Return(payments, nil)

	rec := f.do(http.MethodGet, "/api/v1/payments?limit=5&offset=10", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ListPaymentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Payments, 1)
	assert.Equal(t, "COMPLETED", resp.Payments[0].Status)
	assert.Equal(t, 5, resp.Limit)

	rec = f.do(http.MethodGet, "/api/v1/payments?limit=many", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Run("reports the page actually applied", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("ListUserPayments", mock.Anything, f.user.UserID, 0, 0).Return([]*model.Payment{}, nil)
		f.payments.On("ListUserPayments", mock.Anything, f.user.UserID, 500, -3).Return([]*model.Payment{}, nil)

		var resp ListPaymentsResponse
		rec := f.do(http.MethodGet, "/api/v1/payments", "", nil)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 20, resp.Limit)
		assert.Equal(t, 0, resp.Offset)

		rec = f.do(http.MethodGet, "/api/v1/payments?limit=500&offset=-3", "", nil)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 100, resp.Limit)
		assert.Equal(t, 0, resp.Offset)
	})
}

func TestPaymentHandler_GetPayment(t *testing.T) {
	f := newPaymentFixture()
	f.payments.On("GetPayment", mock.Anything, f.user.UserID, "pi_123").
		Return(samplePayment(f.user.UserID, model.PaymentStatusPending), nil)
	f.payments.On("GetPayment", mock.Anything, f.user.UserID, "pi_other").
		Return(nil, domainErrors.ErrUnknownPayment)

	rec := f.do(http.MethodGet, "/api/v1/payments/pi_123", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pi_123", decodeBody(t, rec)["gateway_payment_id"])

	rec = f.do(http.MethodGet, "/api/v1/payments/pi_other", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UNKNOWN_PAYMENT", decodeBody(t, rec)["reason"])
}

func TestPaymentHandler_CapturePayment(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("GetPayment", mock.Anything, f.user.UserID, "pi_123").
			Return(samplePayment(f.user.UserID, model.PaymentStatusPending), nil)
		f.reconciler.On("Capture", mock.Anything, "pi_123").
			Return(samplePayment(f.user.UserID, model.PaymentStatusCompleted), nil)

		rec := f.do(http.MethodPost, "/api/v1/payments/pi_123/capture", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "COMPLETED", decodeBody(t, rec)["status"])
	})

	t.Run("not yet paid is a conflict", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("GetPayment", mock.Anything, f.user.UserID, "pi_123").
			Return(samplePayment(f.user.UserID, model.PaymentStatusPending), nil)
		f.reconciler.On("Capture", mock.Anything, "pi_123").
			Return(nil, &domainErrors.NotYetPaidError{GatewayPaymentID: "pi_123", GatewayStatus: "requires_action"})

		rec := f.do(http.MethodPost, "/api/v1/payments/pi_123/capture", "", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "FAILED_PRECONDITION", body["code"])
		assert.Equal(t, "NOT_YET_PAID", body["reason"])
	})

	t.Run("someone else's payment", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("GetPayment", mock.Anything, f.user.UserID, "pi_123").
			Return(nil, domainErrors.ErrUnknownPayment)

		rec := f.do(http.MethodPost, "/api/v1/payments/pi_123/capture", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		f.reconciler.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_CancelPayment(t *testing.T) {
	f := newPaymentFixture()
	f.payments.On("GetPayment", mock.Anything, f.user.UserID, "pi_123").
		Return(samplePayment(f.user.UserID, model.PaymentStatusPending), nil)
	f.reconciler.On("Cancel", mock.Anything, "pi_123", "cancel-1").
		Return(samplePayment(f.user.UserID, model.PaymentStatusCanceled), nil)

	rec := f.do(http.MethodPost, "/api/v1/payments/pi_123/cancel", "", map[string]string{IdempotencyKeyHeader: "cancel-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decodeBody(t, rec)["status"])
	f.reconciler.AssertExpectations(t)
}

func TestPaymentHandler_RefundPayment(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("GetPayment", mock.Anything, f.user.UserID, "pi_123").
			Return(samplePayment(f.user.UserID, model.PaymentStatusCompleted), nil)
		f.reconciler.On("Refund", mock.Anything, "pi_123", mock.MatchedBy(func(amount *decimal.Decimal) bool {
			return amount != nil && amount.Equal(decimal.RequireFromString("10"))
		}), "").Return(samplePayment(f.user.UserID, model.PaymentStatusRefunded), nil)

		rec := f.do(http.MethodPost, "/api/v1/payments/pi_123/refund", `{"amount":"10"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "REFUNDED", decodeBody(t, rec)["status"])
	})

	t.Run("full without body", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("GetPayment", mock.Anything, f.user.UserID, "pi_123").
			Return(samplePayment(f.user.UserID, model.PaymentStatusCompleted), nil)
		f.reconciler.On("Refund", mock.Anything, "pi_123", (*decimal.Decimal)(nil), "").
			Return(samplePayment(f.user.UserID, model.PaymentStatusRefunded), nil)

		rec := f.do(http.MethodPost, "/api/v1/payments/pi_123/refund", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid state", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("GetPayment", mock.Anything, f.user.UserID, "pi_123").
			Return(samplePayment(f.user.UserID, model.PaymentStatusPending), nil)
		f.reconciler.On("Refund", mock.Anything, "pi_123", mock.Anything, "").
			Return(nil, &domainErrors.InvalidStateError{Operation: "refund", GatewayPaymentID: "pi_123", Cause: errors.New("charge not captured")})

		rec := f.do(http.MethodPost, "/api/v1/payments/pi_123/refund", "", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "INVALID_STATE", decodeBody(t, rec)["reason"])
	})

	t.Run("inconsistency is a server error", func(t *testing.T) {
		f := newPaymentFixture()
		f.payments.On("GetPayment", mock.Anything, f.user.UserID, "pi_123").
			Return(samplePayment(f.user.UserID, model.PaymentStatusCompleted), nil)
		f.reconciler.On("Refund", mock.Anything, "pi_123", mock.Anything, "").
			Return(nil, &domainErrors.InconsistencyError{Operation: "refund", GatewayPaymentID: "pi_123", Cause: domainErrors.ErrUnknownPayment})

		rec := f.do(http.MethodPost, "/api/v1/payments/pi_123/refund", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "INCONSISTENT_STATE", decodeBody(t, rec)["reason"])
	})
}

func TestPaymentHandler_RequiresAuthenticatedUser(t *testing.T) {
	e := echo.New()
	e.Validator = NewRequestValidator()
	payments := new(MockPaymentService)
	NewPaymentHandler(payments, new(MockPaymentReconciler), zap.NewNop()).RegisterRoutes(e.Group("/api/v1"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	payments.AssertNotCalled(t, "ListUserPayments", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_HandleStripeWebhook(t *testing.T) {
	newEcho := func(receiver WebhookReceiver) *echo.Echo {
		e := echo.New()
		NewWebhookHandler(receiver, zap.NewNop()).RegisterRoutes(e)
		return e
	}
	post := func(e *echo.Echo, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(body))
		req.Header.Set(StripeSignatureHeader, "t=1,v1=abc")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	t.Run("acknowledged", func(t *testing.T) {
		receiver := new(MockWebhookReceiver)
		receiver.On("Receive", mock.Anything, []byte(`{"id":"evt_1"}`), "t=1,v1=abc").Return(nil)

		rec := post(newEcho(receiver), `{"id":"evt_1"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	})

	t.Run("bad signature", func(t *testing.T) {
		receiver := new(MockWebhookReceiver)
		receiver.On("Receive", mock.Anything, mock.Anything, mock.Anything).Return(domainErrors.ErrSignatureInvalid)

		rec := post(newEcho(receiver), `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_ARGUMENT", decodeBody(t, rec)["code"])
	})

	t.Run("oversized payload", func(t *testing.T) {
		receiver := new(MockWebhookReceiver)
		rec := post(newEcho(receiver), strings.Repeat("x", maxWebhookBodyBytes+1))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		receiver.AssertNotCalled(t, "Receive", mock.Anything, mock.Anything, mock.Anything)
	})
}
