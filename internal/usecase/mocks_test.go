package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	domainErrors "github.com/wekeepgrowing/crowdfund-payment/internal/domain/errors"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/provider"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/repository"
	"github.com/wekeepgrowing/crowdfund-payment/internal/usecase"
)

// MockGateway is a mock implementation of provider.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Platform() model.Platform {
	return model.PlatformStripe
}

func (m *MockGateway) CreateIntent(ctx context.Context, req *provider.CreateIntentRequest) (*provider.GatewayIntent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.GatewayIntent), args.Error(1)
}

func (m *MockGateway) RetrieveIntent(ctx context.Context, gatewayPaymentID string) (*provider.GatewayIntent, error) {
	args := m.Called(ctx, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.GatewayIntent), args.Error(1)
}

func (m *MockGateway) CancelIntent(ctx context.Context, gatewayPaymentID, idempotencyKey string) (*provider.GatewayIntent, error) {
	args := m.Called(ctx, gatewayPaymentID, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.GatewayIntent), args.Error(1)
}

func (m *MockGateway) CreateRefund(ctx context.Context, req *provider.RefundRequest) (*provider.GatewayRefund, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.GatewayRefund), args.Error(1)
}

// MockPaymentRepository is a mock implementation of repository.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByGatewayID(ctx context.Context, gatewayPaymentID string) (*model.Payment, error) {
	args := m.Called(ctx, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, gatewayPaymentID string, status model.PaymentStatus) (*repository.StatusUpdate, error) {
	args := m.Called(ctx, gatewayPaymentID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.StatusUpdate), args.Error(1)
}

func (m *MockPaymentRepository) ApplyRefund(ctx context.Context, gatewayPaymentID string, refundedTotal decimal.Decimal) (*repository.StatusUpdate, error) {
	args := m.Called(ctx, gatewayPaymentID, refundedTotal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.StatusUpdate), args.Error(1)
}

func (m *MockPaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Payment, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListStale(ctx context.Context, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.Payment, error) {
	args := m.Called(ctx, status, olderThan, limit)
	return args.Get(0).([]*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Touch(ctx context.Context, gatewayPaymentID string, status model.PaymentStatus) error {
	args := m.Called(ctx, gatewayPaymentID, status)
	return args.Error(0)
}

// MockWebhookEventRepository is a mock implementation of repository.WebhookEventRepository
type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) SaveEvent(ctx context.Context, event *model.WebhookEvent) (*model.WebhookEvent, bool, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.WebhookEvent), args.Bool(1), args.Error(2)
}

func (m *MockWebhookEventRepository) GetEvent(ctx context.Context, gatewayEventID string) (*model.WebhookEvent, error) {
	args := m.Called(ctx, gatewayEventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) MarkProcessed(ctx context.Context, gatewayEventID string) error {
	args := m.Called(ctx, gatewayEventID)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) MarkFailed(ctx context.Context, gatewayEventID string, cause error) error {
	args := m.Called(ctx, gatewayEventID, cause)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) GetRetryableEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*model.WebhookEvent), args.Error(1)
}

// MockWebhookVerifier is a mock implementation of provider.WebhookVerifier
type MockWebhookVerifier struct {
	mock.Mock
}

func (m *MockWebhookVerifier) Verify(payload []byte, signature string) (*provider.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.WebhookEvent), args.Error(1)
}

func (m *MockWebhookVerifier) Decode(payload []byte) (*provider.WebhookEvent, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.WebhookEvent), args.Error(1)
}

// MockEventHandler is a mock implementation of usecase.EventHandler
type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) HandleEvent(ctx context.Context, event provider.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingObserver keeps every transition it is notified of.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []usecase.Transition
}

func (o *recordingObserver) OnTransition(_ context.Context, transition usecase.Transition) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, transition)
	return nil
}

func (o *recordingObserver) Transitions() []usecase.Transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]usecase.Transition(nil), o.transitions...)
}

// memoryPaymentStore is an in-memory PaymentRepository with the same
// compare-and-swap semantics as the gorm repository.
type memoryPaymentStore struct {
	mu     sync.Mutex
	rows   map[string]*model.Payment
	nextID int64
}

func newMemoryPaymentStore() *memoryPaymentStore {
	return &memoryPaymentStore{rows: make(map[string]*model.Payment)}
}

// seed stores a payment directly, bypassing validation.
func (s *memoryPaymentStore) seed(gatewayPaymentID string, amount string, status model.PaymentStatus) *model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now()
	payment := &model.Payment{
		ID:               s.nextID,
		UserID:           uuid.New(),
		Platform:         model.PlatformStripe,
		GatewayPaymentID: gatewayPaymentID,
		Amount:           decimal.RequireFromString(amount),
		Currency:         "USD",
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.rows[gatewayPaymentID] = payment
	copied := *payment
	return &copied
}

func (s *memoryPaymentStore) setUpdatedAt(gatewayPaymentID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[gatewayPaymentID].UpdatedAt = at
}

func (s *memoryPaymentStore) status(gatewayPaymentID string) model.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[gatewayPaymentID].Status
}

func (s *memoryPaymentStore) Create(_ context.Context, payment *model.Payment) error {
	if !payment.Amount.IsPositive() {
		return domainErrors.NewInvalidAmountError(payment.Amount, "amount must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[payment.GatewayPaymentID]; exists {
		return domainErrors.ErrDuplicateKey
	}
	s.nextID++
	payment.ID = s.nextID
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	copied := *payment
	s.rows[payment.GatewayPaymentID] = &copied
	return nil
}

func (s *memoryPaymentStore) GetByGatewayID(_ context.Context, gatewayPaymentID string) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[gatewayPaymentID]
	if !ok {
		return nil, domainErrors.ErrUnknownPayment
	}
	copied := *row
	return &copied, nil
}

func (s *memoryPaymentStore) UpdateStatus(_ context.Context, gatewayPaymentID string, status model.PaymentStatus) (*repository.StatusUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[gatewayPaymentID]
	if !ok {
		return nil, domainErrors.ErrUnknownPayment
	}

	update := &repository.StatusUpdate{From: row.Status}
	if row.Status.CanTransitionTo(status) {
		row.Status = status
		row.UpdatedAt = time.Now()
		update.Applied = true
	}
	copied := *row
	update.Payment = &copied
	return update, nil
}

func (s *memoryPaymentStore) ApplyRefund(_ context.Context, gatewayPaymentID string, refundedTotal decimal.Decimal) (*repository.StatusUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[gatewayPaymentID]
	if !ok {
		return nil, domainErrors.ErrUnknownPayment
	}

	update := &repository.StatusUpdate{From: row.Status}
	if row.Status == model.PaymentStatusRefunded || row.Status.CanTransitionTo(model.PaymentStatusRefunded) {
		update.Applied = row.Status != model.PaymentStatusRefunded
		row.Status = model.PaymentStatusRefunded
		row.RefundedAmount = decimal.Max(row.RefundedAmount, refundedTotal)
	}
	copied := *row
	update.Payment = &copied
	return update, nil
}

func (s *memoryPaymentStore) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Payment
	for _, row := range s.rows {
		if row.UserID == userID {
			copied := *row
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryPaymentStore) ListStale(_ context.Context, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Payment
	for _, row := range s.rows {
		if row.Status == status && row.UpdatedAt.Before(olderThan) {
			copied := *row
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryPaymentStore) Touch(_ context.Context, gatewayPaymentID string, status model.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[gatewayPaymentID]; ok && row.Status == status {
		row.UpdatedAt = time.Now()
	}
	return nil
}

var (
	_ repository.PaymentRepository      = (*memoryPaymentStore)(nil)
	_ repository.PaymentRepository      = (*MockPaymentRepository)(nil)
	_ repository.WebhookEventRepository = (*MockWebhookEventRepository)(nil)
	_ provider.Gateway                  = (*MockGateway)(nil)
	_ provider.WebhookVerifier          = (*MockWebhookVerifier)(nil)
	_ usecase.EventHandler              = (*MockEventHandler)(nil)
)
