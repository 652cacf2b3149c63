package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoshop/orders-api/internal/domain/payment"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	orders    map[string]*Order
	createErr error
	listErr   error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.orders[o.ID]; ok {
		return ErrConflict
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetBySessionRef(_ context.Context, ref string) (*Order, error) {
	for _, o := range m.orders {
		if o.SessionRef == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) ListByOwner(_ context.Context, ownerID string) ([]Order, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Order
	for _, o := range m.orders {
		if o.OwnerID == ownerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) List(_ context.Context, _ Filter) ([]Order, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Order
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, sessionRef, paymentRef string) (*Order, error) {
	for _, o := range m.orders {
		if o.SessionRef != sessionRef {
			continue
		}
		if o.PaymentStatus == PaymentPaid {
			cp := *o
			return &cp, nil
		}
		if o.Status != StatusPending {
			return nil, ErrConflict
		}
		o.PaymentStatus = PaymentPaid
		o.Status = StatusConfirmed
		o.PaymentRef = paymentRef
		cp := *o
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, expected, next Status) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != expected {
		return nil, ErrConflict
	}
	o.Status = next
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

type mockGateway struct {
	session     *payment.CheckoutSession
	createErr   error
	status      *payment.SessionStatus
	retrieveErr error

	createCalls   []payment.CheckoutRequest
	retrieveCalls []string
}

func (m *mockGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	m.createCalls = append(m.createCalls, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.session, nil
}

func (m *mockGateway) RetrieveSession(_ context.Context, id string) (*payment.SessionStatus, error) {
	m.retrieveCalls = append(m.retrieveCalls, id)
	if m.retrieveErr != nil {
		return nil, m.retrieveErr
	}
	return m.status, nil
}

// --- Helpers ---

func testConfig() ServiceConfig {
	return ServiceConfig{
		Currency:   "inr",
		SuccessURL: "http://store.test/orders/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "http://store.test/orders/cancel",
	}
}

func testContact() Contact {
	return Contact{
		Name:    "Asha Rao",
		Email:   "asha@example.com",
		Phone:   "+91-9000000000",
		Address: "12 MG Road, Bengaluru",
	}
}

func testRawItems() []RawItem {
	return []RawItem{
		{ProductID: "w-1", Name: "Diver 200m", Price: decimal.RequireFromString("100.00"), Qty: intPtr(2)},
		{ProductID: "w-2", Name: "Field Watch", Price: decimal.RequireFromString("50.00"), Qty: intPtr(1)},
	}
}

// --- Creation tests ---

func TestCreate_MissingContactField(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockGateway{}, testConfig())

	contact := testContact()
	contact.Email = ""
	_, err := svc.Create(context.Background(), CreateRequest{
		Contact:       contact,
		Items:         testRawItems(),
		PaymentMethod: PaymentCashOnDelivery,
	})

	var mfErr *MissingFieldError
	require.ErrorAs(t, err, &mfErr)
	assert.Equal(t, "email", mfErr.Field)
}

func TestCreate_EmptyItems(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockGateway{}, testConfig())

	_, err := svc.Create(context.Background(), CreateRequest{
		Contact:       testContact(),
		PaymentMethod: PaymentCashOnDelivery,
	})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreate_CashOnDelivery(t *testing.T) {
	repo := newMockOrderRepo()
	gw := &mockGateway{}
	svc := NewService(repo, gw, testConfig())

	result, err := svc.Create(context.Background(), CreateRequest{
		OwnerID:       "user-1",
		Contact:       testContact(),
		Items:         testRawItems(),
		PaymentMethod: PaymentCashOnDelivery,
	})

	require.NoError(t, err)
	assert.Empty(t, gw.createCalls, "COD must not touch the gateway")
	assert.Empty(t, result.CheckoutURL)

	o := result.Order
	assert.True(t, len(o.ID) > 4 && o.ID[:4] == "ORD-")
	assert.Equal(t, "user-1", o.OwnerID)
	assert.Equal(t, PaymentCashOnDelivery, o.PaymentMethod)
	assert.Equal(t, PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, StatusPending, o.Status)
	assert.Empty(t, o.SessionRef)
	assert.True(t, decimal.RequireFromString("270.00").Equal(o.Amounts.FinalAmount))

	stored, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)
}

func TestCreate_Online(t *testing.T) {
	repo := newMockOrderRepo()
	gw := &mockGateway{
		session: &payment.CheckoutSession{
			SessionID:   "cs_test_123",
			CheckoutURL: "https://checkout.stripe.test/cs_test_123",
			PaymentRef:  "pi_test_123",
		},
	}
	svc := NewService(repo, gw, testConfig())

	result, err := svc.Create(context.Background(), CreateRequest{
		Contact:       testContact(),
		Items:         testRawItems(),
		PaymentMethod: PaymentOnline,
	})
	require.NoError(t, err)

	require.Len(t, gw.createCalls, 1)
	req := gw.createCalls[0]
	assert.Equal(t, "inr", req.Currency)
	assert.Equal(t, "asha@example.com", req.CustomerEmail)
	assert.Equal(t, result.Order.ID, req.OrderID)

	// Two product lines in minor units plus one aggregate tax line.
	require.Len(t, req.LineItems, 3)
	assert.Equal(t, int64(10000), req.LineItems[0].UnitMinorAmount)
	assert.Equal(t, 2, req.LineItems[0].Quantity)
	assert.Equal(t, "Tax (8%)", req.LineItems[2].Name)
	assert.Equal(t, int64(2000), req.LineItems[2].UnitMinorAmount)
	assert.Equal(t, 1, req.LineItems[2].Quantity)

	assert.Equal(t, "https://checkout.stripe.test/cs_test_123", result.CheckoutURL)
	assert.Equal(t, "cs_test_123", result.Order.SessionRef)
	assert.Equal(t, "pi_test_123", result.Order.PaymentRef)

	stored, err := repo.GetBySessionRef(context.Background(), "cs_test_123")
	require.NoError(t, err)
	assert.Equal(t, result.Order.ID, stored.ID)
}

func TestCreate_UnknownMethodDefaultsToOnline(t *testing.T) {
	gw := &mockGateway{session: &payment.CheckoutSession{SessionID: "cs_1", CheckoutURL: "u"}}
	svc := NewService(newMockOrderRepo(), gw, testConfig())

	result, err := svc.Create(context.Background(), CreateRequest{
		Contact:       testContact(),
		Items:         testRawItems(),
		PaymentMethod: PaymentMethod("Barter"),
	})

	require.NoError(t, err)
	assert.Equal(t, PaymentOnline, result.Order.PaymentMethod)
	assert.Len(t, gw.createCalls, 1)
}

func TestCreate_NoTaxLineForFreeItems(t *testing.T) {
	gw := &mockGateway{session: &payment.CheckoutSession{SessionID: "cs_1"}}
	svc := NewService(newMockOrderRepo(), gw, testConfig())

	_, err := svc.Create(context.Background(), CreateRequest{
		Contact:       testContact(),
		Items:         []RawItem{{ProductID: "freebie", Name: "Sticker"}},
		PaymentMethod: PaymentOnline,
	})
	require.NoError(t, err)

	require.Len(t, gw.createCalls, 1)
	assert.Len(t, gw.createCalls[0].LineItems, 1, "zero tax must not add a tax line")
}

func TestCreate_GatewayFailure(t *testing.T) {
	repo := newMockOrderRepo()
	gw := &mockGateway{createErr: &payment.UpstreamError{Op: "create session", Err: errors.New("timeout")}}
	svc := NewService(repo, gw, testConfig())

	_, err := svc.Create(context.Background(), CreateRequest{
		Contact:       testContact(),
		Items:         testRawItems(),
		PaymentMethod: PaymentOnline,
	})

	var upErr *payment.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Empty(t, repo.orders, "no order may be persisted when the session was never created")
}

func TestCreate_PersistFailureAfterSession(t *testing.T) {
	repo := newMockOrderRepo()
	repo.createErr = ErrConflict
	gw := &mockGateway{session: &payment.CheckoutSession{SessionID: "cs_orphan"}}
	svc := NewService(repo, gw, testConfig())

	_, err := svc.Create(context.Background(), CreateRequest{
		Contact:       testContact(),
		Items:         testRawItems(),
		PaymentMethod: PaymentOnline,
	})

	require.ErrorIs(t, err, ErrConflict)
	// The session was issued before the store write; the orphaned session is
	// the accepted trade-off, the caller retries creation.
	assert.Len(t, gw.createCalls, 1)
}

// --- Reconciliation tests ---

func reconcileFixture(t *testing.T) (*Service, *mockOrderRepo, *mockGateway) {
	t.Helper()
	repo := newMockOrderRepo()
	gw := &mockGateway{
		session: &payment.CheckoutSession{
			SessionID:   "cs_paid",
			CheckoutURL: "https://checkout.stripe.test/cs_paid",
		},
	}
	svc := NewService(repo, gw, testConfig())

	_, err := svc.Create(context.Background(), CreateRequest{
		Contact:       testContact(),
		Items:         testRawItems(),
		PaymentMethod: PaymentOnline,
	})
	require.NoError(t, err)
	return svc, repo, gw
}

func TestReconcile_MissingSession(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockGateway{}, testConfig())

	_, err := svc.Reconcile(context.Background(), "")
	require.ErrorIs(t, err, ErrSessionRequired)
}

func TestReconcile_NotPaid(t *testing.T) {
	svc, repo, gw := reconcileFixture(t)
	gw.status = &payment.SessionStatus{Paid: false}

	_, err := svc.Reconcile(context.Background(), "cs_paid")
	require.ErrorIs(t, err, ErrPaymentIncomplete)

	stored, err := repo.GetBySessionRef(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.Equal(t, PaymentUnpaid, stored.PaymentStatus, "unpaid session must not change the order")
	assert.Equal(t, StatusPending, stored.Status)
}

func TestReconcile_Paid(t *testing.T) {
	svc, _, gw := reconcileFixture(t)
	gw.status = &payment.SessionStatus{Paid: true, PaymentRef: "pi_settled"}

	o, err := svc.Reconcile(context.Background(), "cs_paid")
	require.NoError(t, err)

	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, "pi_settled", o.PaymentRef)
}

func TestReconcile_Idempotent(t *testing.T) {
	svc, _, gw := reconcileFixture(t)
	gw.status = &payment.SessionStatus{Paid: true, PaymentRef: "pi_settled"}

	first, err := svc.Reconcile(context.Background(), "cs_paid")
	require.NoError(t, err)
	second, err := svc.Reconcile(context.Background(), "cs_paid")
	require.NoError(t, err)

	assert.Equal(t, first.PaymentStatus, second.PaymentStatus)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.PaymentRef, second.PaymentRef)
}

func TestReconcile_UnknownSession(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockGateway{
		status: &payment.SessionStatus{Paid: true, PaymentRef: "pi_x"},
	}, testConfig())

	_, err := svc.Reconcile(context.Background(), "cs_forged")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReconcile_GatewayFailure(t *testing.T) {
	svc, repo, gw := reconcileFixture(t)
	gw.retrieveErr = &payment.UpstreamError{Op: "retrieve session", StatusCode: 503, Err: errors.New("unavailable")}

	_, err := svc.Reconcile(context.Background(), "cs_paid")
	var upErr *payment.UpstreamError
	require.ErrorAs(t, err, &upErr)

	stored, err := repo.GetBySessionRef(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.Equal(t, PaymentUnpaid, stored.PaymentStatus)
}

// --- Administration tests ---

func TestTransition_FullLifecycle(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewService(repo, &mockGateway{}, testConfig())

	result, err := svc.Create(context.Background(), CreateRequest{
		Contact:       testContact(),
		Items:         testRawItems(),
		PaymentMethod: PaymentCashOnDelivery,
	})
	require.NoError(t, err)
	id := result.Order.ID

	for _, next := range []string{"Confirmed", "Processing", "Shipped", "Delivered"} {
		o, err := svc.Transition(context.Background(), id, next)
		require.NoError(t, err, "transition to %s", next)
		assert.Equal(t, Status(next), o.Status)
	}

	// Delivered is terminal.
	_, err = svc.Transition(context.Background(), id, "Processing")
	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusDelivered, itErr.From)
}

func TestTransition_MissingStatus(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockGateway{}, testConfig())

	_, err := svc.Transition(context.Background(), "ORD-x", "")
	require.ErrorIs(t, err, ErrStatusRequired)
}

func TestTransition_UnknownStatus(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockGateway{}, testConfig())

	_, err := svc.Transition(context.Background(), "ORD-x", "Lost")
	var unknownErr *UnknownStatusError
	require.ErrorAs(t, err, &unknownErr)
}

func TestTransition_OrderNotFound(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockGateway{}, testConfig())

	_, err := svc.Transition(context.Background(), "ORD-missing", "Confirmed")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListMine_RequiresOwner(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockGateway{}, testConfig())

	_, err := svc.ListMine(context.Background(), "")
	require.ErrorIs(t, err, ErrOwnerRequired)
}

func TestListAll_RejectsUnknownStatusFilter(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockGateway{}, testConfig())

	_, err := svc.ListAll(context.Background(), Filter{Status: "Bogus"})
	var unknownErr *UnknownStatusError
	require.ErrorAs(t, err, &unknownErr)
}

func TestDelete_NotFound(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockGateway{}, testConfig())

	err := svc.Delete(context.Background(), "ORD-missing")
	require.ErrorIs(t, err, ErrNotFound)
}
