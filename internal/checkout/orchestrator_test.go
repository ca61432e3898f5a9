package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/addresses"
	"storefront-service/internal/cart"
	"storefront-service/internal/coupons"
	"storefront-service/internal/orders"
	"storefront-service/internal/pricing"
)

const (
	testUser = "u1"
	testAuth = "Bearer test-token"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeCarts struct {
	cart       cart.Cart
	loadErr    error
	clearCalls atomic.Int32
}

func (f *fakeCarts) Load(_ context.Context, _, _ string) (cart.Cart, error) {
	return f.cart, f.loadErr
}

func (f *fakeCarts) Clear(_ context.Context, _, _ string) error {
	f.clearCalls.Add(1)
	return nil
}

type fakeCoupons struct {
	list     []coupons.Coupon
	fetchErr error
}

func (f *fakeCoupons) FetchEligible(_ context.Context, _, _ string, _ decimal.Decimal) ([]coupons.Coupon, error) {
	return f.list, f.fetchErr
}

func (f *fakeCoupons) Select(_, couponID string, subtotal decimal.Decimal) (*coupons.Coupon, error) {
	for i := range f.list {
		if f.list[i].ID == couponID {
			if subtotal.LessThan(f.list[i].MinOrderValue) {
				return nil, coupons.ErrBelowMinOrder
			}
			c := f.list[i]
			return &c, nil
		}
	}
	return nil, coupons.ErrCouponNotFound
}

type fakeAddrs struct {
	list     []addresses.Address
	fetchErr error
}

func (f *fakeAddrs) FetchAddresses(_ context.Context, _ string) ([]addresses.Address, error) {
	return f.list, f.fetchErr
}

type fakeBalance struct {
	balance  decimal.Decimal
	fetchErr error
}

func (f *fakeBalance) FetchBalance(_ context.Context, _ string) (decimal.Decimal, error) {
	return f.balance, f.fetchErr
}

type fakeOrders struct {
	createCalls atomic.Int32
	createErr   error
	verifyErr   error
	gateway     *orders.GatewaySession
	lastRequest orders.CreateOrderRequest
	block       chan struct{} // when set, CreateOrder waits until closed
	mu          sync.Mutex
}

func (f *fakeOrders) CreateOrder(_ context.Context, _ string, req orders.CreateOrderRequest) (*orders.Confirmation, error) {
	f.createCalls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	f.lastRequest = req
	f.mu.Unlock()

	status := orders.StatusPlaced
	if req.PaymentMode == orders.PaymentCard {
		status = orders.StatusPendingPayment
	}
	return &orders.Confirmation{
		OrderID:        req.OrderID,
		Status:         status,
		TotalPrice:     req.TotalPrice,
		GatewaySession: f.gateway,
	}, nil
}

func (f *fakeOrders) VerifyPayment(_ context.Context, _ string, _ orders.VerifyPaymentRequest) error {
	return f.verifyErr
}

type fakeEvents struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakeEvents) ProduceMessage(topic string, _, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return nil
}

type fixture struct {
	carts  *fakeCarts
	coups  *fakeCoupons
	addrs  *fakeAddrs
	bal    *fakeBalance
	orders *fakeOrders
	events *fakeEvents
	orch   *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		carts: &fakeCarts{
			cart: cart.Cart{
				Items: []cart.LineItem{
					{VariantID: "v1", ProductName: "Milk", UnitPrice: dec("250"), Quantity: 2},
					{VariantID: "v2", ProductName: "Bread", UnitPrice: dec("500"), Quantity: 1},
				},
				TotalPrice: dec("1000"),
			},
		},
		coups: &fakeCoupons{
			list: []coupons.Coupon{
				{ID: "c1", Code: "FLAT200", DiscountType: coupons.DiscountFlat,
					DiscountValue: dec("200"), MinOrderValue: dec("500"), IsActive: true},
				{ID: "c2", Code: "SAVE30", DiscountType: coupons.DiscountPercentage,
					DiscountValue: dec("30"), MinOrderValue: dec("500"), MaxDiscount: dec("250"), IsActive: true},
			},
		},
		addrs: &fakeAddrs{
			list: []addresses.Address{
				{ID: "a1", City: "Bengaluru", Pincode: "560001"},
				{ID: "a2", City: "Mumbai", Pincode: "400001"},
			},
		},
		bal:    &fakeBalance{balance: dec("1200")},
		orders: &fakeOrders{},
		events: &fakeEvents{},
	}
	f.orch = NewOrchestrator(f.carts, f.coups, f.addrs, f.bal, f.orders, f.events, NewMemoryStore())
	return f
}

func (f *fixture) start(t *testing.T) *Session {
	t.Helper()
	session, err := f.orch.Start(context.Background(), testUser, testAuth)
	require.NoError(t, err)
	return session
}

func TestStartDefaults(t *testing.T) {
	f := newFixture()
	session := f.start(t)

	assert.Equal(t, StateReady, session.State)
	assert.Equal(t, "a1", session.SelectedAddressID, "first address is preselected")
	assert.Equal(t, orders.PaymentCashOnDelivery, session.PaymentMode)
	assert.True(t, session.Total.Equal(dec("1000")), "total starts at the subtotal")
	assert.True(t, session.Discount.IsZero())
	assert.Len(t, session.EligibleCoupons, 2)
	assert.True(t, session.WalletEligible, "balance 1200 covers total 1000")
	assert.Nil(t, session.Coupon)
}

func TestStartEmptyCart(t *testing.T) {
	f := newFixture()
	f.carts.cart = cart.Cart{}

	_, err := f.orch.Start(context.Background(), testUser, testAuth)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestStartNoAddress(t *testing.T) {
	f := newFixture()
	f.addrs.list = nil

	_, err := f.orch.Start(context.Background(), testUser, testAuth)
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestStartDegradesWithoutCouponsAndWallet(t *testing.T) {
	f := newFixture()
	f.coups.fetchErr = errors.New("coupon service down")
	f.bal.fetchErr = errors.New("wallet service down")

	session := f.start(t)

	assert.Equal(t, StateReady, session.State, "checkout still opens")
	assert.Empty(t, session.EligibleCoupons)
	assert.False(t, session.WalletEligible, "an unknown balance disables the wallet option")
}

func TestStartReplacesExistingSession(t *testing.T) {
	f := newFixture()
	first := f.start(t)
	second := f.start(t)

	assert.NotEqual(t, first.ID, second.ID)

	current, err := f.orch.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
}

func TestGetWithoutSession(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Get(context.Background(), testUser)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSelectAddress(t *testing.T) {
	f := newFixture()
	f.start(t)

	session, err := f.orch.SelectAddress(context.Background(), testUser, "a2")
	require.NoError(t, err)
	assert.Equal(t, "a2", session.SelectedAddressID)

	_, err = f.orch.SelectAddress(context.Background(), testUser, "nope")
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestSelectPaymentMode(t *testing.T) {
	f := newFixture()
	f.bal.balance = dec("500") // below the 1000 total
	f.start(t)

	_, err := f.orch.SelectPaymentMode(context.Background(), testUser, orders.PaymentWallet)
	assert.ErrorIs(t, err, ErrWalletIneligible)

	_, err = f.orch.SelectPaymentMode(context.Background(), testUser, "gift_card")
	assert.ErrorIs(t, err, ErrInvalidPaymentMode)

	session, err := f.orch.SelectPaymentMode(context.Background(), testUser, orders.PaymentCard)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentCard, session.PaymentMode)
}

func TestApplyAndRemoveCoupon(t *testing.T) {
	f := newFixture()
	f.start(t)

	session, err := f.orch.ApplyCoupon(context.Background(), testUser, "c1")
	require.NoError(t, err)
	assert.True(t, session.Discount.Equal(dec("200")))
	assert.True(t, session.Total.Equal(dec("800")))
	assert.Equal(t, "FLAT200", session.Coupon.Code)

	// Switching coupons replaces, never stacks.
	session, err = f.orch.ApplyCoupon(context.Background(), testUser, "c2")
	require.NoError(t, err)
	assert.True(t, session.Discount.Equal(dec("250")), "30%% of 1000 capped at 250")
	assert.True(t, session.Total.Equal(dec("750")))

	session, err = f.orch.RemoveCoupon(context.Background(), testUser)
	require.NoError(t, err)
	assert.Nil(t, session.Coupon)
	assert.True(t, session.Discount.IsZero())
	assert.True(t, session.Total.Equal(dec("1000")))
}

func TestApplyCouponRejectionLeavesTotals(t *testing.T) {
	f := newFixture()
	f.start(t)

	_, err := f.orch.ApplyCoupon(context.Background(), testUser, "unknown")
	assert.ErrorIs(t, err, coupons.ErrCouponNotFound)

	session, err := f.orch.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Nil(t, session.Coupon)
	assert.True(t, session.Total.Equal(dec("1000")))
}

func TestWalletFallbackOnCouponRemoval(t *testing.T) {
	f := newFixture()
	f.bal.balance = dec("800") // covers 800, not 1000
	f.start(t)

	// Coupon brings the total down to 800; the wallet becomes selectable.
	_, err := f.orch.ApplyCoupon(context.Background(), testUser, "c1")
	require.NoError(t, err)

	session, err := f.orch.SelectPaymentMode(context.Background(), testUser, orders.PaymentWallet)
	require.NoError(t, err)
	assert.True(t, session.WalletEligible)

	// Removing the coupon raises the total past the balance; the session must
	// not sit on an uncoverable wallet selection.
	session, err = f.orch.RemoveCoupon(context.Background(), testUser)
	require.NoError(t, err)
	assert.False(t, session.WalletEligible)
	assert.Equal(t, orders.PaymentCashOnDelivery, session.PaymentMode)
}

func TestCashOnDeliveryFlow(t *testing.T) {
	f := newFixture()
	f.start(t)

	session, err := f.orch.PlaceOrder(context.Background(), testUser, testAuth)
	require.NoError(t, err)
	assert.Equal(t, StateConfirming, session.State)
	assert.Equal(t, int32(0), f.orders.createCalls.Load(), "no order before confirmation")

	session, err = f.orch.Confirm(context.Background(), testUser, testAuth)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, session.State)
	assert.Equal(t, int32(1), f.orders.createCalls.Load())
	assert.Equal(t, int32(1), f.carts.clearCalls.Load())
	assert.Equal(t, []string{"storefront.order-placed"}, f.events.topics)

	f.orders.mu.Lock()
	req := f.orders.lastRequest
	f.orders.mu.Unlock()
	assert.Equal(t, orders.PaymentCashOnDelivery, req.PaymentMode)
	assert.Len(t, req.Items, 2)
	assert.True(t, req.TotalPrice.Equal(dec("1000")))
}

func TestCancelConfirmation(t *testing.T) {
	f := newFixture()
	f.start(t)

	_, err := f.orch.PlaceOrder(context.Background(), testUser, testAuth)
	require.NoError(t, err)

	session, err := f.orch.Cancel(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, StateReady, session.State)
	assert.Equal(t, int32(0), f.orders.createCalls.Load())

	_, err = f.orch.Cancel(context.Background(), testUser)
	assert.ErrorIs(t, err, ErrNotConfirming)
}

func TestMutationsRejectedOutsideReady(t *testing.T) {
	f := newFixture()
	f.start(t)

	_, err := f.orch.PlaceOrder(context.Background(), testUser, testAuth)
	require.NoError(t, err) // now Confirming

	_, err = f.orch.SelectAddress(context.Background(), testUser, "a2")
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = f.orch.ApplyCoupon(context.Background(), testUser, "c1")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestWalletFlowSubmitsImmediately(t *testing.T) {
	f := newFixture()
	f.start(t)

	_, err := f.orch.SelectPaymentMode(context.Background(), testUser, orders.PaymentWallet)
	require.NoError(t, err)

	session, err := f.orch.PlaceOrder(context.Background(), testUser, testAuth)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, session.State, "wallet needs no confirmation step")
	assert.Equal(t, int32(1), f.orders.createCalls.Load())
}

func TestCardFlow(t *testing.T) {
	f := newFixture()
	f.orders.gateway = &orders.GatewaySession{GatewayOrderID: "gw1", SessionID: "s1"}
	f.start(t)

	_, err := f.orch.SelectPaymentMode(context.Background(), testUser, orders.PaymentCard)
	require.NoError(t, err)

	session, err := f.orch.PlaceOrder(context.Background(), testUser, testAuth)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitting, session.State, "card waits for gateway verification")
	require.NotNil(t, session.GatewaySession)
	assert.Equal(t, "gw1", session.GatewaySession.GatewayOrderID)
	assert.Equal(t, int32(0), f.carts.clearCalls.Load(), "cart survives until the payment verifies")

	session, err = f.orch.VerifyPayment(context.Background(), testUser, testAuth,
		orders.VerifyPaymentRequest{GatewayOrderID: "gw1", PaymentID: "p1", Signature: "sig"})
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, session.State)
	assert.Equal(t, int32(1), f.carts.clearCalls.Load())
}

func TestCardVerificationFailure(t *testing.T) {
	f := newFixture()
	f.orders.gateway = &orders.GatewaySession{GatewayOrderID: "gw1"}
	f.start(t)

	_, err := f.orch.SelectPaymentMode(context.Background(), testUser, orders.PaymentCard)
	require.NoError(t, err)
	_, err = f.orch.PlaceOrder(context.Background(), testUser, testAuth)
	require.NoError(t, err)

	f.orders.verifyErr = orders.ErrVerificationFailed
	_, err = f.orch.VerifyPayment(context.Background(), testUser, testAuth, orders.VerifyPaymentRequest{})
	assert.ErrorIs(t, err, orders.ErrVerificationFailed)

	session, getErr := f.orch.Get(context.Background(), testUser)
	require.NoError(t, getErr)
	assert.Equal(t, StateFailed, session.State)
	assert.Equal(t, int32(0), f.carts.clearCalls.Load(), "a failed payment keeps the cart")

	// Terminal: no second verification attempt.
	_, err = f.orch.VerifyPayment(context.Background(), testUser, testAuth, orders.VerifyPaymentRequest{})
	assert.ErrorIs(t, err, ErrNotAwaitingVerification)
}

func TestVerifyWithoutPendingPayment(t *testing.T) {
	f := newFixture()
	f.start(t)

	_, err := f.orch.VerifyPayment(context.Background(), testUser, testAuth, orders.VerifyPaymentRequest{})
	assert.ErrorIs(t, err, ErrNotAwaitingVerification)
}

func TestSubmitFailureReturnsToReady(t *testing.T) {
	f := newFixture()
	f.orders.createErr = errors.New("order service unavailable")
	f.start(t)

	_, err := f.orch.SelectPaymentMode(context.Background(), testUser, orders.PaymentWallet)
	require.NoError(t, err)

	_, err = f.orch.PlaceOrder(context.Background(), testUser, testAuth)
	require.Error(t, err)

	session, getErr := f.orch.Get(context.Background(), testUser)
	require.NoError(t, getErr)
	assert.Equal(t, StateReady, session.State, "a failed create is retryable")
	assert.Contains(t, session.LastError, "unavailable")

	// Retry succeeds once the service recovers.
	f.orders.createErr = nil
	session, err = f.orch.PlaceOrder(context.Background(), testUser, testAuth)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, session.State)
	assert.Equal(t, int32(2), f.orders.createCalls.Load())
}

func TestConcurrentPlaceOrderSubmitsOnce(t *testing.T) {
	f := newFixture()
	f.orders.gateway = &orders.GatewaySession{GatewayOrderID: "gw1"}
	f.orders.block = make(chan struct{})
	f.start(t)

	_, err := f.orch.SelectPaymentMode(context.Background(), testUser, orders.PaymentCard)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orch.PlaceOrder(context.Background(), testUser, testAuth)
		}(i)
	}

	// Let the first call reach the blocked order service, then release it so
	// the second, queued call observes the in-flight submission.
	for f.orders.createCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	close(f.orders.block)
	wg.Wait()

	assert.Equal(t, int32(1), f.orders.createCalls.Load(), "a double click must create exactly one order")

	var succeeded, rejected int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if errors.Is(err, ErrSubmitInProgress) {
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
}

func TestDoubleConfirmSubmitsOnce(t *testing.T) {
	f := newFixture()
	f.start(t)

	_, err := f.orch.PlaceOrder(context.Background(), testUser, testAuth)
	require.NoError(t, err)

	_, err = f.orch.Confirm(context.Background(), testUser, testAuth)
	require.NoError(t, err)

	_, err = f.orch.Confirm(context.Background(), testUser, testAuth)
	assert.ErrorIs(t, err, ErrNotConfirming)
	assert.Equal(t, int32(1), f.orders.createCalls.Load())
}

func TestOrderRequestCarriesCouponAndSessionID(t *testing.T) {
	f := newFixture()
	f.start(t)

	_, err := f.orch.ApplyCoupon(context.Background(), testUser, "c1")
	require.NoError(t, err)
	_, err = f.orch.SelectPaymentMode(context.Background(), testUser, orders.PaymentWallet)
	require.NoError(t, err)

	session, err := f.orch.PlaceOrder(context.Background(), testUser, testAuth)
	require.NoError(t, err)

	f.orders.mu.Lock()
	req := f.orders.lastRequest
	f.orders.mu.Unlock()
	assert.Equal(t, session.ID, req.OrderID, "the session id doubles as the dedupe key")
	assert.Equal(t, "c1", req.CouponID)
	assert.True(t, req.TotalPrice.Equal(dec("800")))

	// A quote that can't be computed never reaches this point, so the pure
	// engine agrees with what was submitted.
	quote, err := pricing.ComputeTotal(dec("1000"), session.Coupon)
	require.NoError(t, err)
	assert.True(t, quote.Total.Equal(req.TotalPrice))
}
