package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-service/internal/addresses"
	"storefront-service/internal/cart"
	"storefront-service/internal/coupons"
	"storefront-service/internal/orders"
	"storefront-service/internal/pricing"
	"storefront-service/internal/stores/kafka"
	"storefront-service/internal/wallet"
)

var (
	// ErrNoSession means no checkout is in progress for the user.
	ErrNoSession = errors.New("no checkout session")
	// ErrEmptyCart blocks checkout entry entirely; the handler redirects away.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoAddress blocks checkout entry; the handler redirects to address management.
	ErrNoAddress = errors.New("no saved addresses")
	// ErrNotReady is returned for Ready-only mutations issued in another state.
	ErrNotReady = errors.New("checkout is not ready")
	// ErrSubmitInProgress rejects a second submission while one is in flight.
	// This guard is what keeps a double-click down to exactly one order call.
	ErrSubmitInProgress = errors.New("order submission already in progress")
	// ErrNotConfirming is returned when Confirm/Cancel is called outside the
	// cash-on-delivery confirmation step.
	ErrNotConfirming = errors.New("no confirmation pending")
	// ErrNotAwaitingVerification is returned when VerifyPayment is called
	// without a pending card payment.
	ErrNotAwaitingVerification = errors.New("no payment awaiting verification")
	// ErrWalletIneligible rejects selecting wallet when the balance cannot
	// cover the current total.
	ErrWalletIneligible = errors.New("wallet balance below payable total")
	// ErrInvalidPaymentMode rejects unknown payment modes.
	ErrInvalidPaymentMode = errors.New("invalid payment mode")
	// ErrAddressNotFound rejects selecting an address outside the fetched list.
	ErrAddressNotFound = errors.New("address not found")
)

// CartGateway is the slice of the cart store the orchestrator needs.
type CartGateway interface {
	Load(ctx context.Context, userID, authHeader string) (cart.Cart, error)
	Clear(ctx context.Context, userID, authHeader string) error
}

// CouponSource fetches and resolves coupons for a user.
type CouponSource interface {
	FetchEligible(ctx context.Context, userID, authHeader string, subtotal decimal.Decimal) ([]coupons.Coupon, error)
	Select(userID, couponID string, subtotal decimal.Decimal) (*coupons.Coupon, error)
}

// AddressSource fetches the user's saved addresses.
type AddressSource interface {
	FetchAddresses(ctx context.Context, authHeader string) ([]addresses.Address, error)
}

// BalanceSource fetches the user's wallet balance.
type BalanceSource interface {
	FetchBalance(ctx context.Context, authHeader string) (decimal.Decimal, error)
}

// OrderService creates and finalizes orders on the backend.
type OrderService interface {
	CreateOrder(ctx context.Context, authHeader string, order orders.CreateOrderRequest) (*orders.Confirmation, error)
	VerifyPayment(ctx context.Context, authHeader string, verify orders.VerifyPaymentRequest) error
}

// EventProducer publishes order-placed events. Nil-safe via noopProducer.
type EventProducer interface {
	ProduceMessage(topic string, key, value []byte) error
}

// Orchestrator drives the checkout state machine:
// Loading -> Ready -> Confirming -> Submitting -> {Success, Failed}.
// All session access for a user is serialized through a per-user mutex, so
// overlapping requests observe a consistent state and at most one order
// submission ever leaves Ready.
type Orchestrator struct {
	carts    CartGateway
	coupons  CouponSource
	addrs    AddressSource
	balances BalanceSource
	orders   OrderService
	events   EventProducer
	sessions SessionStore

	locks sync.Map // userID -> *sync.Mutex
}

func NewOrchestrator(carts CartGateway, coupons CouponSource, addrs AddressSource,
	balances BalanceSource, orderSvc OrderService, events EventProducer, sessions SessionStore) *Orchestrator {

	if events == nil {
		events = noopProducer{}
	}
	return &Orchestrator{
		carts:    carts,
		coupons:  coupons,
		addrs:    addrs,
		balances: balances,
		orders:   orderSvc,
		events:   events,
		sessions: sessions,
	}
}

func (o *Orchestrator) userLock(userID string) *sync.Mutex {
	mu, _ := o.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Start enters checkout: loads the cart, then fetches addresses, eligible
// coupons and the wallet balance concurrently. The three fetches are
// independent; checkout is simply blocked until all of them resolve.
// An existing session for the user is replaced.
func (o *Orchestrator) Start(ctx context.Context, userID, authHeader string) (*Session, error) {
	mu := o.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	loaded, err := o.carts.Load(ctx, userID, authHeader)
	if err != nil {
		return nil, err
	}
	if len(loaded.Items) == 0 || !loaded.TotalPrice.IsPositive() {
		return nil, ErrEmptyCart
	}
	subtotal := loaded.TotalPrice

	var (
		wg         sync.WaitGroup
		addrList   []addresses.Address
		couponList []coupons.Coupon
		balance    decimal.Decimal
		addrErr    error
		couponErr  error
		walletErr  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		addrList, addrErr = o.addrs.FetchAddresses(ctx, authHeader)
	}()
	go func() {
		defer wg.Done()
		couponList, couponErr = o.coupons.FetchEligible(ctx, userID, authHeader, subtotal)
	}()
	go func() {
		defer wg.Done()
		balance, walletErr = o.balances.FetchBalance(ctx, authHeader)
	}()
	wg.Wait()

	if addrErr != nil {
		return nil, fmt.Errorf("failed to fetch addresses: %w", addrErr)
	}
	if len(addrList) == 0 {
		return nil, ErrNoAddress
	}
	if couponErr != nil {
		// Coupons are optional at entry; checkout proceeds without them.
		slog.Error("failed to fetch eligible coupons", slog.String("user_id", userID), slog.String("error", couponErr.Error()))
		couponList = nil
	}
	if walletErr != nil {
		// A missing balance only disables the wallet option.
		slog.Error("failed to fetch wallet balance", slog.String("user_id", userID), slog.String("error", walletErr.Error()))
		balance = decimal.Zero
	}

	now := time.Now().UTC()
	session := &Session{
		ID:                uuid.NewString(),
		UserID:            userID,
		State:             StateReady,
		Cart:              loaded,
		Subtotal:          subtotal,
		Addresses:         addrList,
		SelectedAddressID: addrList[0].ID,
		EligibleCoupons:   couponList,
		Discount:          decimal.Zero,
		Total:             subtotal,
		WalletBalance:     balance,
		WalletEligible:    wallet.IsEligible(balance, subtotal),
		PaymentMode:       orders.PaymentCashOnDelivery,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := o.sessions.Put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the current session.
func (o *Orchestrator) Get(ctx context.Context, userID string) (*Session, error) {
	session, err := o.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	return session, nil
}

// SelectAddress changes the delivery address. Ready-state only; no network.
func (o *Orchestrator) SelectAddress(ctx context.Context, userID, addressID string) (*Session, error) {
	return o.mutateReady(ctx, userID, func(s *Session) error {
		for _, a := range s.Addresses {
			if a.ID == addressID {
				s.SelectedAddressID = addressID
				return nil
			}
		}
		return ErrAddressNotFound
	})
}

// SelectPaymentMode changes the payment mode. Wallet is only selectable while
// the gate reports it eligible.
func (o *Orchestrator) SelectPaymentMode(ctx context.Context, userID string, mode orders.PaymentMode) (*Session, error) {
	return o.mutateReady(ctx, userID, func(s *Session) error {
		if !mode.Valid() {
			return ErrInvalidPaymentMode
		}
		if mode == orders.PaymentWallet && !s.WalletEligible {
			return ErrWalletIneligible
		}
		s.PaymentMode = mode
		return nil
	})
}

// ApplyCoupon selects a coupon from the eligible list and reprices the
// session via the pricing engine. A rejection leaves totals unchanged.
func (o *Orchestrator) ApplyCoupon(ctx context.Context, userID, couponID string) (*Session, error) {
	return o.mutateReady(ctx, userID, func(s *Session) error {
		coupon, err := o.coupons.Select(userID, couponID, s.Subtotal)
		if err != nil {
			return err
		}
		quote, err := pricing.ComputeTotal(s.Subtotal, coupon)
		if err != nil {
			return err
		}
		s.Coupon = coupon
		s.Discount = quote.Discount
		s.Total = quote.Total
		o.reprice(s)
		return nil
	})
}

// RemoveCoupon resets the discount to zero and the total to the raw subtotal.
func (o *Orchestrator) RemoveCoupon(ctx context.Context, userID string) (*Session, error) {
	return o.mutateReady(ctx, userID, func(s *Session) error {
		s.Coupon = nil
		s.Discount = decimal.Zero
		s.Total = s.Subtotal
		o.reprice(s)
		return nil
	})
}

// reprice re-runs the wallet gate after a total change. A wallet selection
// that turned ineligible falls back to cash on delivery so the session never
// sits on an invalid payment mode.
func (o *Orchestrator) reprice(s *Session) {
	s.WalletEligible = wallet.IsEligible(s.WalletBalance, s.Total)
	if s.PaymentMode == orders.PaymentWallet && !s.WalletEligible {
		s.PaymentMode = orders.PaymentCashOnDelivery
	}
}

// PlaceOrder leaves Ready. Cash on delivery moves to Confirming and waits for
// the explicit confirmation; card and wallet submit immediately. While a
// submission is in flight every further call returns ErrSubmitInProgress.
func (o *Orchestrator) PlaceOrder(ctx context.Context, userID, authHeader string) (*Session, error) {
	mu := o.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	session, err := o.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}

	switch session.State {
	case StateSubmitting:
		return nil, ErrSubmitInProgress
	case StateReady:
	default:
		return nil, ErrNotReady
	}

	switch session.PaymentMode {
	case orders.PaymentCashOnDelivery:
		session.State = StateConfirming
		session.UpdatedAt = time.Now().UTC()
		if err := o.sessions.Put(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	case orders.PaymentWallet:
		if !session.WalletEligible {
			// Should not happen: selection is gated. Fall back rather than
			// submitting an order the wallet cannot cover.
			session.PaymentMode = orders.PaymentCashOnDelivery
			session.UpdatedAt = time.Now().UTC()
			if err := o.sessions.Put(ctx, session); err != nil {
				return nil, err
			}
			return nil, ErrWalletIneligible
		}
		return o.submit(ctx, session, authHeader)
	case orders.PaymentCard:
		return o.submit(ctx, session, authHeader)
	default:
		return nil, ErrInvalidPaymentMode
	}
}

// Confirm finishes the cash-on-delivery confirmation dialog and submits.
func (o *Orchestrator) Confirm(ctx context.Context, userID, authHeader string) (*Session, error) {
	mu := o.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	session, err := o.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	if session.State == StateSubmitting {
		return nil, ErrSubmitInProgress
	}
	if session.State != StateConfirming {
		return nil, ErrNotConfirming
	}
	return o.submit(ctx, session, authHeader)
}

// Cancel backs out of the confirmation dialog to Ready.
func (o *Orchestrator) Cancel(ctx context.Context, userID string) (*Session, error) {
	mu := o.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	session, err := o.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	if session.State != StateConfirming {
		return nil, ErrNotConfirming
	}

	session.State = StateReady
	session.UpdatedAt = time.Now().UTC()
	if err := o.sessions.Put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// submit issues the single order-creation call. The session is parked in
// Submitting before the call so a concurrent PlaceOrder sees the in-flight
// state even with a shared session store.
func (o *Orchestrator) submit(ctx context.Context, session *Session, authHeader string) (*Session, error) {
	session.State = StateSubmitting
	session.LastError = ""
	session.UpdatedAt = time.Now().UTC()
	if err := o.sessions.Put(ctx, session); err != nil {
		return nil, err
	}

	items := make([]orders.OrderItem, 0, len(session.Cart.Items))
	for _, item := range session.Cart.Items {
		items = append(items, orders.OrderItem{VariantID: item.VariantID, Quantity: item.Quantity})
	}

	conf, err := o.orders.CreateOrder(ctx, authHeader, orders.CreateOrderRequest{
		OrderID:     session.ID,
		AddressID:   session.SelectedAddressID,
		PaymentMode: session.PaymentMode,
		Items:       items,
		TotalPrice:  session.Total,
		CouponID:    session.CouponID(),
	})
	if err != nil {
		// Order not created; surface the error and return to Ready.
		session.State = StateReady
		session.LastError = err.Error()
		session.UpdatedAt = time.Now().UTC()
		if putErr := o.sessions.Put(ctx, session); putErr != nil {
			return nil, putErr
		}
		return nil, err
	}

	session.OrderID = conf.OrderID

	if session.PaymentMode == orders.PaymentCard {
		// Stay in Submitting until the gateway callback is verified.
		session.GatewaySession = conf.GatewaySession
		session.UpdatedAt = time.Now().UTC()
		if err := o.sessions.Put(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}

	return o.succeed(ctx, session, authHeader)
}

// VerifyPayment confirms the card payment server-side after the gateway
// widget calls back. Verified moves to Success; a failed verification moves
// to Failed and is never retried automatically.
func (o *Orchestrator) VerifyPayment(ctx context.Context, userID, authHeader string, verify orders.VerifyPaymentRequest) (*Session, error) {
	mu := o.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	session, err := o.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	if session.State != StateSubmitting || session.PaymentMode != orders.PaymentCard || session.GatewaySession == nil {
		return nil, ErrNotAwaitingVerification
	}

	if err := o.orders.VerifyPayment(ctx, authHeader, verify); err != nil {
		session.State = StateFailed
		session.LastError = err.Error()
		session.UpdatedAt = time.Now().UTC()
		if putErr := o.sessions.Put(ctx, session); putErr != nil {
			return nil, putErr
		}
		return nil, err
	}

	return o.succeed(ctx, session, authHeader)
}

// succeed finalizes the session: cart cleared, event published, Success.
func (o *Orchestrator) succeed(ctx context.Context, session *Session, authHeader string) (*Session, error) {
	if err := o.carts.Clear(ctx, session.UserID, authHeader); err != nil {
		// The order exists; a stale cart is recoverable on next load.
		slog.Error("failed to clear cart after order placement",
			slog.String("user_id", session.UserID), slog.String("order_id", session.OrderID),
			slog.String("error", err.Error()))
	}

	event := kafka.OrderPlacedEvent{
		OrderID:     session.OrderID,
		UserID:      session.UserID,
		PaymentMode: string(session.PaymentMode),
		TotalPrice:  session.Total.String(),
		CouponID:    session.CouponID(),
		CreatedAt:   time.Now().UTC(),
	}
	if data, err := json.Marshal(event); err == nil {
		if err := o.events.ProduceMessage(kafka.TopicOrderPlaced, []byte(session.OrderID), data); err != nil {
			slog.Error("failed to produce order-placed event",
				slog.String("order_id", session.OrderID), slog.String("error", err.Error()))
		}
	}

	session.State = StateSuccess
	session.UpdatedAt = time.Now().UTC()
	if err := o.sessions.Put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// mutateReady applies a Ready-state-only mutation under the user lock.
func (o *Orchestrator) mutateReady(ctx context.Context, userID string, fn func(*Session) error) (*Session, error) {
	mu := o.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	session, err := o.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	if session.State != StateReady {
		return nil, ErrNotReady
	}

	if err := fn(session); err != nil {
		return nil, err
	}

	session.UpdatedAt = time.Now().UTC()
	if err := o.sessions.Put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

type noopProducer struct{}

func (noopProducer) ProduceMessage(string, []byte, []byte) error { return nil }
