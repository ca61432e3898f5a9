package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-service/internal/auth"
	"storefront-service/internal/checkout"
	"storefront-service/internal/coupons"
	"storefront-service/internal/orders"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"
)

func (h *Handler) StartCheckout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	session, err := h.orch.Start(c.Request.Context(), claims.Subject, c.Request.Header.Get("Authorization"))
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			// Never enter checkout on an empty cart; send the user back.
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Cart is empty", "redirect": "/"})
		case errors.Is(err, checkout.ErrNoAddress):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "No saved addresses", "redirect": "/account/addresses"})
		default:
			slog.Error("error starting checkout", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Failed to start checkout"})
		}
		return
	}

	slog.Info("checkout started", slog.String(logkey.TraceID, traceId),
		slog.String("SessionID", session.ID), slog.String("UserID", claims.Subject))

	c.JSON(http.StatusOK, session)
}

func (h *Handler) GetCheckout(c *gin.Context) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	session, err := h.orch.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, checkout.ErrNoSession) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No checkout in progress"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch checkout"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) SelectAddress(c *gin.Context) {
	h.sessionMutation(c, func(userID string, req sessionMutationRequest) (*checkout.Session, error) {
		return h.orch.SelectAddress(c.Request.Context(), userID, req.AddressID)
	})
}

func (h *Handler) SelectPaymentMode(c *gin.Context) {
	h.sessionMutation(c, func(userID string, req sessionMutationRequest) (*checkout.Session, error) {
		return h.orch.SelectPaymentMode(c.Request.Context(), userID, orders.PaymentMode(req.PaymentMode))
	})
}

func (h *Handler) ApplyCoupon(c *gin.Context) {
	h.sessionMutation(c, func(userID string, req sessionMutationRequest) (*checkout.Session, error) {
		return h.orch.ApplyCoupon(c.Request.Context(), userID, req.CouponID)
	})
}

func (h *Handler) RemoveCoupon(c *gin.Context) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	session, err := h.orch.RemoveCoupon(c.Request.Context(), claims.Subject)
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	session, err := h.orch.PlaceOrder(c.Request.Context(), claims.Subject, c.Request.Header.Get("Authorization"))
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}

	slog.Info("order placement advanced", slog.String(logkey.TraceID, traceId),
		slog.String("UserID", claims.Subject), slog.String("State", string(session.State)))

	c.JSON(http.StatusOK, session)
}

func (h *Handler) ConfirmOrder(c *gin.Context) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	session, err := h.orch.Confirm(c.Request.Context(), claims.Subject, c.Request.Header.Get("Authorization"))
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) CancelConfirmation(c *gin.Context) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	session, err := h.orch.Cancel(c.Request.Context(), claims.Subject)
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type verifyPaymentRequest struct {
	GatewayOrderID string `json:"gateway_order_id" binding:"required"`
	PaymentID      string `json:"payment_id" binding:"required"`
	Signature      string `json:"signature" binding:"required"`
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	session, err := h.orch.VerifyPayment(c.Request.Context(), claims.Subject,
		c.Request.Header.Get("Authorization"), orders.VerifyPaymentRequest{
			GatewayOrderID: req.GatewayOrderID,
			PaymentID:      req.PaymentID,
			Signature:      req.Signature,
		})
	if err != nil {
		if errors.Is(err, orders.ErrVerificationFailed) {
			slog.Error("payment verification failed", slog.String(logkey.TraceID, traceId), slog.String("UserID", claims.Subject))
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":    "Payment verification failed",
				"redirect": "/account/orders",
			})
			return
		}
		h.respondCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type sessionMutationRequest struct {
	AddressID   string `json:"address_id"`
	PaymentMode string `json:"payment_mode"`
	CouponID    string `json:"coupon_id"`
}

func (h *Handler) sessionMutation(c *gin.Context, fn func(userID string, req sessionMutationRequest) (*checkout.Session, error)) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req sessionMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	session, err := fn(claims.Subject, req)
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// respondCheckoutError maps orchestrator errors onto HTTP statuses. All of
// them are recoverable by the user; none corrupt session state.
func (h *Handler) respondCheckoutError(c *gin.Context, err error) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	switch {
	case errors.Is(err, checkout.ErrNoSession):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No checkout in progress"})
	case errors.Is(err, checkout.ErrSubmitInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Order submission already in progress"})
	case errors.Is(err, checkout.ErrNotReady),
		errors.Is(err, checkout.ErrNotConfirming),
		errors.Is(err, checkout.ErrNotAwaitingVerification):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrWalletIneligible):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Wallet balance is insufficient for this order"})
	case errors.Is(err, checkout.ErrInvalidPaymentMode):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid payment mode"})
	case errors.Is(err, checkout.ErrAddressNotFound):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Address not found"})
	case errors.Is(err, coupons.ErrCouponNotFound):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Coupon not found"})
	case errors.Is(err, coupons.ErrBelowMinOrder):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "Order subtotal does not meet the coupon minimum"})
	default:
		slog.Error("checkout operation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Checkout operation failed"})
	}
}
