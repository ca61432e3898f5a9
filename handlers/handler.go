package handlers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"storefront-service/internal/auth"
	"storefront-service/internal/cart"
	"storefront-service/internal/checkout"
	"storefront-service/internal/coupons"
	"storefront-service/internal/orders"
	"storefront-service/internal/stores/kafka"
	"storefront-service/middleware"
	"storefront-service/pkg/ctxmanage"
)

type Handler struct {
	cartStore *cart.Store
	selector  *coupons.Selector
	orch      *checkout.Orchestrator
	orderSvc  *orders.Client
	k         *kafka.Conf
	validate  *validator.Validate
}

func NewHandler(cartStore *cart.Store, selector *coupons.Selector, orch *checkout.Orchestrator,
	orderSvc *orders.Client, k *kafka.Conf) *Handler {

	return &Handler{
		cartStore: cartStore,
		selector:  selector,
		orch:      orch,
		orderSvc:  orderSvc,
		k:         k,
		validate:  validator.New(),
	}
}

func API(endpointPrefix string, a *auth.Keys, cartStore *cart.Store, selector *coupons.Selector,
	orch *checkout.Orchestrator, orderSvc *orders.Client, k *kafka.Conf) *gin.Engine {

	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	m := middleware.NewMid(a)
	h := NewHandler(cartStore, selector, orch, orderSvc, k)

	r.Use(middleware.Logger(), gin.Recovery())
	r.GET("/ping", healthCheck)

	v1 := r.Group(endpointPrefix)
	{
		// The gateway webhook authenticates with its own signature, not a bearer token.
		v1.POST("/webhook", h.Webhook)

		v1.Use(m.Authentication())
		v1.GET("/cart/items", m.Authorize(h.GetCartItems, auth.RoleUser))
		v1.POST("/cart/items/quantity", m.Authorize(h.ChangeQuantity, auth.RoleUser))
		v1.DELETE("/cart/items/:variantID", m.Authorize(h.RemoveCartItem, auth.RoleUser))

		v1.GET("/coupons/eligible", m.Authorize(h.ListEligibleCoupons, auth.RoleUser))

		v1.POST("/checkout/start", m.Authorize(h.StartCheckout, auth.RoleUser))
		v1.GET("/checkout", m.Authorize(h.GetCheckout, auth.RoleUser))
		v1.POST("/checkout/address", m.Authorize(h.SelectAddress, auth.RoleUser))
		v1.POST("/checkout/payment-mode", m.Authorize(h.SelectPaymentMode, auth.RoleUser))
		v1.POST("/checkout/coupon", m.Authorize(h.ApplyCoupon, auth.RoleUser))
		v1.DELETE("/checkout/coupon", m.Authorize(h.RemoveCoupon, auth.RoleUser))
		v1.POST("/checkout/place-order", m.Authorize(h.PlaceOrder, auth.RoleUser))
		v1.POST("/checkout/confirm", m.Authorize(h.ConfirmOrder, auth.RoleUser))
		v1.POST("/checkout/cancel", m.Authorize(h.CancelConfirmation, auth.RoleUser))
		v1.POST("/checkout/verify", m.Authorize(h.VerifyPayment, auth.RoleUser))
	}

	return r
}

func healthCheck(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	fmt.Println("healthCheck handler ", traceId)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
