package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-service/internal/auth"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"
)

// ListEligibleCoupons refreshes the cart to get the authoritative subtotal,
// then asks the coupon service for coupons applicable at that subtotal.
func (h *Handler) ListEligibleCoupons(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject
	authHeader := c.Request.Header.Get("Authorization")

	loaded, err := h.cartStore.Load(c.Request.Context(), userId, authHeader)
	if err != nil {
		slog.Error("error loading cart", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "Failed to fetch cart"})
		return
	}

	list, err := h.selector.FetchEligible(c.Request.Context(), userId, authHeader, loaded.TotalPrice)
	if err != nil {
		slog.Error("error fetching eligible coupons", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "Failed to fetch coupons"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coupons": list, "subtotal": loaded.TotalPrice})
}
