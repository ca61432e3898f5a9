package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"storefront-service/internal/auth"
	"storefront-service/internal/cart"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"
)

func (h *Handler) GetCartItems(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	loaded, err := h.cartStore.Load(c.Request.Context(), userId, c.Request.Header.Get("Authorization"))
	if err != nil {
		slog.Error("error loading cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String("UserID", userId))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "Failed to fetch cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       loaded.Items,
		"total_price": loaded.TotalPrice,
	})
}

type changeQuantityRequest struct {
	VariantID string `json:"variant_id" validate:"required"`
	Direction string `json:"direction" validate:"required,oneof=increase decrease"`
}

func (h *Handler) ChangeQuantity(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	var req changeQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, vErr := range vErrs {
				switch vErr.Tag() {
				case "required":
					slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value missing"})
					return
				case "oneof":
					slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " must be one of " + vErr.Param()})
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	updated, err := h.cartStore.ChangeQuantity(c.Request.Context(), userId,
		c.Request.Header.Get("Authorization"), req.VariantID, cart.Direction(req.Direction))
	if err != nil {
		slog.Error("error changing quantity", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String("VariantID", req.VariantID))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "Failed to update cart"})
		return
	}

	slog.Info("cart quantity updated", slog.String(logkey.TraceID, traceId),
		slog.String("VariantID", req.VariantID), slog.String("Direction", req.Direction), slog.String("UserID", userId))

	c.JSON(http.StatusOK, gin.H{
		"items":       updated.Items,
		"total_price": updated.TotalPrice,
	})
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	variantID := c.Param("variantID")
	if variantID == "" {
		slog.Error("missing variant id", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Variant ID is required"})
		return
	}

	updated, err := h.cartStore.Remove(c.Request.Context(), userId, c.Request.Header.Get("Authorization"), variantID)
	if err != nil {
		slog.Error("error removing cart item", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String("VariantID", variantID))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "Failed to remove item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       updated.Items,
		"total_price": updated.TotalPrice,
	})
}
