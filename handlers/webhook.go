package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"storefront-service/internal/stores/kafka"
	"storefront-service/pkg/logkey"
)

// Webhook receives payment-gateway events. The signature header is verified
// against the webhook secret before the event is trusted.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := uuid.NewString()
	const MaxBodyBytes = int64(65536)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if secret == "" {
		slog.Error("stripe webhook secret not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), secret)
	if err != nil {
		slog.Error("webhook signature verification failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			slog.Error("failed to unmarshal payment intent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		orderId := paymentIntent.Metadata["order_id"]
		userId := paymentIntent.Metadata["user_id"]
		slog.Info("payment intent succeeded", slog.String(logkey.TraceID, traceId),
			slog.String("OrderID", orderId), slog.String("PaymentIntentID", paymentIntent.ID))

		if err := h.orderSvc.ConfirmPayment(c.Request.Context(), orderId, paymentIntent.ID); err != nil {
			slog.Error("failed to confirm order payment", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			// Let the gateway retry the event.
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm payment"})
			return
		}

		go func() {
			eventData, err := json.Marshal(kafka.OrderPlacedEvent{
				OrderID:     orderId,
				UserID:      userId,
				PaymentMode: "card",
				TotalPrice:  decimal.NewFromInt(paymentIntent.Amount).Shift(-2).String(),
				CreatedAt:   time.Now().UTC(),
			})
			if err != nil {
				slog.Error("failed to marshal order-placed event", slog.String(logkey.ERROR, err.Error()))
				return
			}
			if err := h.k.ProduceMessage(kafka.TopicOrderPlaced, []byte(orderId), eventData); err != nil {
				slog.Error("failed to produce order-placed event", slog.String(logkey.ERROR, err.Error()))
			}
		}()

		c.Status(http.StatusOK)

	default:
		slog.Info("unhandled event type", slog.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{
			"message": "Event type not handled",
			"event":   event.Type,
		})
	}
}
