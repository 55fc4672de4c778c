package public

import (
	"errors"
	"io"
	"strings"

	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/payment/stripe"
	"github.com/musicfy-storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodySize = 1 << 20

// StripeWebhook Stripe webhook 回调
func (h *Handler) StripeWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
	if err != nil {
		log.Warnw("stripe_webhook_body_read_failed", "error", err)
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	log.Infow("stripe_webhook_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"has_signature", strings.TrimSpace(c.GetHeader("Stripe-Signature")) != "",
	)

	result, err := h.CheckoutService.HandleWebhook(c.Request.Context(), c.Request.Header, body)
	if err != nil {
		log.Warnw("stripe_webhook_handle_failed", "error", err)
		switch {
		case errors.Is(err, service.ErrPaymentNotConfigured):
			respondError(c, response.CodeUnavailable, "checkout.payment_unconfigured", nil)
		case errors.Is(err, stripe.ErrSignatureInvalid), errors.Is(err, stripe.ErrResponseInvalid):
			respondError(c, response.CodeBadRequest, "payment.webhook_invalid", nil)
		default:
			respondError(c, response.CodeInternal, "error.internal", err)
		}
		return
	}

	if result == nil || result.OrderID == 0 {
		response.Success(c, gin.H{"accepted": true, "updated": false})
		return
	}
	log.Infow("stripe_webhook_processed",
		"event_id", result.EventID,
		"event_type", result.EventType,
		"order_id", result.OrderID,
		"status", result.Status,
	)
	response.Success(c, gin.H{
		"accepted":   true,
		"updated":    true,
		"event_type": result.EventType,
		"order_id":   result.OrderID,
	})
}
