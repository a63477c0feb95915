package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rifapix/rifapix/internal/gateway"
	"github.com/rifapix/rifapix/internal/payment"
	log "github.com/sirupsen/logrus"
)

// maxWebhookBodyBytes bounds how much of a webhook body is read.
const maxWebhookBodyBytes = 64 * 1024

// WebhookHandler receives asynchronous payment confirmations from the
// PIX gateway.
type WebhookHandler struct {
	payments *payment.Service
}

// NewWebhookHandler wires the webhook handler.
func NewWebhookHandler(payments *payment.Service) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

// HandlePix processes one gateway notification.
//
// The handler always answers: a malformed payload is acknowledged (the
// gateway must not retry permanent malformations forever), idempotency hits
// are successes, and only transient internal failures return 5xx so the
// gateway's redelivery can retry them.
func (h *WebhookHandler) HandlePix(c *gin.Context) {
	body, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	event, errParse := gateway.ParseWebhook(body)
	if errParse != nil {
		log.WithError(errParse).Warn("webhook: malformed payload acknowledged")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	outcome, errSettle := h.payments.Settle(c.Request.Context(), event)
	if errSettle != nil {
		switch {
		case errors.Is(errSettle, payment.ErrInvalidPayload):
			log.WithError(errSettle).Warn("webhook: invalid payload acknowledged")
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		case errors.Is(errSettle, payment.ErrPaymentNotFound):
			log.WithError(errSettle).Error("webhook: unknown transaction")
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		case errors.Is(errSettle, payment.ErrTicketMaterialization):
			// Payment is flagged error; retries will see AlreadyProcessed.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement incomplete"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
		}
		return
	}

	switch outcome {
	case payment.OutcomeAlreadyProcessed:
		c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
	case payment.OutcomeSettled:
		c.JSON(http.StatusOK, gin.H{"status": "settled"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}
