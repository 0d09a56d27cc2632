package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/waste3d/coursemarket-api/internal/application/usecase"
	"github.com/waste3d/coursemarket-api/internal/domain"
)

// WebhookHandler принимает колбэки провайдеров. Тело читаем сырым: подпись считается по байтам.
// Неподписанный запрос - 400, сбой у нас - 500, чтобы провайдер доставил событие еще раз.
type WebhookHandler struct {
	purchases *usecase.PurchaseUseCase
	identity  *usecase.IdentityUseCase
}

func NewWebhookHandler(p *usecase.PurchaseUseCase, i *usecase.IdentityUseCase) *WebhookHandler {
	return &WebhookHandler{purchases: p, identity: i}
}

// События провайдеров укладываются в несколько килобайт
const maxWebhookBody = 1 << 20

// POST /stripe
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}
	outcome, err := h.purchases.ReconcilePayment(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		webhookError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}

// POST /clerk
func (h *WebhookHandler) Clerk(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}
	outcome, err := h.identity.HandleWebhook(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		webhookError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}

func readWebhookBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "Payload too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cannot read body"})
		return nil, false
	}
	return payload, true
}

func webhookError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrAuthentication) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Webhook signature verification failed"})
		return
	}
	writeError(c, err)
}
