package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"rata-backend/logger"
	"rata-backend/utils"
)

// mercadoPagoNotification is the JSON body variant of a webhook. data.id
// arrives either as a number or as a numeric string.
type mercadoPagoNotification struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// POST /webhooks/mercadopago
// Always acknowledges unless the payment could not be looked up or stored,
// so the gateway only retries deliveries that can still succeed.
func (h *Handler) MercadoPagoWebhook(c *gin.Context) {
	topic := c.Query("type")
	if topic == "" {
		topic = c.Query("topic")
	}
	paymentID := c.Query("data.id")
	if paymentID == "" {
		paymentID = c.Query("id")
	}

	if topic == "" || paymentID == "" {
		var body mercadoPagoNotification
		if err := c.ShouldBindJSON(&body); err == nil {
			if topic == "" {
				topic = body.Type
			}
			if paymentID == "" {
				paymentID = body.Data.ID.String()
			}
		}
	}

	outcome, err := h.reconciliation.HandleNotification(c.Request.Context(), topic, paymentID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	logger.GetLogger().Debugw("Webhook processed", "topic", topic, "paymentID", paymentID, "outcome", outcome)
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
