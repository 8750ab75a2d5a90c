package ginserver

import (
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"staypay/internal/app/services/calculation"
)

// PaymentHandler is the operator channel for payment confirmations; it
// shares deduplication with the broker consumer through the event id.
type PaymentHandler struct {
	Service Calculator
}

type paymentRequest struct {
	EventID    string    `json:"event_id"`
	PaymentRef string    `json:"payment_ref"`
	PaidAt     time.Time `json:"paid_at"`
}

func (h PaymentHandler) Record(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seq <= 0 {
		writeBadRequest(c, "sequence number must be a positive integer")
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "request body must be a JSON object")
		return
	}
	if req.EventID == "" {
		req.EventID = c.GetHeader("Idempotency-Key")
	}
	if req.PaidAt.IsZero() {
		req.PaidAt = time.Now().UTC()
	}
	res, err := h.Service.RecordPayment(c.Request.Context(), calculation.PaymentConfirmation{
		EventID:    req.EventID,
		BookingID:  c.Param("id"),
		Sequence:   seq,
		PaymentRef: req.PaymentRef,
		PaidAt:     req.PaidAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

var _ PaymentHTTP = PaymentHandler{}
