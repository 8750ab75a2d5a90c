package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staypay/internal/app/services/calculation"
)

type BookingHandler struct {
	Service Calculator
}

type confirmRequest struct {
	quoteRequest
	PaymentOption string `json:"payment_option"`
	PaymentMethod string `json:"payment_method"`
	UserID        string `json:"user_id"`
	Phone         string `json:"phone"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "request body must be a JSON object")
		return
	}
	res, err := h.Service.Confirm(c.Request.Context(), calculation.ConfirmRequest{
		QuoteRequest:   req.toRequest(),
		PaymentOption:  req.PaymentOption,
		PaymentMethod:  req.PaymentMethod,
		UserID:         req.UserID,
		Phone:          req.Phone,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type reviseRequest struct {
	FromDate      string `json:"from_date"`
	ToDate        string `json:"to_date"`
	PaymentOption string `json:"payment_option"`
}

func (h BookingHandler) Revise(c *gin.Context) {
	var req reviseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "request body must be a JSON object")
		return
	}
	res, err := h.Service.ReviseBooking(c.Request.Context(), calculation.ReviseRequest{
		BookingID:     c.Param("id"),
		FromDate:      req.FromDate,
		ToDate:        req.ToDate,
		PaymentOption: req.PaymentOption,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h BookingHandler) Get(c *gin.Context) {
	view, err := h.Service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

var _ BookingHTTP = BookingHandler{}
