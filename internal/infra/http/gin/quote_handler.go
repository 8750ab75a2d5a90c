package ginserver

import (
	"context"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staypay/internal/app/dto"
	"staypay/internal/app/services/calculation"
)

// Calculator is the service every handler delegates to.
type Calculator interface {
	Quote(ctx context.Context, req calculation.QuoteRequest) (*dto.Quote, error)
	Confirm(ctx context.Context, req calculation.ConfirmRequest) (*dto.ConfirmedBooking, error)
	ReviseBooking(ctx context.Context, req calculation.ReviseRequest) (*dto.RevisedBooking, error)
	RecordPayment(ctx context.Context, p calculation.PaymentConfirmation) (*dto.MilestonePayment, error)
	GetBooking(ctx context.Context, bookingID string) (*dto.BookingView, error)
}

type QuoteHandler struct {
	Service Calculator
}

type quoteRequest struct {
	OfferingID string `json:"offering_id"`
	RoomID     string `json:"room_id"`
	FromDate   string `json:"from_date"`
	ToDate     string `json:"to_date"`
}

func (r quoteRequest) toRequest() calculation.QuoteRequest {
	return calculation.QuoteRequest{OfferingID: r.OfferingID, RoomID: r.RoomID, FromDate: r.FromDate, ToDate: r.ToDate}
}

func (h QuoteHandler) Create(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "request body must be a JSON object")
		return
	}
	quote, err := h.Service.Quote(c.Request.Context(), req.toRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

var _ QuoteHTTP = QuoteHandler{}
