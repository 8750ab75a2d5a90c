package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"staypay/internal/app/dto"
	"staypay/internal/app/services/calculation"
)

var ErrMalformedPayment = errors.New("kafka: malformed payment confirmation")

// PaymentRecorder is the part of the calculation service the consumer needs.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, p calculation.PaymentConfirmation) (*dto.MilestonePayment, error)
}

// PaymentHandler applies payment confirmations published by the payment
// provider. Messages are either CloudEvents with the confirmation in data or
// the bare confirmation object.
type PaymentHandler struct {
	Payments PaymentRecorder
	Logger   *slog.Logger
}

type paymentMessage struct {
	EventID        string    `json:"event_id"`
	BookingID      string    `json:"booking_id"`
	SequenceNumber int       `json:"sequence_number"`
	PaymentRef     string    `json:"payment_ref"`
	PaidAt         time.Time `json:"paid_at"`
}

type cloudEvent struct {
	SpecVersion string          `json:"specversion"`
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
}

// DecodePayment extracts a confirmation from a message value. The event id
// comes from the CloudEvent id, then the ce_id header, then the body.
func DecodePayment(value []byte, headers map[string]string) (calculation.PaymentConfirmation, error) {
	var envelope cloudEvent
	if err := json.Unmarshal(value, &envelope); err != nil {
		return calculation.PaymentConfirmation{}, fmt.Errorf("%w: %v", ErrMalformedPayment, err)
	}
	body := value
	if envelope.SpecVersion != "" && len(envelope.Data) > 0 {
		body = envelope.Data
	}
	var msg paymentMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return calculation.PaymentConfirmation{}, fmt.Errorf("%w: %v", ErrMalformedPayment, err)
	}
	eventID := envelope.ID
	if eventID == "" {
		eventID = headers["ce_id"]
	}
	if eventID == "" {
		eventID = msg.EventID
	}
	if strings.TrimSpace(msg.BookingID) == "" || msg.SequenceNumber <= 0 {
		return calculation.PaymentConfirmation{}, fmt.Errorf("%w: booking id and sequence number are required", ErrMalformedPayment)
	}
	paidAt := msg.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	return calculation.PaymentConfirmation{
		EventID:    eventID,
		BookingID:  msg.BookingID,
		Sequence:   msg.SequenceNumber,
		PaymentRef: msg.PaymentRef,
		PaidAt:     paidAt,
	}, nil
}

// Handle returns an error only for failures worth redelivering. Requests the
// service rejects are logged and skipped.
func (h *PaymentHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	headers := make(map[string]string, len(msg.Headers))
	for _, hdr := range msg.Headers {
		if hdr != nil {
			headers[string(hdr.Key)] = string(hdr.Value)
		}
	}
	p, err := DecodePayment(msg.Value, headers)
	if err != nil {
		h.logger().Error("payment confirmation dropped", "offset", msg.Offset, "error", err)
		return nil
	}
	res, err := h.Payments.RecordPayment(ctx, p)
	if err != nil {
		failure := calculation.Describe(err)
		if retryable(failure.Code) {
			return err
		}
		h.logger().Error("payment confirmation rejected",
			"event_id", p.EventID, "booking_id", p.BookingID, "sequence", p.Sequence, "code", failure.Code, "error", err)
		return nil
	}
	h.logger().Info("payment confirmation applied",
		"event_id", p.EventID, "booking_id", res.BookingID, "sequence", res.SequenceNumber, "duplicate", res.Duplicate)
	return nil
}

func retryable(code calculation.Code) bool {
	switch code {
	case calculation.CodePersistenceFailure, calculation.CodeConcurrentUpdate, calculation.CodeTimeout, calculation.CodeInternal:
		return true
	default:
		return false
	}
}

func (h *PaymentHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
