package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"staypay/internal/app/dto"
	"staypay/internal/app/outbox"
	"staypay/internal/app/services/calculation"
)

const ServiceName = "staypay.v1.Calculation"

type QuoteRequest struct {
	OfferingID string `json:"offering_id"`
	RoomID     string `json:"room_id,omitempty"`
	FromDate   string `json:"from_date"`
	ToDate     string `json:"to_date"`
}

type ConfirmRequest struct {
	QuoteRequest
	PaymentOption  string `json:"payment_option"`
	PaymentMethod  string `json:"payment_method"`
	UserID         string `json:"user_id"`
	Phone          string `json:"phone"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type ReviseRequest struct {
	BookingID     string `json:"booking_id"`
	FromDate      string `json:"from_date"`
	ToDate        string `json:"to_date"`
	PaymentOption string `json:"payment_option,omitempty"`
}

// Calculator is the part of the calculation service exposed over gRPC.
type Calculator interface {
	Quote(ctx context.Context, req calculation.QuoteRequest) (*dto.Quote, error)
	Confirm(ctx context.Context, req calculation.ConfirmRequest) (*dto.ConfirmedBooking, error)
	ReviseBooking(ctx context.Context, req calculation.ReviseRequest) (*dto.RevisedBooking, error)
}

// CalculationServer is the server API of staypay.v1.Calculation.
type CalculationServer interface {
	Quote(ctx context.Context, req *QuoteRequest) (*dto.Quote, error)
	Confirm(ctx context.Context, req *ConfirmRequest) (*dto.ConfirmedBooking, error)
	Revise(ctx context.Context, req *ReviseRequest) (*dto.RevisedBooking, error)
}

// Server adapts Calculator to CalculationServer and translates failures into
// gRPC statuses.
type Server struct {
	Service Calculator
}

func (s Server) Quote(ctx context.Context, req *QuoteRequest) (*dto.Quote, error) {
	res, err := s.Service.Quote(ctx, req.toRequest())
	return res, toStatus(err)
}

func (s Server) Confirm(ctx context.Context, req *ConfirmRequest) (*dto.ConfirmedBooking, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = firstMetadata(ctx, "idempotency-key")
	}
	res, err := s.Service.Confirm(ctx, calculation.ConfirmRequest{
		QuoteRequest:   req.toRequest(),
		PaymentOption:  req.PaymentOption,
		PaymentMethod:  req.PaymentMethod,
		UserID:         req.UserID,
		Phone:          req.Phone,
		IdempotencyKey: key,
	})
	return res, toStatus(err)
}

func (s Server) Revise(ctx context.Context, req *ReviseRequest) (*dto.RevisedBooking, error) {
	res, err := s.Service.ReviseBooking(ctx, calculation.ReviseRequest{
		BookingID:     req.BookingID,
		FromDate:      req.FromDate,
		ToDate:        req.ToDate,
		PaymentOption: req.PaymentOption,
	})
	return res, toStatus(err)
}

func (r QuoteRequest) toRequest() calculation.QuoteRequest {
	return calculation.QuoteRequest{OfferingID: r.OfferingID, RoomID: r.RoomID, FromDate: r.FromDate, ToDate: r.ToDate}
}

var codeByFailure = map[calculation.Code]codes.Code{
	calculation.CodeInvalidRange:         codes.InvalidArgument,
	calculation.CodeInvalidRequest:       codes.InvalidArgument,
	calculation.CodeInvalidPaymentOption: codes.InvalidArgument,
	calculation.CodeStartInPast:          codes.FailedPrecondition,
	calculation.CodeNoApplicableTier:     codes.FailedPrecondition,
	calculation.CodeOfferingNotFound:     codes.NotFound,
	calculation.CodeBookingNotFound:      codes.NotFound,
	calculation.CodeMilestoneNotFound:    codes.NotFound,
	calculation.CodeMilestoneNotPayable:  codes.FailedPrecondition,
	calculation.CodeOverpaidAfterEdit:    codes.FailedPrecondition,
	calculation.CodeConcurrentUpdate:     codes.Aborted,
	calculation.CodePersistenceFailure:   codes.Unavailable,
	calculation.CodeTimeout:              codes.DeadlineExceeded,
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, "request cancelled")
	}
	failure := calculation.Describe(err)
	code, ok := codeByFailure[failure.Code]
	if !ok {
		code = codes.Internal
	}
	return status.Error(code, string(failure.Code)+": "+failure.Message)
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func unaryHandler[Req any, Res any](call func(CalculationServer, context.Context, *Req) (Res, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CalculationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CalculationServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes staypay.v1.Calculation for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalculationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Quote", Handler: unaryHandler(CalculationServer.Quote, "Quote")},
		{MethodName: "Confirm", Handler: unaryHandler(CalculationServer.Confirm, "Confirm")},
		{MethodName: "Revise", Handler: unaryHandler(CalculationServer.Revise, "Revise")},
	},
	Metadata: "staypay/v1/calculation",
}

// NewServer returns a grpc.Server with the calculation service registered.
func NewServer(svc CalculationServer, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(RequestID(), Logging(logger)))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, svc)
	return srv
}

// RequestID copies x-request-id metadata into the context.
func RequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if id := firstMetadata(ctx, "x-request-id"); id != "" {
			ctx = outbox.WithRequestID(ctx, id)
		}
		return handler(ctx, req)
	}
}

func Logging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		res, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelInfo
		if code == codes.Internal || code == codes.Unavailable {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "grpc", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start),
			"request_id", outbox.RequestIDFromContext(ctx))
		return res, err
	}
}

var _ CalculationServer = Server{}
