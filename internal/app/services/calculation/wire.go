package calculation

import (
	"log/slog"
	"time"

	"staypay/internal/app/commands"
	bookingapp "staypay/internal/app/handlers/booking"
	paymentsapp "staypay/internal/app/handlers/payments"
	pricingapp "staypay/internal/app/handlers/pricing"
	"staypay/internal/app/middleware"
	"staypay/internal/app/outbox"
	"staypay/internal/app/policies"
	"staypay/internal/app/queries"
	"staypay/internal/app/uow"
)

// Deps are the ports the service is assembled from. Idempotency, Locker and
// Notifier are optional; their middleware is skipped when nil.
type Deps struct {
	UoWFactory     uow.UoWFactory
	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
	Locker         policies.BookingLocker
	LockTTL        time.Duration
	Notifier       outbox.Notifier
	Timeout        time.Duration
	Encoder        outbox.EventEncoder
	Now            func() time.Time
	NewID          func() string
	Logger         *slog.Logger
}

// New registers every handler and wraps the buses in the middleware chain:
// logging, validation, idempotency, booking lock, outbox notify, timeout and
// transaction, outermost first.
func New(d Deps) *Service {
	if d.UoWFactory == nil {
		panic("calculation: uow factory required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	encoder := d.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, bookingapp.ConfirmBookingCommand{}.Key(), &bookingapp.ConfirmBookingHandler{
		UoWFactory: d.UoWFactory,
		Encoder:    encoder,
		Now:        d.Now,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.ReviseBookingCommand{}.Key(), &bookingapp.ReviseBookingHandler{
		UoWFactory: d.UoWFactory,
		Encoder:    encoder,
		Now:        d.Now,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, paymentsapp.RecordMilestonePaymentCommand{}.Key(), &paymentsapp.RecordMilestonePaymentHandler{
		UoWFactory: d.UoWFactory,
		Encoder:    encoder,
		Now:        d.Now,
		Logger:     logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, pricingapp.QuoteQuery{}.Key(), &pricingapp.QuoteHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler(queryBus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: d.UoWFactory})

	var idempotency, serialize, notify middleware.CommandMiddleware
	if d.Idempotency != nil {
		idempotency = middleware.Idempotency(d.Idempotency, middleware.IdempotencyOptions{TTL: d.IdempotencyTTL, Now: d.Now})
	}
	if d.Locker != nil {
		serialize = middleware.Serialize(d.Locker, d.LockTTL)
	}
	if d.Notifier != nil {
		notify = middleware.OutboxNotify(d.Notifier)
	}

	logger.Debug("calculation service assembled", "commands", commandBus.Keys())

	return &Service{
		Commands: middleware.ChainCommands(
			commandBus,
			middleware.Logging(logger),
			middleware.Validation(),
			idempotency,
			serialize,
			notify,
			middleware.Timeout(d.Timeout),
			middleware.Transaction(d.UoWFactory),
		),
		Queries: middleware.ChainQueries(
			queryBus,
			middleware.QueryLogging(logger),
			middleware.QueryValidation(),
			middleware.QueryTimeout(d.Timeout),
		),
		NewID: d.NewID,
	}
}
