package booking

import (
	"context"
	"time"

	"staypay/internal/app/handlers/support"
	appoutbox "staypay/internal/app/outbox"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainpricing "staypay/internal/domain/pricing"
	domainrates "staypay/internal/domain/rates"
	"staypay/internal/domain/shared/daterange"
)

// LockKey is the serialisation key shared by every writer of one booking.
func LockKey(id string) string {
	if id == "" {
		return ""
	}
	return "booking:" + id
}

func price(ctx context.Context, unit uow.UnitOfWork, offeringID, roomID string, dr daterange.DateRange) (*domainrates.RateTable, domainpricing.Calculation, error) {
	table, err := unit.RateTables().ByOffering(ctx, offeringID, roomID)
	if err != nil {
		return nil, domainpricing.Calculation{}, support.Storage(err)
	}
	calc, err := domainpricing.Decompose(table, dr)
	if err != nil {
		return nil, domainpricing.Calculation{}, err
	}
	return table, calc, nil
}

// save stores the aggregate and moves its pending events into the outbox of
// the same unit.
func save(ctx context.Context, unit uow.UnitOfWork, encoder appoutbox.EventEncoder, b *domainbooking.Booking) error {
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return support.Storage(err)
	}
	if err := appoutbox.RecordDomainEvents(ctx, unit.Outbox(), encoder, b.Drain()); err != nil {
		return uow.Persistence(err)
	}
	return nil
}

func nowFunc(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
