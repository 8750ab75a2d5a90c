package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	appoutbox "staypay/internal/app/outbox"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainrates "staypay/internal/domain/rates"
)

var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
	ErrReadOnlyUnit         = errors.New("memory: write in read-only unit of work")
)

type Factory struct {
	Store *Store
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		store:    f.Store,
		readOnly: opts.ReadOnly,
		staged:   make(map[domainbooking.BookingID]*domainbooking.Booking),
		base:     make(map[domainbooking.BookingID]int64),
		seen:     make(map[string]time.Time),
	}, nil
}

// Unit buffers every write until Commit. Nothing is visible to other units
// before then, and a rolled back unit leaves the store untouched.
type Unit struct {
	store    *Store
	readOnly bool
	done     bool

	staged  map[domainbooking.BookingID]*domainbooking.Booking
	base    map[domainbooking.BookingID]int64
	order   []domainbooking.BookingID
	seen    map[string]time.Time
	records []appoutbox.EventRecord
}

func (u *Unit) RateTables() domainrates.Repository { return rateTables{u} }
func (u *Unit) Bookings() domainbooking.Repository { return bookings{u} }
func (u *Unit) Outbox() appoutbox.Outbox           { return unitOutbox{u} }
func (u *Unit) Inbox() uow.Inbox                   { return unitInbox{u} }

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.done = true
	s := u.store
	s.mu.Lock()
	for _, id := range u.order {
		current := int64(0)
		if existing, ok := s.bookings[id]; ok {
			current = existing.Version
		}
		if current != u.base[id] {
			s.mu.Unlock()
			return fmt.Errorf("%w: booking %s", domainbooking.ErrConcurrentUpdate, id)
		}
	}
	for _, id := range u.order {
		s.bookings[id] = u.staged[id]
	}
	for eventID, at := range u.seen {
		s.inbox[eventID] = at
	}
	s.mu.Unlock()
	s.outbox.append(u.records...)
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	u.done = true
	u.staged = nil
	u.base = nil
	u.order = nil
	u.seen = nil
	u.records = nil
	return nil
}

type rateTables struct{ u *Unit }

func (r rateTables) ByOffering(_ context.Context, offeringID, roomID string) (*domainrates.RateTable, error) {
	t, ok := r.u.store.rateTable(offeringID, roomID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainrates.ErrOfferingNotFound, rateTableKey(offeringID, roomID))
	}
	return t, nil
}

type bookings struct{ u *Unit }

func (r bookings) ByID(_ context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	if b, ok := r.u.staged[id]; ok {
		return b.Clone(), nil
	}
	b, ok := r.u.store.booking(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainbooking.ErrBookingNotFound, id)
	}
	return b, nil
}

// Save stages the booking when its version matches the latest one this unit
// can see.
func (r bookings) Save(_ context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	current := r.u.store.bookingVersion(b.ID)
	staged, ok := r.u.staged[b.ID]
	if ok {
		current = staged.Version
	}
	if b.Version != current {
		return fmt.Errorf("%w: booking %s has version %d, got %d", domainbooking.ErrConcurrentUpdate, b.ID, current, b.Version)
	}
	clone := b.Clone()
	clone.Version = b.Version + 1
	if !ok {
		r.u.order = append(r.u.order, b.ID)
		r.u.base[b.ID] = current
	}
	r.u.staged[b.ID] = clone
	b.Version = clone.Version
	return nil
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(_ context.Context, rec appoutbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	o.u.records = append(o.u.records, rec)
	return nil
}

type unitInbox struct{ u *Unit }

func (i unitInbox) Seen(_ context.Context, eventID string) (bool, error) {
	if err := i.u.writable(); err != nil {
		return false, err
	}
	if _, ok := i.u.seen[eventID]; ok {
		return true, nil
	}
	if i.u.store.inboxSeen(eventID) {
		return true, nil
	}
	i.u.seen[eventID] = time.Now().UTC()
	return false, nil
}

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)
