package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	domainbooking "staypay/internal/domain/booking"
	domainrates "staypay/internal/domain/rates"
)

// Store is the process-local database behind the memory driver. Units read
// from it directly and apply their staged writes in one critical section.
type Store struct {
	mu         sync.RWMutex
	rateTables map[string]*domainrates.RateTable
	bookings   map[domainbooking.BookingID]*domainbooking.Booking
	inbox      map[string]time.Time
	outbox     *Outbox
}

func NewStore() *Store {
	return &Store{
		rateTables: make(map[string]*domainrates.RateTable),
		bookings:   make(map[domainbooking.BookingID]*domainbooking.Booking),
		inbox:      make(map[string]time.Time),
		outbox:     NewOutbox(),
	}
}

// Outbox exposes the relay side of the store's outbox.
func (s *Store) Outbox() *Outbox {
	return s.outbox
}

func rateTableKey(offeringID, roomID string) string {
	return strings.TrimSpace(offeringID) + "|" + strings.TrimSpace(roomID)
}

// UpsertRateTable replaces the table of an offering.
func (s *Store) UpsertRateTable(_ context.Context, table *domainrates.RateTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateTables[rateTableKey(table.OfferingID, table.RoomID)] = table.Copy()
	return nil
}

func (s *Store) rateTable(offeringID, roomID string) (*domainrates.RateTable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.rateTables[rateTableKey(offeringID, roomID)]
	if !ok {
		return nil, false
	}
	return t.Copy(), true
}

func (s *Store) booking(id domainbooking.BookingID) (*domainbooking.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

func (s *Store) bookingVersion(id domainbooking.BookingID) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.bookings[id]; ok {
		return b.Version
	}
	return 0
}

func (s *Store) inboxSeen(eventID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inbox[eventID]
	return ok
}
