// Package memory is an in-process store with the same compare-and-set
// contract as the Postgres adapter. It backs STORE_DRIVER=memory and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
)

type Store struct {
	mu sync.RWMutex

	seats      map[int64]domain.Seat
	nextSeatID int64

	bookings      map[uuid.UUID]domain.Booking
	nextBookingID int64
}

func NewStore() *Store {
	return &Store{
		seats:    make(map[int64]domain.Seat),
		bookings: make(map[uuid.UUID]domain.Booking),
	}
}

func (s *Store) CreateSeats(ctx context.Context, seats []domain.Seat) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]domain.Seat, 0, len(seats))
	for _, seat := range seats {
		s.nextSeatID++
		seat.ID = s.nextSeatID
		if seat.Status == "" {
			seat.Status = domain.SeatAvailable
		}
		if seat.Version == 0 {
			seat.Version = 1
		}
		s.seats[seat.ID] = copySeat(seat)
		created = append(created, copySeat(seat))
	}
	return created, nil
}

func (s *Store) GetByID(ctx context.Context, seatID int64) (*domain.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seat, ok := s.seats[seatID]
	if !ok {
		return nil, domain.ErrSeatNotFound
	}
	out := copySeat(seat)
	return &out, nil
}

func (s *Store) ListByShowtime(ctx context.Context, showtimeID int64) ([]domain.Seat, error) {
	return s.filterSeats(0, func(seat domain.Seat) bool {
		return seat.ShowtimeID == showtimeID
	}), nil
}

func (s *Store) ListByBooking(ctx context.Context, ref uuid.UUID) ([]domain.Seat, error) {
	return s.filterSeats(0, func(seat domain.Seat) bool {
		return seat.BookingRef != nil && *seat.BookingRef == ref
	}), nil
}

func (s *Store) ListLockedBy(ctx context.Context, showtimeID int64, owner string) ([]domain.Seat, error) {
	return s.filterSeats(0, func(seat domain.Seat) bool {
		return seat.ShowtimeID == showtimeID && seat.Status == domain.SeatLocked && seat.LockOwner == owner
	}), nil
}

func (s *Store) ListExpiredLocks(ctx context.Context, now time.Time, limit int) ([]domain.Seat, error) {
	return s.filterSeats(limit, func(seat domain.Seat) bool {
		return seat.LockLapsed(now)
	}), nil
}

func (s *Store) ListOrphanedBooked(ctx context.Context, before time.Time, limit int) ([]domain.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Seat
	for _, seat := range s.sortedSeats() {
		if seat.Status != domain.SeatBooked || !seat.UpdatedAt.Before(before) {
			continue
		}
		if seat.BookingRef != nil {
			if b, ok := s.bookings[*seat.BookingRef]; ok && b.Status.HoldsSeats() {
				continue
			}
		}
		out = append(out, copySeat(seat))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CompareAndSet(ctx context.Context, t domain.SeatTransition, at time.Time) (*domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat, ok := s.seats[t.SeatID]
	if !ok {
		return nil, domain.ErrSeatNotFound
	}
	if seat.Version != t.ExpectedVersion {
		return nil, domain.ErrVersionConflict
	}
	// A hold that lapsed since it was read can no longer be promoted.
	if t.Status == domain.SeatBooked && seat.LockLapsed(at) {
		return nil, domain.ErrVersionConflict
	}

	next := t.Apply(seat, at)
	s.seats[seat.ID] = next
	out := copySeat(next)
	return &out, nil
}

func (s *Store) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextBookingID++
	booking.ID = s.nextBookingID
	if booking.Version == 0 {
		booking.Version = 1
	}
	s.bookings[booking.Ref] = copyBooking(*booking)
	return nil
}

func (s *Store) GetByRef(ctx context.Context, ref uuid.UUID) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[ref]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	out := copyBooking(b)
	return &out, nil
}

func (s *Store) ListByOwner(ctx context.Context, owner string) ([]domain.Booking, error) {
	return s.filterBookings(0, func(b domain.Booking) bool { return b.Owner == owner }), nil
}

func (s *Store) ListAll(ctx context.Context, limit int) ([]domain.Booking, error) {
	return s.filterBookings(limit, func(domain.Booking) bool { return true }), nil
}

func (s *Store) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	out := s.filterBookings(0, func(b domain.Booking) bool {
		return b.Status == domain.BookingPending && b.ExpiresAt.Before(now)
	})
	// Oldest first, the order the sweeper drains them in.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Transition(ctx context.Context, t domain.BookingTransition) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[t.Ref]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	if b.Version != t.ExpectedVersion {
		return nil, domain.ErrVersionConflict
	}

	next := t.Apply(b)
	s.bookings[t.Ref] = next
	out := copyBooking(next)
	return &out, nil
}

func (s *Store) filterSeats(limit int, keep func(domain.Seat) bool) []domain.Seat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Seat
	for _, seat := range s.sortedSeats() {
		if !keep(seat) {
			continue
		}
		out = append(out, copySeat(seat))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// sortedSeats orders seats by row then number, the seat map order. Callers
// hold s.mu.
func (s *Store) sortedSeats() []domain.Seat {
	all := make([]domain.Seat, 0, len(s.seats))
	for _, seat := range s.seats {
		all = append(all, seat)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.ShowtimeID != b.ShowtimeID {
			return a.ShowtimeID < b.ShowtimeID
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.ID < b.ID
	})
	return all
}

func (s *Store) filterBookings(limit int, keep func(domain.Booking) bool) []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Booking
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func copySeat(seat domain.Seat) domain.Seat {
	if seat.LockExpiresAt != nil {
		exp := *seat.LockExpiresAt
		seat.LockExpiresAt = &exp
	}
	if seat.BookingRef != nil {
		ref := *seat.BookingRef
		seat.BookingRef = &ref
	}
	return seat
}

func copyBooking(b domain.Booking) domain.Booking {
	b.SeatIDs = append([]int64(nil), b.SeatIDs...)
	b.Items = append([]domain.BookingItem(nil), b.Items...)
	if b.ConfirmedAt != nil {
		at := *b.ConfirmedAt
		b.ConfirmedAt = &at
	}
	if b.ClosedAt != nil {
		at := *b.ClosedAt
		b.ClosedAt = &at
	}
	return b
}
