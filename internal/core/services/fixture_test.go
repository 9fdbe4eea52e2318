package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/srgjo27/showtime_booking/internal/adapter/repository/memory"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/core/ports"
	"github.com/srgjo27/showtime_booking/internal/core/services"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
	"github.com/srgjo27/showtime_booking/internal/platform/logger"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

const (
	showtimeID = int64(7)
	seatPrice  = int64(25000)
	bookingFee = int64(5000)
)

type fixture struct {
	store   *memory.Store
	clock   *clock.Fake
	ledger  *services.SeatLedger
	locks   *services.LockService
	booking *services.BookingService
	sweeper *services.Sweeper
}

type fixtureOpts struct {
	wrapSeats func(*memory.Store) ports.SeatRepository
	bookings ports.BookingRepository
	payments ports.PaymentGateway
	events   ports.EventPublisher
	lockTTL  time.Duration
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	f := &fixture{store: memory.NewStore(), clock: clock.NewFake(t0)}
	log := logger.Discard()

	var seats ports.SeatRepository = f.store
	if opts.wrapSeats != nil {
		seats = opts.wrapSeats(f.store)
	}
	bookings := opts.bookings
	if bookings == nil {
		bookings = f.store
	}
	ttl := opts.lockTTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	f.ledger = services.NewSeatLedger(seats, nil, f.clock, log)
	f.locks = services.NewLockService(f.ledger, f.clock, log, services.WithLockTTL(ttl))
	f.booking = services.NewBookingService(f.ledger, f.locks, bookings, opts.payments, opts.events, f.clock, services.BookingConfig{
		PendingTTL:      15 * time.Minute,
		Currency:        "INR",
		BookingFeeCents: bookingFee,
	}, log)
	f.sweeper = services.NewSweeper(f.ledger, bookings, f.booking, f.clock, services.SweeperConfig{
		Interval:    time.Second,
		Batch:       50,
		OrphanGrace: 2 * time.Minute,
	}, log)
	return f
}

// seed creates row A with n seats for showtimeID; ids are 1..n.
func (f *fixture) seed(t *testing.T, n int) []domain.Seat {
	t.Helper()
	seats, err := f.ledger.SeedShowtime(context.Background(), services.SeedSeatsRequest{
		ShowtimeID:  showtimeID,
		Rows:        []string{"A"},
		SeatsPerRow: n,
		PriceCents:  seatPrice,
	})
	require.NoError(t, err)
	return seats
}

func (f *fixture) seat(t *testing.T, id int64) domain.Seat {
	t.Helper()
	seat, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return *seat
}

func (f *fixture) lockAll(t *testing.T, caller string, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		_, err := f.locks.Lock(context.Background(), showtimeID, id, caller)
		require.NoError(t, err)
	}
}

func (f *fixture) book(t *testing.T, caller string, ids ...int64) *domain.Booking {
	t.Helper()
	f.lockAll(t, caller, ids...)
	b, err := f.booking.CreateBooking(context.Background(), services.CreateBookingRequest{CallerID: caller, SeatIDs: ids})
	require.NoError(t, err)
	return b
}
