package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/showtime_booking/internal/adapter/repository/memory"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/core/ports"
	"github.com/srgjo27/showtime_booking/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_ReleasesLapsedLock(t *testing.T) {
	f := newFixture(t, fixtureOpts{lockTTL: 5 * time.Minute})
	f.seed(t, 2)
	f.lockAll(t, "u1", 2)
	locked := f.seat(t, 2)

	f.clock.Advance(6 * time.Minute)
	res := f.sweeper.Sweep(context.Background())

	assert.Equal(t, services.SweepResult{LocksReleased: 1}, res)
	seat := f.seat(t, 2)
	assert.Equal(t, domain.SeatAvailable, seat.Status)
	assert.Equal(t, locked.Version+1, seat.Version)
	assert.Empty(t, seat.LockOwner)
	assert.Nil(t, seat.LockExpiresAt)
}

func TestSweep_LeavesLiveLocksAlone(t *testing.T) {
	f := newFixture(t, fixtureOpts{lockTTL: 5 * time.Minute})
	f.seed(t, 1)
	f.lockAll(t, "u1", 1)

	f.clock.Advance(4 * time.Minute)
	res := f.sweeper.Sweep(context.Background())

	assert.True(t, res.Empty())
	assert.Equal(t, domain.SeatLocked, f.seat(t, 1).Status)
}

func TestSweep_ExpiresOverduePendingBookings(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, 3)
	overdue := f.book(t, "u1", 1, 2)
	paid := f.book(t, "u2", 3)
	ctx := context.Background()
	_, err := f.booking.ConfirmPayment(ctx, paid.Ref, domain.PaymentResult{Success: true, PaymentRef: "pi_1"})
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)
	res := f.sweeper.Sweep(ctx)

	assert.Equal(t, 1, res.BookingsExpired)
	stored, err := f.store.GetByRef(ctx, overdue.Ref)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingExpired, stored.Status)
	assert.Equal(t, domain.SeatAvailable, f.seat(t, 1).Status)
	assert.Equal(t, domain.SeatAvailable, f.seat(t, 2).Status)
	assert.Equal(t, domain.SeatBooked, f.seat(t, 3).Status)

	_, err = f.booking.ConfirmPayment(ctx, overdue.Ref, domain.PaymentResult{Success: true})
	assert.ErrorIs(t, err, domain.ErrBookingExpired)
}

func TestSweep_ReleasesOrphanedBookedSeats(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	seats := f.seed(t, 1)
	ctx := context.Background()

	// A booked seat whose booking record was never written.
	_, err := f.ledger.CompareAndSet(ctx, domain.ToBooked(seats[0], uuid.New()))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	assert.Zero(t, f.sweeper.Sweep(ctx).OrphansReleased)

	f.clock.Advance(2 * time.Minute)
	res := f.sweeper.Sweep(ctx)

	assert.Equal(t, 1, res.OrphansReleased)
	assert.Equal(t, domain.SeatAvailable, f.seat(t, 1).Status)
}

// droppingSeats fails the next release of a seat while armed.
type droppingSeats struct {
	*memory.Store
	armed bool
}

func (d *droppingSeats) CompareAndSet(ctx context.Context, t domain.SeatTransition, at time.Time) (*domain.Seat, error) {
	if d.armed && t.Status == domain.SeatAvailable {
		d.armed = false
		return nil, errors.New("connection reset by peer")
	}
	return d.Store.CompareAndSet(ctx, t, at)
}

func TestSweep_ReleasesSeatsLeftByClosedBooking(t *testing.T) {
	seats := &droppingSeats{}
	f := newFixture(t, fixtureOpts{wrapSeats: func(s *memory.Store) ports.SeatRepository {
		seats.Store = s
		return seats
	}})
	f.seed(t, 2)
	ctx := context.Background()
	b := f.book(t, "u1", 1, 2)

	seats.armed = true
	cancelled, err := f.booking.Cancel(ctx, b.Ref, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)
	assert.Equal(t, domain.SeatBooked, f.seat(t, 1).Status)

	f.clock.Advance(3 * time.Minute)
	res := f.sweeper.Sweep(ctx)

	assert.Equal(t, 1, res.OrphansReleased)
	assert.Equal(t, domain.SeatAvailable, f.seat(t, 1).Status)
	assert.Equal(t, domain.SeatAvailable, f.seat(t, 2).Status)
}

func TestSweep_LeavesLiveBookingsSeatsAlone(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, 1)
	ctx := context.Background()
	b := f.book(t, "u1", 1)
	_, err := f.booking.ConfirmPayment(ctx, b.Ref, domain.PaymentResult{Success: true, PaymentRef: "pi_1"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	assert.Zero(t, f.sweeper.Sweep(ctx).OrphansReleased)
	assert.Equal(t, domain.SeatBooked, f.seat(t, 1).Status)
}

func TestSweeperRun_StopsWithContext(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.sweeper.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
