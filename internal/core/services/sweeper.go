package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/core/ports"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
)

type SweeperConfig struct {
	Interval    time.Duration
	Batch       int
	OrphanGrace time.Duration
}

type SweepResult struct {
	LocksReleased   int
	BookingsExpired int
	OrphansReleased int
}

func (r SweepResult) Empty() bool {
	return r.LocksReleased == 0 && r.BookingsExpired == 0 && r.OrphansReleased == 0
}

// Sweeper reclaims lapsed locks, overdue PENDING bookings and BOOKED seats
// left without a booking record. All writes are compare-and-set, so any
// number of sweepers can run next to live traffic.
type Sweeper struct {
	ledger   *SeatLedger
	bookings ports.BookingRepository
	booking  *BookingService
	clock    clock.Clock
	cfg      SweeperConfig
	log      *logrus.Logger
}

func NewSweeper(ledger *SeatLedger, bookings ports.BookingRepository, booking *BookingService, clk clock.Clock, cfg SweeperConfig, log *logrus.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	if cfg.OrphanGrace <= 0 {
		cfg.OrphanGrace = 2 * time.Minute
	}
	return &Sweeper{
		ledger:   ledger,
		bookings: bookings,
		booking:  booking,
		clock:    clk,
		cfg:      cfg,
		log:      log,
	}
}

// Run sweeps on every tick until ctx is done. Failures are logged and the
// next tick tries again.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.cfg.Interval).Info("expiry sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			res := s.Sweep(ctx)
			if !res.Empty() {
				s.log.WithFields(logrus.Fields{
					"locks_released":   res.LocksReleased,
					"bookings_expired": res.BookingsExpired,
					"orphans_released": res.OrphansReleased,
				}).Info("sweep reclaimed seats")
			}
		}
	}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	res.LocksReleased = s.releaseExpiredLocks(ctx)
	res.BookingsExpired = s.expirePendingBookings(ctx)
	res.OrphansReleased = s.releaseOrphans(ctx)
	return res
}

func (s *Sweeper) releaseExpiredLocks(ctx context.Context) int {
	now := s.clock.Now()
	seats, err := s.ledger.seats.ListExpiredLocks(ctx, now, s.cfg.Batch)
	if err != nil {
		s.log.WithError(err).Warn("sweeper: listing expired locks failed")
		return 0
	}

	released := 0
	for _, seat := range seats {
		// The listing may be stale by now; the CAS decides.
		if !seat.LockLapsed(now) {
			continue
		}
		err := s.ledger.release(ctx, seat)
		switch {
		case err == nil:
			released++
			s.log.WithFields(logrus.Fields{
				"seat_id":     seat.ID,
				"showtime_id": seat.ShowtimeID,
				"caller":      seat.LockOwner,
			}).Debug("expired lock released")
		case errors.Is(err, domain.ErrVersionConflict):
		default:
			s.log.WithError(err).WithField("seat_id", seat.ID).Warn("sweeper: releasing expired lock failed")
		}
	}
	return released
}

func (s *Sweeper) expirePendingBookings(ctx context.Context) int {
	bookings, err := s.bookings.ListExpiredPending(ctx, s.clock.Now(), s.cfg.Batch)
	if err != nil {
		s.log.WithError(err).Warn("sweeper: listing expired bookings failed")
		return 0
	}

	expired := 0
	for _, b := range bookings {
		_, err := s.booking.Expire(ctx, b)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, domain.ErrConflict):
			// Confirmed, cancelled or expired by someone else meanwhile.
		default:
			s.log.WithError(err).WithField("booking_ref", b.Ref).Warn("sweeper: expiring booking failed")
		}
	}
	return expired
}

func (s *Sweeper) releaseOrphans(ctx context.Context) int {
	before := s.clock.Now().Add(-s.cfg.OrphanGrace)
	seats, err := s.ledger.seats.ListOrphanedBooked(ctx, before, s.cfg.Batch)
	if err != nil {
		s.log.WithError(err).Warn("sweeper: listing orphaned seats failed")
		return 0
	}

	released := 0
	for _, seat := range seats {
		err := s.ledger.release(ctx, seat)
		switch {
		case err == nil:
			released++
			s.log.WithFields(logrus.Fields{"seat_id": seat.ID, "showtime_id": seat.ShowtimeID}).Warn("orphaned booked seat released")
		case errors.Is(err, domain.ErrVersionConflict):
		default:
			s.log.WithError(err).WithField("seat_id", seat.ID).Warn("sweeper: releasing orphaned seat failed")
		}
	}
	return released
}
