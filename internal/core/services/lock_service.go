package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
)

const defaultLockTTL = 10 * time.Minute

// LockService grants, renews and releases per-seat holds. Locking is never
// all-or-nothing across seats; each seat succeeds or fails on its own and
// nothing waits for a contested seat.
type LockService struct {
	ledger *SeatLedger
	clock  clock.Clock
	ttl    time.Duration
	log    *logrus.Logger
}

type LockServiceOption func(*LockService)

// WithLockTTL overrides the default hold lifetime.
func WithLockTTL(d time.Duration) LockServiceOption {
	return func(s *LockService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func NewLockService(ledger *SeatLedger, clk clock.Clock, log *logrus.Logger, opts ...LockServiceOption) *LockService {
	svc := &LockService{
		ledger: ledger,
		clock:  clk,
		ttl:    defaultLockTTL,
		log:    log,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *LockService) TTL() time.Duration { return s.ttl }

// Lock grants callerID a hold on seatID. Re-locking a seat the caller already
// holds extends it. A lapsed hold, whoever owned it, may be taken over.
func (s *LockService) Lock(ctx context.Context, showtimeID, seatID int64, callerID string) (*domain.Lock, error) {
	if callerID == "" {
		return nil, fmt.Errorf("%w: caller id is required", domain.ErrInvalidInput)
	}

	seat, err := s.ledger.Seat(ctx, seatID)
	if err != nil {
		return nil, err
	}
	if seat.ShowtimeID != showtimeID {
		return nil, domain.ErrSeatNotFound
	}

	now := s.clock.Now()
	fields := logrus.Fields{"seat_id": seatID, "showtime_id": showtimeID, "caller": callerID}

	if err := lockable(seat, callerID, now); err != nil {
		s.log.WithFields(fields).WithField("reason", domain.Reason(err)).Debug("seat lock refused")
		return nil, err
	}

	renewal := seat.HeldBy(callerID, now)
	locked, err := s.ledger.CompareAndSet(ctx, domain.ToLocked(*seat, callerID, now.Add(s.ttl)))
	if err != nil {
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		return s.afterLostRace(ctx, seatID, callerID, fields)
	}

	lock := domain.LockOf(*locked)
	if renewal {
		s.log.WithFields(fields).WithField("expires_at", lock.ExpiresAt).Debug("seat lock renewed")
	} else {
		s.log.WithFields(fields).WithField("expires_at", lock.ExpiresAt).Info("seat locked")
	}

	return &lock, nil
}

// afterLostRace re-reads a seat whose CAS just failed and reports why. It does
// not retry the lock.
func (s *LockService) afterLostRace(ctx context.Context, seatID int64, callerID string, fields logrus.Fields) (*domain.Lock, error) {
	current, err := s.ledger.Seat(ctx, seatID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if current.HeldBy(callerID, now) {
		lock := domain.LockOf(*current)
		return &lock, nil
	}

	err = lockable(current, callerID, now)
	if err == nil {
		err = domain.ErrSeatConflict
	}
	s.log.WithFields(fields).WithField("reason", domain.Reason(err)).Debug("seat lock lost race")
	return nil, err
}

func lockable(seat *domain.Seat, callerID string, now time.Time) error {
	switch seat.Status {
	case domain.SeatBooked:
		return domain.ErrAlreadyBooked
	case domain.SeatLocked:
		if seat.LockOwner != callerID && !seat.LockLapsed(now) {
			return domain.ErrAlreadyLocked
		}
	}
	return nil
}

// Release returns a seat held by callerID to AVAILABLE. Seats not held by
// the caller are left untouched and reported as domain.ErrNotOwner.
func (s *LockService) Release(ctx context.Context, showtimeID, seatID int64, callerID string) error {
	seat, err := s.ledger.Seat(ctx, seatID)
	if err != nil {
		return err
	}
	if seat.ShowtimeID != showtimeID {
		return domain.ErrSeatNotFound
	}

	fields := logrus.Fields{"seat_id": seatID, "showtime_id": seat.ShowtimeID, "caller": callerID}

	if seat.Status != domain.SeatLocked || seat.LockOwner != callerID {
		s.log.WithFields(fields).Info("release refused: caller does not hold seat")
		return domain.ErrNotOwner
	}

	if err := s.ledger.release(ctx, *seat); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			s.log.WithFields(fields).Debug("seat moved before release")
			return domain.ErrSeatConflict
		}
		return err
	}

	s.log.WithFields(fields).Info("seat released")
	return nil
}

// ReleaseAll drops every hold callerID has in a showtime and returns how many
// seats went back to AVAILABLE.
func (s *LockService) ReleaseAll(ctx context.Context, showtimeID int64, callerID string) (int, error) {
	seats, err := s.ledger.seats.ListLockedBy(ctx, showtimeID, callerID)
	if err != nil {
		return 0, fmt.Errorf("list held seats: %w", err)
	}

	released := 0
	for _, seat := range seats {
		err := s.ledger.release(ctx, seat)
		switch {
		case err == nil:
			released++
		case errors.Is(err, domain.ErrVersionConflict):
			// Already reclaimed or re-locked.
		default:
			return released, err
		}
	}

	s.log.WithFields(logrus.Fields{"showtime_id": showtimeID, "caller": callerID, "released": released}).Info("caller holds released")
	return released, nil
}

// VerifyHeld loads every seat and checks that callerID holds a live lock on
// it. It changes nothing. A hold of the caller's that has lapsed is reported
// as domain.ErrLockExpired; any other miss as domain.ErrSeatsNotReserved.
func (s *LockService) VerifyHeld(ctx context.Context, seatIDs []int64, callerID string) ([]domain.Seat, error) {
	now := s.clock.Now()
	seats := make([]domain.Seat, 0, len(seatIDs))
	lapsed := false

	for _, id := range seatIDs {
		seat, err := s.ledger.Seat(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrSeatNotFound) {
				return nil, domain.ErrSeatsNotReserved
			}
			return nil, err
		}

		if seat.HeldBy(callerID, now) {
			seats = append(seats, *seat)
			continue
		}
		if seat.Status == domain.SeatLocked && seat.LockOwner == callerID {
			lapsed = true
			continue
		}
		return nil, domain.ErrSeatsNotReserved
	}

	if lapsed {
		return nil, domain.ErrLockExpired
	}
	return seats, nil
}
