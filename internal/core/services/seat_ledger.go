package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/core/ports"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
)

// SeatLedger is the single source of truth for seat status. Every change to
// a seat goes through CompareAndSet; reads of a single seat always hit the
// store, while showtime snapshots may be served from the cache.
type SeatLedger struct {
	seats ports.SeatRepository
	cache ports.SeatCache
	clock clock.Clock
	log   *logrus.Logger
}

func NewSeatLedger(seats ports.SeatRepository, cache ports.SeatCache, clk clock.Clock, log *logrus.Logger) *SeatLedger {
	if cache == nil {
		cache = NopSeatCache{}
	}
	return &SeatLedger{seats: seats, cache: cache, clock: clk, log: log}
}

// GetSeats returns an ordered snapshot of a showtime's seats.
func (l *SeatLedger) GetSeats(ctx context.Context, showtimeID int64) ([]domain.Seat, error) {
	if seats, ok, err := l.cache.GetSeats(ctx, showtimeID); err != nil {
		l.log.WithError(err).WithField("showtime_id", showtimeID).Warn("seat cache read failed")
	} else if ok {
		return seats, nil
	}

	seats, err := l.seats.ListByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("list seats for showtime %d: %w", showtimeID, err)
	}
	if seats == nil {
		seats = []domain.Seat{}
	}

	if err := l.cache.SetSeats(ctx, showtimeID, seats); err != nil {
		l.log.WithError(err).WithField("showtime_id", showtimeID).Warn("seat cache write failed")
	}

	return seats, nil
}

func (l *SeatLedger) Seat(ctx context.Context, seatID int64) (*domain.Seat, error) {
	return l.seats.GetByID(ctx, seatID)
}

func (l *SeatLedger) SeatsOfBooking(ctx context.Context, ref uuid.UUID) ([]domain.Seat, error) {
	return l.seats.ListByBooking(ctx, ref)
}

// CompareAndSet applies t if the seat is still at t.ExpectedVersion. On
// success the version has been bumped and the showtime snapshot dropped from
// the cache. A stale view yields domain.ErrVersionConflict; callers re-read
// and decide again rather than retrying blindly.
func (l *SeatLedger) CompareAndSet(ctx context.Context, t domain.SeatTransition) (*domain.Seat, error) {
	seat, err := l.seats.CompareAndSet(ctx, t, l.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := l.cache.Invalidate(ctx, seat.ShowtimeID); err != nil {
		l.log.WithError(err).WithField("showtime_id", seat.ShowtimeID).Warn("seat cache invalidate failed")
	}

	return seat, nil
}

type SeedSeatsRequest struct {
	ShowtimeID  int64
	Rows        []string
	SeatsPerRow int
	PriceCents  int64
}

// SeedShowtime creates the seat grid for a showtime, every seat AVAILABLE.
func (l *SeatLedger) SeedShowtime(ctx context.Context, req SeedSeatsRequest) ([]domain.Seat, error) {
	if req.ShowtimeID <= 0 || len(req.Rows) == 0 || req.SeatsPerRow <= 0 || req.PriceCents < 0 {
		return nil, fmt.Errorf("%w: showtime, rows, seats per row and price are required", domain.ErrInvalidInput)
	}

	seats := make([]domain.Seat, 0, len(req.Rows)*req.SeatsPerRow)
	for _, row := range req.Rows {
		if row == "" {
			return nil, fmt.Errorf("%w: empty row label", domain.ErrInvalidInput)
		}
		for n := 1; n <= req.SeatsPerRow; n++ {
			seats = append(seats, domain.Seat{
				ShowtimeID: req.ShowtimeID,
				Row:        row,
				Number:     n,
				PriceCents: req.PriceCents,
				Status:     domain.SeatAvailable,
				Version:    1,
			})
		}
	}

	created, err := l.seats.CreateSeats(ctx, seats)
	if err != nil {
		return nil, fmt.Errorf("create seats: %w", err)
	}

	if err := l.cache.Invalidate(ctx, req.ShowtimeID); err != nil {
		l.log.WithError(err).WithField("showtime_id", req.ShowtimeID).Warn("seat cache invalidate failed")
	}

	l.log.WithFields(logrus.Fields{"showtime_id": req.ShowtimeID, "seats": len(created)}).Info("showtime seats created")
	return created, nil
}

// release returns a seat to AVAILABLE from whatever state the caller saw it
// in. A conflict means someone else already moved it, which is reported but
// harmless for reclaim paths.
func (l *SeatLedger) release(ctx context.Context, seat domain.Seat) error {
	_, err := l.CompareAndSet(ctx, domain.ToAvailable(seat))
	if errors.Is(err, domain.ErrVersionConflict) {
		return err
	}
	if err != nil {
		return fmt.Errorf("release seat %d: %w", seat.ID, err)
	}
	return nil
}

// NopSeatCache is used when no cache is configured.
type NopSeatCache struct{}

func (NopSeatCache) GetSeats(context.Context, int64) ([]domain.Seat, bool, error) {
	return nil, false, nil
}

func (NopSeatCache) SetSeats(context.Context, int64, []domain.Seat) error { return nil }

func (NopSeatCache) Invalidate(context.Context, int64) error { return nil }
