package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
)

// SeatRepository is the durable store behind the seat ledger. CompareAndSet
// is the only mutation of an existing seat; it returns
// domain.ErrVersionConflict when the stored version differs from the
// expected one.
type SeatRepository interface {
	CreateSeats(ctx context.Context, seats []domain.Seat) ([]domain.Seat, error)
	GetByID(ctx context.Context, seatID int64) (*domain.Seat, error)
	ListByShowtime(ctx context.Context, showtimeID int64) ([]domain.Seat, error)
	ListByBooking(ctx context.Context, ref uuid.UUID) ([]domain.Seat, error)
	ListLockedBy(ctx context.Context, showtimeID int64, owner string) ([]domain.Seat, error)
	ListExpiredLocks(ctx context.Context, now time.Time, limit int) ([]domain.Seat, error)
	// ListOrphanedBooked returns BOOKED seats last changed before the cutoff
	// whose booking is missing or no longer holds seats.
	ListOrphanedBooked(ctx context.Context, before time.Time, limit int) ([]domain.Seat, error)
	CompareAndSet(ctx context.Context, t domain.SeatTransition, at time.Time) (*domain.Seat, error)
}

// BookingRepository stores booking records. Transition applies only when the
// stored version matches and returns domain.ErrVersionConflict otherwise.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *domain.Booking) error
	GetByRef(ctx context.Context, ref uuid.UUID) (*domain.Booking, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.Booking, error)
	ListAll(ctx context.Context, limit int) ([]domain.Booking, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error)
	Transition(ctx context.Context, t domain.BookingTransition) (*domain.Booking, error)
}
