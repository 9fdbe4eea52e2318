package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
)

const seatColumns = `id, showtime_id, seat_row, seat_number, price_cents, status, version, lock_owner, lock_expires_at, booking_ref, updated_at`

type SeatRepository struct {
	db *sql.DB
}

func NewSeatRepository(db *sql.DB) *SeatRepository {
	return &SeatRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(row rowScanner) (domain.Seat, error) {
	var seat domain.Seat
	var lockOwner sql.NullString
	var lockExpiresAt sql.NullTime
	var bookingRef uuid.NullUUID

	err := row.Scan(
		&seat.ID,
		&seat.ShowtimeID,
		&seat.Row,
		&seat.Number,
		&seat.PriceCents,
		&seat.Status,
		&seat.Version,
		&lockOwner,
		&lockExpiresAt,
		&bookingRef,
		&seat.UpdatedAt,
	)
	if err != nil {
		return seat, err
	}

	seat.LockOwner = lockOwner.String
	if lockExpiresAt.Valid {
		t := lockExpiresAt.Time
		seat.LockExpiresAt = &t
	}
	if bookingRef.Valid {
		ref := bookingRef.UUID
		seat.BookingRef = &ref
	}

	return seat, nil
}

func (r *SeatRepository) querySeats(ctx context.Context, query string, args ...any) ([]domain.Seat, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seats: %w", err)
	}
	defer rows.Close()

	var seats []domain.Seat
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seats: %w", err)
	}

	return seats, nil
}

func (r *SeatRepository) CreateSeats(ctx context.Context, seats []domain.Seat) ([]domain.Seat, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO showtime_seats (showtime_id, seat_row, seat_number, price_cents, status, version, updated_at)
	VALUES ($1, $2, $3, $4, 'AVAILABLE', 1, NOW())
	RETURNING `+seatColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare seat statement: %w", err)
	}

	defer stmt.Close()

	created := make([]domain.Seat, 0, len(seats))
	for _, seat := range seats {
		row := stmt.QueryRowContext(ctx, seat.ShowtimeID, seat.Row, seat.Number, seat.PriceCents)
		saved, err := scanSeat(row)
		if err != nil {
			return nil, fmt.Errorf("failed to insert seat %s: %w", seat.Label(), err)
		}
		created = append(created, saved)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}

func (r *SeatRepository) GetByID(ctx context.Context, seatID int64) (*domain.Seat, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+seatColumns+` FROM showtime_seats WHERE id = $1`, seatID)

	seat, err := scanSeat(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSeatNotFound
		}
		return nil, fmt.Errorf("get seat %d: %w", seatID, err)
	}

	return &seat, nil
}

func (r *SeatRepository) ListByShowtime(ctx context.Context, showtimeID int64) ([]domain.Seat, error) {
	return r.querySeats(ctx, `
	SELECT `+seatColumns+`
	FROM showtime_seats
	WHERE showtime_id = $1
	ORDER BY seat_row, seat_number
	`, showtimeID)
}

func (r *SeatRepository) ListByBooking(ctx context.Context, ref uuid.UUID) ([]domain.Seat, error) {
	return r.querySeats(ctx, `
	SELECT `+seatColumns+`
	FROM showtime_seats
	WHERE booking_ref = $1
	ORDER BY id
	`, ref)
}

func (r *SeatRepository) ListLockedBy(ctx context.Context, showtimeID int64, owner string) ([]domain.Seat, error) {
	return r.querySeats(ctx, `
	SELECT `+seatColumns+`
	FROM showtime_seats
	WHERE showtime_id = $1 AND status = 'LOCKED' AND lock_owner = $2
	ORDER BY id
	`, showtimeID, owner)
}

func (r *SeatRepository) ListExpiredLocks(ctx context.Context, now time.Time, limit int) ([]domain.Seat, error) {
	return r.querySeats(ctx, `
	SELECT `+seatColumns+`
	FROM showtime_seats
	WHERE status = 'LOCKED' AND lock_expires_at <= $1
	ORDER BY lock_expires_at
	LIMIT $2
	`, now, limit)
}

func (r *SeatRepository) ListOrphanedBooked(ctx context.Context, before time.Time, limit int) ([]domain.Seat, error) {
	return r.querySeats(ctx, `
	SELECT `+seatColumns+`
	FROM showtime_seats s
	WHERE s.status = 'BOOKED'
		AND s.updated_at < $1
		AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.ref = s.booking_ref AND b.status IN ('PENDING', 'CONFIRMED', 'USED')
		)
	ORDER BY s.id
	LIMIT $2
	`, before, limit)
}

// CompareAndSet writes the transition only if the row still carries the
// expected version, and never books a seat whose lock has lapsed at at. A
// miss is reported as domain.ErrVersionConflict.
func (r *SeatRepository) CompareAndSet(ctx context.Context, t domain.SeatTransition, at time.Time) (*domain.Seat, error) {
	query := `
	UPDATE showtime_seats
	SET status = $1,
		lock_owner = $2,
		lock_expires_at = $3,
		booking_ref = $4,
		version = version + 1,
		updated_at = $5
	WHERE id = $6 AND version = $7
		AND ($1 <> 'BOOKED' OR status <> 'LOCKED' OR lock_expires_at > $5)
	RETURNING ` + seatColumns

	var lockOwner sql.NullString
	if t.Status == domain.SeatLocked {
		lockOwner = sql.NullString{String: t.LockOwner, Valid: true}
	}

	var lockExpiresAt sql.NullTime
	if t.Status == domain.SeatLocked && t.LockExpiresAt != nil {
		lockExpiresAt = sql.NullTime{Time: *t.LockExpiresAt, Valid: true}
	}

	var bookingRef uuid.NullUUID
	if t.Status == domain.SeatBooked && t.BookingRef != nil {
		bookingRef = uuid.NullUUID{UUID: *t.BookingRef, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, query,
		t.Status, lockOwner, lockExpiresAt, bookingRef, at, t.SeatID, t.ExpectedVersion)

	seat, err := scanSeat(row)
	if err == nil {
		return &seat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("compare-and-set seat %d: %w", t.SeatID, err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM showtime_seats WHERE id = $1)`, t.SeatID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check seat %d: %w", t.SeatID, err)
	}
	if !exists {
		return nil, domain.ErrSeatNotFound
	}

	return nil, domain.ErrVersionConflict
}
