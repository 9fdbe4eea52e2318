package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
)

const bookingColumns = `id, ref, owner, showtime_id, status, total_cents, currency, payment_ref, version, created_at, expires_at, confirmed_at, closed_at`

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	queryHeader := `
	INSERT INTO bookings (ref, owner, showtime_id, status, total_cents, currency, payment_ref, version, created_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
	RETURNING id
	`

	err = tx.QueryRowContext(ctx, queryHeader,
		booking.Ref, booking.Owner, booking.ShowtimeID, booking.Status, booking.TotalCents,
		booking.Currency, booking.PaymentRef, booking.CreatedAt, booking.ExpiresAt,
	).Scan(&booking.ID)
	if err != nil {
		return fmt.Errorf("failed to insert booking header: %w", err)
	}
	booking.Version = 1

	queryItem := `
	INSERT INTO booking_items (booking_id, kind, seat_id, description, amount_cents)
	VALUES ($1, $2, $3, $4, $5)
	`

	stmt, err := tx.PrepareContext(ctx, queryItem)
	if err != nil {
		return fmt.Errorf("failed to prepare item statement: %w", err)
	}

	defer stmt.Close()

	for _, item := range booking.Items {
		var seatID sql.NullInt64
		if item.Kind == domain.ItemSeat {
			seatID = sql.NullInt64{Int64: item.SeatID, Valid: true}
		}

		_, err := stmt.ExecContext(ctx, booking.ID, item.Kind, seatID, item.Description, item.AmountCents)
		if err != nil {
			return fmt.Errorf("failed to insert booking item %q: %w", item.Description, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *BookingRepository) GetByRef(ctx context.Context, ref uuid.UUID) (*domain.Booking, error) {
	bookings, err := r.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE ref = $1`, ref)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, domain.ErrBookingNotFound
	}

	return &bookings[0], nil
}

func (r *BookingRepository) ListByOwner(ctx context.Context, owner string) ([]domain.Booking, error) {
	return r.queryBookings(ctx, `
	SELECT `+bookingColumns+`
	FROM bookings
	WHERE owner = $1
	ORDER BY created_at DESC, id DESC
	`, owner)
}

func (r *BookingRepository) ListAll(ctx context.Context, limit int) ([]domain.Booking, error) {
	return r.queryBookings(ctx, `
	SELECT `+bookingColumns+`
	FROM bookings
	ORDER BY created_at DESC, id DESC
	LIMIT $1
	`, limit)
}

func (r *BookingRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	return r.queryBookings(ctx, `
	SELECT `+bookingColumns+`
	FROM bookings
	WHERE status = 'PENDING' AND expires_at < $1
	ORDER BY created_at
	LIMIT $2
	`, now, limit)
}

func (r *BookingRepository) Transition(ctx context.Context, t domain.BookingTransition) (*domain.Booking, error) {
	query := `
	UPDATE bookings
	SET status = $1,
		payment_ref = CASE WHEN $2 = '' THEN payment_ref ELSE $2 END,
		confirmed_at = CASE WHEN $1 = 'CONFIRMED' THEN $3 ELSE confirmed_at END,
		closed_at = CASE WHEN $1 IN ('CANCELLED', 'EXPIRED', 'USED') THEN $3 ELSE closed_at END,
		version = version + 1
	WHERE ref = $4 AND version = $5
	`

	result, err := r.db.ExecContext(ctx, query, string(t.Status), t.PaymentRef, t.At, t.Ref, t.ExpectedVersion)
	if err != nil {
		return nil, fmt.Errorf("transition booking %s: %w", t.Ref, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	current, err := r.GetByRef(ctx, t.Ref)
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, domain.ErrVersionConflict
	}

	return current, nil
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		var confirmedAt, closedAt sql.NullTime

		if err := rows.Scan(
			&b.ID,
			&b.Ref,
			&b.Owner,
			&b.ShowtimeID,
			&b.Status,
			&b.TotalCents,
			&b.Currency,
			&b.PaymentRef,
			&b.Version,
			&b.CreatedAt,
			&b.ExpiresAt,
			&confirmedAt,
			&closedAt,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}

		if confirmedAt.Valid {
			t := confirmedAt.Time
			b.ConfirmedAt = &t
		}
		if closedAt.Valid {
			t := closedAt.Time
			b.ClosedAt = &t
		}

		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	if err := r.attachItems(ctx, bookings); err != nil {
		return nil, err
	}

	return bookings, nil
}

// attachItems loads line items for all bookings in one round trip.
func (r *BookingRepository) attachItems(ctx context.Context, bookings []domain.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	ids := make([]int64, len(bookings))
	index := make(map[int64]int, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
		index[b.ID] = i
	}

	rows, err := r.db.QueryContext(ctx, `
	SELECT booking_id, kind, seat_id, description, amount_cents
	FROM booking_items
	WHERE booking_id = ANY($1)
	ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query booking items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bookingID int64
		var item domain.BookingItem
		var seatID sql.NullInt64

		if err := rows.Scan(&bookingID, &item.Kind, &seatID, &item.Description, &item.AmountCents); err != nil {
			return fmt.Errorf("scan booking item: %w", err)
		}

		i, ok := index[bookingID]
		if !ok {
			continue
		}
		if seatID.Valid {
			item.SeatID = seatID.Int64
		}

		b := &bookings[i]
		b.Items = append(b.Items, item)
		if item.Kind == domain.ItemSeat {
			b.SeatIDs = append(b.SeatIDs, item.SeatID)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate booking items: %w", err)
	}

	return nil
}
