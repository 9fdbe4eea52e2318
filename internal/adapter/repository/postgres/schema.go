package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS showtime_seats (
	id              BIGSERIAL PRIMARY KEY,
	showtime_id     BIGINT      NOT NULL,
	seat_row        TEXT        NOT NULL,
	seat_number     INT         NOT NULL,
	price_cents     BIGINT      NOT NULL DEFAULT 0,
	status          TEXT        NOT NULL DEFAULT 'AVAILABLE'
	                CHECK (status IN ('AVAILABLE', 'LOCKED', 'BOOKED')),
	version         BIGINT      NOT NULL DEFAULT 1,
	lock_owner      TEXT,
	lock_expires_at TIMESTAMPTZ,
	booking_ref     UUID,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (showtime_id, seat_row, seat_number)
);

CREATE INDEX IF NOT EXISTS idx_showtime_seats_lock_expiry
	ON showtime_seats (lock_expires_at) WHERE status = 'LOCKED';

CREATE INDEX IF NOT EXISTS idx_showtime_seats_booking_ref
	ON showtime_seats (booking_ref) WHERE booking_ref IS NOT NULL;

CREATE TABLE IF NOT EXISTS bookings (
	id           BIGSERIAL PRIMARY KEY,
	ref          UUID        NOT NULL UNIQUE,
	owner        TEXT        NOT NULL,
	showtime_id  BIGINT      NOT NULL,
	status       TEXT        NOT NULL
	             CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELLED', 'EXPIRED', 'USED')),
	total_cents  BIGINT      NOT NULL,
	currency     TEXT        NOT NULL,
	payment_ref  TEXT        NOT NULL DEFAULT '',
	version      BIGINT      NOT NULL DEFAULT 1,
	created_at   TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL,
	confirmed_at TIMESTAMPTZ,
	closed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_bookings_pending_expiry
	ON bookings (expires_at) WHERE status = 'PENDING';

CREATE INDEX IF NOT EXISTS idx_bookings_owner ON bookings (owner, created_at DESC);

CREATE TABLE IF NOT EXISTS booking_items (
	id           BIGSERIAL PRIMARY KEY,
	booking_id   BIGINT NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
	kind         TEXT   NOT NULL,
	seat_id      BIGINT,
	description  TEXT   NOT NULL,
	amount_cents BIGINT NOT NULL
);
`

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
