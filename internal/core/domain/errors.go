package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every specific error below wraps exactly one of them so
// transports can map by class with errors.Is.
var (
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstream     = errors.New("upstream failure")
)

var (
	ErrSeatNotFound    = fmt.Errorf("%w: seat", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("%w: booking", ErrNotFound)

	// Contention. Expected under load; the caller re-fetches and re-selects.
	ErrAlreadyLocked     = fmt.Errorf("%w: seat is locked by another caller", ErrConflict)
	ErrAlreadyBooked     = fmt.Errorf("%w: seat is already booked", ErrConflict)
	ErrSeatConflict      = fmt.Errorf("%w: seat changed while booking, please re-select", ErrConflict)
	ErrVersionConflict   = fmt.Errorf("%w: stale version", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: booking is not in a state that allows this", ErrConflict)

	// Timeout-driven state loss.
	ErrLockExpired    = fmt.Errorf("%w: seat lock expired", ErrConflict)
	ErrBookingExpired = fmt.Errorf("%w: booking expired before payment", ErrConflict)

	// Ownership.
	ErrNotOwner         = fmt.Errorf("%w: caller does not own this resource", ErrForbidden)
	ErrSeatsNotReserved = fmt.Errorf("%w: seats are not reserved by caller", ErrForbidden)

	ErrNoSeats        = fmt.Errorf("%w: no seats selected", ErrInvalidInput)
	ErrMixedShowtimes = fmt.Errorf("%w: seats belong to different showtimes", ErrInvalidInput)
	ErrTotalMismatch  = fmt.Errorf("%w: expected total does not match", ErrInvalidInput)

	ErrPaymentUnavailable = fmt.Errorf("%w: payment collaborator unavailable", ErrUpstream)
)

// Reason returns a short machine-readable name for a known error, used by
// callers to tell a lapsed hold from a contested one.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	switch {
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	}
	return "internal"
}

var reasons = []struct {
	err  error
	name string
}{
	{ErrSeatNotFound, "seat_not_found"},
	{ErrBookingNotFound, "booking_not_found"},
	{ErrAlreadyLocked, "already_locked"},
	{ErrAlreadyBooked, "already_booked"},
	{ErrSeatConflict, "seat_conflict"},
	{ErrVersionConflict, "version_conflict"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrLockExpired, "lock_expired"},
	{ErrBookingExpired, "booking_expired"},
	{ErrNotOwner, "not_owner"},
	{ErrSeatsNotReserved, "seats_not_reserved"},
	{ErrNoSeats, "no_seats"},
	{ErrMixedShowtimes, "mixed_showtimes"},
	{ErrTotalMismatch, "total_mismatch"},
	{ErrPaymentUnavailable, "payment_unavailable"},
}
