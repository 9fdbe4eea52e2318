package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingExpired   BookingStatus = "EXPIRED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingUsed      BookingStatus = "USED"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled, BookingExpired},
	BookingConfirmed: {BookingUsed, BookingCancelled},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// HoldsSeats reports whether a booking in this status still owns its seats.
func (s BookingStatus) HoldsSeats() bool {
	return s == BookingPending || s == BookingConfirmed || s == BookingUsed
}

type ItemKind string

const (
	ItemSeat       ItemKind = "SEAT"
	ItemBookingFee ItemKind = "BOOKING_FEE"
)

type Booking struct {
	ID          int64
	Ref         uuid.UUID
	Owner       string
	ShowtimeID  int64
	SeatIDs     []int64
	Items       []BookingItem
	Status      BookingStatus
	TotalCents  int64
	Currency    string
	PaymentRef  string
	Version     int64
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
	ClosedAt    *time.Time
}

type BookingItem struct {
	Kind        ItemKind
	SeatID      int64
	Description string
	AmountCents int64
}

// BookingTransition moves a booking between statuses with compare-and-set
// semantics on Version.
type BookingTransition struct {
	Ref             uuid.UUID
	ExpectedVersion int64
	Status          BookingStatus
	PaymentRef      string
	At              time.Time
}

// Apply returns the booking as it looks after t succeeds.
func (t BookingTransition) Apply(b Booking) Booking {
	b.Status = t.Status
	b.Version = t.ExpectedVersion + 1
	if t.PaymentRef != "" {
		b.PaymentRef = t.PaymentRef
	}

	at := t.At
	switch t.Status {
	case BookingConfirmed:
		b.ConfirmedAt = &at
	case BookingCancelled, BookingExpired, BookingUsed:
		b.ClosedAt = &at
	}

	return b
}

// PaymentResult is what the payment collaborator reports for a booking.
type PaymentResult struct {
	Success    bool
	PaymentRef string
	Reason     string
}
