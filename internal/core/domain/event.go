package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingExpired   EventType = "booking.expired"
	EventBookingUsed      EventType = "booking.used"
)

// BookingEvent is emitted after every booking lifecycle transition. It carries
// enough for downstream consumers to act without reading the store.
type BookingEvent struct {
	Type       EventType     `json:"type"`
	BookingRef uuid.UUID     `json:"booking_ref"`
	Owner      string        `json:"owner"`
	ShowtimeID int64         `json:"showtime_id"`
	SeatIDs    []int64       `json:"seat_ids"`
	Status     BookingStatus `json:"status"`
	TotalCents int64         `json:"total_cents"`
	Currency   string        `json:"currency"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func EventFor(t EventType, b Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       t,
		BookingRef: b.Ref,
		Owner:      b.Owner,
		ShowtimeID: b.ShowtimeID,
		SeatIDs:    append([]int64(nil), b.SeatIDs...),
		Status:     b.Status,
		TotalCents: b.TotalCents,
		Currency:   b.Currency,
		OccurredAt: at,
	}
}
