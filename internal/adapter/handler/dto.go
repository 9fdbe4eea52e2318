package handler

import (
	"time"

	"github.com/srgjo27/showtime_booking/internal/core/domain"
)

type seatResponse struct {
	ID            int64      `json:"id"`
	ShowtimeID    int64      `json:"showtime_id"`
	Row           string     `json:"row"`
	Number        int        `json:"number"`
	Label         string     `json:"label"`
	PriceCents    int64      `json:"price_cents"`
	Status        string     `json:"status"`
	Version       int64      `json:"version"`
	LockExpiresAt *time.Time `json:"lock_expires_at,omitempty"`
	HeldByYou     bool       `json:"held_by_you,omitempty"`
}

// toSeatResponse never exposes who holds a seat or which booking owns it.
func toSeatResponse(seat domain.Seat, caller string) seatResponse {
	resp := seatResponse{
		ID:         seat.ID,
		ShowtimeID: seat.ShowtimeID,
		Row:        seat.Row,
		Number:     seat.Number,
		Label:      seat.Label(),
		PriceCents: seat.PriceCents,
		Status:     string(seat.Status),
		Version:    seat.Version,
	}
	if caller != "" && seat.Status == domain.SeatLocked && seat.LockOwner == caller {
		resp.HeldByYou = true
		resp.LockExpiresAt = seat.LockExpiresAt
	}
	return resp
}

type lockResponse struct {
	SeatID     int64     `json:"seat_id"`
	ShowtimeID int64     `json:"showtime_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	Version    int64     `json:"version"`
}

func toLockResponse(l domain.Lock) lockResponse {
	return lockResponse{SeatID: l.SeatID, ShowtimeID: l.ShowtimeID, ExpiresAt: l.ExpiresAt, Version: l.Version}
}

type bookingItemResponse struct {
	Kind        string `json:"kind"`
	SeatID      int64  `json:"seat_id,omitempty"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

type bookingResponse struct {
	BookingRef  string                `json:"booking_ref"`
	Owner       string                `json:"owner,omitempty"`
	ShowtimeID  int64                 `json:"showtime_id"`
	SeatIDs     []int64               `json:"seat_ids"`
	Items       []bookingItemResponse `json:"items"`
	Status      string                `json:"status"`
	TotalCents  int64                 `json:"total_cents"`
	Currency    string                `json:"currency"`
	PaymentRef  string                `json:"payment_ref,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	ExpiresAt   time.Time             `json:"expires_at"`
	ConfirmedAt *time.Time            `json:"confirmed_at,omitempty"`
	ClosedAt    *time.Time            `json:"closed_at,omitempty"`
}

// toBookingResponse exposes the opaque ref only, never the internal id.
func toBookingResponse(b domain.Booking, withOwner bool) bookingResponse {
	items := make([]bookingItemResponse, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, bookingItemResponse{
			Kind:        string(it.Kind),
			SeatID:      it.SeatID,
			Description: it.Description,
			AmountCents: it.AmountCents,
		})
	}

	resp := bookingResponse{
		BookingRef:  b.Ref.String(),
		ShowtimeID:  b.ShowtimeID,
		SeatIDs:     b.SeatIDs,
		Items:       items,
		Status:      string(b.Status),
		TotalCents:  b.TotalCents,
		Currency:    b.Currency,
		PaymentRef:  b.PaymentRef,
		CreatedAt:   b.CreatedAt,
		ExpiresAt:   b.ExpiresAt,
		ConfirmedAt: b.ConfirmedAt,
		ClosedAt:    b.ClosedAt,
	}
	if resp.SeatIDs == nil {
		resp.SeatIDs = []int64{}
	}
	if withOwner {
		resp.Owner = b.Owner
	}
	return resp
}

func toBookingResponses(bookings []domain.Booking, withOwner bool) []bookingResponse {
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b, withOwner))
	}
	return out
}
