package ports

import (
	"context"

	"github.com/srgjo27/showtime_booking/internal/core/domain"
)

// SeatCache holds short-lived seat map snapshots per showtime. A miss is
// reported as ok == false with a nil error.
type SeatCache interface {
	GetSeats(ctx context.Context, showtimeID int64) (seats []domain.Seat, ok bool, err error)
	SetSeats(ctx context.Context, showtimeID int64, seats []domain.Seat) error
	Invalidate(ctx context.Context, showtimeID int64) error
}

type PaymentRequest struct {
	BookingRef     string
	AmountCents    int64
	Currency       string
	CardNumber     string
	ExpiryMonth    string
	ExpiryYear     string
	CVV            string
	CardholderName string
}

// PaymentGateway is the external payment collaborator. A returned error means
// the gateway could not be reached or gave no verdict; a declined card is a
// result with Success == false.
type PaymentGateway interface {
	Charge(ctx context.Context, req PaymentRequest) (domain.PaymentResult, error)
	Refund(ctx context.Context, paymentRef string, amountCents int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.BookingEvent) error
}
