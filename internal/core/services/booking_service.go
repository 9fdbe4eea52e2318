package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/core/ports"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
)

type BookingConfig struct {
	PendingTTL      time.Duration
	Currency        string
	BookingFeeCents int64
}

func DefaultBookingConfig() BookingConfig {
	return BookingConfig{
		PendingTTL:      15 * time.Minute,
		Currency:        "INR",
		BookingFeeCents: 5000,
	}
}

type CreateBookingRequest struct {
	CallerID string
	SeatIDs  []int64
	// ExpectedTotalCents is the total the caller was shown. Nil skips the check.
	ExpectedTotalCents *int64
}

type PayRequest struct {
	CallerID       string
	CardNumber     string
	ExpiryMonth    string
	ExpiryYear     string
	CVV            string
	CardholderName string
}

// Verification is the venue gate's answer when redeeming a booking.
type Verification struct {
	Valid   bool
	Message string
	Booking *domain.Booking
}

// BookingService turns a caller's held seats into bookings and drives them
// through PENDING, CONFIRMED, CANCELLED, EXPIRED and USED.
type BookingService struct {
	ledger   *SeatLedger
	locks    *LockService
	bookings ports.BookingRepository
	payments ports.PaymentGateway
	events   ports.EventPublisher
	clock    clock.Clock
	cfg      BookingConfig
	log      *logrus.Logger
}

func NewBookingService(
	ledger *SeatLedger,
	locks *LockService,
	bookings ports.BookingRepository,
	payments ports.PaymentGateway,
	events ports.EventPublisher,
	clk clock.Clock,
	cfg BookingConfig,
	log *logrus.Logger,
) *BookingService {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultBookingConfig().PendingTTL
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultBookingConfig().Currency
	}
	return &BookingService{
		ledger:   ledger,
		locks:    locks,
		bookings: bookings,
		payments: payments,
		events:   events,
		clock:    clk,
		cfg:      cfg,
		log:      log,
	}
}

// CreateBooking mints a PENDING booking from seats the caller currently
// holds. Either every seat becomes BOOKED under the new booking or none
// does.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	seatIDs := uniqueSorted(req.SeatIDs)
	if len(seatIDs) == 0 {
		return nil, domain.ErrNoSeats
	}

	fields := logrus.Fields{"caller": req.CallerID, "seat_ids": seatIDs}

	held, err := s.locks.VerifyHeld(ctx, seatIDs, req.CallerID)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			s.log.WithFields(fields).Info("booking refused: seats not held by caller")
		} else if errors.Is(err, domain.ErrConflict) {
			s.log.WithFields(fields).WithField("reason", domain.Reason(err)).Debug("booking refused")
		}
		return nil, err
	}

	showtimeID := held[0].ShowtimeID
	for _, seat := range held[1:] {
		if seat.ShowtimeID != showtimeID {
			return nil, domain.ErrMixedShowtimes
		}
	}

	items, total := s.price(held)
	if req.ExpectedTotalCents != nil && *req.ExpectedTotalCents != total {
		return nil, fmt.Errorf("%w: expected %d, computed %d", domain.ErrTotalMismatch, *req.ExpectedTotalCents, total)
	}

	ref := uuid.New()
	fields["booking_ref"] = ref
	fields["showtime_id"] = showtimeID

	booked := make([]domain.Seat, 0, len(held))
	for _, seat := range held {
		next, err := s.ledger.CompareAndSet(ctx, domain.ToBooked(seat, ref))
		if err != nil {
			s.rollbackSeats(ctx, booked)
			if errors.Is(err, domain.ErrVersionConflict) {
				if seat.LockLapsed(s.clock.Now()) {
					s.log.WithFields(fields).WithField("seat_id", seat.ID).Debug("seat lock lapsed during booking, rolled back")
					return nil, domain.ErrLockExpired
				}
				s.log.WithFields(fields).WithField("seat_id", seat.ID).Debug("seat moved during booking, rolled back")
				return nil, domain.ErrSeatConflict
			}
			return nil, fmt.Errorf("promote seat %d: %w", seat.ID, err)
		}
		booked = append(booked, *next)
	}

	now := s.clock.Now()
	booking := &domain.Booking{
		Ref:        ref,
		Owner:      req.CallerID,
		ShowtimeID: showtimeID,
		SeatIDs:    seatIDs,
		Items:      items,
		Status:     domain.BookingPending,
		TotalCents: total,
		Currency:   s.cfg.Currency,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.PendingTTL),
	}

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		s.rollbackSeats(ctx, booked)
		s.log.WithFields(fields).WithError(err).Error("failed to write booking, seats rolled back")
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.WithFields(fields).WithField("total_cents", total).Info("booking created")
	s.publish(ctx, domain.EventBookingCreated, *booking)

	return booking, nil
}

func (s *BookingService) price(seats []domain.Seat) ([]domain.BookingItem, int64) {
	items := make([]domain.BookingItem, 0, len(seats)+1)
	var total int64

	for _, seat := range seats {
		items = append(items, domain.BookingItem{
			Kind:        domain.ItemSeat,
			SeatID:      seat.ID,
			Description: "Ticket: " + seat.Label(),
			AmountCents: seat.PriceCents,
		})
		total += seat.PriceCents
	}

	if s.cfg.BookingFeeCents > 0 {
		items = append(items, domain.BookingItem{
			Kind:        domain.ItemBookingFee,
			Description: "Online Booking Fee",
			AmountCents: s.cfg.BookingFeeCents,
		})
		total += s.cfg.BookingFeeCents
	}

	return items, total
}

// rollbackSeats reverts seats this call already promoted. They go back to
// AVAILABLE, not to the caller's lock.
func (s *BookingService) rollbackSeats(ctx context.Context, seats []domain.Seat) {
	for _, seat := range seats {
		if err := s.ledger.release(ctx, seat); err != nil {
			s.log.WithError(err).WithField("seat_id", seat.ID).Error("failed to roll back seat")
		}
	}
}

// ConfirmPayment applies the payment collaborator's verdict to a PENDING
// booking. Repeating a success on a CONFIRMED booking returns it unchanged.
func (s *BookingService) ConfirmPayment(ctx context.Context, ref uuid.UUID, result domain.PaymentResult) (*domain.Booking, error) {
	booking, err := s.bookings.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{"booking_ref": ref, "caller": booking.Owner, "status": booking.Status}

	switch booking.Status {
	case domain.BookingConfirmed, domain.BookingUsed:
		if result.Success {
			s.refundDuplicate(ctx, booking, result)
			return booking, nil
		}
		return nil, domain.ErrInvalidTransition
	case domain.BookingCancelled:
		if !result.Success {
			return booking, nil
		}
		s.refundLate(ctx, booking, result)
		return nil, domain.ErrInvalidTransition
	case domain.BookingExpired:
		if !result.Success {
			return booking, nil
		}
		s.refundLate(ctx, booking, result)
		return nil, domain.ErrBookingExpired
	}

	if !result.Success {
		s.log.WithFields(fields).WithField("reason", result.Reason).Info("payment failed, cancelling booking")
		return s.closeBooking(ctx, booking, domain.BookingCancelled, result.PaymentRef)
	}

	if !s.clock.Now().Before(booking.ExpiresAt) {
		if _, err := s.closeBooking(ctx, booking, domain.BookingExpired, ""); err != nil && !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		s.refundLate(ctx, booking, result)
		return nil, domain.ErrBookingExpired
	}

	confirmed, err := s.bookings.Transition(ctx, domain.BookingTransition{
		Ref:             ref,
		ExpectedVersion: booking.Version,
		Status:          domain.BookingConfirmed,
		PaymentRef:      result.PaymentRef,
		At:              s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return s.afterConcurrentConfirm(ctx, booking, result)
		}
		return nil, fmt.Errorf("confirm booking: %w", err)
	}

	s.log.WithFields(fields).WithField("payment_ref", result.PaymentRef).Info("booking confirmed")
	s.publish(ctx, domain.EventBookingConfirmed, *confirmed)

	return confirmed, nil
}

// afterConcurrentConfirm settles a lost race on a PENDING booking: another
// confirm that won is fine, anything else is a conflict. A charge the booking
// did not end up recording is refunded either way.
func (s *BookingService) afterConcurrentConfirm(ctx context.Context, seen *domain.Booking, result domain.PaymentResult) (*domain.Booking, error) {
	current, err := s.bookings.GetByRef(ctx, seen.Ref)
	if err != nil {
		s.refundLate(ctx, seen, result)
		return nil, err
	}
	s.refundDuplicate(ctx, current, result)

	switch current.Status {
	case domain.BookingConfirmed, domain.BookingUsed:
		return current, nil
	case domain.BookingExpired:
		return nil, domain.ErrBookingExpired
	}
	return nil, domain.ErrInvalidTransition
}

// refundDuplicate refunds a successful charge whose reference is not the one
// recorded on the booking.
func (s *BookingService) refundDuplicate(ctx context.Context, booking *domain.Booking, result domain.PaymentResult) {
	if !result.Success || result.PaymentRef == "" || result.PaymentRef == booking.PaymentRef {
		return
	}
	s.refundLate(ctx, booking, result)
}

func (s *BookingService) refundLate(ctx context.Context, booking *domain.Booking, result domain.PaymentResult) {
	if result.PaymentRef == "" || s.payments == nil {
		return
	}
	if err := s.payments.Refund(ctx, result.PaymentRef, booking.TotalCents); err != nil {
		s.log.WithError(err).WithField("booking_ref", booking.Ref).Error("refund of late payment failed")
		return
	}
	s.log.WithFields(logrus.Fields{"booking_ref": booking.Ref, "payment_ref": result.PaymentRef}).Info("late payment refunded")
}

// Pay charges the caller through the payment collaborator and applies the
// result. If the collaborator gives no verdict the booking stays PENDING.
func (s *BookingService) Pay(ctx context.Context, ref uuid.UUID, req PayRequest) (*domain.Booking, error) {
	booking, err := s.ownedBooking(ctx, ref, req.CallerID)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case domain.BookingConfirmed:
		return booking, nil
	case domain.BookingPending:
	case domain.BookingExpired:
		return nil, domain.ErrBookingExpired
	default:
		return nil, domain.ErrInvalidTransition
	}

	// No charge once the payment window has closed.
	if !s.clock.Now().Before(booking.ExpiresAt) {
		if _, err := s.closeBooking(ctx, booking, domain.BookingExpired, ""); err != nil && !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, domain.ErrBookingExpired
	}

	result, err := s.payments.Charge(ctx, ports.PaymentRequest{
		BookingRef:     ref.String(),
		AmountCents:    booking.TotalCents,
		Currency:       booking.Currency,
		CardNumber:     req.CardNumber,
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		CVV:            req.CVV,
		CardholderName: req.CardholderName,
	})
	if err != nil {
		s.log.WithError(err).WithField("booking_ref", ref).Error("payment collaborator unavailable, booking left pending")
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentUnavailable, err)
	}

	return s.ConfirmPayment(ctx, ref, result)
}

// Cancel lets the owner cancel a PENDING or CONFIRMED booking, releasing its
// seats. A confirmed payment is refunded best effort.
func (s *BookingService) Cancel(ctx context.Context, ref uuid.UUID, callerID string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if booking.Owner != callerID {
		s.log.WithFields(logrus.Fields{"booking_ref": ref, "caller": callerID}).Info("cancel refused: not owner")
		return nil, domain.ErrNotOwner
	}
	if !booking.Status.CanTransitionTo(domain.BookingCancelled) {
		return nil, domain.ErrInvalidTransition
	}

	wasConfirmed := booking.Status == domain.BookingConfirmed
	cancelled, err := s.closeBooking(ctx, booking, domain.BookingCancelled, "")
	if err != nil {
		return nil, err
	}

	if wasConfirmed && booking.PaymentRef != "" && s.payments != nil {
		if err := s.payments.Refund(ctx, booking.PaymentRef, booking.TotalCents); err != nil {
			s.log.WithError(err).WithField("booking_ref", ref).Error("refund after cancellation failed")
		}
	}

	return cancelled, nil
}

// Expire closes a PENDING booking whose payment window has passed. It is the
// sweeper's entry point.
func (s *BookingService) Expire(ctx context.Context, booking domain.Booking) (*domain.Booking, error) {
	if booking.Status != domain.BookingPending {
		return nil, domain.ErrInvalidTransition
	}
	return s.closeBooking(ctx, &booking, domain.BookingExpired, "")
}

// Redeem marks a CONFIRMED booking as USED at the venue. Every other state
// yields an invalid verification rather than an error.
func (s *BookingService) Redeem(ctx context.Context, ref uuid.UUID) (*Verification, error) {
	booking, err := s.bookings.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	var message string
	switch booking.Status {
	case domain.BookingConfirmed:
		used, err := s.bookings.Transition(ctx, domain.BookingTransition{
			Ref:             ref,
			ExpectedVersion: booking.Version,
			Status:          domain.BookingUsed,
			At:              s.clock.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("redeem booking: %w", err)
		}
		s.log.WithField("booking_ref", ref).Info("booking redeemed")
		s.publish(ctx, domain.EventBookingUsed, *used)
		return &Verification{Valid: true, Message: "Check-in successful.", Booking: used}, nil
	case domain.BookingUsed:
		message = "This ticket has already been used."
	case domain.BookingCancelled:
		message = "This booking has been cancelled."
	case domain.BookingExpired:
		message = "This booking has expired."
	case domain.BookingPending:
		message = "This booking is still pending payment."
	default:
		message = "Unknown booking status."
	}

	s.log.WithFields(logrus.Fields{"booking_ref": ref, "status": booking.Status}).Info("redeem refused")
	return &Verification{Valid: false, Message: message, Booking: booking}, nil
}

// Get returns a booking to its owner. Other callers get not found so refs
// cannot be probed.
func (s *BookingService) Get(ctx context.Context, ref uuid.UUID, callerID string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if booking.Owner != callerID {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

func (s *BookingService) ListMine(ctx context.Context, callerID string) ([]domain.Booking, error) {
	return s.bookings.ListByOwner(ctx, callerID)
}

func (s *BookingService) ListAll(ctx context.Context, limit int) ([]domain.Booking, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.bookings.ListAll(ctx, limit)
}

func (s *BookingService) ownedBooking(ctx context.Context, ref uuid.UUID, callerID string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if booking.Owner != callerID {
		return nil, domain.ErrNotOwner
	}
	return booking, nil
}

// closeBooking moves a booking into a terminal status and returns its seats
// to AVAILABLE. Seats already reclaimed elsewhere are skipped.
func (s *BookingService) closeBooking(ctx context.Context, booking *domain.Booking, status domain.BookingStatus, paymentRef string) (*domain.Booking, error) {
	closed, err := s.bookings.Transition(ctx, domain.BookingTransition{
		Ref:             booking.Ref,
		ExpectedVersion: booking.Version,
		Status:          status,
		PaymentRef:      paymentRef,
		At:              s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, fmt.Errorf("close booking %s: %w", booking.Ref, err)
	}

	released, err := s.releaseBookingSeats(ctx, booking.Ref)
	fields := logrus.Fields{"booking_ref": booking.Ref, "status": status, "seats_released": released}
	if err != nil {
		// The sweeper's orphan pass picks up whatever is left.
		s.log.WithFields(fields).WithError(err).Error("booking closed but seat release incomplete")
	} else {
		s.log.WithFields(fields).Info("booking closed")
	}

	s.publish(ctx, eventForStatus(status), *closed)
	return closed, nil
}

func (s *BookingService) releaseBookingSeats(ctx context.Context, ref uuid.UUID) (int, error) {
	seats, err := s.ledger.SeatsOfBooking(ctx, ref)
	if err != nil {
		return 0, err
	}

	released := 0
	var firstErr error
	for _, seat := range seats {
		if seat.Status != domain.SeatBooked {
			continue
		}
		err := s.ledger.release(ctx, seat)
		switch {
		case err == nil:
			released++
		case errors.Is(err, domain.ErrVersionConflict):
		default:
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return released, firstErr
}

func (s *BookingService) publish(ctx context.Context, t domain.EventType, b domain.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, domain.EventFor(t, b, s.clock.Now())); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"booking_ref": b.Ref, "event": t}).Warn("failed to publish booking event")
	}
}

func eventForStatus(status domain.BookingStatus) domain.EventType {
	switch status {
	case domain.BookingConfirmed:
		return domain.EventBookingConfirmed
	case domain.BookingExpired:
		return domain.EventBookingExpired
	case domain.BookingUsed:
		return domain.EventBookingUsed
	}
	return domain.EventBookingCancelled
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
