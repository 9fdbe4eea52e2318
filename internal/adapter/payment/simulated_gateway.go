// Package payment holds the payment collaborator used when no real gateway
// is wired in. It approves any plausible card and declines the rest.
package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/core/ports"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
)

type SimulatedGateway struct {
	clock clock.Clock
	delay time.Duration
	log   *logrus.Logger
}

func NewSimulatedGateway(clk clock.Clock, delay time.Duration, log *logrus.Logger) *SimulatedGateway {
	return &SimulatedGateway{clock: clk, delay: delay, log: log}
}

func (g *SimulatedGateway) Charge(ctx context.Context, req ports.PaymentRequest) (domain.PaymentResult, error) {
	if err := g.wait(ctx); err != nil {
		return domain.PaymentResult{}, err
	}

	ref := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	fields := logrus.Fields{"booking_ref": req.BookingRef, "amount_cents": req.AmountCents, "payment_ref": ref}

	if reason := g.validateCard(req); reason != "" {
		g.log.WithFields(fields).WithField("reason", reason).Info("payment declined")
		return domain.PaymentResult{Success: false, PaymentRef: ref, Reason: reason}, nil
	}

	g.log.WithFields(fields).Info("payment approved")
	return domain.PaymentResult{Success: true, PaymentRef: ref}, nil
}

func (g *SimulatedGateway) Refund(ctx context.Context, paymentRef string, amountCents int64) error {
	if paymentRef == "" {
		return fmt.Errorf("refund: empty payment reference")
	}
	if err := g.wait(ctx); err != nil {
		return err
	}
	g.log.WithFields(logrus.Fields{"payment_ref": paymentRef, "amount_cents": amountCents}).Info("payment refunded")
	return nil
}

func (g *SimulatedGateway) wait(ctx context.Context) error {
	if g.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.delay):
		return nil
	}
}

// validateCard returns a decline reason, or "" for an acceptable card.
func (g *SimulatedGateway) validateCard(req ports.PaymentRequest) string {
	number := strings.Join(strings.Fields(req.CardNumber), "")
	if len(number) < 13 || len(number) > 19 {
		return "card_declined: invalid card number"
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return "card_declined: invalid card number"
		}
	}

	month, errM := strconv.Atoi(req.ExpiryMonth)
	year, errY := strconv.Atoi(req.ExpiryYear)
	if errM != nil || errY != nil || month < 1 || month > 12 {
		return "card_declined: invalid expiry"
	}

	now := g.clock.Now()
	curYear := now.Year() % 100
	curMonth := int(now.Month())
	if year < curYear || (year == curYear && month < curMonth) {
		return "card_declined: card expired"
	}

	if l := len(req.CVV); l < 3 || l > 4 {
		return "card_declined: invalid cvv"
	}

	return ""
}
