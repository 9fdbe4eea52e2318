package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/srgjo27/showtime_booking/internal/core/ports"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
	"github.com/srgjo27/showtime_booking/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway() *SimulatedGateway {
	clk := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	return NewSimulatedGateway(clk, 0, logger.Discard())
}

func TestValidateCard(t *testing.T) {
	g := newGateway()
	valid := ports.PaymentRequest{CardNumber: "4242 4242 4242 4242", ExpiryMonth: "06", ExpiryYear: "25", CVV: "123"}

	cases := map[string]struct {
		mutate func(*ports.PaymentRequest)
		reason string
	}{
		"valid":          {func(*ports.PaymentRequest) {}, ""},
		"short number":   {func(r *ports.PaymentRequest) { r.CardNumber = "4242" }, "card_declined: invalid card number"},
		"letters":        {func(r *ports.PaymentRequest) { r.CardNumber = "4242424242424abc" }, "card_declined: invalid card number"},
		"bad month":      {func(r *ports.PaymentRequest) { r.ExpiryMonth = "13" }, "card_declined: invalid expiry"},
		"expired year":   {func(r *ports.PaymentRequest) { r.ExpiryYear = "24" }, "card_declined: card expired"},
		"expired month":  {func(r *ports.PaymentRequest) { r.ExpiryMonth = "05" }, "card_declined: card expired"},
		"short cvv":      {func(r *ports.PaymentRequest) { r.CVV = "12" }, "card_declined: invalid cvv"},
		"four digit cvv": {func(r *ports.PaymentRequest) { r.CVV = "1234" }, ""},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			assert.Equal(t, tc.reason, g.validateCard(req))
		})
	}
}

func TestCharge(t *testing.T) {
	g := newGateway()
	ctx := context.Background()

	ok, err := g.Charge(ctx, ports.PaymentRequest{BookingRef: "b1", AmountCents: 30000, CardNumber: "4242424242424242", ExpiryMonth: "12", ExpiryYear: "30", CVV: "123"})
	require.NoError(t, err)
	assert.True(t, ok.Success)
	assert.True(t, strings.HasPrefix(ok.PaymentRef, "pi_"))
	assert.NotContains(t, ok.PaymentRef, "-")

	declined, err := g.Charge(ctx, ports.PaymentRequest{BookingRef: "b2", CardNumber: "1"})
	require.NoError(t, err)
	assert.False(t, declined.Success)
	assert.Contains(t, declined.Reason, "card_declined")
}

func TestCharge_ContextCancelled(t *testing.T) {
	g := NewSimulatedGateway(clock.Real{}, time.Minute, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Charge(ctx, ports.PaymentRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefund(t *testing.T) {
	g := newGateway()

	assert.Error(t, g.Refund(context.Background(), "", 100))
	assert.NoError(t, g.Refund(context.Background(), "pi_1", 100))
}
