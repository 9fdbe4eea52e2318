package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/core/services"
)

type BookingHandler struct {
	svc *services.BookingService
	log *logrus.Logger
}

func NewBookingHandler(svc *services.BookingService, log *logrus.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, log: log}
}

type createBookingRequest struct {
	SeatIDs            []int64 `json:"seat_ids"`
	ExpectedTotalCents *int64  `json:"expected_total_cents"`
}

func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json body")
	}

	booking, err := h.svc.CreateBooking(c.Request().Context(), services.CreateBookingRequest{
		CallerID:           callerID(c),
		SeatIDs:            req.SeatIDs,
		ExpectedTotalCents: req.ExpectedTotalCents,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, toBookingResponse(*booking, false))
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	ref, err := bookingRef(c)
	if err != nil {
		return badRequest(c, "invalid booking reference")
	}

	booking, err := h.svc.Get(c.Request().Context(), ref, callerID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(*booking, false))
}

func (h *BookingHandler) ListMine(c echo.Context) error {
	bookings, err := h.svc.ListMine(c.Request().Context(), callerID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponses(bookings, false))
}

type confirmRequest struct {
	CardNumber     string `json:"card_number"`
	ExpiryMonth    string `json:"expiry_month"`
	ExpiryYear     string `json:"expiry_year"`
	CVV            string `json:"cvv"`
	CardholderName string `json:"cardholder_name"`
}

// Confirm charges the caller and confirms the booking. A declined card
// cancels the booking and is reported as 402 with the cancelled record.
func (h *BookingHandler) Confirm(c echo.Context) error {
	ref, err := bookingRef(c)
	if err != nil {
		return badRequest(c, "invalid booking reference")
	}

	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json body")
	}

	booking, err := h.svc.Pay(c.Request().Context(), ref, services.PayRequest{
		CallerID:       callerID(c),
		CardNumber:     req.CardNumber,
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		CVV:            req.CVV,
		CardholderName: req.CardholderName,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	if booking.Status != domain.BookingConfirmed {
		return c.JSON(http.StatusPaymentRequired, toBookingResponse(*booking, false))
	}
	return c.JSON(http.StatusOK, toBookingResponse(*booking, false))
}

func (h *BookingHandler) Cancel(c echo.Context) error {
	ref, err := bookingRef(c)
	if err != nil {
		return badRequest(c, "invalid booking reference")
	}

	booking, err := h.svc.Cancel(c.Request().Context(), ref, callerID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(*booking, false))
}

func (h *BookingHandler) ListAll(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	bookings, err := h.svc.ListAll(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponses(bookings, true))
}

type paymentResultRequest struct {
	Success    bool   `json:"success"`
	PaymentRef string `json:"payment_ref"`
	Reason     string `json:"reason"`
}

// PaymentResult is the payment collaborator's callback.
func (h *BookingHandler) PaymentResult(c echo.Context) error {
	ref, err := bookingRef(c)
	if err != nil {
		return badRequest(c, "invalid booking reference")
	}

	var req paymentResultRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json body")
	}

	booking, err := h.svc.ConfirmPayment(c.Request().Context(), ref, domain.PaymentResult{
		Success:    req.Success,
		PaymentRef: req.PaymentRef,
		Reason:     req.Reason,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(*booking, true))
}

type verificationResponse struct {
	Valid   bool            `json:"valid"`
	Message string          `json:"message"`
	Booking bookingResponse `json:"booking"`
}

func (h *BookingHandler) Redeem(c echo.Context) error {
	ref, err := bookingRef(c)
	if err != nil {
		return badRequest(c, "invalid booking reference")
	}

	v, err := h.svc.Redeem(c.Request().Context(), ref)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, verificationResponse{
		Valid:   v.Valid,
		Message: v.Message,
		Booking: toBookingResponse(*v.Booking, true),
	})
}

func bookingRef(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("ref"))
}
