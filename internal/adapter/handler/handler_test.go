package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/srgjo27/showtime_booking/internal/adapter/handler"
	"github.com/srgjo27/showtime_booking/internal/adapter/payment"
	"github.com/srgjo27/showtime_booking/internal/adapter/repository/memory"
	"github.com/srgjo27/showtime_booking/internal/core/services"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
	"github.com/srgjo27/showtime_booking/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type api struct {
	e     *echo.Echo
	clock *clock.Fake
}

func newAPI(t *testing.T) *api {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC))
	log := logger.Discard()
	store := memory.NewStore()

	ledger := services.NewSeatLedger(store, nil, clk, log)
	locks := services.NewLockService(ledger, clk, log, services.WithLockTTL(10*time.Minute))
	bookings := services.NewBookingService(ledger, locks, store, payment.NewSimulatedGateway(clk, 0, log), nil, clk, services.DefaultBookingConfig(), log)

	e := echo.New()
	handler.RegisterRoutes(e, handler.NewSeatHandler(ledger, locks, log), handler.NewBookingHandler(bookings, log), secret)

	_, err := ledger.SeedShowtime(context.Background(), services.SeedSeatsRequest{ShowtimeID: 7, Rows: []string{"A"}, SeatsPerRow: 3, PriceCents: 25000})
	require.NoError(t, err)

	return &api{e: e, clock: clk}
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub}
	if role != "" {
		claims["role"] = role
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (a *api) do(t *testing.T, method, path, tok, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSeatMap_PublicAndPersonalised(t *testing.T) {
	a := newAPI(t)
	u1 := token(t, "u1", "")

	rec := a.do(t, http.MethodPost, "/v1/showtimes/7/seats/1/lock", u1, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/showtimes/7/seats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var anon []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &anon))
	require.Len(t, anon, 3)
	assert.Equal(t, "LOCKED", anon[0]["status"])
	assert.NotContains(t, anon[0], "held_by_you")
	assert.NotContains(t, anon[0], "lock_owner")

	rec = a.do(t, http.MethodGet, "/v1/showtimes/7/seats", u1, "")
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Equal(t, true, mine[0]["held_by_you"])
	assert.Contains(t, mine[0], "lock_expires_at")
}

func TestLock_ConflictCarriesReason(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, http.MethodPost, "/v1/showtimes/7/seats/1/lock", token(t, "u1", ""), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/showtimes/7/seats/1/lock", token(t, "u2", ""), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "conflict", body["code"])
	assert.Equal(t, "already_locked", body["reason"])

	rec = a.do(t, http.MethodPost, "/v1/showtimes/7/seats/99/lock", token(t, "u2", ""), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/showtimes/7/seats/x/lock", token(t, "u2", ""), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, http.MethodPost, "/v1/showtimes/7/seats/1/lock", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/showtimes/7/seats/1/lock", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/admin/bookings", token(t, "u1", "USER"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	a := newAPI(t)
	u1 := token(t, "u1", "")
	admin := token(t, "ops", handler.RoleAdmin)

	for _, seat := range []string{"1", "2"} {
		rec := a.do(t, http.MethodPost, "/v1/showtimes/7/seats/"+seat+"/lock", u1, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := a.do(t, http.MethodPost, "/v1/bookings", u1, `{"seat_ids":[1,2],"expected_total_cents":55000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	ref := created["booking_ref"].(string)
	assert.Equal(t, "PENDING", created["status"])
	assert.Equal(t, float64(55000), created["total_cents"])
	assert.NotContains(t, created, "id")

	rec = a.do(t, http.MethodGet, "/v1/bookings/"+ref, token(t, "u2", ""), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/bookings/"+ref+"/confirm", u1,
		`{"card_number":"4242424242424242","expiry_month":"12","expiry_year":"30","cvv":"123","cardholder_name":"A"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CONFIRMED", decode(t, rec)["status"])

	rec = a.do(t, http.MethodGet, "/v1/bookings/mine", u1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, ref, mine[0]["booking_ref"])

	rec = a.do(t, http.MethodPost, "/v1/admin/bookings/"+ref+"/redeem", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	verdict := decode(t, rec)
	assert.Equal(t, true, verdict["valid"])
	assert.Equal(t, "Check-in successful.", verdict["message"])

	rec = a.do(t, http.MethodPost, "/v1/admin/bookings/"+ref+"/redeem", admin, "")
	assert.Equal(t, false, decode(t, rec)["valid"])
}

func TestConfirm_DeclinedCardCancels(t *testing.T) {
	a := newAPI(t)
	u1 := token(t, "u1", "")

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/v1/showtimes/7/seats/3/lock", u1, "").Code)
	rec := a.do(t, http.MethodPost, "/v1/bookings", u1, `{"seat_ids":[3]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	ref := decode(t, rec)["booking_ref"].(string)

	rec = a.do(t, http.MethodPost, "/v1/bookings/"+ref+"/confirm", u1, `{"card_number":"12","expiry_month":"12","expiry_year":"30","cvv":"123"}`)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "CANCELLED", decode(t, rec)["status"])

	rec = a.do(t, http.MethodPost, "/v1/showtimes/7/seats/3/lock", token(t, "u2", ""), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateBooking_Rejections(t *testing.T) {
	a := newAPI(t)
	u1 := token(t, "u1", "")

	rec := a.do(t, http.MethodPost, "/v1/bookings", u1, `{"seat_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_seats", decode(t, rec)["reason"])

	rec = a.do(t, http.MethodPost, "/v1/bookings", u1, `{"seat_ids":[1]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "seats_not_reserved", decode(t, rec)["reason"])

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/v1/showtimes/7/seats/1/lock", u1, "").Code)
	a.clock.Advance(11 * time.Minute)

	rec = a.do(t, http.MethodPost, "/v1/bookings", u1, `{"seat_ids":[1]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "lock_expired", decode(t, rec)["reason"])

	rec = a.do(t, http.MethodGet, "/v1/bookings/not-a-uuid", u1, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReleaseEndpoints(t *testing.T) {
	a := newAPI(t)
	u1 := token(t, "u1", "")

	for _, seat := range []string{"1", "2"} {
		require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/v1/showtimes/7/seats/"+seat+"/lock", u1, "").Code)
	}

	rec := a.do(t, http.MethodPost, "/v1/showtimes/7/seats/1/release", token(t, "u2", ""), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/showtimes/999/seats/1/release", u1, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/showtimes/7/seats/1/release", u1, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/showtimes/7/release", u1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["released"])
}

func TestAdminSeedAndPaymentResult(t *testing.T) {
	a := newAPI(t)
	admin := token(t, "ops", handler.RoleAdmin)
	u1 := token(t, "u1", "")

	rec := a.do(t, http.MethodPost, "/v1/admin/showtimes/8/seats", admin, `{"row_count":2,"seats_per_row":2,"price_cents":10000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var seeded []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &seeded))
	require.Len(t, seeded, 4)
	assert.Equal(t, "B2", seeded[3]["label"])

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/v1/showtimes/7/seats/1/lock", u1, "").Code)
	rec = a.do(t, http.MethodPost, "/v1/bookings", u1, `{"seat_ids":[1]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	ref := decode(t, rec)["booking_ref"].(string)

	rec = a.do(t, http.MethodPost, "/v1/admin/bookings/"+ref+"/payment-result", admin, `{"success":true,"payment_ref":"pi_ext"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "CONFIRMED", body["status"])
	assert.Equal(t, "u1", body["owner"])

	rec = a.do(t, http.MethodGet, "/v1/admin/bookings?limit=10", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)
}
