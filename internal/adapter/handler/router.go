package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// RegisterRoutes wires every endpoint. Seat maps are public; everything else
// needs a bearer token, and /v1/admin additionally the ADMIN role.
func RegisterRoutes(e *echo.Echo, seats *SeatHandler, bookings *BookingHandler, jwtSecret string) {
	e.GET("/healthz", Health)

	e.GET("/v1/showtimes/:id/seats", seats.GetSeats, identifyIfPresent(jwtSecret))

	auth := e.Group("/v1", JWTAuth(jwtSecret))
	auth.POST("/showtimes/:id/seats/:seatId/lock", seats.Lock)
	auth.POST("/showtimes/:id/seats/:seatId/release", seats.Release)
	auth.POST("/showtimes/:id/release", seats.ReleaseAll)

	auth.POST("/bookings", bookings.CreateBooking)
	auth.GET("/bookings/mine", bookings.ListMine)
	auth.GET("/bookings/:ref", bookings.GetBooking)
	auth.POST("/bookings/:ref/confirm", bookings.Confirm)
	auth.POST("/bookings/:ref/cancel", bookings.Cancel)

	admin := e.Group("/v1/admin", JWTAuth(jwtSecret), RequireRole(RoleAdmin))
	admin.GET("/bookings", bookings.ListAll)
	admin.POST("/bookings/:ref/payment-result", bookings.PaymentResult)
	admin.POST("/bookings/:ref/redeem", bookings.Redeem)
	admin.POST("/showtimes/:id/seats", seats.SeedSeats)
}

// identifyIfPresent authenticates only requests that carry a bearer token,
// so public reads can still mark the caller's own holds.
func identifyIfPresent(secret string) echo.MiddlewareFunc {
	authenticate := JWTAuth(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withAuth := authenticate(next)
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().Header.Get("Authorization"), "Bearer ") {
				return withAuth(c)
			}
			return next(c)
		}
	}
}
