package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/srgjo27/showtime_booking/internal/core/services"
)

type SeatHandler struct {
	ledger *services.SeatLedger
	locks  *services.LockService
	log    *logrus.Logger
}

func NewSeatHandler(ledger *services.SeatLedger, locks *services.LockService, log *logrus.Logger) *SeatHandler {
	return &SeatHandler{ledger: ledger, locks: locks, log: log}
}

func (h *SeatHandler) GetSeats(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid showtime id")
	}

	seats, err := h.ledger.GetSeats(c.Request().Context(), showtimeID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	caller := callerID(c)
	resp := make([]seatResponse, 0, len(seats))
	for _, seat := range seats {
		resp = append(resp, toSeatResponse(seat, caller))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *SeatHandler) Lock(c echo.Context) error {
	showtimeID, seatID, err := showtimeAndSeat(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	lock, err := h.locks.Lock(c.Request().Context(), showtimeID, seatID, callerID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toLockResponse(*lock))
}

func (h *SeatHandler) Release(c echo.Context) error {
	showtimeID, seatID, err := showtimeAndSeat(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.locks.Release(c.Request().Context(), showtimeID, seatID, callerID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SeatHandler) ReleaseAll(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid showtime id")
	}

	n, err := h.locks.ReleaseAll(c.Request().Context(), showtimeID, callerID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}

type seedSeatsRequest struct {
	Rows        []string `json:"rows"`
	RowCount    int      `json:"row_count"`
	SeatsPerRow int      `json:"seats_per_row"`
	PriceCents  int64    `json:"price_cents"`
}

func (h *SeatHandler) SeedSeats(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid showtime id")
	}

	var req seedSeatsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json body")
	}

	rows := req.Rows
	if len(rows) == 0 {
		for i := 0; i < req.RowCount; i++ {
			rows = append(rows, rowLabel(i))
		}
	}
	for i := range rows {
		rows[i] = strings.ToUpper(strings.TrimSpace(rows[i]))
	}

	seats, err := h.ledger.SeedShowtime(c.Request().Context(), services.SeedSeatsRequest{
		ShowtimeID:  showtimeID,
		Rows:        rows,
		SeatsPerRow: req.SeatsPerRow,
		PriceCents:  req.PriceCents,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	resp := make([]seatResponse, 0, len(seats))
	for _, seat := range seats {
		resp = append(resp, toSeatResponse(seat, ""))
	}
	return c.JSON(http.StatusCreated, resp)
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidIDParam
	}
	return id, nil
}

func showtimeAndSeat(c echo.Context) (int64, int64, error) {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return 0, 0, errInvalidShowtimeParam
	}
	seatID, err := pathID(c, "seatId")
	if err != nil {
		return 0, 0, errInvalidSeatParam
	}
	return showtimeID, seatID, nil
}

var (
	errInvalidShowtimeParam = errors.New("invalid showtime id")
	errInvalidSeatParam     = errors.New("invalid seat id")
	errInvalidIDParam       = errors.New("invalid id")
)

// rowLabel maps 0 to A, 25 to Z, 26 to AA.
func rowLabel(i int) string {
	var res []rune
	for {
		res = append([]rune{rune('A' + i%26)}, res...)
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	return string(res)
}
