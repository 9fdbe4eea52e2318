package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srgjo27/showtime_booking/internal/adapter/repository/memory"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/core/ports/mocks"
	"github.com/srgjo27/showtime_booking/internal/core/services"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
	"github.com/srgjo27/showtime_booking/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetSeats_ServesFromCache(t *testing.T) {
	cache := mocks.NewSeatCache(t)
	cached := []domain.Seat{{ID: 1, ShowtimeID: showtimeID, Row: "A", Number: 1, Status: domain.SeatAvailable, Version: 1}}
	cache.On("GetSeats", mock.Anything, showtimeID).Return(cached, true, nil).Once()

	ledger := services.NewSeatLedger(memory.NewStore(), cache, clock.NewFake(t0), logger.Discard())

	seats, err := ledger.GetSeats(context.Background(), showtimeID)

	require.NoError(t, err)
	assert.Equal(t, cached, seats)
}

func TestGetSeats_MissFillsCache(t *testing.T) {
	store := memory.NewStore()
	cache := mocks.NewSeatCache(t)
	ledger := services.NewSeatLedger(store, cache, clock.NewFake(t0), logger.Discard())
	ctx := context.Background()

	cache.On("Invalidate", mock.Anything, showtimeID).Return(nil).Once()
	_, err := ledger.SeedShowtime(ctx, services.SeedSeatsRequest{ShowtimeID: showtimeID, Rows: []string{"A", "B"}, SeatsPerRow: 2, PriceCents: seatPrice})
	require.NoError(t, err)

	cache.On("GetSeats", mock.Anything, showtimeID).Return(nil, false, errors.New("redis: i/o timeout")).Once()
	cache.On("SetSeats", mock.Anything, showtimeID, mock.AnythingOfType("[]domain.Seat")).Return(nil).Once()

	seats, err := ledger.GetSeats(ctx, showtimeID)

	require.NoError(t, err)
	require.Len(t, seats, 4)
	assert.Equal(t, "A1", seats[0].Label())
	assert.Equal(t, "B2", seats[3].Label())
}

func TestGetSeats_UnknownShowtimeIsEmpty(t *testing.T) {
	ledger := services.NewSeatLedger(memory.NewStore(), nil, clock.NewFake(t0), logger.Discard())

	seats, err := ledger.GetSeats(context.Background(), 404)

	require.NoError(t, err)
	assert.NotNil(t, seats)
	assert.Empty(t, seats)
}

func TestCompareAndSet_StaleVersionAndInvalidation(t *testing.T) {
	store := memory.NewStore()
	cache := mocks.NewSeatCache(t)
	ledger := services.NewSeatLedger(store, cache, clock.NewFake(t0), logger.Discard())
	ctx := context.Background()

	cache.On("Invalidate", mock.Anything, showtimeID).Return(nil)
	seats, err := ledger.SeedShowtime(ctx, services.SeedSeatsRequest{ShowtimeID: showtimeID, Rows: []string{"A"}, SeatsPerRow: 1, PriceCents: seatPrice})
	require.NoError(t, err)

	locked, err := ledger.CompareAndSet(ctx, domain.ToLocked(seats[0], "u1", t0.Add(10*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), locked.Version)
	assert.Equal(t, t0, locked.UpdatedAt)

	_, err = ledger.CompareAndSet(ctx, domain.ToLocked(seats[0], "u2", t0.Add(10*time.Minute)))
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	cache.AssertNumberOfCalls(t, "Invalidate", 2)
}

func TestSeedShowtime_Validation(t *testing.T) {
	ledger := services.NewSeatLedger(memory.NewStore(), nil, clock.NewFake(t0), logger.Discard())
	ctx := context.Background()

	_, err := ledger.SeedShowtime(ctx, services.SeedSeatsRequest{ShowtimeID: showtimeID, SeatsPerRow: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ledger.SeedShowtime(ctx, services.SeedSeatsRequest{ShowtimeID: showtimeID, Rows: []string{"A", ""}, SeatsPerRow: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
