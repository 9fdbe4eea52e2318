package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_GrantsHoldAndBumpsVersion(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, 3)

	lock, err := f.locks.Lock(context.Background(), showtimeID, 1, "u1")

	require.NoError(t, err)
	assert.Equal(t, "u1", lock.Owner)
	assert.Equal(t, t0.Add(10*time.Minute), lock.ExpiresAt)
	assert.Equal(t, int64(2), lock.Version)

	seat := f.seat(t, 1)
	assert.Equal(t, domain.SeatLocked, seat.Status)
	assert.Equal(t, "u1", seat.LockOwner)
}

func TestLock_HeldByOtherCaller(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, 1)
	f.lockAll(t, "u1", 1)

	lock, err := f.locks.Lock(context.Background(), showtimeID, 1, "u2")

	assert.Nil(t, lock)
	assert.ErrorIs(t, err, domain.ErrAlreadyLocked)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, "u1", f.seat(t, 1).LockOwner)
}

func TestLock_RenewalExtendsExpiry(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, 1)
	f.lockAll(t, "u1", 1)

	f.clock.Advance(4 * time.Minute)
	lock, err := f.locks.Lock(context.Background(), showtimeID, 1, "u1")

	require.NoError(t, err)
	assert.Equal(t, t0.Add(14*time.Minute), lock.ExpiresAt)
	assert.Equal(t, int64(3), lock.Version)
}

func TestLock_LapsedHoldCanBeTakenOver(t *testing.T) {
	f := newFixture(t, fixtureOpts{lockTTL: 5 * time.Minute})
	f.seed(t, 1)
	f.lockAll(t, "u1", 1)

	f.clock.Advance(5 * time.Minute)
	lock, err := f.locks.Lock(context.Background(), showtimeID, 1, "u2")

	require.NoError(t, err)
	assert.Equal(t, "u2", lock.Owner)
}

func TestLock_Errors(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, 2)
	f.book(t, "u1", 2)
	ctx := context.Background()

	_, err := f.locks.Lock(ctx, showtimeID, 99, "u1")
	assert.ErrorIs(t, err, domain.ErrSeatNotFound)

	_, err = f.locks.Lock(ctx, showtimeID+1, 1, "u1")
	assert.ErrorIs(t, err, domain.ErrSeatNotFound)

	_, err = f.locks.Lock(ctx, showtimeID, 1, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.locks.Lock(ctx, showtimeID, 2, "u2")
	assert.ErrorIs(t, err, domain.ErrAlreadyBooked)
}

func TestLock_ConcurrentCallersExactlyOneWins(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, 1)

	const callers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losses  int
	)

	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		caller := string(rune('a' + i%26)) + string(rune('0'+i/26))
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.locks.Lock(context.Background(), showtimeID, 1, caller)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, caller)
				return
			}
			assert.ErrorIs(t, err, domain.ErrConflict)
			losses++
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, callers-1, losses)
	assert.Equal(t, winners[0], f.seat(t, 1).LockOwner)
	assert.Equal(t, int64(2), f.seat(t, 1).Version)
}

func TestRelease(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, 2)
	f.lockAll(t, "u1", 1)
	ctx := context.Background()

	assert.ErrorIs(t, f.locks.Release(ctx, showtimeID, 1, "u2"), domain.ErrNotOwner)
	assert.ErrorIs(t, f.locks.Release(ctx, showtimeID, 2, "u1"), domain.ErrNotOwner)
	assert.ErrorIs(t, f.locks.Release(ctx, 999, 1, "u1"), domain.ErrSeatNotFound)
	assert.Equal(t, domain.SeatLocked, f.seat(t, 1).Status)

	require.NoError(t, f.locks.Release(ctx, showtimeID, 1, "u1"))

	seat := f.seat(t, 1)
	assert.Equal(t, domain.SeatAvailable, seat.Status)
	assert.Empty(t, seat.LockOwner)
	assert.Nil(t, seat.LockExpiresAt)
	assert.Equal(t, int64(3), seat.Version)
}

func TestReleaseAll_OnlyCallersHolds(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, 4)
	f.lockAll(t, "u1", 1, 2)
	f.lockAll(t, "u2", 3)

	n, err := f.locks.ReleaseAll(context.Background(), showtimeID, "u1")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, domain.SeatAvailable, f.seat(t, 1).Status)
	assert.Equal(t, domain.SeatAvailable, f.seat(t, 2).Status)
	assert.Equal(t, domain.SeatLocked, f.seat(t, 3).Status)
}

func TestVerifyHeld(t *testing.T) {
	f := newFixture(t, fixtureOpts{lockTTL: 5 * time.Minute})
	f.seed(t, 3)
	f.lockAll(t, "u1", 1, 2)
	ctx := context.Background()

	seats, err := f.locks.VerifyHeld(ctx, []int64{1, 2}, "u1")
	require.NoError(t, err)
	assert.Len(t, seats, 2)

	_, err = f.locks.VerifyHeld(ctx, []int64{1, 3}, "u1")
	assert.ErrorIs(t, err, domain.ErrSeatsNotReserved)

	_, err = f.locks.VerifyHeld(ctx, []int64{1, 42}, "u1")
	assert.ErrorIs(t, err, domain.ErrSeatsNotReserved)

	f.clock.Advance(5*time.Minute + time.Second)
	_, err = f.locks.VerifyHeld(ctx, []int64{1, 2}, "u1")
	assert.ErrorIs(t, err, domain.ErrLockExpired)
}
