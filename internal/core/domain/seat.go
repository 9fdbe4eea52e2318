package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatLocked    SeatStatus = "LOCKED"
	SeatBooked    SeatStatus = "BOOKED"
)

// Seat is one showtime seat as recorded by the ledger. Version increases by
// one on every status transition.
type Seat struct {
	ID            int64
	ShowtimeID    int64
	Row           string
	Number        int
	PriceCents    int64
	Status        SeatStatus
	Version       int64
	LockOwner     string
	LockExpiresAt *time.Time
	BookingRef    *uuid.UUID
	UpdatedAt     time.Time
}

func (s *Seat) IsAvailable() bool {
	return s.Status == SeatAvailable
}

func (s *Seat) Label() string {
	return fmt.Sprintf("%s%d", s.Row, s.Number)
}

// LockLapsed reports whether the seat is LOCKED with an expiry at or before now.
func (s *Seat) LockLapsed(now time.Time) bool {
	return s.Status == SeatLocked && s.LockExpiresAt != nil && !now.Before(*s.LockExpiresAt)
}

// HeldBy reports whether caller holds a live lock on the seat at now.
func (s *Seat) HeldBy(caller string, now time.Time) bool {
	return s.Status == SeatLocked && s.LockOwner == caller && !s.LockLapsed(now)
}

// SeatTransition is a compare-and-set request against the ledger. It only
// applies when the stored version equals ExpectedVersion.
type SeatTransition struct {
	SeatID          int64
	ExpectedVersion int64
	Status          SeatStatus
	LockOwner       string
	LockExpiresAt   *time.Time
	BookingRef      *uuid.UUID
}

func ToAvailable(seat Seat) SeatTransition {
	return SeatTransition{
		SeatID:          seat.ID,
		ExpectedVersion: seat.Version,
		Status:          SeatAvailable,
	}
}

func ToLocked(seat Seat, owner string, expiresAt time.Time) SeatTransition {
	return SeatTransition{
		SeatID:          seat.ID,
		ExpectedVersion: seat.Version,
		Status:          SeatLocked,
		LockOwner:       owner,
		LockExpiresAt:   &expiresAt,
	}
}

func ToBooked(seat Seat, ref uuid.UUID) SeatTransition {
	return SeatTransition{
		SeatID:          seat.ID,
		ExpectedVersion: seat.Version,
		Status:          SeatBooked,
		BookingRef:      &ref,
	}
}

// Apply returns the seat as it looks after t succeeds.
func (t SeatTransition) Apply(seat Seat, at time.Time) Seat {
	seat.Status = t.Status
	seat.Version = t.ExpectedVersion + 1
	seat.LockOwner = ""
	seat.LockExpiresAt = nil
	seat.BookingRef = nil
	seat.UpdatedAt = at

	switch t.Status {
	case SeatLocked:
		seat.LockOwner = t.LockOwner
		if t.LockExpiresAt != nil {
			exp := *t.LockExpiresAt
			seat.LockExpiresAt = &exp
		}
	case SeatBooked:
		if t.BookingRef != nil {
			ref := *t.BookingRef
			seat.BookingRef = &ref
		}
	}

	return seat
}

// Lock is a caller's time-bounded hold on one seat.
type Lock struct {
	SeatID     int64
	ShowtimeID int64
	Owner      string
	ExpiresAt  time.Time
	Version    int64
}

func LockOf(seat Seat) Lock {
	l := Lock{
		SeatID:     seat.ID,
		ShowtimeID: seat.ShowtimeID,
		Owner:      seat.LockOwner,
		Version:    seat.Version,
	}
	if seat.LockExpiresAt != nil {
		l.ExpiresAt = *seat.LockExpiresAt
	}
	return l
}
