package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
	ReservationStatusCompleted ReservationStatus = "COMPLETED"
)

// DefaultHoldTTL is how long an ACTIVE reservation keeps its spot without confirmation.
const DefaultHoldTTL = 15 * time.Minute

type Reservation struct {
	ID              int64             `json:"id"`
	Reference       string            `json:"reference"`
	UserID          int64             `json:"user_id"`
	VehicleID       int64             `json:"vehicle_id"`
	FacilityID      int64             `json:"facility_id"`
	SpotID          *int64            `json:"spot_id,omitempty"`
	Status          ReservationStatus `json:"status"`
	ReservedFrom    time.Time         `json:"reserved_from"`
	ReservedUntil   time.Time         `json:"reserved_until"`
	HoldExpiresAt   time.Time         `json:"hold_expires_at"`
	HourlyRateCents int64             `json:"hourly_rate_cents"`
	AmountCents     int64             `json:"amount_cents"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsLive reports whether the reservation still claims its spot window.
func (r *Reservation) IsLive() bool {
	return r.Status == ReservationStatusActive || r.Status == ReservationStatusConfirmed
}

func (r *Reservation) HoldExpired(now time.Time) bool {
	return r.HoldExpiresAt.Before(now)
}

func (r *Reservation) Window() TimeWindow {
	return TimeWindow{From: r.ReservedFrom, Until: r.ReservedUntil}
}

func (r *Reservation) Confirm(now time.Time) error {
	if r.Status != ReservationStatusActive {
		return ErrReservationNotActive
	}
	r.Status = ReservationStatusConfirmed
	r.UpdatedAt = now
	return nil
}

func (r *Reservation) Cancel(now time.Time) error {
	if !r.IsLive() {
		return ErrReservationNotCancellable
	}
	r.Status = ReservationStatusCancelled
	r.UpdatedAt = now
	return nil
}

func (r *Reservation) Expire(now time.Time) error {
	if r.Status != ReservationStatusActive {
		return ErrReservationNotActive
	}
	r.Status = ReservationStatusExpired
	r.UpdatedAt = now
	return nil
}

// Complete closes a confirmed reservation once the parking session is over.
func (r *Reservation) Complete(now time.Time) error {
	if r.Status != ReservationStatusConfirmed {
		return ErrReservationNotActive
	}
	r.Status = ReservationStatusCompleted
	r.UpdatedAt = now
	return nil
}

// TimeWindow is a half-open interval [From, Until).
type TimeWindow struct {
	From  time.Time `json:"from"`
	Until time.Time `json:"until"`
}

func (w TimeWindow) Valid() bool {
	return w.Until.After(w.From)
}

// Overlaps reports whether [a,b) and [c,d) intersect: a < d && c < b.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.From.Before(other.Until) && other.From.Before(w.Until)
}

// CalculateAmount charges every started hour in full.
func CalculateAmount(hourlyRateCents int64, durationMinutes int) int64 {
	if durationMinutes <= 0 {
		return 0
	}
	hours := int64((durationMinutes + 59) / 60)
	return hourlyRateCents * hours
}

// NewReference returns a human readable reservation reference such as RES-1700000000000-a1b2c3.
func NewReference(now time.Time) string {
	var buf [3]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// крайне маловероятно; наносекунды всё равно дают уникальность в пределах процесса
		return fmt.Sprintf("RES-%d-%06x", now.UnixMilli(), now.Nanosecond()&0xffffff)
	}
	return fmt.Sprintf("RES-%d-%s", now.UnixMilli(), hex.EncodeToString(buf[:]))
}
