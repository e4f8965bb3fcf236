package kafka

import (
	"time"

	"github.com/Domenick1991/parking/internal/domain"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationExpired   = "reservation.expired"
)

// ReservationEvent is what payment and notification consumers receive for
// every reservation state change.
type ReservationEvent struct {
	Type          string    `json:"type"`
	Reference     string    `json:"reference"`
	ReservationID int64     `json:"reservation_id"`
	UserID        int64     `json:"user_id"`
	VehicleID     int64     `json:"vehicle_id"`
	FacilityID    int64     `json:"facility_id"`
	SpotID        *int64    `json:"spot_id,omitempty"`
	Status        string    `json:"status"`
	AmountCents   int64     `json:"amount_cents"`
	ReservedFrom  time.Time `json:"reserved_from"`
	ReservedUntil time.Time `json:"reserved_until"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewReservationEvent(eventType string, r *domain.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          eventType,
		Reference:     r.Reference,
		ReservationID: r.ID,
		UserID:        r.UserID,
		VehicleID:     r.VehicleID,
		FacilityID:    r.FacilityID,
		SpotID:        r.SpotID,
		Status:        string(r.Status),
		AmountCents:   r.AmountCents,
		ReservedFrom:  r.ReservedFrom,
		ReservedUntil: r.ReservedUntil,
		HoldExpiresAt: r.HoldExpiresAt,
		OccurredAt:    at,
	}
}
