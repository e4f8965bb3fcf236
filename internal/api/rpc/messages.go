package rpc

import "github.com/Domenick1991/parking/internal/domain"

type ReserveRequest struct {
	UserID          int64 `json:"user_id"`
	VehicleID       int64 `json:"vehicle_id"`
	FacilityID      int64 `json:"facility_id"`
	SpotID          int64 `json:"spot_id"`
	DurationMinutes int   `json:"duration_minutes"`
}

type ReferenceRequest struct {
	Reference string `json:"reference"`
}

type CancelRequest struct {
	Reference string `json:"reference"`
	UserID    int64  `json:"user_id"`
}

type SweepRequest struct{}

type SweepResponse struct {
	Expired int `json:"expired"`
}

type UserRequest struct {
	UserID int64 `json:"user_id"`
}

type ReservationList struct {
	Reservations []domain.Reservation `json:"reservations"`
}

type FacilityRequest struct {
	FacilityID int64           `json:"facility_id"`
	Type       domain.SpotType `json:"type,omitempty"`
}

type FacilityAvailability struct {
	FacilityID    int64   `json:"facility_id"`
	Available     int     `json:"available"`
	Total         int     `json:"total"`
	OccupancyRate float64 `json:"occupancy_rate"`
	AsOf          string  `json:"as_of"`
}

type SpotList struct {
	Spots []domain.Spot `json:"spots"`
}

type SpotRequest struct {
	SpotID int64 `json:"spot_id"`
}

type SpotStatus struct {
	SpotID int64             `json:"spot_id"`
	Status domain.SpotStatus `json:"status"`
}

type WarmRequest struct {
	FacilityIDs []int64 `json:"facility_ids"`
}

type WarmResponse struct {
	Warmed int `json:"warmed"`
}
