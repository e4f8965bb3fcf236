package domain

import (
	"time"

	"github.com/cockroachdb/errors"
)

type Facility struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Active          bool      `json:"active"`
	HourlyRateCents int64     `json:"hourly_rate_cents"`
	TotalSpots      int       `json:"total_spots"`
	AvailableSpots  int       `json:"available_spots"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (f *Facility) TakeSpot() error {
	if f.AvailableSpots <= 0 {
		return errors.Newf("facility %d has no available spots to take", f.ID)
	}
	f.AvailableSpots--
	return nil
}

func (f *Facility) ReturnSpot() error {
	if f.AvailableSpots >= f.TotalSpots {
		return errors.Newf("facility %d already reports all %d spots available", f.ID, f.TotalSpots)
	}
	f.AvailableSpots++
	return nil
}

func (f *Facility) OccupancyRate() float64 {
	if f.TotalSpots == 0 {
		return 0
	}
	return float64(f.TotalSpots-f.AvailableSpots) / float64(f.TotalSpots)
}

// User and Vehicle carry only what reservation checks read from the account subsystem.
type User struct {
	ID     int64 `json:"id"`
	Active bool  `json:"active"`
}

type Vehicle struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
	Active  bool  `json:"active"`
}

func (v *Vehicle) UsableBy(userID int64) bool {
	return v.Active && v.OwnerID == userID
}
