package domain

import (
	"time"

	"github.com/cockroachdb/errors"
)

type SpotStatus string

const (
	SpotStatusAvailable  SpotStatus = "AVAILABLE"
	SpotStatusOccupied   SpotStatus = "OCCUPIED"
	SpotStatusReserved   SpotStatus = "RESERVED"
	SpotStatusOutOfOrder SpotStatus = "OUT_OF_ORDER"
)

// CountsAsTaken reports whether the status takes a spot away from the facility's available counter.
func (s SpotStatus) CountsAsTaken() bool {
	return s == SpotStatusReserved || s == SpotStatusOccupied
}

type SpotType string

const (
	SpotTypeRegular  SpotType = "REGULAR"
	SpotTypeDisabled SpotType = "DISABLED"
	SpotTypeElectric SpotType = "ELECTRIC"
	SpotTypeCompact  SpotType = "COMPACT"
)

func (t SpotType) Valid() bool {
	switch t {
	case SpotTypeRegular, SpotTypeDisabled, SpotTypeElectric, SpotTypeCompact:
		return true
	}
	return false
}

type Spot struct {
	ID            int64      `json:"id"`
	FacilityID    int64      `json:"facility_id"`
	Number        string     `json:"number"`
	FloorLevel    int        `json:"floor_level"`
	Type          SpotType   `json:"type"`
	Status        SpotStatus `json:"status"`
	HolderID      *int64     `json:"holder_id,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Hold moves an AVAILABLE spot to RESERVED for the given user until expiresAt.
func (s *Spot) Hold(holderID int64, expiresAt, now time.Time) error {
	if s.Status != SpotStatusAvailable {
		return ErrSpotNotAvailable
	}
	s.Status = SpotStatusReserved
	s.HolderID = &holderID
	s.HoldExpiresAt = &expiresAt
	s.UpdatedAt = now
	return nil
}

// Release returns a RESERVED spot to AVAILABLE. It reports false when the spot was not reserved.
func (s *Spot) Release(now time.Time) bool {
	if s.Status != SpotStatusReserved {
		return false
	}
	s.Status = SpotStatusAvailable
	s.HolderID = nil
	s.HoldExpiresAt = nil
	s.UpdatedAt = now
	return true
}

func (s *Spot) HoldLapsed(now time.Time) bool {
	return s.Status == SpotStatusReserved && s.HoldExpiresAt != nil && s.HoldExpiresAt.Before(now)
}

// CheckInvariant verifies that holder and hold expiry are set exactly when the spot is RESERVED.
func (s *Spot) CheckInvariant() error {
	held := s.HolderID != nil && s.HoldExpiresAt != nil
	empty := s.HolderID == nil && s.HoldExpiresAt == nil
	switch {
	case s.Status == SpotStatusReserved && !held:
		return errors.Newf("spot %d is reserved without a holder", s.ID)
	case s.Status != SpotStatusReserved && !empty:
		return errors.Newf("spot %d is %s but carries a hold", s.ID, s.Status)
	}
	return nil
}
