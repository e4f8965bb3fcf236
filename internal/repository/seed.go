package repository

import (
	"context"
	"os"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Seed is reference data loaded at startup: facilities with their spots, plus
// the users and vehicles the account subsystem would normally own.
type Seed struct {
	Facilities []SeedFacility `yaml:"facilities"`
	Users      []SeedUser     `yaml:"users"`
	Vehicles   []SeedVehicle  `yaml:"vehicles"`
}

type SeedFacility struct {
	ID              int64      `yaml:"id"`
	Name            string     `yaml:"name"`
	Inactive        bool       `yaml:"inactive"`
	HourlyRateCents int64      `yaml:"hourly_rate_cents"`
	Spots           []SeedSpot `yaml:"spots"`
}

type SeedSpot struct {
	ID     int64             `yaml:"id"`
	Number string            `yaml:"number"`
	Floor  int               `yaml:"floor"`
	Type   domain.SpotType   `yaml:"type"`
	Status domain.SpotStatus `yaml:"status"`
}

type SeedUser struct {
	ID       int64 `yaml:"id"`
	Inactive bool  `yaml:"inactive"`
}

type SeedVehicle struct {
	ID       int64 `yaml:"id"`
	OwnerID  int64 `yaml:"owner_id"`
	Inactive bool  `yaml:"inactive"`
}

func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, errors.Wrap(err, "parse seed file")
	}
	return &seed, nil
}

// ApplySeed inserts the seed. Facility counters are derived from the spots so
// that available never disagrees with the spot statuses.
func ApplySeed(ctx context.Context, s Seeder, seed *Seed) error {
	for _, u := range seed.Users {
		if err := s.InsertUser(ctx, &domain.User{ID: u.ID, Active: !u.Inactive}); err != nil {
			return err
		}
	}
	for _, v := range seed.Vehicles {
		if err := s.InsertVehicle(ctx, &domain.Vehicle{ID: v.ID, OwnerID: v.OwnerID, Active: !v.Inactive}); err != nil {
			return err
		}
	}
	for _, sf := range seed.Facilities {
		f := &domain.Facility{
			ID:              sf.ID,
			Name:            sf.Name,
			Active:          !sf.Inactive,
			HourlyRateCents: sf.HourlyRateCents,
			TotalSpots:      len(sf.Spots),
		}
		for _, sp := range sf.Spots {
			if sp.Status == "" || sp.Status == domain.SpotStatusAvailable {
				f.AvailableSpots++
			}
		}
		if err := s.InsertFacility(ctx, f); err != nil {
			return err
		}
		for _, sp := range sf.Spots {
			spot := &domain.Spot{
				ID:         sp.ID,
				FacilityID: f.ID,
				Number:     sp.Number,
				FloorLevel: sp.Floor,
				Type:       sp.Type,
				Status:     sp.Status,
			}
			if spot.Type == "" {
				spot.Type = domain.SpotTypeRegular
			} else if !spot.Type.Valid() {
				return errors.Newf("spot %s: unknown type %q", sp.Number, sp.Type)
			}
			if spot.Status == "" {
				spot.Status = domain.SpotStatusAvailable
			}
			if spot.Status == domain.SpotStatusReserved {
				return errors.Newf("spot %s: seed cannot start RESERVED without a holder", sp.Number)
			}
			if err := s.InsertSpot(ctx, spot); err != nil {
				return err
			}
		}
	}
	return nil
}
