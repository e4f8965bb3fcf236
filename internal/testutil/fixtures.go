package testutil

import (
	"context"
	"testing"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/repository"
)

// Fixture ids shared by service and transport tests.
const (
	FacilityCentral  int64 = 1
	FacilityAirport  int64 = 2
	FacilityInactive int64 = 3

	SpotCentralA   int64 = 101
	SpotCentralEV  int64 = 102
	SpotCentralDis int64 = 103
	SpotAirport    int64 = 201
	SpotInactive   int64 = 301

	UserInactive    int64 = 6
	VehicleInactive int64 = 19
	// VehicleOfUser(n) is owned by user n for n in 1..5.
)

// CentralRateCents is the hourly rate of FacilityCentral.
const CentralRateCents int64 = 2000

func VehicleOfUser(userID int64) int64 {
	return 10 + userID
}

func Seed() *repository.Seed {
	seed := &repository.Seed{
		Facilities: []repository.SeedFacility{
			{
				ID: FacilityCentral, Name: "Central", HourlyRateCents: CentralRateCents,
				Spots: []repository.SeedSpot{
					{ID: SpotCentralA, Number: "A-01", Floor: 1, Type: domain.SpotTypeRegular},
					{ID: SpotCentralEV, Number: "A-02", Floor: 1, Type: domain.SpotTypeElectric},
					{ID: SpotCentralDis, Number: "B-01", Floor: 2, Type: domain.SpotTypeDisabled},
				},
			},
			{
				ID: FacilityAirport, Name: "Airport", HourlyRateCents: 1500,
				Spots: []repository.SeedSpot{
					{ID: SpotAirport, Number: "P-01", Type: domain.SpotTypeCompact},
				},
			},
			{
				ID: FacilityInactive, Name: "Closed", Inactive: true, HourlyRateCents: 1000,
				Spots: []repository.SeedSpot{
					{ID: SpotInactive, Number: "X-01"},
				},
			},
		},
	}
	for u := int64(1); u <= 5; u++ {
		seed.Users = append(seed.Users, repository.SeedUser{ID: u})
		seed.Vehicles = append(seed.Vehicles, repository.SeedVehicle{ID: VehicleOfUser(u), OwnerID: u})
	}
	seed.Users = append(seed.Users, repository.SeedUser{ID: UserInactive, Inactive: true})
	seed.Vehicles = append(seed.Vehicles,
		repository.SeedVehicle{ID: VehicleInactive, OwnerID: 1, Inactive: true},
		repository.SeedVehicle{ID: VehicleOfUser(UserInactive), OwnerID: UserInactive},
	)
	return seed
}

// NewMemoryStore returns a memory store loaded with Seed.
func NewMemoryStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	if err := repository.ApplySeed(context.Background(), store, Seed()); err != nil {
		t.Fatalf("apply seed: %v", err)
	}
	return store
}
