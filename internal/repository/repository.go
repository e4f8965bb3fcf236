package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

type SpotRepository interface {
	// Get reads a spot. Inside a transaction the row stays locked until commit.
	Get(ctx context.Context, id int64) (*domain.Spot, error)
	ListAvailable(ctx context.Context, facilityID int64, spotType domain.SpotType) ([]domain.Spot, error)
	// Hold flips AVAILABLE to RESERVED. A spot in any other state yields domain.ErrSpotNotAvailable.
	Hold(ctx context.Context, id, holderID int64, expiresAt, now time.Time) error
	// Release flips RESERVED back to AVAILABLE and reports whether anything changed.
	Release(ctx context.Context, id int64, now time.Time) (bool, error)
}

type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	GetByReference(ctx context.Context, reference string) (*domain.Reservation, error)
	HasLiveForUser(ctx context.Context, userID int64) (bool, error)
	ListLiveForSpot(ctx context.Context, spotID int64) ([]domain.Reservation, error)
	// UpdateStatus moves a reservation from one status to another. It fails with
	// domain.ErrReservationNotActive when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id int64, from, to domain.ReservationStatus, now time.Time) error
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Reservation, error)
}

type FacilityRepository interface {
	Get(ctx context.Context, id int64) (*domain.Facility, error)
	List(ctx context.Context) ([]domain.Facility, error)
	// TakeSpot decrements the available counter, never below zero.
	TakeSpot(ctx context.Context, id int64) error
	// ReturnSpot increments the available counter. It reports false when the
	// counter was already at total and nothing changed.
	ReturnSpot(ctx context.Context, id int64) (bool, error)
}

type AccountRepository interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetVehicle(ctx context.Context, id int64) (*domain.Vehicle, error)
}

// Tx groups the repositories bound to one unit of work.
type Tx interface {
	Spots() SpotRepository
	Reservations() ReservationRepository
	Facilities() FacilityRepository
	Accounts() AccountRepository
}

// Store exposes the repositories outside a transaction and runs units of work.
// Everything fn writes through tx commits together or not at all.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Seeder inserts reference data. Used by seeding and tests.
type Seeder interface {
	InsertFacility(ctx context.Context, f *domain.Facility) error
	InsertSpot(ctx context.Context, s *domain.Spot) error
	InsertUser(ctx context.Context, u *domain.User) error
	InsertVehicle(ctx context.Context, v *domain.Vehicle) error
}
