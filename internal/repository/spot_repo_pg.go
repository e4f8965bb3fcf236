package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

const spotColumns = `id, facility_id, spot_number, floor_level, spot_type, status, holder_id, hold_expires_at, updated_at`

type PGSpotRepository struct {
	db        DBTX
	forUpdate bool
}

func NewSpotRepository(db DBTX) SpotRepository {
	return &PGSpotRepository{db: db}
}

func (r *PGSpotRepository) Get(ctx context.Context, id int64) (*domain.Spot, error) {
	row := r.db.QueryRow(ctx, `SELECT `+spotColumns+` FROM parking_spots WHERE id=$1`+lockClause(r.forUpdate), id)
	s, err := scanSpot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, domain.StorageError(err, "get spot")
	}
	return s, nil
}

func (r *PGSpotRepository) ListAvailable(ctx context.Context, facilityID int64, spotType domain.SpotType) ([]domain.Spot, error) {
	rows, err := r.db.Query(ctx, `SELECT `+spotColumns+` FROM parking_spots
		WHERE facility_id=$1 AND status=$2 AND ($3 = '' OR spot_type=$3)
		ORDER BY floor_level, spot_number`, facilityID, domain.SpotStatusAvailable, string(spotType))
	if err != nil {
		return nil, domain.StorageError(err, "list available spots")
	}
	defer rows.Close()

	spots := make([]domain.Spot, 0)
	for rows.Next() {
		s, err := scanSpot(rows)
		if err != nil {
			return nil, domain.StorageError(err, "scan spot")
		}
		spots = append(spots, *s)
	}
	return spots, domain.StorageError(rows.Err(), "list available spots")
}

func (r *PGSpotRepository) Hold(ctx context.Context, id, holderID int64, expiresAt, now time.Time) error {
	res, err := r.db.Exec(ctx, `UPDATE parking_spots
		SET status=$1, holder_id=$2, hold_expires_at=$3, updated_at=$4
		WHERE id=$5 AND status=$6`,
		domain.SpotStatusReserved, holderID, expiresAt, now, id, domain.SpotStatusAvailable)
	if err != nil {
		return domain.StorageError(err, "hold spot")
	}
	if res.RowsAffected() == 0 {
		return domain.ErrSpotNotAvailable
	}
	return nil
}

func (r *PGSpotRepository) Release(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := r.db.Exec(ctx, `UPDATE parking_spots
		SET status=$1, holder_id=NULL, hold_expires_at=NULL, updated_at=$2
		WHERE id=$3 AND status=$4`,
		domain.SpotStatusAvailable, now, id, domain.SpotStatusReserved)
	if err != nil {
		return false, domain.StorageError(err, "release spot")
	}
	return res.RowsAffected() > 0, nil
}

func scanSpot(row pgx.Row) (*domain.Spot, error) {
	var s domain.Spot
	if err := row.Scan(&s.ID, &s.FacilityID, &s.Number, &s.FloorLevel, &s.Type, &s.Status, &s.HolderID, &s.HoldExpiresAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

var _ SpotRepository = (*PGSpotRepository)(nil)
