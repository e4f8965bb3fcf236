package repository

import (
	"context"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

const facilityColumns = `id, name, is_active, hourly_rate_cents, total_spots, available_spots, updated_at`

type PGFacilityRepository struct {
	db DBTX
}

func NewFacilityRepository(db DBTX) FacilityRepository {
	return &PGFacilityRepository{db: db}
}

func (r *PGFacilityRepository) Get(ctx context.Context, id int64) (*domain.Facility, error) {
	row := r.db.QueryRow(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id=$1`, id)
	f, err := scanFacility(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, domain.StorageError(err, "get facility")
	}
	return f, nil
}

func (r *PGFacilityRepository) List(ctx context.Context) ([]domain.Facility, error) {
	rows, err := r.db.Query(ctx, `SELECT `+facilityColumns+` FROM facilities ORDER BY id`)
	if err != nil {
		return nil, domain.StorageError(err, "list facilities")
	}
	defer rows.Close()

	facilities := make([]domain.Facility, 0)
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, domain.StorageError(err, "scan facility")
		}
		facilities = append(facilities, *f)
	}
	return facilities, domain.StorageError(rows.Err(), "list facilities")
}

func (r *PGFacilityRepository) TakeSpot(ctx context.Context, id int64) error {
	res, err := r.db.Exec(ctx, `UPDATE facilities SET available_spots = available_spots - 1, updated_at = now() WHERE id=$1 AND available_spots > 0`, id)
	if err != nil {
		return domain.StorageError(err, "take facility spot")
	}
	if res.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrSpotNotAvailable, "facility %d has no available spots", id)
	}
	return nil
}

func (r *PGFacilityRepository) ReturnSpot(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.Exec(ctx, `UPDATE facilities SET available_spots = available_spots + 1, updated_at = now() WHERE id=$1 AND available_spots < total_spots`, id)
	if err != nil {
		return false, domain.StorageError(err, "return facility spot")
	}
	return res.RowsAffected() > 0, nil
}

func scanFacility(row pgx.Row) (*domain.Facility, error) {
	var f domain.Facility
	if err := row.Scan(&f.ID, &f.Name, &f.Active, &f.HourlyRateCents, &f.TotalSpots, &f.AvailableSpots, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

var _ FacilityRepository = (*PGFacilityRepository)(nil)
