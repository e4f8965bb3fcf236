package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

const reservationColumns = `id, reference, user_id, vehicle_id, facility_id, spot_id, status,
	reserved_from, reserved_until, hold_expires_at, hourly_rate_cents, amount_cents, created_at, updated_at`

var liveStatuses = []string{string(domain.ReservationStatusActive), string(domain.ReservationStatusConfirmed)}

type PGReservationRepository struct {
	db        DBTX
	forUpdate bool
}

func NewReservationRepository(db DBTX) ReservationRepository {
	return &PGReservationRepository{db: db}
}

func (r *PGReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	err := r.db.QueryRow(ctx, `INSERT INTO reservations
		(reference, user_id, vehicle_id, facility_id, spot_id, status, reserved_from, reserved_until,
		 hold_expires_at, hourly_rate_cents, amount_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id`,
		res.Reference, res.UserID, res.VehicleID, res.FacilityID, res.SpotID, res.Status,
		res.ReservedFrom, res.ReservedUntil, res.HoldExpiresAt, res.HourlyRateCents, res.AmountCents, res.CreatedAt).
		Scan(&res.ID)
	if err != nil {
		// partial unique index on live reservations per user
		if isUniqueViolation(err, liveReservationIndex) {
			return domain.ErrConflictingReservation
		}
		return domain.StorageError(err, "create reservation")
	}
	res.UpdatedAt = res.CreatedAt
	return nil
}

func (r *PGReservationRepository) GetByReference(ctx context.Context, reference string) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE reference=$1`+lockClause(r.forUpdate), reference)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, domain.StorageError(err, "get reservation")
	}
	return res, nil
}

func (r *PGReservationRepository) HasLiveForUser(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE user_id=$1 AND status = ANY($2))`, userID, liveStatuses).Scan(&exists)
	return exists, domain.StorageError(err, "check live reservations")
}

func (r *PGReservationRepository) ListLiveForSpot(ctx context.Context, spotID int64) ([]domain.Reservation, error) {
	return r.list(ctx, "list spot reservations", `SELECT `+reservationColumns+` FROM reservations
		WHERE spot_id=$1 AND status = ANY($2) ORDER BY reserved_from`, spotID, liveStatuses)
}

func (r *PGReservationRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.ReservationStatus, now time.Time) error {
	res, err := r.db.Exec(ctx, `UPDATE reservations SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4`, to, now, id, from)
	if err != nil {
		return domain.StorageError(err, "update reservation status")
	}
	if res.RowsAffected() == 0 {
		return domain.ErrReservationNotActive
	}
	return nil
}

func (r *PGReservationRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	return r.list(ctx, "list expired holds", `SELECT `+reservationColumns+` FROM reservations
		WHERE status=$1 AND hold_expires_at < $2 ORDER BY hold_expires_at LIMIT $3`,
		domain.ReservationStatusActive, now, limit)
}

func (r *PGReservationRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	return r.list(ctx, "list user reservations", `SELECT `+reservationColumns+` FROM reservations
		WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *PGReservationRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError(err, op)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, domain.StorageError(err, op)
		}
		out = append(out, *res)
	}
	return out, domain.StorageError(rows.Err(), op)
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var r domain.Reservation
	if err := row.Scan(&r.ID, &r.Reference, &r.UserID, &r.VehicleID, &r.FacilityID, &r.SpotID, &r.Status,
		&r.ReservedFrom, &r.ReservedUntil, &r.HoldExpiresAt, &r.HourlyRateCents, &r.AmountCents, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
