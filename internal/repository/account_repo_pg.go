package repository

import (
	"context"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

type PGAccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) AccountRepository {
	return &PGAccountRepository{db: db}
}

func (r *PGAccountRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, `SELECT id, is_active FROM users WHERE id=$1`, id).Scan(&u.ID, &u.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, domain.StorageError(err, "get user")
	}
	return &u, nil
}

func (r *PGAccountRepository) GetVehicle(ctx context.Context, id int64) (*domain.Vehicle, error) {
	var v domain.Vehicle
	err := r.db.QueryRow(ctx, `SELECT id, owner_id, is_active FROM vehicles WHERE id=$1`, id).Scan(&v.ID, &v.OwnerID, &v.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, domain.StorageError(err, "get vehicle")
	}
	return &v, nil
}

var _ AccountRepository = (*PGAccountRepository)(nil)
