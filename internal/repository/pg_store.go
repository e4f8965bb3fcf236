package repository

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgErrSerializationFailure = "40001"
	pgErrDeadlockDetected     = "40P01"
	pgErrUniqueViolation      = "23505"

	liveReservationIndex = "reservations_user_live_uidx"

	defaultTxRetries = 3
	txRetryBase      = 50 * time.Millisecond
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGStore struct {
	pool       *pgxpool.Pool
	maxRetries int
	pgTx
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool:       pool,
		maxRetries: defaultTxRetries,
		pgTx:       pgTx{db: pool},
	}
}

// WithinTx runs fn in a READ COMMITTED transaction. Serialization failures and
// deadlocks roll back and run fn again with jittered backoff, so fn must not
// keep state between attempts.
func (s *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt >= s.maxRetries {
			return err
		}

		wait := backoff(attempt, txRetryBase)
		slog.Warn("retrying transaction", "attempt", attempt+1, "wait_ms", wait.Milliseconds(), "error", err)

		select {
		case <-ctx.Done():
			return domain.StorageError(ctx.Err(), "wait for transaction retry")
		case <-time.After(wait):
		}
	}
}

func (s *PGStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.StorageError(err, "begin transaction")
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Warn("rollback failed", "error", rbErr)
		}
	}()

	if err := fn(ctx, &pgTx{db: tx, forUpdate: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError(err, "commit transaction")
	}
	return nil
}

func (s *PGStore) InsertFacility(ctx context.Context, f *domain.Facility) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO facilities (id, name, is_active, hourly_rate_cents, total_spots, available_spots)
		VALUES (COALESCE(NULLIF($1::bigint, 0), nextval('facilities_id_seq')), $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, updated_at`,
		f.ID, f.Name, f.Active, f.HourlyRateCents, f.TotalSpots, f.AvailableSpots).
		Scan(&f.ID, &f.UpdatedAt)
	if err != nil {
		return domain.StorageError(err, "insert facility")
	}
	return s.syncSequence(ctx, "facilities")
}

func (s *PGStore) InsertSpot(ctx context.Context, sp *domain.Spot) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO parking_spots (id, facility_id, spot_number, floor_level, spot_type, status)
		VALUES (COALESCE(NULLIF($1::bigint, 0), nextval('parking_spots_id_seq')), $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET spot_number = EXCLUDED.spot_number
		RETURNING id, updated_at`,
		sp.ID, sp.FacilityID, sp.Number, sp.FloorLevel, sp.Type, sp.Status).
		Scan(&sp.ID, &sp.UpdatedAt)
	if err != nil {
		return domain.StorageError(err, "insert spot")
	}
	return s.syncSequence(ctx, "parking_spots")
}

func (s *PGStore) InsertUser(ctx context.Context, u *domain.User) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, is_active)
		VALUES (COALESCE(NULLIF($1::bigint, 0), nextval('users_id_seq')), $2)
		ON CONFLICT (id) DO UPDATE SET is_active = EXCLUDED.is_active
		RETURNING id`, u.ID, u.Active).Scan(&u.ID)
	if err != nil {
		return domain.StorageError(err, "insert user")
	}
	return s.syncSequence(ctx, "users")
}

func (s *PGStore) InsertVehicle(ctx context.Context, v *domain.Vehicle) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO vehicles (id, owner_id, is_active)
		VALUES (COALESCE(NULLIF($1::bigint, 0), nextval('vehicles_id_seq')), $2, $3)
		ON CONFLICT (id) DO UPDATE SET is_active = EXCLUDED.is_active
		RETURNING id`, v.ID, v.OwnerID, v.Active).Scan(&v.ID)
	if err != nil {
		return domain.StorageError(err, "insert vehicle")
	}
	return s.syncSequence(ctx, "vehicles")
}

// syncSequence keeps the id sequence ahead of rows inserted with explicit ids.
func (s *PGStore) syncSequence(ctx context.Context, table string) error {
	_, err := s.pool.Exec(ctx, `SELECT setval(pg_get_serial_sequence($1, 'id'), GREATEST((SELECT MAX(id) FROM `+pgx.Identifier{table}.Sanitize()+`), 1))`, table)
	return domain.StorageError(err, "sync id sequence")
}

// Ping is used by the health endpoint.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type pgTx struct {
	db        DBTX
	forUpdate bool
}

func (t *pgTx) Spots() SpotRepository {
	return &PGSpotRepository{db: t.db, forUpdate: t.forUpdate}
}

func (t *pgTx) Reservations() ReservationRepository {
	return &PGReservationRepository{db: t.db, forUpdate: t.forUpdate}
}

func (t *pgTx) Facilities() FacilityRepository {
	return &PGFacilityRepository{db: t.db}
}

func (t *pgTx) Accounts() AccountRepository {
	return &PGAccountRepository{db: t.db}
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgErrSerializationFailure || pgErr.Code == pgErrDeadlockDetected
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation && pgErr.ConstraintName == constraint
}

func backoff(attempt int, base time.Duration) time.Duration {
	wait := time.Duration(1<<attempt) * base
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return wait
	}
	jitter := int64(binary.BigEndian.Uint64(buf[:])&0x7FFFFFFFFFFFFFFF) % int64(wait/5+1)
	return wait + time.Duration(jitter)
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

var (
	_ Store  = (*PGStore)(nil)
	_ Seeder = (*PGStore)(nil)
)
