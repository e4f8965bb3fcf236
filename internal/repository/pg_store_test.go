package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/Domenick1991/parking/internal/testutil"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepositories(t *testing.T) {
	pool := &pgxpool.Pool{}
	assert.NotNil(t, repository.NewSpotRepository(pool))
	assert.NotNil(t, repository.NewReservationRepository(pool))
	assert.NotNil(t, repository.NewFacilityRepository(pool))
	assert.NotNil(t, repository.NewAccountRepository(pool))
	assert.NotNil(t, repository.NewPGStore(pool))
}

func newPGStore(t *testing.T) *repository.PGStore {
	t.Helper()
	pool := testutil.NewTestPool(t)
	store := repository.NewPGStore(pool)
	require.NoError(t, repository.ApplySeed(context.Background(), store, testutil.Seed()))
	return store
}

func TestPGStore_SeedAndRead(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()

	f, err := store.Facilities().Get(ctx, testutil.FacilityCentral)
	require.NoError(t, err)
	assert.Equal(t, 3, f.TotalSpots)
	assert.Equal(t, 3, f.AvailableSpots)

	spots, err := store.Spots().ListAvailable(ctx, testutil.FacilityCentral, domain.SpotTypeElectric)
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, testutil.SpotCentralEV, spots[0].ID)

	_, err = store.Spots().Get(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	v, err := store.Accounts().GetVehicle(ctx, testutil.VehicleOfUser(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.OwnerID)
}

func TestPGStore_WithinTx_RollsBack(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Spots().Hold(ctx, testutil.SpotCentralA, 1, now.Add(time.Minute), now); err != nil {
			return err
		}
		if err := tx.Facilities().TakeSpot(ctx, testutil.FacilityCentral); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	spot, err := store.Spots().Get(ctx, testutil.SpotCentralA)
	require.NoError(t, err)
	assert.Equal(t, domain.SpotStatusAvailable, spot.Status)

	f, err := store.Facilities().Get(ctx, testutil.FacilityCentral)
	require.NoError(t, err)
	assert.Equal(t, 3, f.AvailableSpots)
}

func TestPGStore_ConcurrentHoldSingleWinner(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var (
		wins atomic.Int32
		wg   sync.WaitGroup
	)
	for user := int64(1); user <= 5; user++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
				if _, err := tx.Spots().Get(ctx, testutil.SpotAirport); err != nil {
					return err
				}
				return tx.Spots().Hold(ctx, testutil.SpotAirport, user, now.Add(time.Minute), now)
			})
			if err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrSpotNotAvailable)
			}
		}(user)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestPGReservations_Lifecycle(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	spotID := testutil.SpotCentralA

	res := &domain.Reservation{
		Reference: domain.NewReference(now), UserID: 1, VehicleID: testutil.VehicleOfUser(1),
		FacilityID: testutil.FacilityCentral, SpotID: &spotID, Status: domain.ReservationStatusActive,
		ReservedFrom: now, ReservedUntil: now.Add(time.Hour), HoldExpiresAt: now.Add(-time.Second),
		HourlyRateCents: 2000, AmountCents: 2000, CreatedAt: now,
	}
	require.NoError(t, store.Reservations().Create(ctx, res))
	assert.NotZero(t, res.ID)

	dup := *res
	dup.Reference = domain.NewReference(now)
	assert.ErrorIs(t, store.Reservations().Create(ctx, &dup), domain.ErrConflictingReservation)

	// same reference for another user is a storage failure, not a live conflict
	clash := *res
	clash.UserID, clash.VehicleID = 2, testutil.VehicleOfUser(2)
	err := store.Reservations().Create(ctx, &clash)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConflictingReservation)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))

	got, err := store.Reservations().GetByReference(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, res.AmountCents, got.AmountCents)

	expired, err := store.Reservations().ListExpiredHolds(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	require.NoError(t, store.Reservations().UpdateStatus(ctx, res.ID, domain.ReservationStatusActive, domain.ReservationStatusExpired, now))
	assert.ErrorIs(t,
		store.Reservations().UpdateStatus(ctx, res.ID, domain.ReservationStatusActive, domain.ReservationStatusConfirmed, now),
		domain.ErrReservationNotActive)

	list, err := store.Reservations().ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.ReservationStatusExpired, list[0].Status)
}
