package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
)

// MemoryStore keeps everything in process memory. Units of work run one at a
// time under a store-wide mutex and are rolled back from an undo journal when
// fn fails, which gives the same all-or-nothing guarantee as a database
// transaction.
type MemoryStore struct {
	mu           sync.Mutex
	facilities   map[int64]*domain.Facility
	spots        map[int64]*domain.Spot
	reservations map[int64]*domain.Reservation
	byReference  map[string]int64
	users        map[int64]*domain.User
	vehicles     map[int64]*domain.Vehicle
	nextID       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		facilities:   make(map[int64]*domain.Facility),
		spots:        make(map[int64]*domain.Spot),
		reservations: make(map[int64]*domain.Reservation),
		byReference:  make(map[string]int64),
		users:        make(map[int64]*domain.User),
		vehicles:     make(map[int64]*domain.Vehicle),
	}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return domain.StorageError(err, "begin transaction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) Spots() SpotRepository               { return memSpots{s.auto()} }
func (s *MemoryStore) Reservations() ReservationRepository { return memReservations{s.auto()} }
func (s *MemoryStore) Facilities() FacilityRepository      { return memFacilities{s.auto()} }
func (s *MemoryStore) Accounts() AccountRepository         { return memAccounts{s.auto()} }

func (s *MemoryStore) InsertFacility(_ context.Context, f *domain.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		f.ID = s.newID()
	}
	cp := *f
	s.facilities[f.ID] = &cp
	return nil
}

func (s *MemoryStore) InsertSpot(_ context.Context, sp *domain.Spot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facilities[sp.FacilityID]; !ok {
		return errors.Newf("insert spot %q: facility %d does not exist", sp.Number, sp.FacilityID)
	}
	if sp.ID == 0 {
		sp.ID = s.newID()
	}
	if sp.Status == "" {
		sp.Status = domain.SpotStatusAvailable
	}
	if sp.Type == "" {
		sp.Type = domain.SpotTypeRegular
	}
	cp := *sp
	s.spots[sp.ID] = &cp
	return nil
}

func (s *MemoryStore) InsertUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.newID()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) InsertVehicle(_ context.Context, v *domain.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == 0 {
		v.ID = s.newID()
	}
	cp := *v
	s.vehicles[v.ID] = &cp
	return nil
}

func (s *MemoryStore) newID() int64 {
	s.nextID++
	return s.nextID
}

// auto returns a handle whose every call runs as its own short unit of work.
func (s *MemoryStore) auto() memHandle {
	return memHandle{store: s}
}

type memTx struct {
	store *MemoryStore
	undo  []func()
}

func (t *memTx) Spots() SpotRepository               { return memSpots{memHandle{store: t.store, tx: t}} }
func (t *memTx) Reservations() ReservationRepository { return memReservations{memHandle{store: t.store, tx: t}} }
func (t *memTx) Facilities() FacilityRepository      { return memFacilities{memHandle{store: t.store, tx: t}} }
func (t *memTx) Accounts() AccountRepository         { return memAccounts{memHandle{store: t.store, tx: t}} }

func (t *memTx) record(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

type memHandle struct {
	store *MemoryStore
	tx    *memTx
}

func (h memHandle) do(fn func(tx *memTx) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	tx := &memTx{store: h.store}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memSpots struct{ memHandle }

func (r memSpots) Get(_ context.Context, id int64) (*domain.Spot, error) {
	var out *domain.Spot
	err := r.do(func(tx *memTx) error {
		sp, ok := tx.store.spots[id]
		if !ok {
			return ErrNotFound
		}
		cp := *sp
		out = &cp
		return nil
	})
	return out, err
}

func (r memSpots) ListAvailable(_ context.Context, facilityID int64, spotType domain.SpotType) ([]domain.Spot, error) {
	out := make([]domain.Spot, 0)
	err := r.do(func(tx *memTx) error {
		for _, sp := range tx.store.spots {
			if sp.FacilityID != facilityID || sp.Status != domain.SpotStatusAvailable {
				continue
			}
			if spotType != "" && sp.Type != spotType {
				continue
			}
			out = append(out, *sp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].FloorLevel != out[j].FloorLevel {
			return out[i].FloorLevel < out[j].FloorLevel
		}
		return out[i].Number < out[j].Number
	})
	return out, err
}

func (r memSpots) Hold(_ context.Context, id, holderID int64, expiresAt, now time.Time) error {
	return r.do(func(tx *memTx) error {
		sp, ok := tx.store.spots[id]
		if !ok {
			return ErrNotFound
		}
		prev := *sp
		if err := sp.Hold(holderID, expiresAt, now); err != nil {
			return err
		}
		tx.record(func() { *sp = prev })
		return nil
	})
}

func (r memSpots) Release(_ context.Context, id int64, now time.Time) (bool, error) {
	var released bool
	err := r.do(func(tx *memTx) error {
		sp, ok := tx.store.spots[id]
		if !ok {
			return ErrNotFound
		}
		prev := *sp
		if released = sp.Release(now); released {
			tx.record(func() { *sp = prev })
		}
		return nil
	})
	return released, err
}

type memReservations struct{ memHandle }

func (r memReservations) Create(_ context.Context, res *domain.Reservation) error {
	return r.do(func(tx *memTx) error {
		s := tx.store
		if _, dup := s.byReference[res.Reference]; dup {
			return errors.Newf("reservation reference %s already exists", res.Reference)
		}
		for _, existing := range s.reservations {
			if existing.UserID == res.UserID && existing.IsLive() {
				return domain.ErrConflictingReservation
			}
		}
		prevID := s.nextID
		res.ID = s.newID()
		res.UpdatedAt = res.CreatedAt
		cp := *res
		s.reservations[res.ID] = &cp
		s.byReference[res.Reference] = res.ID
		tx.record(func() {
			delete(s.reservations, cp.ID)
			delete(s.byReference, cp.Reference)
			s.nextID = prevID
		})
		return nil
	})
}

func (r memReservations) GetByReference(_ context.Context, reference string) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := r.do(func(tx *memTx) error {
		id, ok := tx.store.byReference[reference]
		if !ok {
			return ErrNotFound
		}
		cp := *tx.store.reservations[id]
		out = &cp
		return nil
	})
	return out, err
}

func (r memReservations) HasLiveForUser(_ context.Context, userID int64) (bool, error) {
	var found bool
	err := r.do(func(tx *memTx) error {
		for _, res := range tx.store.reservations {
			if res.UserID == userID && res.IsLive() {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r memReservations) ListLiveForSpot(_ context.Context, spotID int64) ([]domain.Reservation, error) {
	return r.filter(func(res *domain.Reservation) bool {
		return res.SpotID != nil && *res.SpotID == spotID && res.IsLive()
	}, func(a, b domain.Reservation) bool { return a.ReservedFrom.Before(b.ReservedFrom) }, 0)
}

func (r memReservations) UpdateStatus(_ context.Context, id int64, from, to domain.ReservationStatus, now time.Time) error {
	return r.do(func(tx *memTx) error {
		res, ok := tx.store.reservations[id]
		if !ok {
			return ErrNotFound
		}
		if res.Status != from {
			return domain.ErrReservationNotActive
		}
		prev := *res
		res.Status = to
		res.UpdatedAt = now
		tx.record(func() { *res = prev })
		return nil
	})
}

func (r memReservations) ListExpiredHolds(_ context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	return r.filter(func(res *domain.Reservation) bool {
		return res.Status == domain.ReservationStatusActive && res.HoldExpired(now)
	}, func(a, b domain.Reservation) bool { return a.HoldExpiresAt.Before(b.HoldExpiresAt) }, limit)
}

func (r memReservations) ListByUser(_ context.Context, userID int64) ([]domain.Reservation, error) {
	return r.filter(func(res *domain.Reservation) bool {
		return res.UserID == userID
	}, func(a, b domain.Reservation) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	}, 0)
}

func (r memReservations) filter(keep func(*domain.Reservation) bool, less func(a, b domain.Reservation) bool, limit int) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := r.do(func(tx *memTx) error {
		for _, res := range tx.store.reservations {
			if keep(res) {
				out = append(out, *res)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type memFacilities struct{ memHandle }

func (r memFacilities) Get(_ context.Context, id int64) (*domain.Facility, error) {
	var out *domain.Facility
	err := r.do(func(tx *memTx) error {
		f, ok := tx.store.facilities[id]
		if !ok {
			return ErrNotFound
		}
		cp := *f
		out = &cp
		return nil
	})
	return out, err
}

func (r memFacilities) List(_ context.Context) ([]domain.Facility, error) {
	out := make([]domain.Facility, 0)
	err := r.do(func(tx *memTx) error {
		for _, f := range tx.store.facilities {
			out = append(out, *f)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r memFacilities) TakeSpot(_ context.Context, id int64) error {
	return r.do(func(tx *memTx) error {
		f, ok := tx.store.facilities[id]
		if !ok {
			return ErrNotFound
		}
		prev := *f
		if err := f.TakeSpot(); err != nil {
			return errors.Mark(err, domain.ErrSpotNotAvailable)
		}
		tx.record(func() { *f = prev })
		return nil
	})
}

func (r memFacilities) ReturnSpot(_ context.Context, id int64) (bool, error) {
	var returned bool
	err := r.do(func(tx *memTx) error {
		f, ok := tx.store.facilities[id]
		if !ok {
			return ErrNotFound
		}
		prev := *f
		if f.ReturnSpot() == nil {
			returned = true
			tx.record(func() { *f = prev })
		}
		return nil
	})
	return returned, err
}

type memAccounts struct{ memHandle }

func (r memAccounts) GetUser(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.do(func(tx *memTx) error {
		u, ok := tx.store.users[id]
		if !ok {
			return ErrNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (r memAccounts) GetVehicle(_ context.Context, id int64) (*domain.Vehicle, error) {
	var out *domain.Vehicle
	err := r.do(func(tx *memTx) error {
		v, ok := tx.store.vehicles[id]
		if !ok {
			return ErrNotFound
		}
		cp := *v
		out = &cp
		return nil
	})
	return out, err
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Seeder = (*MemoryStore)(nil)
)
