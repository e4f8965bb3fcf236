package availability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/parking/internal/cache"
	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/logging"
	"github.com/Domenick1991/parking/internal/metrics"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL    = 30 * time.Second
	DefaultPrefix = "parking:"

	warmConcurrency = 4

	kindFacility = "facility"
	kindSpots    = "spots"
	kindStatus   = "spot_status"
)

type AvailabilityUseCase interface {
	GetFacilityAvailability(ctx context.Context, facilityID int64) (*FacilityAvailability, error)
	GetAvailableSpots(ctx context.Context, facilityID int64) ([]domain.Spot, error)
	GetAvailableSpotsByType(ctx context.Context, facilityID int64, spotType domain.SpotType) ([]domain.Spot, error)
	GetSpotStatus(ctx context.Context, spotID int64) (domain.SpotStatus, error)
	WarmCache(ctx context.Context, facilityIDs []int64) (int, error)
	Invalidate(ctx context.Context, facilityID, spotID int64)
	EvictAll(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

type FacilityAvailability struct {
	FacilityID    int64     `json:"facility_id"`
	Available     int       `json:"available"`
	Total         int       `json:"total"`
	OccupancyRate float64   `json:"occupancy_rate"`
	AsOf          time.Time `json:"as_of"`
}

type Stats struct {
	FacilityEntries   int `json:"facility_entries"`
	SpotListEntries   int `json:"spot_list_entries"`
	SpotStatusEntries int `json:"spot_status_entries"`
	Total             int `json:"total"`
}

// Service is a read-through cache in front of the store. Reads never take
// spot locks; writers call Invalidate after they commit.
type Service struct {
	store   repository.Store
	backend cache.Backend
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
	ttl     time.Duration
	prefix  string
	group   singleflight.Group
	gens    generations
}

// generations counts invalidations per facility and per spot. A load that
// started before an invalidation must not leave its result in the cache.
type generations struct {
	mu    sync.Mutex
	epoch uint64
	scope map[string]uint64
}

func (g *generations) current(scope string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch + g.scope[scope]
}

func (g *generations) bump(scopes ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.scope == nil {
		g.scope = make(map[string]uint64)
	}
	for _, sc := range scopes {
		g.scope[sc]++
	}
}

func (g *generations) bumpAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
}

func facilityScope(facilityID int64) string { return fmt.Sprintf("facility:%d", facilityID) }

func spotScope(spotID int64) string { return fmt.Sprintf("spot:%d", spotID) }

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(s *Service) { s.prefix = prefix }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store repository.Store, backend cache.Backend, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  clock.NewRealClock(),
		logger: slog.Default(),
		ttl:    DefaultTTL,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	if backend == nil {
		backend = cache.NewMemoryCache(s.clock)
	}
	s.backend = backend
	return s
}

func (s *Service) GetFacilityAvailability(ctx context.Context, facilityID int64) (*FacilityAvailability, error) {
	var out FacilityAvailability
	err := s.readThrough(ctx, kindFacility, facilityScope(facilityID), s.facilityKey(facilityID), &out, func(ctx context.Context) (any, error) {
		return s.loadFacility(ctx, facilityID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) GetAvailableSpots(ctx context.Context, facilityID int64) ([]domain.Spot, error) {
	return s.GetAvailableSpotsByType(ctx, facilityID, "")
}

// GetAvailableSpotsByType lists AVAILABLE spots of a facility ordered by
// floor and number. An empty spotType matches every type.
func (s *Service) GetAvailableSpotsByType(ctx context.Context, facilityID int64, spotType domain.SpotType) ([]domain.Spot, error) {
	if spotType != "" && !spotType.Valid() {
		return nil, errors.Newf("unknown spot type %q", spotType)
	}
	var out []domain.Spot
	err := s.readThrough(ctx, kindSpots, facilityScope(facilityID), s.spotsKey(facilityID, spotType), &out, func(ctx context.Context) (any, error) {
		spots, err := s.store.Spots().ListAvailable(ctx, facilityID, spotType)
		if err != nil {
			return nil, err
		}
		if spots == nil {
			spots = []domain.Spot{}
		}
		return spots, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetSpotStatus(ctx context.Context, spotID int64) (domain.SpotStatus, error) {
	var out domain.SpotStatus
	err := s.readThrough(ctx, kindStatus, spotScope(spotID), s.statusKey(spotID), &out, func(ctx context.Context) (any, error) {
		spot, err := s.store.Spots().Get(ctx, spotID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSpotNotFound
		}
		if err != nil {
			return nil, err
		}
		return spot.Status, nil
	})
	return out, err
}

// WarmCache loads availability and the spot list of each facility. An empty
// list warms every facility in the store. Unknown facilities are skipped; the
// result is the number actually warmed.
func (s *Service) WarmCache(ctx context.Context, facilityIDs []int64) (int, error) {
	if len(facilityIDs) == 0 {
		facilities, err := s.store.Facilities().List(ctx)
		if err != nil {
			return 0, err
		}
		for _, f := range facilities {
			facilityIDs = append(facilityIDs, f.ID)
		}
	}

	var warmed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, id := range facilityIDs {
		g.Go(func() error {
			scope := facilityScope(id)
			gen := s.gens.current(scope)
			availability, err := s.loadFacility(gctx, id)
			if errors.Is(err, domain.ErrFacilityInvalid) {
				s.logger.DebugContext(gctx, "skip warming unknown facility", "facility_id", id)
				return nil
			}
			if err != nil {
				return err
			}
			spots, err := s.store.Spots().ListAvailable(gctx, id, "")
			if err != nil {
				return err
			}
			if spots == nil {
				spots = []domain.Spot{}
			}
			s.putIfCurrent(gctx, scope, gen, s.facilityKey(id), availability)
			s.putIfCurrent(gctx, scope, gen, s.spotsKey(id, ""), spots)
			warmed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(warmed.Load()), err
	}

	s.logger.InfoContext(ctx, "availability cache warmed", "facilities", warmed.Load())
	return int(warmed.Load()), nil
}

// Invalidate drops everything cached about a facility and one of its spots.
// A zero spotID only drops facility level entries.
func (s *Service) Invalidate(ctx context.Context, facilityID, spotID int64) {
	keys := []string{s.facilityKey(facilityID)}
	scopes := []string{facilityScope(facilityID)}
	if spotID != 0 {
		keys = append(keys, s.statusKey(spotID))
		scopes = append(scopes, spotScope(spotID))
	}
	// bumped before the delete: a racing load either skips its write or loses it to the delete
	s.gens.bump(scopes...)
	if err := s.backend.Delete(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "facility_id", facilityID, "spot_id", spotID, logging.Err(err))
	}
	if _, err := s.backend.DeletePrefix(ctx, s.spotsFacilityPrefix(facilityID)); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "facility_id", facilityID, logging.Err(err))
	}
}

// EvictAll drops every availability entry. Other keys sharing the prefix,
// such as distributed spot locks, are left alone.
func (s *Service) EvictAll(ctx context.Context) (int, error) {
	s.gens.bumpAll()
	total := 0
	for _, sub := range s.entryPrefixes() {
		n, err := s.backend.DeletePrefix(ctx, sub)
		total += n
		if err != nil {
			return total, errors.Wrap(err, "evict availability cache")
		}
	}
	s.logger.InfoContext(ctx, "availability cache evicted", "entries", total)
	return total, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		st  Stats
		err error
	)
	prefixes := s.entryPrefixes()
	if st.FacilityEntries, err = s.backend.Count(ctx, prefixes[0]); err != nil {
		return Stats{}, errors.Wrap(err, "count facility entries")
	}
	if st.SpotListEntries, err = s.backend.Count(ctx, prefixes[1]); err != nil {
		return Stats{}, errors.Wrap(err, "count spot list entries")
	}
	if st.SpotStatusEntries, err = s.backend.Count(ctx, prefixes[2]); err != nil {
		return Stats{}, errors.Wrap(err, "count spot status entries")
	}
	st.Total = st.FacilityEntries + st.SpotListEntries + st.SpotStatusEntries
	return st, nil
}

func (s *Service) loadFacility(ctx context.Context, facilityID int64) (*FacilityAvailability, error) {
	f, err := s.store.Facilities().Get(ctx, facilityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrFacilityInvalid
	}
	if err != nil {
		return nil, err
	}
	return &FacilityAvailability{
		FacilityID:    f.ID,
		Available:     f.AvailableSpots,
		Total:         f.TotalSpots,
		OccupancyRate: f.OccupancyRate(),
		AsOf:          s.clock.Now(),
	}, nil
}

// readThrough fills dst from the cache or, on a miss, from load. Concurrent
// misses on one key share a single load as long as no invalidation of scope
// happened in between. Cache errors fall back to load.
func (s *Service) readThrough(ctx context.Context, kind, scope, key string, dst any, load func(ctx context.Context) (any, error)) error {
	hit, err := s.backend.Get(ctx, key, dst)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed", "key", key, logging.Err(err))
	}
	if hit {
		s.metrics.CacheHit(kind)
		return nil
	}
	s.metrics.CacheMiss(kind)

	gen := s.gens.current(scope)
	v, err, _ := s.group.Do(fmt.Sprintf("%s@%d", key, gen), func() (any, error) {
		// shared by every waiting caller, so it must outlive the first one
		loadCtx := context.WithoutCancel(ctx)
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.putIfCurrent(loadCtx, scope, gen, key, value)
		return value, nil
	})
	if err != nil {
		return err
	}
	return assign(dst, v)
}

// putIfCurrent stores value unless scope was invalidated after gen was read.
// An invalidation racing with the write removes the entry again.
func (s *Service) putIfCurrent(ctx context.Context, scope string, gen uint64, key string, value any) {
	if s.gens.current(scope) != gen {
		return
	}
	if err := s.backend.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "key", key, logging.Err(err))
		return
	}
	if s.gens.current(scope) != gen {
		if err := s.backend.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "cache write rollback failed", "key", key, logging.Err(err))
		}
	}
}

func assign(dst, v any) error {
	switch d := dst.(type) {
	case *FacilityAvailability:
		*d = *v.(*FacilityAvailability)
	case *[]domain.Spot:
		src := v.([]domain.Spot)
		*d = append([]domain.Spot(nil), src...)
	case *domain.SpotStatus:
		*d = v.(domain.SpotStatus)
	default:
		return errors.AssertionFailedf("unexpected cache destination %T", dst)
	}
	return nil
}

func (s *Service) entryPrefixes() []string {
	return []string{s.prefix + "facility:", s.prefix + "spots:", s.prefix + "spot:"}
}

func (s *Service) facilityKey(facilityID int64) string {
	return fmt.Sprintf("%sfacility:%d", s.prefix, facilityID)
}

func (s *Service) spotsFacilityPrefix(facilityID int64) string {
	return fmt.Sprintf("%sspots:%d:", s.prefix, facilityID)
}

func (s *Service) spotsKey(facilityID int64, spotType domain.SpotType) string {
	if spotType == "" {
		return s.spotsFacilityPrefix(facilityID) + "all"
	}
	return s.spotsFacilityPrefix(facilityID) + string(spotType)
}

func (s *Service) statusKey(spotID int64) string {
	return fmt.Sprintf("%sspot:%d:status", s.prefix, spotID)
}

var _ AvailabilityUseCase = (*Service)(nil)
