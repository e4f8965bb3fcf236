package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/kafka"
	"github.com/Domenick1991/parking/internal/lock"
	"github.com/Domenick1991/parking/internal/logging"
	"github.com/Domenick1991/parking/internal/metrics"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/cockroachdb/errors"
)

const (
	defaultMaxDurationMinutes = 24 * 60
	defaultSweepBatchSize     = 100
	publishTimeout            = 2 * time.Second
)

type ReservationUseCase interface {
	Reserve(ctx context.Context, input ReserveInput) (*domain.Reservation, error)
	Confirm(ctx context.Context, reference string) (*domain.Reservation, error)
	Cancel(ctx context.Context, reference string, userID int64) (*domain.Reservation, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
	Get(ctx context.Context, reference string) (*domain.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Reservation, error)
}

// Invalidator drops cached availability after a committed write.
type Invalidator interface {
	Invalidate(ctx context.Context, facilityID, spotID int64)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type ReserveInput struct {
	UserID          int64 `json:"user_id"`
	VehicleID       int64 `json:"vehicle_id"`
	FacilityID      int64 `json:"facility_id"`
	SpotID          int64 `json:"spot_id"`
	DurationMinutes int   `json:"duration_minutes"`
}

type Service struct {
	store              repository.Store
	locker             lock.Locker
	clock              clock.Clock
	invalidator        Invalidator
	producer           Producer
	reservationTopic   string
	notificationsTopic string
	metrics            *metrics.Metrics
	logger             *slog.Logger
	holdTTL            time.Duration
	maxDurationMinutes int
	sweepBatchSize     int
}

type Option func(*Service)

func WithHoldTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.holdTTL = ttl
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

// WithProducer publishes lifecycle events to topic. An empty topic disables publishing.
func WithProducer(p Producer, topic string) Option {
	return func(s *Service) {
		s.producer = p
		s.reservationTopic = topic
	}
}

func WithNotificationsTopic(topic string) Option {
	return func(s *Service) { s.notificationsTopic = topic }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMaxDurationMinutes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxDurationMinutes = n
		}
	}
}

func WithSweepBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepBatchSize = n
		}
	}
}

func NewService(store repository.Store, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		store:              store,
		locker:             locker,
		clock:              clock.NewRealClock(),
		logger:             slog.Default(),
		holdTTL:            domain.DefaultHoldTTL,
		maxDurationMinutes: defaultMaxDurationMinutes,
		sweepBatchSize:     defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = lock.NewTable()
	}
	return s
}

// Reserve places a hold on one spot. Checks run in a fixed order and the first
// failing one decides the error; nothing is written unless all of them pass.
func (s *Service) Reserve(ctx context.Context, input ReserveInput) (_ *domain.Reservation, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("reserve", started, err) }()

	if input.DurationMinutes <= 0 || input.DurationMinutes > s.maxDurationMinutes {
		return nil, errors.Wrapf(domain.ErrInvalidDuration, "duration must be between 1 and %d minutes", s.maxDurationMinutes)
	}

	unlock, err := s.locker.TryLock(ctx, input.SpotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now()
	var (
		created *domain.Reservation
		lapsed  []domain.Reservation
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		created, lapsed = nil, nil

		facility, err := s.validateParties(ctx, tx, input)
		if err != nil {
			return err
		}

		spot, err := tx.Spots().Get(ctx, input.SpotID)
		if err != nil {
			return notFoundAs(err, domain.ErrSpotNotFound)
		}
		if spot.FacilityID != input.FacilityID {
			return domain.ErrSpotFacilityMismatch
		}

		if spot.HoldLapsed(now) {
			lapsed, err = s.reclaimLapsedHold(ctx, tx, spot, now)
			if err != nil {
				return err
			}
		}
		if spot.Status != domain.SpotStatusAvailable {
			return domain.ErrSpotNotAvailable
		}

		window := domain.TimeWindow{From: now, Until: now.Add(time.Duration(input.DurationMinutes) * time.Minute)}
		if !window.Valid() {
			return errors.Wrap(domain.ErrInvalidDuration, "reservation window is empty")
		}
		live, err := tx.Reservations().ListLiveForSpot(ctx, spot.ID)
		if err != nil {
			return err
		}
		for i := range live {
			if live[i].Window().Overlaps(window) {
				return domain.ErrTimeConflict
			}
		}

		spotID := spot.ID
		r := &domain.Reservation{
			Reference:       domain.NewReference(now),
			UserID:          input.UserID,
			VehicleID:       input.VehicleID,
			FacilityID:      input.FacilityID,
			SpotID:          &spotID,
			Status:          domain.ReservationStatusActive,
			ReservedFrom:    window.From,
			ReservedUntil:   window.Until,
			HoldExpiresAt:   now.Add(s.holdTTL),
			HourlyRateCents: facility.HourlyRateCents,
			AmountCents:     domain.CalculateAmount(facility.HourlyRateCents, input.DurationMinutes),
			CreatedAt:       now,
		}

		// reservation, then spot, then the facility counter
		if err := tx.Reservations().Create(ctx, r); err != nil {
			return err
		}
		if err := tx.Spots().Hold(ctx, spot.ID, input.UserID, r.HoldExpiresAt, now); err != nil {
			return err
		}
		if err := tx.Facilities().TakeSpot(ctx, facility.ID); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		s.logger.DebugContext(ctx, "reserve rejected", "spot_id", input.SpotID, "user_id", input.UserID, logging.Err(err))
		return nil, err
	}

	s.invalidate(ctx, input.FacilityID, input.SpotID)
	for i := range lapsed {
		s.metrics.Expired(1)
		s.publish(ctx, kafka.EventReservationExpired, &lapsed[i], now)
	}
	s.publish(ctx, kafka.EventReservationCreated, created, now)

	s.logger.InfoContext(ctx, "reservation created",
		"reference", created.Reference,
		"spot_id", input.SpotID,
		"facility_id", input.FacilityID,
		"amount_cents", created.AmountCents,
	)
	return created, nil
}

func (s *Service) validateParties(ctx context.Context, tx repository.Tx, input ReserveInput) (*domain.Facility, error) {
	user, err := tx.Accounts().GetUser(ctx, input.UserID)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrUserInvalid)
	}
	if !user.Active {
		return nil, domain.ErrUserInvalid
	}

	vehicle, err := tx.Accounts().GetVehicle(ctx, input.VehicleID)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrVehicleInvalid)
	}
	if !vehicle.UsableBy(user.ID) {
		return nil, domain.ErrVehicleInvalid
	}

	facility, err := tx.Facilities().Get(ctx, input.FacilityID)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrFacilityInvalid)
	}
	if !facility.Active {
		return nil, domain.ErrFacilityInvalid
	}

	hasLive, err := tx.Reservations().HasLiveForUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if hasLive {
		return nil, domain.ErrConflictingReservation
	}
	return facility, nil
}

// reclaimLapsedHold frees a spot whose hold ran out before the sweeper got to
// it. The lapsed ACTIVE reservations on the spot are expired in the same
// transaction. A confirmed reservation keeps the spot.
func (s *Service) reclaimLapsedHold(ctx context.Context, tx repository.Tx, spot *domain.Spot, now time.Time) ([]domain.Reservation, error) {
	live, err := tx.Reservations().ListLiveForSpot(ctx, spot.ID)
	if err != nil {
		return nil, err
	}
	var lapsed []domain.Reservation
	for _, r := range live {
		if r.Status != domain.ReservationStatusActive || !r.HoldExpired(now) {
			return nil, nil
		}
		lapsed = append(lapsed, r)
	}

	for i := range lapsed {
		if err := tx.Reservations().UpdateStatus(ctx, lapsed[i].ID, domain.ReservationStatusActive, domain.ReservationStatusExpired, now); err != nil {
			return nil, err
		}
		lapsed[i].Status = domain.ReservationStatusExpired
		lapsed[i].UpdatedAt = now
	}

	released, err := tx.Spots().Release(ctx, spot.ID, now)
	if err != nil {
		return nil, err
	}
	if released {
		if err := s.returnSpot(ctx, tx, spot.FacilityID); err != nil {
			return nil, err
		}
	}
	spot.Release(now)
	return lapsed, nil
}

// Confirm turns an ACTIVE reservation into CONFIRMED while its hold is still
// valid. A lapsed hold is expired on the spot instead and the call fails
// with domain.ErrReservationExpired; that expiry stays committed.
func (s *Service) Confirm(ctx context.Context, reference string) (_ *domain.Reservation, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("confirm", started, err) }()

	now := s.clock.Now()
	current, err := s.store.Reservations().GetByReference(ctx, reference)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrReservationNotFound)
	}
	if current.Status != domain.ReservationStatusActive {
		return nil, domain.ErrReservationNotActive
	}

	if current.HoldExpired(now) {
		if _, err := s.expire(ctx, current, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrReservationExpired
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Reservations().UpdateStatus(ctx, current.ID, domain.ReservationStatusActive, domain.ReservationStatusConfirmed, now)
	})
	if err != nil {
		return nil, err
	}
	if err := current.Confirm(now); err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventReservationConfirmed, current, now)
	s.logger.InfoContext(ctx, "reservation confirmed", "reference", reference)
	return current, nil
}

// Cancel ends a live reservation on behalf of its owner and frees the spot.
func (s *Service) Cancel(ctx context.Context, reference string, userID int64) (_ *domain.Reservation, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("cancel", started, err) }()

	current, err := s.store.Reservations().GetByReference(ctx, reference)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrReservationNotFound)
	}
	if current.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	if !current.IsLive() {
		return nil, domain.ErrReservationNotCancellable
	}

	if current.SpotID != nil {
		unlock, err := s.locker.TryLock(ctx, *current.SpotID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	now := s.clock.Now()
	var cancelled *domain.Reservation
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Reservations().GetByReference(ctx, reference)
		if err != nil {
			return notFoundAs(err, domain.ErrReservationNotFound)
		}
		from := r.Status
		if err := r.Cancel(now); err != nil {
			return err
		}
		if err := tx.Reservations().UpdateStatus(ctx, r.ID, from, domain.ReservationStatusCancelled, now); err != nil {
			return err
		}
		if _, err := s.releaseHeldSpot(ctx, tx, r, now); err != nil {
			return err
		}
		cancelled = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateFor(ctx, cancelled)
	s.publish(ctx, kafka.EventReservationCancelled, cancelled, now)
	s.logger.InfoContext(ctx, "reservation cancelled", "reference", reference, "user_id", userID)
	return cancelled, nil
}

// Sweep expires every ACTIVE reservation whose hold lapsed before now and
// returns how many it expired. Spots locked by a concurrent request are
// skipped and picked up by the next run.
func (s *Service) Sweep(ctx context.Context, now time.Time) (count int, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("sweep", started, err) }()

	var errs error
	for {
		batch, err := s.store.Reservations().ListExpiredHolds(ctx, now, s.sweepBatchSize)
		if err != nil {
			return count, err
		}

		progressed := 0
		for i := range batch {
			if ctx.Err() != nil {
				return count, errors.CombineErrors(errs, ctx.Err())
			}
			expired, err := s.expire(ctx, &batch[i], now)
			switch {
			case errors.Is(err, domain.ErrSpotLocked):
				s.logger.DebugContext(ctx, "sweep skipped locked spot", "reference", batch[i].Reference)
			case err != nil:
				s.logger.WarnContext(ctx, "sweep failed to expire reservation", "reference", batch[i].Reference, logging.Err(err))
				errs = errors.CombineErrors(errs, err)
			case expired:
				count++
				progressed++
			}
		}

		if len(batch) < s.sweepBatchSize || progressed == 0 {
			break
		}
	}

	if count > 0 {
		s.logger.InfoContext(ctx, "expired reservations", "count", count)
	}
	return count, errs
}

func (s *Service) Get(ctx context.Context, reference string) (*domain.Reservation, error) {
	r, err := s.store.Reservations().GetByReference(ctx, reference)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrReservationNotFound)
	}
	return r, nil
}

// ListByUser returns the user's reservations, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	return s.store.Reservations().ListByUser(ctx, userID)
}

// expire moves one lapsed ACTIVE reservation to EXPIRED under its spot lock.
// It reports false when the reservation was no longer eligible.
func (s *Service) expire(ctx context.Context, target *domain.Reservation, now time.Time) (bool, error) {
	if target.SpotID != nil {
		unlock, err := s.locker.TryLock(ctx, *target.SpotID)
		if err != nil {
			return false, err
		}
		defer unlock()
	}

	var expired *domain.Reservation
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		expired = nil
		r, err := tx.Reservations().GetByReference(ctx, target.Reference)
		if err != nil {
			return notFoundAs(err, domain.ErrReservationNotFound)
		}
		if r.Status != domain.ReservationStatusActive || !r.HoldExpired(now) {
			return nil
		}
		if err := tx.Reservations().UpdateStatus(ctx, r.ID, domain.ReservationStatusActive, domain.ReservationStatusExpired, now); err != nil {
			return err
		}
		if _, err := s.releaseHeldSpot(ctx, tx, r, now); err != nil {
			return err
		}
		if err := r.Expire(now); err != nil {
			return err
		}
		expired = r
		return nil
	})
	if err != nil || expired == nil {
		return false, err
	}

	s.metrics.Expired(1)
	s.invalidateFor(ctx, expired)
	s.publish(ctx, kafka.EventReservationExpired, expired, now)
	return true, nil
}

// releaseHeldSpot frees the spot only while it is still held by the
// reservation's user. Anything else is an orphan left alone.
func (s *Service) releaseHeldSpot(ctx context.Context, tx repository.Tx, r *domain.Reservation, now time.Time) (bool, error) {
	if r.SpotID == nil {
		return false, nil
	}
	spot, err := tx.Spots().Get(ctx, *r.SpotID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if spot.Status != domain.SpotStatusReserved || spot.HolderID == nil || *spot.HolderID != r.UserID {
		s.logger.WarnContext(ctx, "spot not held by reservation, leaving it untouched",
			"reference", r.Reference, "spot_id", spot.ID, "spot_status", spot.Status)
		return false, nil
	}

	released, err := tx.Spots().Release(ctx, spot.ID, now)
	if err != nil || !released {
		return false, err
	}
	return true, s.returnSpot(ctx, tx, spot.FacilityID)
}

func (s *Service) returnSpot(ctx context.Context, tx repository.Tx, facilityID int64) error {
	returned, err := tx.Facilities().ReturnSpot(ctx, facilityID)
	if err != nil {
		return err
	}
	if !returned {
		s.logger.WarnContext(ctx, "facility counter already at total", "facility_id", facilityID)
	}
	return nil
}

func (s *Service) invalidateFor(ctx context.Context, r *domain.Reservation) {
	var spotID int64
	if r.SpotID != nil {
		spotID = *r.SpotID
	}
	s.invalidate(ctx, r.FacilityID, spotID)
}

func (s *Service) invalidate(ctx context.Context, facilityID, spotID int64) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, facilityID, spotID)
	}
}

// publish never fails the caller; the write it describes is already committed.
func (s *Service) publish(ctx context.Context, eventType string, r *domain.Reservation, at time.Time) {
	if s.producer == nil || s.reservationTopic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := kafka.NewReservationEvent(eventType, r, at)
	if err := s.producer.Publish(ctx, s.reservationTopic, r.Reference, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish reservation event", "type", eventType, "reference", r.Reference, "error", err)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, r.Reference, event); err != nil {
			s.logger.WarnContext(ctx, "failed to publish notification", "type", eventType, "reference", r.Reference, "error", err)
		}
	}
}

func notFoundAs(err, kind error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return kind
	}
	return err
}

var _ ReservationUseCase = (*Service)(nil)
