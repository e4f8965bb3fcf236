package domain

import "github.com/cockroachdb/errors"

var (
	ErrUserInvalid               = errors.New("user not found or inactive")
	ErrVehicleInvalid            = errors.New("vehicle not found, inactive or not owned by user")
	ErrFacilityInvalid           = errors.New("facility not found or inactive")
	ErrConflictingReservation    = errors.New("user already has an active reservation")
	ErrSpotNotFound              = errors.New("spot not found")
	ErrSpotFacilityMismatch      = errors.New("spot does not belong to facility")
	ErrSpotNotAvailable          = errors.New("spot is not available")
	ErrSpotLocked                = errors.New("spot is being reserved by another request")
	ErrTimeConflict              = errors.New("spot already reserved for an overlapping window")
	ErrReservationNotFound       = errors.New("reservation not found")
	ErrReservationNotActive      = errors.New("reservation is not active")
	ErrReservationExpired        = errors.New("reservation hold has expired")
	ErrReservationNotCancellable = errors.New("reservation cannot be cancelled")
	ErrUnauthorized              = errors.New("reservation belongs to another user")
	ErrInvalidDuration           = errors.New("invalid reservation duration")

	// ErrStorage marks failures of the backing store, never a domain outcome.
	ErrStorage = errors.New("storage failure")
)

type Kind string

const (
	KindUserInvalid               Kind = "USER_INVALID"
	KindVehicleInvalid            Kind = "VEHICLE_INVALID"
	KindFacilityInvalid           Kind = "FACILITY_INVALID"
	KindConflictingReservation    Kind = "ACTIVE_RESERVATION_EXISTS"
	KindSpotNotFound              Kind = "SPOT_NOT_FOUND"
	KindSpotFacilityMismatch      Kind = "SPOT_FACILITY_MISMATCH"
	KindSpotNotAvailable          Kind = "SPOT_NOT_AVAILABLE"
	KindSpotLocked                Kind = "SPOT_LOCKED"
	KindTimeConflict              Kind = "TIME_CONFLICT"
	KindReservationNotFound       Kind = "RESERVATION_NOT_FOUND"
	KindReservationNotActive      Kind = "RESERVATION_NOT_ACTIVE"
	KindReservationExpired        Kind = "RESERVATION_EXPIRED"
	KindReservationNotCancellable Kind = "RESERVATION_NOT_CANCELLABLE"
	KindUnauthorized              Kind = "UNAUTHORIZED"
	KindInvalidDuration           Kind = "INVALID_DURATION"
	KindStorage                   Kind = "STORAGE"
	KindInternal                  Kind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrUserInvalid, KindUserInvalid},
	{ErrVehicleInvalid, KindVehicleInvalid},
	{ErrFacilityInvalid, KindFacilityInvalid},
	{ErrConflictingReservation, KindConflictingReservation},
	{ErrSpotNotFound, KindSpotNotFound},
	{ErrSpotFacilityMismatch, KindSpotFacilityMismatch},
	{ErrSpotNotAvailable, KindSpotNotAvailable},
	{ErrSpotLocked, KindSpotLocked},
	{ErrTimeConflict, KindTimeConflict},
	{ErrReservationNotFound, KindReservationNotFound},
	{ErrReservationNotActive, KindReservationNotActive},
	{ErrReservationExpired, KindReservationExpired},
	{ErrReservationNotCancellable, KindReservationNotCancellable},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidDuration, KindInvalidDuration},
	{ErrStorage, KindStorage},
}

// KindOf maps an error to its stable code. Unknown errors are INTERNAL.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsRetryable is true only for lock contention; every other kind is final for the same input.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSpotLocked)
}

// StorageError wraps a backing store failure so that KindOf reports STORAGE while keeping the cause.
func StorageError(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), ErrStorage)
}

// ErrorOf returns the sentinel for a kind, or nil when the kind is unknown.
// Clients use it to turn a transported code back into a comparable error.
func ErrorOf(kind Kind) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
