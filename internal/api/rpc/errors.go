package rpc

import (
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain tags the ErrorInfo detail attached to every failed call.
const ErrorDomain = "parking.v1"

func codeOf(kind domain.Kind) codes.Code {
	switch kind {
	case domain.KindUserInvalid, domain.KindVehicleInvalid, domain.KindFacilityInvalid,
		domain.KindInvalidDuration, domain.KindSpotFacilityMismatch:
		return codes.InvalidArgument
	case domain.KindSpotNotFound, domain.KindReservationNotFound:
		return codes.NotFound
	case domain.KindSpotLocked:
		return codes.Aborted
	case domain.KindSpotNotAvailable, domain.KindTimeConflict, domain.KindConflictingReservation,
		domain.KindReservationNotActive, domain.KindReservationNotCancellable, domain.KindReservationExpired:
		return codes.FailedPrecondition
	case domain.KindUnauthorized:
		return codes.PermissionDenied
	case domain.KindStorage:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// ToStatus converts a service error into a gRPC status error. The stable
// kind travels as ErrorInfo.Reason.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindInternal || kind == domain.KindStorage {
		msg = "internal error"
	}
	st := status.New(codeOf(kind), msg)
	if withInfo, detailErr := st.WithDetails(&errdetails.ErrorInfo{Reason: string(kind), Domain: ErrorDomain}); detailErr == nil {
		st = withInfo
	}
	return st.Err()
}

// KindOf reads the kind back from a status error produced by ToStatus.
func KindOf(err error) domain.Kind {
	st, ok := status.FromError(err)
	if !ok || st == nil {
		return domain.KindOf(err)
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return domain.Kind(info.GetReason())
		}
	}
	return ""
}

// FromStatus rebuilds a domain error from a status error so that callers can
// use errors.Is against the domain sentinels.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	sentinel := domain.ErrorOf(KindOf(err))
	if sentinel == nil {
		return err
	}
	return errors.Mark(err, sentinel)
}
