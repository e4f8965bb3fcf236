package api

import (
	"log/slog"
	"net/http"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/logging"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindUserInvalid, domain.KindVehicleInvalid, domain.KindFacilityInvalid,
		domain.KindInvalidDuration, domain.KindReservationNotActive,
		domain.KindReservationNotCancellable, domain.KindSpotFacilityMismatch:
		return http.StatusBadRequest
	case domain.KindSpotNotFound, domain.KindReservationNotFound:
		return http.StatusNotFound
	case domain.KindSpotLocked, domain.KindSpotNotAvailable,
		domain.KindTimeConflict, domain.KindConflictingReservation:
		return http.StatusConflict
	case domain.KindReservationExpired:
		return http.StatusGone
	case domain.KindUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a service error. Details of unexpected failures stay in the log.
func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	code := statusOf(kind)

	msg := err.Error()
	if code == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), logging.Err(err))
		msg = "internal error"
	}
	if kind == domain.KindSpotLocked {
		c.Header("Retry-After", "1")
	}
	_ = c.Error(err)
	c.JSON(code, errorResponse{Error: msg, Code: string(kind)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "BAD_REQUEST"})
}
