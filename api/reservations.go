package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	service reservation.ReservationUseCase
	clock   clock.Clock
}

type createReservationRequest struct {
	UserID          int64 `json:"user_id" binding:"required"`
	VehicleID       int64 `json:"vehicle_id" binding:"required"`
	FacilityID      int64 `json:"facility_id" binding:"required"`
	SpotID          int64 `json:"spot_id" binding:"required"`
	DurationMinutes int   `json:"duration_minutes"`
}

type reservationResponse struct {
	Reference       string  `json:"reference"`
	Status          string  `json:"status"`
	UserID          int64   `json:"user_id"`
	VehicleID       int64   `json:"vehicle_id"`
	FacilityID      int64   `json:"facility_id"`
	SpotID          *int64  `json:"spot_id,omitempty"`
	ReservedFrom    string  `json:"reserved_from"`
	ReservedUntil   string  `json:"reserved_until"`
	HoldExpiresAt   string  `json:"hold_expires_at"`
	HourlyRateCents int64   `json:"hourly_rate_cents"`
	AmountCents     int64   `json:"amount_cents"`
	Amount          float64 `json:"amount"`
}

func NewReservationHandler(service reservation.ReservationUseCase, c clock.Clock) *ReservationHandler {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &ReservationHandler{service: service, clock: c}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.POST("/cleanup-expired", h.cleanupExpired)
	router.GET("/user/:user_id", h.listByUser)
	router.GET("/:reference", h.get)
	router.POST("/:reference/confirm", h.confirm)
	router.DELETE("/:reference", h.cancel)
}

func (h *ReservationHandler) create(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	created, err := h.service.Reserve(c.Request.Context(), reservation.ReserveInput{
		UserID:          req.UserID,
		VehicleID:       req.VehicleID,
		FacilityID:      req.FacilityID,
		SpotID:          req.SpotID,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(created))
}

func (h *ReservationHandler) get(c *gin.Context) {
	r, err := h.service.Get(c.Request.Context(), c.Param("reference"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(r))
}

func (h *ReservationHandler) confirm(c *gin.Context) {
	r, err := h.service.Confirm(c.Request.Context(), c.Param("reference"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(r))
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		badRequest(c, "user_id query parameter is required")
		return
	}
	r, err := h.service.Cancel(c.Request.Context(), c.Param("reference"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(r))
}

func (h *ReservationHandler) listByUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	list, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]reservationResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toReservationResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) cleanupExpired(c *gin.Context) {
	expired, err := h.service.Sweep(c.Request.Context(), h.clock.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}

func toReservationResponse(r *domain.Reservation) reservationResponse {
	return reservationResponse{
		Reference:       r.Reference,
		Status:          string(r.Status),
		UserID:          r.UserID,
		VehicleID:       r.VehicleID,
		FacilityID:      r.FacilityID,
		SpotID:          r.SpotID,
		ReservedFrom:    r.ReservedFrom.Format(time.RFC3339),
		ReservedUntil:   r.ReservedUntil.Format(time.RFC3339),
		HoldExpiresAt:   r.HoldExpiresAt.Format(time.RFC3339),
		HourlyRateCents: r.HourlyRateCents,
		AmountCents:     r.AmountCents,
		Amount:          float64(r.AmountCents) / 100,
	}
}
