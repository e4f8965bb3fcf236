package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/service/availability"
	"github.com/gin-gonic/gin"
)

type AvailabilityHandler struct {
	service availability.AvailabilityUseCase
}

type facilityAvailabilityResponse struct {
	FacilityID    int64   `json:"facility_id"`
	Available     int     `json:"available"`
	Total         int     `json:"total"`
	OccupancyRate float64 `json:"occupancy_rate"`
	AsOf          string  `json:"as_of"`
}

type warmRequest struct {
	FacilityIDs []int64 `json:"facility_ids"`
}

func NewAvailabilityHandler(service availability.AvailabilityUseCase) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

func (h *AvailabilityHandler) Register(router *gin.RouterGroup) {
	router.GET("/facilities/:id", h.facility)
	router.GET("/facilities/:id/spots", h.spots)
	router.GET("/spots/:id/status", h.spotStatus)
	router.POST("/warm", h.warm)
	router.DELETE("/cache", h.evict)
	router.GET("/cache/stats", h.stats)
}

func (h *AvailabilityHandler) facility(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.service.GetFacilityAvailability(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, facilityAvailabilityResponse{
		FacilityID:    a.FacilityID,
		Available:     a.Available,
		Total:         a.Total,
		OccupancyRate: a.OccupancyRate,
		AsOf:          a.AsOf.Format(time.RFC3339),
	})
}

func (h *AvailabilityHandler) spots(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	spotType := domain.SpotType(strings.ToUpper(c.Query("type")))
	if spotType != "" && !spotType.Valid() {
		badRequest(c, "unknown spot type")
		return
	}
	spots, err := h.service.GetAvailableSpotsByType(c.Request.Context(), id, spotType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, spots)
}

func (h *AvailabilityHandler) spotStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	status, err := h.service.GetSpotStatus(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spot_id": id, "status": status})
}

func (h *AvailabilityHandler) warm(c *gin.Context) {
	var req warmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	warmed, err := h.service.WarmCache(c.Request.Context(), req.FacilityIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warmed": warmed})
}

func (h *AvailabilityHandler) evict(c *gin.Context) {
	evicted, err := h.service.EvictAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": evicted})
}

func (h *AvailabilityHandler) stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
