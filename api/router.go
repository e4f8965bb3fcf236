package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/metrics"
	"github.com/Domenick1991/parking/internal/service/availability"
	"github.com/Domenick1991/parking/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.json
var openAPISpec []byte

const healthTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Reservations reservation.ReservationUseCase
	Availability availability.AvailabilityUseCase
	Metrics      *metrics.Metrics
	Clock        clock.Clock
	Logger       *slog.Logger
	Checks       map[string]HealthCheck
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	router.GET("/health", health(cfg.Checks))
	router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	router.GET("/openapi.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", openAPISpec)
	})
	router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/openapi.json"))))

	v1 := router.Group("/api/v1")
	NewReservationHandler(cfg.Reservations, cfg.Clock).Register(v1.Group("/reservations"))
	NewAvailabilityHandler(cfg.Availability).Register(v1.Group("/availability"))

	return router
}

func health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		code := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case code >= http.StatusInternalServerError:
			level = slog.LevelError
		case code >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", code),
			slog.Duration("duration", time.Since(started)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}
		logger.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}
