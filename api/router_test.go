package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/parking/internal/cache"
	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/lock"
	"github.com/Domenick1991/parking/internal/metrics"
	"github.com/Domenick1991/parking/internal/service/availability"
	"github.com/Domenick1991/parking/internal/service/reservation"
	"github.com/Domenick1991/parking/internal/testutil"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, checks map[string]HealthCheck) (*gin.Engine, *clock.ManualClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewManualClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	store := testutil.NewMemoryStore(t)
	m := metrics.New()
	avail := availability.NewService(store, cache.NewMemoryCache(clk), availability.WithClock(clk), availability.WithMetrics(m))
	engine := reservation.NewService(store, lock.NewTable(),
		reservation.WithClock(clk),
		reservation.WithInvalidator(avail),
		reservation.WithMetrics(m),
	)
	return NewRouter(RouterConfig{
		Reservations: engine,
		Availability: avail,
		Metrics:      m,
		Clock:        clk,
		Checks:       checks,
	}), clk
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_ReservationFlow(t *testing.T) {
	router, clk := newTestRouter(t, nil)

	w := do(router, "POST", "/api/v1/reservations",
		`{"user_id":1,"vehicle_id":11,"facility_id":1,"spot_id":101,"duration_minutes":90}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var created reservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, int64(4000), created.AmountCents)

	w = do(router, "GET", "/api/v1/availability/facilities/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":2`)

	w = do(router, "POST", "/api/v1/reservations",
		`{"user_id":2,"vehicle_id":12,"facility_id":1,"spot_id":101,"duration_minutes":30}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"SPOT_NOT_AVAILABLE"`)

	w = do(router, "GET", "/api/v1/availability/spots/101/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"spot_id":101,"status":"RESERVED"}`, w.Body.String())

	clk.Add(20 * time.Minute)
	w = do(router, "POST", "/api/v1/reservations/"+created.Reference+"/confirm", "")
	assert.Equal(t, http.StatusGone, w.Code)

	w = do(router, "GET", "/api/v1/reservations/"+created.Reference, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"EXPIRED"`)

	w = do(router, "GET", "/api/v1/reservations/user/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []reservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = do(router, "POST", "/api/v1/reservations/cleanup-expired", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"expired":0}`, w.Body.String())

	w = do(router, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `parking_reservation_operations_total{operation="reserve",outcome="ok"} 1`)
	assert.Contains(t, w.Body.String(), `parking_reservations_expired_total 1`)
}

func TestRouter_AvailabilityCache(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := do(router, "GET", "/api/v1/availability/facilities/1/spots?type=electric", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":102`)

	w = do(router, "GET", "/api/v1/availability/facilities/1/spots?type=boat", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, "POST", "/api/v1/availability/warm", `{"facility_ids":[1,2,999]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"warmed":2}`, w.Body.String())

	w = do(router, "POST", "/api/v1/availability/warm", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"warmed":3}`, w.Body.String())

	w = do(router, "GET", "/api/v1/availability/cache/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats availability.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.FacilityEntries)

	w = do(router, "DELETE", "/api/v1/availability/cache", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, "GET", "/api/v1/availability/facilities/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	})
	w := do(router, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"store":"ok"}}`, w.Body.String())

	router, _ = newTestRouter(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = do(router, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_Docs(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := do(router, "GET", "/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, json.Valid(w.Body.Bytes()))
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte(`"/api/v1/reservations"`)))

	w = do(router, "GET", "/docs/index.html", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
