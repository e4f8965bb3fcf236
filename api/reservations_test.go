package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/service/reservation"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReservationUseCase is a mock implementation of reservation.ReservationUseCase
type MockReservationUseCase struct {
	mock.Mock
}

func (m *MockReservationUseCase) Reserve(ctx context.Context, input reservation.ReserveInput) (*domain.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) Confirm(ctx context.Context, reference string) (*domain.Reservation, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) Cancel(ctx context.Context, reference string, userID int64) (*domain.Reservation, error) {
	args := m.Called(ctx, reference, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) Sweep(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationUseCase) Get(ctx context.Context, reference string) (*domain.Reservation, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) ListByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func sampleReservation(status domain.ReservationStatus) *domain.Reservation {
	spotID := int64(101)
	from := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &domain.Reservation{
		ID:              7,
		Reference:       "RES-1772442000000-a1b2c3",
		UserID:          1,
		VehicleID:       11,
		FacilityID:      1,
		SpotID:          &spotID,
		Status:          status,
		ReservedFrom:    from,
		ReservedUntil:   from.Add(90 * time.Minute),
		HoldExpiresAt:   from.Add(domain.DefaultHoldTTL),
		HourlyRateCents: 2000,
		AmountCents:     4000,
	}
}

func TestReservationHandler_create(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	input := reservation.ReserveInput{UserID: 1, VehicleID: 11, FacilityID: 1, SpotID: 101, DurationMinutes: 90}
	body, _ := json.Marshal(input)
	c.Request = httptest.NewRequest("POST", "/api/v1/reservations", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Reserve", c.Request.Context(), input).Return(sampleReservation(domain.ReservationStatusActive), nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response reservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "RES-1772442000000-a1b2c3", response.Reference)
	assert.Equal(t, "ACTIVE", response.Status)
	assert.Equal(t, int64(4000), response.AmountCents)
	assert.Equal(t, 40.0, response.Amount)
	assert.Equal(t, "2026-03-02T09:15:00Z", response.HoldExpiresAt)

	mockService.AssertExpectations(t)
}

func TestReservationHandler_create_InvalidBody(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/reservations", bytes.NewReader([]byte(`{"user_id":1}`)))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestReservationHandler_create_SpotLocked(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(reservation.ReserveInput{UserID: 1, VehicleID: 11, FacilityID: 1, SpotID: 101, DurationMinutes: 60})
	c.Request = httptest.NewRequest("POST", "/api/v1/reservations", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Reserve", mock.Anything, mock.Anything).Return(nil, domain.ErrSpotLocked)

	handler.create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var response errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "SPOT_LOCKED", response.Code)
}

func TestReservationHandler_confirm(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	reference := "RES-1772442000000-a1b2c3"
	c.Params = gin.Params{{Key: "reference", Value: reference}}
	c.Request = httptest.NewRequest("POST", "/api/v1/reservations/"+reference+"/confirm", nil)

	mockService.On("Confirm", c.Request.Context(), reference).Return(sampleReservation(domain.ReservationStatusConfirmed), nil)

	handler.confirm(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response reservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "CONFIRMED", response.Status)
	mockService.AssertExpectations(t)
}

func TestReservationHandler_confirm_Expired(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "reference", Value: "RES-1"}}
	c.Request = httptest.NewRequest("POST", "/api/v1/reservations/RES-1/confirm", nil)

	mockService.On("Confirm", mock.Anything, "RES-1").Return(nil, domain.ErrReservationExpired)

	handler.confirm(c)

	assert.Equal(t, http.StatusGone, w.Code)
}

func TestReservationHandler_cancel(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "reference", Value: "RES-1"}}
	c.Request = httptest.NewRequest("DELETE", "/api/v1/reservations/RES-1?user_id=2", nil)

	mockService.On("Cancel", mock.Anything, "RES-1", int64(2)).Return(nil, domain.ErrUnauthorized)

	handler.cancel(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertExpectations(t)
}

func TestReservationHandler_cancel_MissingUser(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "reference", Value: "RES-1"}}
	c.Request = httptest.NewRequest("DELETE", "/api/v1/reservations/RES-1", nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationHandler_cleanupExpired(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/reservations/cleanup-expired", nil)

	mockService.On("Sweep", mock.Anything, mock.AnythingOfType("time.Time")).Return(4, nil)

	handler.cleanupExpired(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"expired":4}`, w.Body.String())
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrUserInvalid, http.StatusBadRequest},
		{domain.ErrVehicleInvalid, http.StatusBadRequest},
		{domain.ErrFacilityInvalid, http.StatusBadRequest},
		{domain.ErrInvalidDuration, http.StatusBadRequest},
		{domain.ErrReservationNotActive, http.StatusBadRequest},
		{domain.ErrReservationNotCancellable, http.StatusBadRequest},
		{domain.ErrSpotFacilityMismatch, http.StatusBadRequest},
		{domain.ErrSpotNotFound, http.StatusNotFound},
		{domain.ErrReservationNotFound, http.StatusNotFound},
		{domain.ErrSpotLocked, http.StatusConflict},
		{domain.ErrSpotNotAvailable, http.StatusConflict},
		{domain.ErrTimeConflict, http.StatusConflict},
		{domain.ErrConflictingReservation, http.StatusConflict},
		{domain.ErrReservationExpired, http.StatusGone},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.StorageError(errors.New("timeout"), "commit"), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(domain.KindOf(tt.err)), tt.err.Error())
	}
}
