package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservationEvent(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	spotID := int64(101)
	r := &domain.Reservation{
		ID: 3, Reference: "RES-1", UserID: 1, VehicleID: 11, FacilityID: 1, SpotID: &spotID,
		Status: domain.ReservationStatusActive, AmountCents: 4000, HoldExpiresAt: now.Add(15 * time.Minute),
	}

	event := NewReservationEvent(EventReservationCreated, r, now)

	assert.Equal(t, "reservation.created", event.Type)
	assert.Equal(t, "RES-1", event.Reference)
	assert.Equal(t, int64(4000), event.AmountCents)
	assert.Equal(t, "ACTIVE", event.Status)
	assert.Equal(t, now, event.OccurredAt)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"amount_cents":4000`)
}

func TestReservationEvents_Decodes(t *testing.T) {
	var got ReservationEvent
	handler := ReservationEvents(func(_ context.Context, e ReservationEvent) error {
		got = e
		return nil
	})

	payload, _ := json.Marshal(ReservationEvent{Type: EventReservationExpired, Reference: "RES-9"})
	require.NoError(t, handler(context.Background(), kafka.Message{Value: payload}))

	assert.Equal(t, EventReservationExpired, got.Type)
	assert.Equal(t, "RES-9", got.Reference)
}

func TestReservationEvents_SkipsGarbage(t *testing.T) {
	called := false
	handler := ReservationEvents(func(context.Context, ReservationEvent) error {
		called = true
		return nil
	})

	assert.NoError(t, handler(context.Background(), kafka.Message{Value: []byte("{not json")}))
	assert.False(t, called)
}

func TestReservationEvents_PropagatesHandlerError(t *testing.T) {
	boom := errors.New("smtp down")
	handler := ReservationEvents(func(context.Context, ReservationEvent) error { return boom })

	payload, _ := json.Marshal(ReservationEvent{Type: EventReservationCreated})
	assert.ErrorIs(t, handler(context.Background(), kafka.Message{Value: payload}), boom)
}

func TestNewProducer(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"})
	assert.NotNil(t, p)
	assert.NoError(t, p.Close())

	assert.Error(t, (&Producer{}).CheckConnection(context.Background()))
}

func TestConsumer_CloseNil(t *testing.T) {
	var c *Consumer
	assert.NoError(t, c.Close())
}
