package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/parking/internal/clock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockExpirer struct {
	mock.Mock
}

func (m *MockExpirer) Sweep(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func TestRunOnce(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	target := &MockExpirer{}
	target.On("Sweep", mock.Anything, now).Return(3, nil).Once()

	s := New(target, time.Second, WithClock(clock.NewManualClock(now)))
	expired, err := s.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, expired)
	target.AssertExpectations(t)
}

func TestRunOnce_Error(t *testing.T) {
	target := &MockExpirer{}
	target.On("Sweep", mock.Anything, mock.Anything).Return(1, errors.New("db down")).Once()

	expired, err := New(target, time.Second).RunOnce(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 1, expired)
}

func TestRun_KeepsGoingAfterFailure(t *testing.T) {
	target := &MockExpirer{}
	calls := make(chan struct{}, 10)
	target.On("Sweep", mock.Anything, mock.Anything).Return(0, errors.New("db down")).Once()
	target.On("Sweep", mock.Anything, mock.Anything).Return(2, nil).Run(func(mock.Arguments) {
		calls <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(target, 5*time.Millisecond).Run(ctx) }()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not run after a failed pass")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	s := New(&MockExpirer{}, 0)
	assert.Equal(t, DefaultInterval, s.interval)
}
