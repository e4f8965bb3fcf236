package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_TryLock(t *testing.T) {
	table := NewTable()
	ctx := context.Background()

	unlock, err := table.TryLock(ctx, 1)
	require.NoError(t, err)

	_, err = table.TryLock(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrSpotLocked)

	other, err := table.TryLock(ctx, 2)
	require.NoError(t, err, "different spots do not contend")
	other()

	unlock()
	unlock()

	again, err := table.TryLock(ctx, 1)
	require.NoError(t, err)
	again()

	assert.Equal(t, 2, table.Size())
}

func TestTable_OnlyOneWinner(t *testing.T) {
	table := NewTable()
	ctx := context.Background()

	var (
		wins  atomic.Int32
		start sync.WaitGroup
		done  sync.WaitGroup
	)
	start.Add(1)
	unlocks := make(chan Unlock, 50)

	for i := 0; i < 50; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			if unlock, err := table.TryLock(ctx, 42); err == nil {
				wins.Add(1)
				unlocks <- unlock
			}
		}()
	}
	start.Done()
	done.Wait()
	close(unlocks)

	assert.Equal(t, int32(1), wins.Load())
	for u := range unlocks {
		u()
	}
}

type refusingLocker struct{}

func (refusingLocker) TryLock(context.Context, int64) (Unlock, error) {
	return nil, domain.ErrSpotLocked
}

func TestChain_ReleasesOnFailure(t *testing.T) {
	table := NewTable()
	ctx := context.Background()

	_, err := Chain{table, refusingLocker{}}.TryLock(ctx, 5)
	assert.ErrorIs(t, err, domain.ErrSpotLocked)

	unlock, err := table.TryLock(ctx, 5)
	require.NoError(t, err, "local lock must be released after chain failure")
	unlock()
}

func TestChain_Success(t *testing.T) {
	first, second := NewTable(), NewTable()
	ctx := context.Background()

	unlock, err := Chain{first, second, Noop()}.TryLock(ctx, 9)
	require.NoError(t, err)

	_, err = second.TryLock(ctx, 9)
	assert.ErrorIs(t, err, domain.ErrSpotLocked)

	unlock()
	unlock()

	u, err := first.TryLock(ctx, 9)
	require.NoError(t, err)
	u()
}
