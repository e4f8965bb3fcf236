package lock

import (
	"context"
	"sync"

	"github.com/Domenick1991/parking/internal/domain"
)

// Table is the in-process lock table. One mutex per spot, created on first use
// and kept for the lifetime of the table.
type Table struct {
	mu    sync.Mutex
	spots map[int64]*sync.Mutex
}

func NewTable() *Table {
	return &Table{spots: make(map[int64]*sync.Mutex)}
}

func (t *Table) TryLock(_ context.Context, spotID int64) (Unlock, error) {
	m := t.get(spotID)
	if !m.TryLock() {
		return nil, domain.ErrSpotLocked
	}
	var released sync.Once
	return func() { released.Do(m.Unlock) }, nil
}

// Size returns how many spots have a lock entry.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spots)
}

func (t *Table) get(spotID int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.spots[spotID]
	if !ok {
		m = &sync.Mutex{}
		t.spots[spotID] = m
	}
	return m
}

var _ Locker = (*Table)(nil)
