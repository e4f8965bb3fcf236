package lock

import (
	"context"
	"sync"
)

// Unlock releases a lock obtained from a Locker. Calling it more than once is safe.
type Unlock func()

// Locker hands out non-blocking per-spot locks. A contended spot yields domain.ErrSpotLocked.
type Locker interface {
	TryLock(ctx context.Context, spotID int64) (Unlock, error)
}

// Chain acquires every locker in order and fails as soon as one refuses,
// releasing whatever was already taken.
type Chain []Locker

func (c Chain) TryLock(ctx context.Context, spotID int64) (Unlock, error) {
	unlocks := make([]Unlock, 0, len(c))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, l := range c {
		unlock, err := l.TryLock(ctx, spotID)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return once(release), nil
}

type noop struct{}

// Noop never contends. Used when locking is handled entirely by storage.
func Noop() Locker { return noop{} }

func (noop) TryLock(context.Context, int64) (Unlock, error) {
	return func() {}, nil
}

func once(fn func()) Unlock {
	var o sync.Once
	return func() { o.Do(fn) }
}

var _ Locker = Chain(nil)
