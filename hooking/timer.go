package hooking

import (
	"sync"
	"time"
)

// A TimeTeller can tell the current time.
type TimeTeller interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// WallClock tells the real time.
var WallClock TimeTeller = wallClock{}

// PhaseTimer collects the total and average duration between a start and an
// end position. Phases are matched by the Item of the hook context, or by
// the key set with WithKey, so several phases may be in flight at the same
// time.
type PhaseTimer struct {
	timeTeller TimeTeller
	startPos   *HookPos
	endPos     *HookPos
	key        func(ctx HookCtx) interface{}

	lock     sync.Mutex
	inflight map[interface{}]time.Time
	total    time.Duration
	count    uint64
}

// NewPhaseTimer creates a PhaseTimer.
func NewPhaseTimer(timeTeller TimeTeller, start, end *HookPos) *PhaseTimer {
	return &PhaseTimer{
		timeTeller: timeTeller,
		startPos:   start,
		endPos:     end,
		inflight:   make(map[interface{}]time.Time),
		key:        func(ctx HookCtx) interface{} { return ctx.Item },
	}
}

// WithKey sets how the start and the end of a phase are matched.
func (t *PhaseTimer) WithKey(key func(ctx HookCtx) interface{}) *PhaseTimer {
	t.key = key
	return t
}

// Func records the start or the end of a phase.
func (t *PhaseTimer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case t.startPos:
		t.lock.Lock()
		t.inflight[t.key(ctx)] = t.timeTeller.Now()
		t.lock.Unlock()
	case t.endPos:
		t.endPhase(t.key(ctx))
	}
}

func (t *PhaseTimer) endPhase(item interface{}) {
	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.inflight[item]
	if !ok {
		return
	}

	t.total += t.timeTeller.Now().Sub(start)
	t.count++

	delete(t.inflight, item)
}

// TotalTime returns the time spent in completed phases.
func (t *PhaseTimer) TotalTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.total
}

// Count returns the number of completed phases.
func (t *PhaseTimer) Count() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.count
}

// AverageTime returns the mean duration of completed phases, or zero if
// none has completed.
func (t *PhaseTimer) AverageTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.count == 0 {
		return 0
	}

	return t.total / time.Duration(t.count)
}
