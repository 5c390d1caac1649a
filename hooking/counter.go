package hooking

import (
	"sync"
)

// PosCounter counts how many times each hook position is triggered.
type PosCounter struct {
	lock     sync.Mutex
	posNames []string
	count    map[string]uint64
}

// NewPosCounter creates a new PosCounter.
func NewPosCounter() *PosCounter {
	return &PosCounter{
		count: make(map[string]uint64),
	}
}

// Func counts the position of ctx.
func (c *PosCounter) Func(ctx HookCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	_, ok := c.count[ctx.Pos.Name]
	if !ok {
		c.posNames = append(c.posNames, ctx.Pos.Name)
	}

	c.count[ctx.Pos.Name]++
}

// PosNames returns the names of the positions seen, in order of first
// appearance.
func (c *PosCounter) PosNames() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]string(nil), c.posNames...)
}

// Count returns how many times the position has been triggered.
func (c *PosCounter) Count(pos *HookPos) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.count[pos.Name]
}
