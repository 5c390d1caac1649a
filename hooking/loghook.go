package hooking

import (
	"log"
)

// LogHookBase provides the common logic for hooks that write what they see
// to a logger.
type LogHookBase struct {
	*log.Logger

	// Filter, if set, drops the positions it rejects.
	Filter PosFilter
}

// Accepts tells if the hook writes at pos.
func (h *LogHookBase) Accepts(pos *HookPos) bool {
	return h.Filter == nil || h.Filter(pos)
}

// A PosFilter keeps a LogHook quiet for positions it does not care about.
type PosFilter func(pos *HookPos) bool

// OnlyPos returns a filter that accepts the listed positions.
func OnlyPos(poses ...*HookPos) PosFilter {
	return func(pos *HookPos) bool {
		for _, p := range poses {
			if p == pos {
				return true
			}
		}

		return false
	}
}
