// Package hooking lets the mapping pipeline report what it is doing without
// depending on who listens.
package hooking

// A HookPos names a point where a Hookable calls its hooks. Positions are
// compared by pointer.
type HookPos struct {
	Name string
}

// HookCtx describes one call of the hooks. Item is what the position is
// about and Detail carries extra information, both defined per position.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// A Hookable calls hooks at its positions.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// A Hook listens to a Hookable.
type Hook interface {
	// Func is called at every position of the Hookable.
	Func(ctx HookCtx)
}

// HookFunc turns a plain function into a Hook. Since functions are not
// comparable, a HookFunc can be registered only through a pointer.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f *HookFunc) Func(ctx HookCtx) {
	(*f)(ctx)
}

// NewHookFunc wraps f as a Hook.
func NewHookFunc(f func(ctx HookCtx)) Hook {
	h := HookFunc(f)
	return &h
}

// HookableBase keeps the hooks of a Hookable. Embed it to implement the
// interface.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook registers a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, registered := range h.hookList {
		if registered == hook {
			panic("hook registered twice")
		}
	}
}

// InvokeHook calls the registered hooks in order of registration.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}
