package exec

import "github.com/stridekit/stride/pkg/script"

// scopeStack tracks the lexically nested variable frames that mirror the
// tree's indentation. The active frame is always present; saved frames are
// the enclosing scopes, innermost last.
type scopeStack struct {
	saved  []script.Frame
	active script.Frame
}

func newScopeStack() scopeStack {
	return scopeStack{active: script.Frame{}}
}

// adjust reconciles the stack with a step's depth relative to the previous
// step. An increase enters exactly one nested scope: the active frame is
// saved and a fresh one started. A decrease pops exactly (prev − cur)
// frames, restoring each enclosing frame in turn. Equal depth is a no-op.
func (sc *scopeStack) adjust(prev, cur int) {
	switch {
	case cur > prev:
		sc.saved = append(sc.saved, sc.active)
		sc.active = script.Frame{}
	case cur < prev:
		for n := prev - cur; n > 0 && len(sc.saved) > 0; n-- {
			sc.active = sc.saved[len(sc.saved)-1]
			sc.saved = sc.saved[:len(sc.saved)-1]
		}
	}
}

// depth is the number of enclosing frames.
func (sc *scopeStack) depth() int { return len(sc.saved) }
