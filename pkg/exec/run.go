package exec

import (
	"context"
	"time"

	"github.com/stridekit/stride/pkg/script"
)

// Run drives the instance until the tree is exhausted or a pause is
// requested. It is callable repeatedly: each call clears the paused flag
// and resumes from wherever the instance left off, with no duplicated or
// skipped steps.
func (in *Instance) Run(ctx context.Context) Outcome {
	in.paused = false

	for {
		if in.branch == nil {
			b, idle := in.tree.NextBranch()
			if b == nil {
				if !idle {
					return Completed
				}
				// Nothing runnable yet: bounded wait, no state change.
				select {
				case <-ctx.Done():
					in.paused = true
					return Paused
				case <-time.After(in.IdleWait):
				}
				continue
			}
			in.branch = b
		}

		for {
			s := in.tree.NextStep(in.branch)
			if s == nil {
				break
			}
			in.step = s
			in.execute(ctx, s)
			if in.paused {
				return Paused
			}
		}

		// Branch exhausted: surface its outcome into the local scope, then
		// dispatch branch-level hooks with no step active.
		in.step = nil
		in.exposeOutcome(in.branch.Passed, in.branch.Fault)
		in.runHooks(ctx, in.branch.BranchHooks)
		in.branch = nil
		if in.paused {
			return Paused
		}
	}
}

// InjectAndRun executes an ad hoc branch through the ordinary execution
// path while the instance is paused, then restores the suspension point:
// the previously active branch, step, and scope stack are untouched and the
// instance is paused again on return. Called while not paused it does
// nothing.
func (in *Instance) InjectAndRun(ctx context.Context, b *script.Branch) {
	if !in.paused {
		return
	}

	savedBranch, savedStep := in.branch, in.step
	savedScopes := in.scopes
	savedDepth := in.lastDepth

	in.paused = false
	in.branch, in.step = b, nil
	// The probe starts at ground depth against the live active frame;
	// resetting the depth bookkeeping keeps it from popping real frames.
	in.lastDepth = 0
	for _, s := range b.Steps {
		in.step = s
		in.execute(ctx, s)
		if in.paused {
			break
		}
	}
	in.step = nil
	if !in.paused {
		in.exposeOutcome(b.Passed, b.Fault)
		in.runHooks(ctx, b.BranchHooks)
	}

	in.branch, in.step = savedBranch, savedStep
	in.scopes = savedScopes
	in.lastDepth = savedDepth
	in.paused = true
}
