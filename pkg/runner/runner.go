// Package runner orchestrates a run: it owns the one-shot debug flags, the
// run-wide persistent bag, the reporter handle, and one execution instance
// per worker. Ordering and exclusion live in the tree, so the runner
// implements no scheduling policy of its own.
package runner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stridekit/stride/pkg/exec"
	"github.com/stridekit/stride/pkg/report"
	"github.com/stridekit/stride/pkg/script"
)

// Runner implements the exec.Runner contract.
type Runner struct {
	tree       exec.Tree
	reporter   exec.Reporter
	persistent script.Vars

	pauseOnFail atomic.Bool
	singleStep  atomic.Bool

	instances []*exec.Instance
}

// New creates a runner with the given number of worker instances.
func New(t exec.Tree, rep exec.Reporter, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	if rep == nil {
		rep = report.Nop{}
	}
	r := &Runner{tree: t, reporter: rep, persistent: script.Vars{}}
	for i := 0; i < workers; i++ {
		r.instances = append(r.instances, exec.New(t, r))
	}
	return r
}

// Instances returns the worker instances, one per concurrent worker.
func (r *Runner) Instances() []*exec.Instance { return r.instances }

// Tree returns the shared branch/step supplier.
func (r *Runner) Tree() exec.Tree { return r.tree }

// RequestPauseOnFail arms the one-shot pause-on-failure flag.
func (r *Runner) RequestPauseOnFail() { r.pauseOnFail.Store(true) }

// RequestSingleStep arms the one-shot single-step flag.
func (r *Runner) RequestSingleStep() { r.singleStep.Store(true) }

// TakePauseOnFail reads and clears the pause-on-failure flag atomically.
func (r *Runner) TakePauseOnFail() bool { return r.pauseOnFail.Swap(false) }

// TakeSingleStep reads and clears the single-step flag atomically.
func (r *Runner) TakeSingleStep() bool { return r.singleStep.Swap(false) }

// Persistent returns the run-wide shared bag. It has no locking of its own:
// concurrent writers are last-write-wins and coordinate themselves.
func (r *Runner) Persistent() script.Vars { return r.persistent }

// Reporter returns the live-view reporter handle.
func (r *Runner) Reporter() exec.Reporter { return r.reporter }

// SetVar seeds the persistent bag before a run (meta.vars, --var flags).
func (r *Runner) SetVar(name string, value any) { r.persistent[name] = value }

// RunSetup consumes the branches' before-lists, exactly once per whole run,
// at the loop's outer boundary.
func (r *Runner) RunSetup(ctx context.Context, branches []*script.Branch) {
	for _, b := range branches {
		if len(b.Before) > 0 {
			r.instances[0].RunHooks(ctx, b.Before)
		}
	}
}

// Run consumes the before-lists and drives every worker until the tree is
// exhausted. It returns the number of workers that ended paused (a
// breakpoint hit outside a debug session stays suspended).
func (r *Runner) Run(ctx context.Context, branches []*script.Branch) int {
	r.RunSetup(ctx, branches)

	var wg sync.WaitGroup
	var paused atomic.Int32
	for _, in := range r.instances {
		wg.Add(1)
		go func(in *exec.Instance) {
			defer wg.Done()
			if in.Run(ctx) == exec.Paused {
				paused.Add(1)
			}
		}(in)
	}
	wg.Wait()
	return int(paused.Load())
}
