package exec

import (
	"context"
	"errors"
	"fmt"

	"github.com/stridekit/stride/pkg/script"
)

// execute runs one step. It is the single reentrant entry point used by the
// execution loop, the hook dispatcher, and interactive injection.
func (in *Instance) execute(ctx context.Context, s *script.Step) {
	// A breakpoint step only requests a pause: no payload, no scope
	// adjustment, no recording, no hooks.
	if s.Breakpoint {
		in.paused = true
		return
	}

	in.scopes.adjust(in.lastDepth, s.Depth)
	in.lastDepth = s.Depth

	fault := in.invoke(ctx, s)
	passed, asExpected, fault := classify(s.ExpectFail, fault, s)

	failBranch := fault != nil && fault.FailBranch
	switch {
	case in.step != nil && (!in.inHooks || !asExpected):
		// The active step records its own outcome. A hook step executing
		// under it may only override that record with a failure; a passing
		// hook never erases a recorded fault.
		in.tree.MarkStep(in.branch, in.step, passed, asExpected, fault, failBranch)
	case in.step == nil && in.branch != nil && !asExpected:
		// A branch-hook step went wrong with no step active: the fault
		// lands on the branch itself. Not-as-expected always carries a
		// fault, real or synthesized.
		hf := *fault
		hf.Kind = script.FaultHook
		in.branch.Fault = &hf
		in.tree.MarkBranch(in.branch, false)
	}

	if !passed || !asExpected {
		if in.runner.TakePauseOnFail() {
			in.paused = true
			return
		}
	}

	in.exposeOutcome(passed, fault)
	if in.branch != nil {
		in.runHooks(ctx, in.branch.StepHooks)
	}

	in.runner.Reporter().GenerateReport()

	if in.runner.TakeSingleStep() {
		in.paused = true
	}
}

// invoke runs the step's executable content under a guarded call. Any error
// or panic becomes a fault stamped with the step's file and line.
func (in *Instance) invoke(ctx context.Context, s *script.Step) (fault *script.Fault) {
	env := in.env()
	defer func() {
		if r := recover(); r != nil {
			fault = &script.Fault{
				Kind:    script.FaultPayload,
				Message: fmt.Sprintf("payload panic: %v", r),
				File:    s.File,
				Line:    s.Line,
			}
		}
	}()

	var err error
	switch {
	case script.Canonical(s.Text) == script.BrowserDirective:
		if in.browser == nil {
			err = errors.New("no in-browser execution path registered")
		} else {
			err = in.browser(ctx, s, env)
		}
	case s.Payload != nil:
		err = s.Payload.Invoke(ctx, env)
	}
	if err == nil {
		for i := range s.Assigns {
			if err = s.Assigns[i].Apply(env); err != nil {
				break
			}
		}
	}
	if err != nil {
		return script.Stamp(err, s.File, s.Line)
	}
	return nil
}

// exposeOutcome publishes a pass/fail result and its fault message into the
// active local frame as the "successful" and "error" pseudo-variables.
func (in *Instance) exposeOutcome(passed bool, fault *script.Fault) {
	in.scopes.active["successful"] = passed
	if fault != nil {
		in.scopes.active["error"] = fault.Message
	} else {
		in.scopes.active["error"] = nil
	}
}

// runHooks dispatches hook branches: every step of every hook branch
// reenters the step executor, unconditionally and in order. A pause raised
// inside a hook therefore takes effect only once the dispatch returns to
// the execution loop. Hook steps do not re-dispatch step-level hooks.
func (in *Instance) runHooks(ctx context.Context, hooks []*script.Branch) {
	if len(hooks) == 0 || in.inHooks {
		return
	}
	in.inHooks = true
	defer func() { in.inHooks = false }()

	for _, hb := range hooks {
		for _, s := range hb.Steps {
			in.execute(ctx, s)
		}
	}
}

// RunHooks exposes hook dispatch for the loop's outer boundary: the runner
// consumes the branches' before-lists through it, once per whole run. With
// no active branch or step, results of these steps are not recorded.
func (in *Instance) RunHooks(ctx context.Context, hooks []*script.Branch) {
	in.runHooks(ctx, hooks)
}
