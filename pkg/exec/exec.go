// Package exec is the execution core: it walks a pre-built tree of branches
// and steps, runs each step's payload under lexically nested scopes,
// classifies outcomes against expectation, dispatches hooks, and supports
// cooperative pausing for interactive debugging.
package exec

import (
	"context"
	"time"

	"github.com/stridekit/stride/pkg/script"
)

// Tree supplies branches and steps and records their results. Tree
// implementations must make claiming exclusive and consistent across
// concurrently calling instances: no two instances ever claim the same step.
type Tree interface {
	// NextBranch yields the next runnable branch. (nil, true) is the idle
	// token: nothing runnable yet, poll again shortly. (nil, false) means
	// the run is over.
	NextBranch() (*script.Branch, bool)

	// NextStep claims the next unexecuted step of the branch, or nil when
	// the branch is exhausted.
	NextStep(b *script.Branch) *script.Step

	// MarkStep records a step outcome. failBranch abandons the branch's
	// remaining steps.
	MarkStep(b *script.Branch, s *script.Step, passed, asExpected bool, fault *script.Fault, failBranch bool)

	// MarkBranch records a branch-level outcome.
	MarkBranch(b *script.Branch, passed bool)

	// Serialize produces a structured snapshot of the whole run.
	Serialize() *script.RunSnapshot
}

// Runner is the owning orchestrator: one-shot debug flags, the run-wide
// persistent bag, and the reporter handle. The Take methods read and clear
// atomically so a consume cannot race between concurrent instances.
type Runner interface {
	TakePauseOnFail() bool
	TakeSingleStep() bool
	Persistent() script.Vars
	Reporter() Reporter
}

// Reporter keeps a live view of the run current. GenerateReport is invoked
// after every step, fire and forget.
type Reporter interface {
	GenerateReport()
}

// BrowserFunc is the specialized in-browser execution path for steps whose
// canonical text is the browser directive. It is injected by a setup hook
// external to this core.
type BrowserFunc func(ctx context.Context, s *script.Step, env *script.Env) error

// Outcome is the result of a Run call. Run never fails; it only ever
// completes or pauses.
type Outcome int

const (
	Completed Outcome = iota
	Paused
)

func (o Outcome) String() string {
	if o == Paused {
		return "paused"
	}
	return "completed"
}

// DefaultIdleWait is how long an instance sleeps after receiving the idle
// token before polling the tree again.
const DefaultIdleWait = time.Second

// Instance is one execution worker. It is logically single-threaded: one
// step at a time, with suspension only at step and branch boundaries.
// Multiple instances may run concurrently against a shared tree.
type Instance struct {
	tree   Tree
	runner Runner

	branch *script.Branch
	step   *script.Step
	paused bool

	scopes     scopeStack
	contextual script.Vars
	lastDepth  int
	inHooks    bool

	browser BrowserFunc

	// IdleWait is the bounded wait applied when the tree reports idle.
	IdleWait time.Duration
}

// New creates an execution instance over a tree. One instance is created
// per concurrent worker and lives for the whole run.
func New(tree Tree, runner Runner) *Instance {
	return &Instance{
		tree:       tree,
		runner:     runner,
		scopes:     newScopeStack(),
		contextual: script.Vars{},
		IdleWait:   DefaultIdleWait,
	}
}

// SetBrowserExec registers the in-browser execution path.
func (in *Instance) SetBrowserExec(fn BrowserFunc) { in.browser = fn }

// ActiveBranch returns the branch being executed, or nil between branches.
func (in *Instance) ActiveBranch() *script.Branch { return in.branch }

// ActiveStep returns the step being executed, or nil between steps.
func (in *Instance) ActiveStep() *script.Step { return in.step }

// Paused reports whether the instance is suspended.
func (in *Instance) Paused() bool { return in.paused }

// Pause requests a suspension. It takes effect at the next step or branch
// boundary, never inside a running payload.
func (in *Instance) Pause() { in.paused = true }

// Contextual returns the instance-private variable bag.
func (in *Instance) Contextual() script.Vars { return in.contextual }

// Locals returns the active scope frame.
func (in *Instance) Locals() script.Frame { return in.scopes.active }

// Log appends text to the active step's log, or to the active branch's log
// when no step is active. Logged text with neither target is dropped.
func (in *Instance) Log(text string) {
	switch {
	case in.step != nil:
		in.step.Log += text + "\n"
	case in.branch != nil:
		in.branch.Log += text + "\n"
	}
}

// env builds the capability surface handed to payloads.
func (in *Instance) env() *script.Env {
	return &script.Env{
		Persistent: in.runner.Persistent(),
		Contextual: in.contextual,
		Local:      in.scopes.active,
		Log:        in.Log,
	}
}
