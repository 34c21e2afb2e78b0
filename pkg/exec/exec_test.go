package exec

import (
	"context"
	"testing"

	"github.com/stridekit/stride/pkg/script"
)

// fakeTree is a scripted in-package Tree double: sequential claiming, a
// record of every mark, and an optional idle token before the first branch.
type fakeTree struct {
	branches []*script.Branch
	next     int
	cursors  map[*script.Branch]int
	aborted  map[*script.Branch]bool

	idleTokens int
	marked     []*script.Step
}

func newFakeTree(branches ...*script.Branch) *fakeTree {
	return &fakeTree{
		branches: branches,
		cursors:  make(map[*script.Branch]int),
		aborted:  make(map[*script.Branch]bool),
	}
}

func (f *fakeTree) NextBranch() (*script.Branch, bool) {
	if f.idleTokens > 0 {
		f.idleTokens--
		return nil, true
	}
	if f.next >= len(f.branches) {
		return nil, false
	}
	b := f.branches[f.next]
	f.next++
	b.Passed = true
	return b, false
}

func (f *fakeTree) NextStep(b *script.Branch) *script.Step {
	cur := f.cursors[b]
	if f.aborted[b] || cur >= len(b.Steps) {
		b.Done = true
		return nil
	}
	f.cursors[b] = cur + 1
	return b.Steps[cur]
}

func (f *fakeTree) MarkStep(b *script.Branch, s *script.Step, passed, asExpected bool, fault *script.Fault, failBranch bool) {
	s.Done = true
	s.Passed = passed
	s.AsExpected = asExpected
	s.Fault = fault
	f.marked = append(f.marked, s)
	if b != nil && !asExpected {
		b.Passed = false
		if b.Fault == nil {
			b.Fault = fault
		}
	}
	if b != nil && failBranch {
		f.aborted[b] = true
	}
}

func (f *fakeTree) MarkBranch(b *script.Branch, passed bool) {
	b.Passed = passed
}

func (f *fakeTree) Serialize() *script.RunSnapshot {
	return &script.RunSnapshot{Branches: f.branches}
}

// fakeRunner is a non-atomic Runner double; the tests here are
// single-goroutine.
type fakeRunner struct {
	pauseOnFail bool
	singleStep  bool
	persistent  script.Vars
	reporter    *countReporter
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{persistent: script.Vars{}, reporter: &countReporter{}}
}

func (r *fakeRunner) TakePauseOnFail() bool {
	v := r.pauseOnFail
	r.pauseOnFail = false
	return v
}

func (r *fakeRunner) TakeSingleStep() bool {
	v := r.singleStep
	r.singleStep = false
	return v
}

func (r *fakeRunner) Persistent() script.Vars { return r.persistent }
func (r *fakeRunner) Reporter() Reporter      { return r.reporter }

type countReporter struct{ refreshes int }

func (c *countReporter) GenerateReport() { c.refreshes++ }

func okStep(text string, depth int) *script.Step {
	return &script.Step{
		Text:  text,
		Depth: depth,
		Payload: script.PayloadFunc(func(context.Context, *script.Env) error {
			return nil
		}),
	}
}

func failStep(text string, depth int) *script.Step {
	return &script.Step{
		Text:  text,
		Depth: depth,
		Payload: script.PayloadFunc(func(context.Context, *script.Env) error {
			return script.Failf("%s went wrong", text)
		}),
	}
}

// TestLogTargets verifies log routing: step first, branch as fallback,
// dropped with neither.
func TestLogTargets(t *testing.T) {
	in := New(newFakeTree(), newFakeRunner())

	in.Log("nowhere")

	b := &script.Branch{Title: "b"}
	in.branch = b
	in.Log("to branch")
	if b.Log != "to branch\n" {
		t.Errorf("branch log = %q", b.Log)
	}

	s := &script.Step{Text: "s"}
	in.step = s
	in.Log("to step")
	if s.Log != "to step\n" {
		t.Errorf("step log = %q", s.Log)
	}
	if b.Log != "to branch\n" {
		t.Errorf("branch log gained step text: %q", b.Log)
	}
}

// TestEnvLookupOrder verifies name resolution order: local shadows
// contextual shadows persistent.
func TestEnvLookupOrder(t *testing.T) {
	run := newFakeRunner()
	run.persistent["x"] = "persistent"
	in := New(newFakeTree(), run)
	in.contextual["x"] = "contextual"

	env := in.env()
	if v, _ := env.Lookup("x"); v != "contextual" {
		t.Errorf("contextual should shadow persistent, got %v", v)
	}
	in.scopes.active["x"] = "local"
	if v, _ := env.Lookup("x"); v != "local" {
		t.Errorf("local should shadow contextual, got %v", v)
	}
}
